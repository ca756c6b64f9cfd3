package atx

import (
	"time"

	"github.com/tr4cks/atx-power/modules"
)

// AtxConfig is the "module" section of the configuration file.
// Delays are expressed in seconds.
type AtxConfig struct {
	Device string `mapstructure:"device" validate:"required"`

	PowerLedPin      int  `mapstructure:"power_led_pin" validate:"gte=0"`
	HddLedPin        int  `mapstructure:"hdd_led_pin" validate:"gte=0"`
	PowerLedInverted bool `mapstructure:"power_led_inverted"`
	HddLedInverted   bool `mapstructure:"hdd_led_inverted"`

	PowerSwitchPin int     `mapstructure:"power_switch_pin" validate:"gte=0"`
	ResetSwitchPin int     `mapstructure:"reset_switch_pin" validate:"gte=0,nefield=PowerSwitchPin"`
	ClickDelay     float64 `mapstructure:"click_delay" validate:"gte=0.1"`
	LongClickDelay float64 `mapstructure:"long_click_delay" validate:"gte=0.1"`

	PollInterval float64 `mapstructure:"poll_interval" validate:"gt=0"`
}

const unsetPin = -1

func DefaultConfig() AtxConfig {
	return AtxConfig{
		Device:         "gpiochip0",
		PowerLedPin:    unsetPin,
		HddLedPin:      unsetPin,
		PowerSwitchPin: unsetPin,
		ResetSwitchPin: unsetPin,
		ClickDelay:     0.1,
		LongClickDelay: 5.5,
		PollInterval:   0.05,
	}
}

func (c *AtxConfig) clickDelay() time.Duration {
	return modules.Seconds(c.ClickDelay)
}

func (c *AtxConfig) longClickDelay() time.Duration {
	return modules.Seconds(c.LongClickDelay)
}

func (c *AtxConfig) pollInterval() time.Duration {
	return modules.Seconds(c.PollInterval)
}
