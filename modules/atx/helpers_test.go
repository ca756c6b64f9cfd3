package atx

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tr4cks/atx-power/modules/atx/gpio"
)

const (
	testPowerLedPin    = 4
	testHddLedPin      = 5
	testPowerSwitchPin = 17
	testResetSwitchPin = 27
)

func testConfig() AtxConfig {
	config := DefaultConfig()
	config.PowerLedPin = testPowerLedPin
	config.HddLedPin = testHddLedPin
	config.PowerSwitchPin = testPowerSwitchPin
	config.ResetSwitchPin = testResetSwitchPin
	config.ClickDelay = 0.02
	config.LongClickDelay = 0.05
	config.PollInterval = 0.005
	return config
}

func newTestModule(t *testing.T, chip *gpio.FakeChip, config AtxConfig) *AtxModule {
	t.Helper()
	m := newModule(config, chip.Opener(), testLogger())
	m.settleDelay = 10 * time.Millisecond
	require.NoError(t, m.Prepare())
	t.Cleanup(m.Cleanup)
	return m
}

func pinTransitions(chip *gpio.FakeChip, pin int) []bool {
	var values []bool
	for _, tr := range chip.Transitions() {
		if tr.Pin == pin {
			values = append(values, tr.Value)
		}
	}
	return values
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
