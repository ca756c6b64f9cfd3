package atx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tr4cks/atx-power/modules"
	"github.com/tr4cks/atx-power/modules/aio"
	"github.com/tr4cks/atx-power/modules/atx/gpio"
	"vawter.tech/stopper"
)

const (
	consumerPowerSwitch = "power/atx/power_switch"
	consumerResetSwitch = "power/atx/reset_switch"
	consumerLeds        = "power/atx/leds"

	// Time left to detached clicks to complete on cleanup before their
	// context is cancelled.
	cleanupGracePeriod = time.Second
)

// AtxModule drives the power and reset switches of an ATX motherboard and
// watches its power and HDD LEDs through GPIO lines.
type AtxModule struct {
	modules.DefaultModule
	Config AtxConfig

	logger      zerolog.Logger
	open        gpio.Opener
	settleDelay time.Duration

	notifier *aio.Notifier
	region   *aio.Region
	reader   *inputPoller
	tasks    *stopper.Context

	clicksMu sync.Mutex
	closing  bool
	clicks   sync.WaitGroup

	prepareOnce sync.Once
	prepareErr  error

	chip        gpio.Chip
	powerSwitch gpio.OutputLine
	resetSwitch gpio.OutputLine
	leds        gpio.InputLines
}

func New(logger zerolog.Logger) modules.Module {
	return newModule(DefaultConfig(), gpio.Open, logger)
}

func newModule(config AtxConfig, open gpio.Opener, logger zerolog.Logger) *AtxModule {
	notifier := aio.NewNotifier()
	return &AtxModule{
		Config:      config,
		logger:      logger.With().Str("scope", "atx").Logger(),
		open:        open,
		settleDelay: time.Second,
		notifier:    notifier,
		region:      aio.NewRegion(modules.ErrBusy, notifier),
		tasks:       stopper.WithContext(context.Background()),
	}
}

func (m *AtxModule) Init(config map[string]interface{}) error {
	err := modules.Validate(config, &m.Config)
	if err != nil {
		return fmt.Errorf("error validating %q module configuration: %w", "atx", err)
	}
	return nil
}

func (m *AtxModule) Prepare() error {
	m.prepareOnce.Do(func() {
		m.prepareErr = m.prepare()
	})
	return m.prepareErr
}

func (m *AtxModule) prepare() (err error) {
	m.reader = newInputPoller(
		[]bool{m.Config.PowerLedInverted, m.Config.HddLedInverted},
		m.Config.pollInterval(), m.notifier, m.logger,
	)

	chip, err := m.open(m.Config.Device)
	if err != nil {
		return fmt.Errorf("error opening GPIO chip: %w", err)
	}
	defer func() {
		if err != nil {
			if closeErr := m.closeHardware(chip); closeErr != nil {
				m.logger.Warn().Err(closeErr).Msg("Failed to release GPIO after a failed preparation")
			}
		}
	}()

	m.powerSwitch, err = chip.RequestOutput(m.Config.PowerSwitchPin, consumerPowerSwitch, false)
	if err != nil {
		return fmt.Errorf("error requesting the power switch line: %w", err)
	}
	m.resetSwitch, err = chip.RequestOutput(m.Config.ResetSwitchPin, consumerResetSwitch, false)
	if err != nil {
		return fmt.Errorf("error requesting the reset switch line: %w", err)
	}
	m.leds, err = chip.RequestInputs([]int{m.Config.PowerLedPin, m.Config.HddLedPin}, consumerLeds)
	if err != nil {
		return fmt.Errorf("error requesting the LED lines: %w", err)
	}
	m.chip = chip
	m.reader.attach(m.leds)

	if err := m.reader.poll(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read the initial LED state")
	}

	m.logger.Info().
		Str("device", m.Config.Device).
		Int("power_switch_pin", m.Config.PowerSwitchPin).
		Int("reset_switch_pin", m.Config.ResetSwitchPin).
		Int("power_led_pin", m.Config.PowerLedPin).
		Int("hdd_led_pin", m.Config.HddLedPin).
		Msg("GPIO lines acquired")
	return nil
}

func (m *AtxModule) State() modules.State {
	state := modules.State{
		Enabled: true,
		Busy:    m.region.IsBusy(),
	}
	if m.reader != nil {
		state.Leds.Power = m.reader.get(ledPower)
		state.Leds.HDD = m.reader.get(ledHDD)
	}
	return state
}

func (m *AtxModule) PollStates() *aio.Stream[modules.State] {
	return aio.NewStream(m.notifier, m.State)
}

func (m *AtxModule) Systask(ctx context.Context) error {
	if m.chip == nil {
		return errors.New("atx module is not prepared")
	}
	return m.reader.run(ctx)
}

// Cleanup waits for running clicks, so that every switch is released, then
// closes the lines and the chip.
func (m *AtxModule) Cleanup() {
	m.clicksMu.Lock()
	m.closing = true
	m.clicksMu.Unlock()

	m.tasks.Stop(cleanupGracePeriod)
	if err := m.tasks.Wait(); err != nil {
		m.logger.Warn().Err(err).Msg("Background click ended with an error")
	}
	// Wait returns once the task context is cancelled, which may be before
	// the clicks have deasserted their switch.
	m.clicks.Wait()

	if m.chip == nil {
		return
	}
	if err := m.closeHardware(m.chip); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to release GPIO")
	}
	m.chip = nil
}

func (m *AtxModule) closeHardware(chip gpio.Chip) error {
	var errs []error
	for _, line := range []interface{ Close() error }{m.powerSwitch, m.resetSwitch, m.leds} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	m.powerSwitch, m.resetSwitch, m.leds = nil, nil, nil
	return errors.Join(errs...)
}

func (m *AtxModule) PowerOn(ctx context.Context, wait bool) error {
	if !m.State().Leds.Power {
		return m.ClickPower(ctx, wait)
	}
	return nil
}

func (m *AtxModule) PowerOff(ctx context.Context, wait bool) error {
	if m.State().Leds.Power {
		return m.ClickPower(ctx, wait)
	}
	return nil
}

func (m *AtxModule) PowerOffHard(ctx context.Context, wait bool) error {
	if m.State().Leds.Power {
		return m.ClickPowerLong(ctx, wait)
	}
	return nil
}

func (m *AtxModule) PowerResetHard(ctx context.Context, wait bool) error {
	if m.State().Leds.Power {
		return m.ClickReset(ctx, wait)
	}
	return nil
}

func (m *AtxModule) ClickPower(ctx context.Context, wait bool) error {
	return m.click(ctx, "power", m.powerSwitch, m.Config.clickDelay(), wait)
}

func (m *AtxModule) ClickPowerLong(ctx context.Context, wait bool) error {
	return m.click(ctx, "power_long", m.powerSwitch, m.Config.longClickDelay(), wait)
}

func (m *AtxModule) ClickReset(ctx context.Context, wait bool) error {
	return m.click(ctx, "reset", m.resetSwitch, m.Config.clickDelay(), wait)
}
