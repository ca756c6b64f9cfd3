package atx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tr4cks/atx-power/modules"
	"github.com/tr4cks/atx-power/modules/atx/gpio"
)

func TestPowerOperations(t *testing.T) {
	tests := []struct {
		name      string
		powered   bool
		op        func(*AtxModule) error
		wantPin   int
		wantClick bool
		wantHold  time.Duration
	}{
		{"power on while off", false, func(m *AtxModule) error { return m.PowerOn(context.Background(), true) }, testPowerSwitchPin, true, 20 * time.Millisecond},
		{"power on while on", true, func(m *AtxModule) error { return m.PowerOn(context.Background(), true) }, testPowerSwitchPin, false, 0},
		{"power off while on", true, func(m *AtxModule) error { return m.PowerOff(context.Background(), true) }, testPowerSwitchPin, true, 20 * time.Millisecond},
		{"power off while off", false, func(m *AtxModule) error { return m.PowerOff(context.Background(), true) }, testPowerSwitchPin, false, 0},
		{"hard off while on", true, func(m *AtxModule) error { return m.PowerOffHard(context.Background(), true) }, testPowerSwitchPin, true, 50 * time.Millisecond},
		{"hard off while off", false, func(m *AtxModule) error { return m.PowerOffHard(context.Background(), true) }, testPowerSwitchPin, false, 0},
		{"hard reset while on", true, func(m *AtxModule) error { return m.PowerResetHard(context.Background(), true) }, testResetSwitchPin, true, 20 * time.Millisecond},
		{"hard reset while off", false, func(m *AtxModule) error { return m.PowerResetHard(context.Background(), true) }, testResetSwitchPin, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chip := gpio.NewFakeChip()
			chip.SetInput(testPowerLedPin, tt.powered)
			m := newTestModule(t, chip, testConfig())

			require.NoError(t, tt.op(m))

			transitions := chip.Transitions()
			if !tt.wantClick {
				assert.Empty(t, transitions)
				return
			}
			require.Len(t, transitions, 2)
			assert.Equal(t, tt.wantPin, transitions[0].Pin)
			assert.True(t, transitions[0].Value)
			assert.False(t, transitions[1].Value)
			assert.GreaterOrEqual(t, transitions[1].At.Sub(transitions[0].At), tt.wantHold)
		})
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	chip := gpio.NewFakeChip()
	m := newTestModule(t, chip, testConfig())

	// A second request of the same pins would fail on the fake chip.
	require.NoError(t, m.Prepare())

	assert.Equal(t, consumerPowerSwitch, chip.Output(testPowerSwitchPin).Consumer)
	assert.Equal(t, consumerResetSwitch, chip.Output(testResetSwitchPin).Consumer)
	value, err := chip.Output(testPowerSwitchPin).Value()
	require.NoError(t, err)
	assert.False(t, value)
}

func TestPrepareFailure(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		m := newModule(testConfig(), func(string) (gpio.Chip, error) {
			return nil, errors.New("no such device")
		}, testLogger())
		assert.ErrorContains(t, m.Prepare(), "no such device")
		assert.ErrorContains(t, m.Prepare(), "no such device")
		m.Cleanup()
	})

	t.Run("request", func(t *testing.T) {
		chip := gpio.NewFakeChip()
		chip.RequestError = errors.New("device or resource busy")
		m := newModule(testConfig(), chip.Opener(), testLogger())
		assert.ErrorContains(t, m.Prepare(), "power switch")
		assert.True(t, chip.Closed())
		m.Cleanup()
	})

	t.Run("same pins", func(t *testing.T) {
		chip := gpio.NewFakeChip()
		config := testConfig()
		config.ResetSwitchPin = config.PowerSwitchPin
		m := newModule(config, chip.Opener(), testLogger())
		assert.ErrorContains(t, m.Prepare(), "reset switch")
		assert.True(t, chip.Closed())
	})
}

func TestCleanupSwallowsErrors(t *testing.T) {
	chip := gpio.NewFakeChip()
	chip.CloseError = errors.New("simulated error")
	m := newModule(testConfig(), chip.Opener(), testLogger())
	require.NoError(t, m.Prepare())

	assert.NotPanics(t, m.Cleanup)
	assert.True(t, chip.Closed())
	assert.NotPanics(t, m.Cleanup)
}

func TestInitConfig(t *testing.T) {
	m := New(testLogger()).(*AtxModule)
	err := m.Init(map[string]interface{}{
		"power_led_pin":      24,
		"hdd_led_pin":        22,
		"power_led_inverted": true,
		"power_switch_pin":   23,
		"reset_switch_pin":   27,
		"click_delay":        0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpiochip0", m.Config.Device)
	assert.Equal(t, 24, m.Config.PowerLedPin)
	assert.True(t, m.Config.PowerLedInverted)
	assert.False(t, m.Config.HddLedInverted)
	assert.Equal(t, 200*time.Millisecond, m.Config.clickDelay())
	assert.Equal(t, 5500*time.Millisecond, m.Config.longClickDelay())
}

func TestInitConfigErrors(t *testing.T) {
	valid := func() map[string]interface{} {
		return map[string]interface{}{
			"power_led_pin":    24,
			"hdd_led_pin":      22,
			"power_switch_pin": 23,
			"reset_switch_pin": 27,
		}
	}
	tests := []struct {
		name   string
		change func(map[string]interface{})
	}{
		{"unset pin", func(c map[string]interface{}) { delete(c, "power_switch_pin") }},
		{"same switch pins", func(c map[string]interface{}) { c["reset_switch_pin"] = 23 }},
		{"click delay too short", func(c map[string]interface{}) { c["click_delay"] = 0.01 }},
		{"negative long click delay", func(c map[string]interface{}) { c["long_click_delay"] = -1 }},
		{"empty device", func(c map[string]interface{}) { c["device"] = "" }},
		{"unknown option", func(c map[string]interface{}) { c["power_led_pni"] = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.change(config)
			m := New(testLogger())
			assert.Error(t, m.Init(config))
		})
	}
}

func TestStateBeforePrepare(t *testing.T) {
	m := newModule(testConfig(), gpio.NewFakeChip().Opener(), testLogger())
	assert.Equal(t, modules.State{Enabled: true}, m.State())
	assert.Error(t, m.ClickPower(context.Background(), true))
}

func TestPollStates(t *testing.T) {
	chip := gpio.NewFakeChip()
	m := newTestModule(t, chip, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go m.Systask(ctx)

	stream := m.PollStates()
	state, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, modules.State{Enabled: true}, state)

	chip.SetInput(testPowerLedPin, true)
	state, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, modules.State{Enabled: true, Leds: modules.Leds{Power: true}}, state)

	// Two changes before the consumer resumes collapse into the latest one.
	chip.SetInput(testHddLedPin, true)
	time.Sleep(20 * time.Millisecond)
	chip.SetInput(testHddLedPin, false)
	chip.SetInput(testPowerLedPin, false)
	time.Sleep(20 * time.Millisecond)

	state, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, modules.State{Enabled: true}, state)
}

func TestPollStatesReportsBusy(t *testing.T) {
	chip := gpio.NewFakeChip()
	m := newTestModule(t, chip, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream := m.PollStates()
	_, err := stream.Next(ctx)
	require.NoError(t, err)

	release, err := m.region.EnterImmediate()
	require.NoError(t, err)
	state, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.True(t, state.Busy)

	release()
	state, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.False(t, state.Busy)
}
