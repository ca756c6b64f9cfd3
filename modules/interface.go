package modules

import (
	"context"

	"github.com/tr4cks/atx-power/modules/aio"
)

// Module is the capability set a power backend exposes to the daemon.
type Module interface {
	Init(config map[string]interface{}) error
	// Prepare acquires the hardware once. Calling it again is a no-op.
	Prepare() error
	State() State
	PollStates() *aio.Stream[State]
	// Systask runs the module background loop until ctx is done.
	Systask(ctx context.Context) error
	// Cleanup releases the hardware. Failures are logged, never returned.
	Cleanup()

	PowerOn(ctx context.Context, wait bool) error
	PowerOff(ctx context.Context, wait bool) error
	PowerOffHard(ctx context.Context, wait bool) error
	PowerResetHard(ctx context.Context, wait bool) error

	ClickPower(ctx context.Context, wait bool) error
	ClickPowerLong(ctx context.Context, wait bool) error
	ClickReset(ctx context.Context, wait bool) error
}

type Leds struct {
	Power bool `json:"power"`
	HDD   bool `json:"hdd"`
}

// State is an immutable snapshot of a module. It is comparable with ==.
type State struct {
	Enabled bool `json:"enabled"`
	Busy    bool `json:"busy"`
	Leds    Leds `json:"leds"`
}

type DefaultModule struct{}

func (*DefaultModule) Init(config map[string]interface{}) error {
	return nil
}

func (*DefaultModule) Prepare() error {
	return nil
}

func (*DefaultModule) State() State {
	return State{}
}

func (*DefaultModule) Systask(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (*DefaultModule) Cleanup() {}

func (*DefaultModule) PowerOn(ctx context.Context, wait bool) error {
	return ErrNotSupported
}

func (*DefaultModule) PowerOff(ctx context.Context, wait bool) error {
	return ErrNotSupported
}

func (*DefaultModule) PowerOffHard(ctx context.Context, wait bool) error {
	return ErrNotSupported
}

func (*DefaultModule) PowerResetHard(ctx context.Context, wait bool) error {
	return ErrNotSupported
}

func (*DefaultModule) ClickPower(ctx context.Context, wait bool) error {
	return ErrNotSupported
}

func (*DefaultModule) ClickPowerLong(ctx context.Context, wait bool) error {
	return ErrNotSupported
}

func (*DefaultModule) ClickReset(ctx context.Context, wait bool) error {
	return ErrNotSupported
}
