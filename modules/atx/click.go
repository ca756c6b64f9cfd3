package atx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tr4cks/atx-power/modules/atx/gpio"
	"vawter.tech/stopper"
)

var errShuttingDown = errors.New("atx module is shutting down")

// click presses a switch inside the exclusive region.
//
// With wait, the caller is blocked until the region is free and the whole
// click, settle delay included, is over. Without wait, ErrBusy is returned
// at once if another click holds the region; otherwise the click runs in
// the background and its failures are only logged.
//
// ctx only bounds the wait for the region. Once pressed, a switch is held
// for its full delay unless the module is cleaned up.
func (m *AtxModule) click(ctx context.Context, name string, line gpio.OutputLine, delay time.Duration, wait bool) error {
	if line == nil {
		return errors.New("atx module is not prepared")
	}

	if wait {
		release, err := m.region.EnterBlocking(ctx)
		if err != nil {
			return fmt.Errorf("error waiting for the %s switch: %w", name, err)
		}
		defer release()

		done, err := m.track()
		if err != nil {
			return err
		}
		defer done()

		err = m.tasks.Call(func(ctx *stopper.Context) error {
			return m.innerClick(ctx, name, line, delay)
		})
		if errors.Is(err, stopper.ErrStopped) {
			return errShuttingDown
		}
		return err
	}

	release, err := m.region.EnterImmediate()
	if err != nil {
		return err
	}
	done, err := m.track()
	if err != nil {
		release()
		return err
	}
	accepted := m.tasks.Go(func(ctx *stopper.Context) error {
		defer done()
		defer release()
		if err := m.innerClick(ctx, name, line, delay); err != nil {
			m.logger.Error().Err(err).Str("button", name).
				Msgf("Can't perform ATX %s click or operation was not completed", name)
		}
		return nil
	})
	if !accepted {
		release()
		done()
		return errShuttingDown
	}
	return nil
}

// track registers a running click so that Cleanup waits for it before
// closing the lines.
func (m *AtxModule) track() (func(), error) {
	m.clicksMu.Lock()
	defer m.clicksMu.Unlock()
	if m.closing {
		return nil, errShuttingDown
	}
	m.clicks.Add(1)
	return m.clicks.Done, nil
}

func (m *AtxModule) innerClick(ctx context.Context, name string, line gpio.OutputLine, delay time.Duration) error {
	err := pressSwitch(ctx, line, delay)
	if err == nil {
		err = sleepContext(ctx, m.settleDelay)
	}
	if err != nil {
		return fmt.Errorf("error clicking the %s switch: %w", name, err)
	}
	m.logger.Info().Str("button", name).Msgf("Clicked ATX button %q", name)
	return nil
}

// pressSwitch asserts line for delay. The line is deasserted on every
// path, including cancellation and panics.
func pressSwitch(ctx context.Context, line gpio.OutputLine, delay time.Duration) (err error) {
	defer func() {
		if releaseErr := line.SetValue(false); releaseErr != nil {
			err = errors.Join(err, fmt.Errorf("error releasing the switch: %w", releaseErr))
		}
	}()

	if err := line.SetValue(true); err != nil {
		return fmt.Errorf("error pressing the switch: %w", err)
	}
	return sleepContext(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
