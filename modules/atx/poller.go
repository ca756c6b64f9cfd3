package atx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tr4cks/atx-power/modules/aio"
	"github.com/tr4cks/atx-power/modules/atx/gpio"
	"golang.org/x/time/rate"
)

// Indexes of the observed inputs.
const (
	ledPower = iota
	ledHDD
)

// inputPoller keeps the latest (inverted) value of the LED inputs and posts
// to the notifier whenever one of them changes. It is the only writer of
// the cached values.
type inputPoller struct {
	inverted []bool
	interval time.Duration
	notifier *aio.Notifier
	logger   zerolog.Logger
	errLog   rate.Sometimes

	mu     sync.RWMutex
	lines  gpio.InputLines
	values []bool
	failed bool
}

func newInputPoller(inverted []bool, interval time.Duration, notifier *aio.Notifier, logger zerolog.Logger) *inputPoller {
	return &inputPoller{
		inverted: inverted,
		interval: interval,
		notifier: notifier,
		logger:   logger,
		errLog:   rate.Sometimes{First: 1, Interval: time.Minute},
		values:   make([]bool, len(inverted)),
	}
}

func (p *inputPoller) attach(lines gpio.InputLines) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = lines
}

// get returns the cached value of input n.
func (p *inputPoller) get(n int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[n]
}

// run polls until ctx is done. Read failures are logged and retried on the
// next tick.
func (p *inputPoller) run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *inputPoller) pollOnce() {
	err := p.poll()
	p.mu.Lock()
	recovered := err == nil && p.failed
	p.failed = err != nil
	p.mu.Unlock()

	if err != nil {
		p.errLog.Do(func() {
			p.logger.Error().Err(err).Msg("Failed to read LED inputs, retrying")
		})
	} else if recovered {
		p.logger.Info().Msg("LED inputs are readable again")
	}
}

// poll reads the inputs once and notifies if any value changed.
func (p *inputPoller) poll() error {
	p.mu.RLock()
	lines := p.lines
	p.mu.RUnlock()
	if lines == nil {
		return errors.New("input lines are not requested")
	}

	raw, err := lines.Values()
	if err != nil {
		return err
	}
	if len(raw) != len(p.inverted) {
		return errors.New("unexpected number of input values")
	}

	changed := false
	p.mu.Lock()
	for n, value := range raw {
		value = value != p.inverted[n]
		if p.values[n] != value {
			p.values[n] = value
			changed = true
		}
	}
	p.mu.Unlock()

	if changed {
		p.notifier.Notify()
	}
	return nil
}
