package aio

import (
	"context"
	"sync"
)

// Region is a single-slot exclusive region.
//
// Entering and leaving the region both post to the notifier so that state
// observers can report the busy flag.
type Region struct {
	slot     chan struct{}
	busyErr  error
	notifier *Notifier

	mu   sync.Mutex
	busy bool
}

// NewRegion creates a free region. busyErr is returned by EnterImmediate
// when the region is held. notifier may be nil.
func NewRegion(busyErr error, notifier *Notifier) *Region {
	return &Region{
		slot:     make(chan struct{}, 1),
		busyErr:  busyErr,
		notifier: notifier,
	}
}

// IsBusy reports whether a critical section is currently inside the region.
func (r *Region) IsBusy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// EnterBlocking waits until the region is free and enters it.
// The returned release func must be called exactly once; extra calls are no-ops.
func (r *Region) EnterBlocking(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case r.slot <- struct{}{}:
		return r.entered(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EnterImmediate enters the region if it is free, or fails with the busy
// error without waiting.
func (r *Region) EnterImmediate() (func(), error) {
	select {
	case r.slot <- struct{}{}:
		return r.entered(), nil
	default:
		return nil, r.busyErr
	}
}

func (r *Region) entered() func() {
	r.setBusy(true)

	var once sync.Once
	return func() {
		once.Do(r.exit)
	}
}

func (r *Region) exit() {
	r.setBusy(false)
	<-r.slot
}

func (r *Region) setBusy(busy bool) {
	r.mu.Lock()
	r.busy = busy
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.Notify()
	}
}
