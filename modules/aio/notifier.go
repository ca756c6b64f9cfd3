// Package aio holds the small synchronization primitives shared by the power
// modules: a broadcast notifier, an exclusive region and a change-only stream.
package aio

import (
	"context"
	"sync"
)

// Notifier wakes every current waiter on Notify.
//
// A Notify with no waiter is not remembered: waiters must re-check the state
// they care about after waking up.
type Notifier struct {
	mu     sync.Mutex
	waiter chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Wait returns a channel that is closed by the next Notify.
// Every caller between two Notify calls gets the same channel.
func (n *Notifier) Wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.waiter == nil {
		n.waiter = make(chan struct{})
	}
	return n.waiter
}

// WaitContext blocks until the next Notify or until ctx is done.
func (n *Notifier) WaitContext(ctx context.Context) error {
	select {
	case <-n.Wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.waiter == nil {
		return
	}
	close(n.waiter)
	n.waiter = nil
}
