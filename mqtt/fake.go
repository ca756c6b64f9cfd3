package mqtt

import (
	"sync"

	"github.com/tr4cks/atx-power/modules"
)

// FakePublisher records published snapshots for test assertions.
type FakePublisher struct {
	mu     sync.Mutex
	states []modules.State
	closed bool

	// PublishError, if set, is returned by PublishState.
	PublishError error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishState(state modules.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.states = append(f.states, state)
	return nil
}

// States returns a copy of the published snapshots.
func (f *FakePublisher) States() []modules.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]modules.State(nil), f.states...)
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
