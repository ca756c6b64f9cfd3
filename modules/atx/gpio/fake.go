package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Transition is one write recorded on a fake output line.
type Transition struct {
	Pin   int
	Value bool
	At    time.Time
}

// FakeChip is an in-memory chip for tests. It is safe for concurrent use.
type FakeChip struct {
	mu sync.Mutex

	inputs      map[int]bool
	outputs     map[int]*FakeOutput
	transitions []Transition
	closed      bool

	// ReadError, if set, is returned by InputLines.Values.
	ReadError error
	// RequestError, if set, is returned by the Request methods.
	RequestError error
	// CloseError, if set, is returned by Close.
	CloseError error
	// OnSet, if set, is called after every output write, outside the lock.
	OnSet func(pin int, value bool)
}

func NewFakeChip() *FakeChip {
	return &FakeChip{
		inputs:  make(map[int]bool),
		outputs: make(map[int]*FakeOutput),
	}
}

// Opener returns an Opener handing out this chip.
func (c *FakeChip) Opener() Opener {
	return func(device string) (Chip, error) {
		return c, nil
	}
}

// SetInput sets the raw value of an input pin.
func (c *FakeChip) SetInput(pin int, raw bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs[pin] = raw
}

func (c *FakeChip) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReadError = err
}

// Output returns the output requested on pin, or nil.
func (c *FakeChip) Output(pin int) *FakeOutput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputs[pin]
}

// Transitions returns a copy of every output write so far.
func (c *FakeChip) Transitions() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.transitions...)
}

func (c *FakeChip) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeChip) RequestOutput(pin int, consumer string, initial bool) (OutputLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RequestError != nil {
		return nil, c.RequestError
	}
	if _, ok := c.outputs[pin]; ok {
		return nil, fmt.Errorf("pin %d: device or resource busy", pin)
	}
	out := &FakeOutput{chip: c, pin: pin, value: initial, Consumer: consumer}
	c.outputs[pin] = out
	return out, nil
}

func (c *FakeChip) RequestInputs(pins []int, consumer string) (InputLines, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RequestError != nil {
		return nil, c.RequestError
	}
	return &fakeInputs{chip: c, pins: append([]int(nil), pins...)}, nil
}

func (c *FakeChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.CloseError
}

// FakeOutput is an output line of a FakeChip.
type FakeOutput struct {
	chip     *FakeChip
	pin      int
	value    bool
	closed   bool
	Consumer string

	// SetError, if set, is returned by SetValue and the value is left untouched.
	SetError error
}

func (o *FakeOutput) SetValue(value bool) error {
	o.chip.mu.Lock()
	if o.closed {
		o.chip.mu.Unlock()
		return errors.New("line closed")
	}
	if o.SetError != nil {
		o.chip.mu.Unlock()
		return o.SetError
	}
	o.value = value
	o.chip.transitions = append(o.chip.transitions, Transition{Pin: o.pin, Value: value, At: time.Now()})
	onSet := o.chip.OnSet
	o.chip.mu.Unlock()

	if onSet != nil {
		onSet(o.pin, value)
	}
	return nil
}

func (o *FakeOutput) Value() (bool, error) {
	o.chip.mu.Lock()
	defer o.chip.mu.Unlock()
	return o.value, nil
}

func (o *FakeOutput) Close() error {
	o.chip.mu.Lock()
	defer o.chip.mu.Unlock()
	o.closed = true
	return nil
}

type fakeInputs struct {
	chip *FakeChip
	pins []int
}

func (i *fakeInputs) Values() ([]bool, error) {
	i.chip.mu.Lock()
	defer i.chip.mu.Unlock()
	if i.chip.ReadError != nil {
		return nil, i.chip.ReadError
	}
	values := make([]bool, len(i.pins))
	for n, pin := range i.pins {
		values[n] = i.chip.inputs[pin]
	}
	return values, nil
}

func (i *fakeInputs) Close() error {
	return nil
}
