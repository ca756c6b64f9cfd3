//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealChip drives lines through the Linux GPIO character device.
type RealChip struct {
	chip *gpiocdev.Chip
}

// Open opens a chip such as "gpiochip0" or "/dev/gpiochip0".
func Open(device string) (Chip, error) {
	chip, err := gpiocdev.NewChip(device)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %q: %w", device, err)
	}
	return &RealChip{chip: chip}, nil
}

func (c *RealChip) RequestOutput(pin int, consumer string, initial bool) (OutputLine, error) {
	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(toRaw(initial)), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &realOutput{line: line}, nil
}

func (c *RealChip) RequestInputs(pins []int, consumer string) (InputLines, error) {
	lines, err := c.chip.RequestLines(pins, gpiocdev.AsInput, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request input pins %v: %w", pins, err)
	}
	return &realInputs{lines: lines, raw: make([]int, len(pins))}, nil
}

func (c *RealChip) Close() error {
	return c.chip.Close()
}

type realOutput struct {
	line *gpiocdev.Line
}

func (o *realOutput) SetValue(value bool) error {
	return o.line.SetValue(toRaw(value))
}

func (o *realOutput) Value() (bool, error) {
	raw, err := o.line.Value()
	if err != nil {
		return false, err
	}
	return raw != 0, nil
}

func (o *realOutput) Close() error {
	return o.line.Close()
}

type realInputs struct {
	lines *gpiocdev.Lines
	raw   []int
}

// Values is only called from the poller goroutine, so raw is reused.
func (i *realInputs) Values() ([]bool, error) {
	if err := i.lines.Values(i.raw); err != nil {
		return nil, err
	}
	values := make([]bool, len(i.raw))
	for n, raw := range i.raw {
		values[n] = raw != 0
	}
	return values, nil
}

func (i *realInputs) Close() error {
	return i.lines.Close()
}

func toRaw(value bool) int {
	if value {
		return 1
	}
	return 0
}
