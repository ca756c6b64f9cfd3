// Package gpio is the chip binding used by the ATX module.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Opener opens a GPIO chip by device name or path.
type Opener func(device string) (Chip, error)

type Chip interface {
	// RequestOutput requests pin as an output driven to initial.
	RequestOutput(pin int, consumer string, initial bool) (OutputLine, error)

	// RequestInputs requests pins as inputs, read together.
	RequestInputs(pins []int, consumer string) (InputLines, error)

	Close() error
}

type OutputLine interface {
	SetValue(value bool) error
	Value() (bool, error)
	Close() error
}

type InputLines interface {
	// Values returns the raw values of the lines, in request order.
	Values() ([]bool, error)
	Close() error
}
