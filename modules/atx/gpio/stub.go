//go:build !linux

package gpio

import "errors"

// Open returns an error on non-Linux platforms.
func Open(device string) (Chip, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
