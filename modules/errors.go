package modules

import "errors"

var (
	// ErrBusy is returned when a button operation is requested without
	// waiting while another one is in progress.
	ErrBusy = errors.New("another power operation is in progress")

	ErrNotSupported = errors.New("operation not supported by this module")
)
