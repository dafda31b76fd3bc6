package simlock

import "errors"

// Simulator errors.
var (
	// ErrInvalidSecret is returned when the device secret is not 16 bytes.
	ErrInvalidSecret = errors.New("simlock: device secret must be 16 bytes")

	// ErrNotStarted is returned when publishing before Start.
	ErrNotStarted = errors.New("simlock: not started")
)
