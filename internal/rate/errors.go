package rate

import "errors"

var (
	// ErrUnavailable wraps every counter backend failure, including context
	// deadlines and cancellations.
	ErrUnavailable = errors.New("counter store unavailable")
	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("counter key must not be empty")
)
