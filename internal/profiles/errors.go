package profiles

import "errors"

var (
	// ErrNotFound indicates the profile or its photo does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")
)
