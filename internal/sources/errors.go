package sources

import "errors"

var (
	// ErrNotFound indicates an entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPresignUnsupported is returned when the object store cannot issue
	// direct upload URLs.
	ErrPresignUnsupported = errors.New("direct upload not supported")
)
