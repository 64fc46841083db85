package cvs

import "errors"

var (
	ErrNotFound     = errors.New("cv record not found")
	ErrInvalidInput = errors.New("invalid cv input")
	// ErrForbidden is returned when the record belongs to another owner.
	// Handlers report it as not found.
	ErrForbidden = errors.New("cv record belongs to another owner")
)
