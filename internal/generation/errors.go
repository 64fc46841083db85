package generation

import (
	"errors"
	"fmt"
)

// Kind classifies coordinator failures.
type Kind string

const (
	KindAuthRequired        Kind = "auth_required"
	KindRecordNotFound      Kind = "record_not_found"
	KindServiceError        Kind = "service_error"
	KindArtifactUnavailable Kind = "artifact_unavailable"
	KindStoreWrite          Kind = "store_write_error"
	KindStorageRead         Kind = "storage_read_error"
	KindTimeout             Kind = "timeout"
	KindInProgress          Kind = "generation_in_progress"
)

// Error is a classified coordinator failure. Status carries the upstream
// HTTP status for service errors.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrAuthRequired        = &Error{Kind: KindAuthRequired}
	ErrRecordNotFound      = &Error{Kind: KindRecordNotFound}
	ErrServiceError        = &Error{Kind: KindServiceError}
	ErrArtifactUnavailable = &Error{Kind: KindArtifactUnavailable}
	ErrStoreWrite          = &Error{Kind: KindStoreWrite}
	ErrStorageRead         = &Error{Kind: KindStorageRead}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrInProgress          = &Error{Kind: KindInProgress}
)

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ServiceError builds a failure reported by the generation service.
func ServiceError(message string, status int) *Error {
	if message == "" {
		message = "generation failed"
	}
	return &Error{Kind: KindServiceError, Message: message, Status: status}
}

// KindOf returns the kind of err, or "" when err is not a coordinator error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage is the notification text shown for err.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	switch e.Kind {
	case KindAuthRequired:
		return "Please sign in to continue."
	case KindRecordNotFound:
		return "This CV no longer exists."
	case KindServiceError:
		if e.Message != "" {
			return "Generation failed: " + e.Message
		}
		return "Generation failed. Please try again."
	case KindArtifactUnavailable:
		return "The CV was generated but the PDF could not be found. Try again in a moment."
	case KindStoreWrite:
		return "Your CV could not be saved. Working from a temporary copy."
	case KindStorageRead:
		return "The PDF could not be checked right now."
	case KindTimeout:
		return "Generation is taking longer than expected. The CV will appear once it finishes."
	case KindInProgress:
		return "This CV is already being generated."
	default:
		return "Something went wrong. Please try again."
	}
}
