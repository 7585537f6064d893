// Package apperr defines the classified errors that cross the service
// boundary. Handlers translate them into HTTP responses; anything that is not
// an *Error is an unexpected failure.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a failure with a known HTTP classification and a client-safe
// message. Err optionally keeps the underlying cause for logging.
type Error struct {
	Status  int
	Message string
	Err     error
}

// Error returns the client message, followed by the cause when present.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

func newError(status int, msg string) *Error { return &Error{Status: status, Message: msg} }

// Conflict reports a uniqueness violation (409).
func Conflict(msg string) *Error { return newError(http.StatusConflict, msg) }

// Unauthorized reports failed authentication (401).
func Unauthorized(msg string) *Error { return newError(http.StatusUnauthorized, msg) }

// Forbidden reports a failed permission or CSRF check (403).
func Forbidden(msg string) *Error { return newError(http.StatusForbidden, msg) }

// BadRequest reports invalid input or a generic operation failure (400).
func BadRequest(msg string) *Error { return newError(http.StatusBadRequest, msg) }

// NotFound reports a missing record on the records routes (404).
func NotFound(msg string) *Error { return newError(http.StatusNotFound, msg) }

// As returns the classified error wrapped in err, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Wrap passes classified errors through unchanged and flattens anything else
// into a BadRequest carrying fallback as the client message. The cause stays
// reachable through Unwrap for logging.
func Wrap(err error, fallback string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return &Error{Status: http.StatusBadRequest, Message: fallback, Err: err}
}

// IsUnexpected reports whether err was flattened by Wrap from an
// unclassified cause.
func IsUnexpected(err error) bool {
	ae, ok := As(err)
	return ok && ae.Err != nil
}
