// Package apperr defines the error taxonomy shared by every domain service.
// Services return *Error values whose Kind is one of the sentinels below;
// the HTTP layer maps the sentinel to a status code and renders Msg.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflicting state")
)

// Error is a classified, client-safe error.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or missing input.
func Validation(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

// Unauthorized reports a missing or rejected credential.
func Unauthorized(format string, args ...interface{}) error {
	return newError(ErrUnauthorized, format, args...)
}

// Forbidden reports an authenticated caller acting outside its role.
func Forbidden(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

// NotFound reports a missing entity or an ownership mismatch.
func NotFound(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

// Conflict reports a guard that failed because of current state.
func Conflict(format string, args ...interface{}) error {
	return newError(ErrConflict, format, args...)
}

// Message returns the client-facing message for err. Unclassified errors
// yield the generic server error text.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	return "Server error"
}

// Status maps err to an HTTP status code. State conflicts surface as
// 400 Bad Request on the public API.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
