package service

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// Error carries a client-facing message and its kind
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFound builds an ErrNotFound error
func NotFound(message string) error { return newError(ErrNotFound, message, nil) }

// BadRequest builds an ErrBadRequest error
func BadRequest(message string) error { return newError(ErrBadRequest, message, nil) }

// Unauthorized builds an ErrUnauthorized error
func Unauthorized(message string) error { return newError(ErrUnauthorized, message, nil) }

// Forbidden builds an ErrForbidden error
func Forbidden(message string) error { return newError(ErrForbidden, message, nil) }

// Conflict builds an ErrConflict error wrapping cause
func Conflict(message string, cause error) error { return newError(ErrConflict, message, cause) }

// Message returns the client-facing message of err, or "" when err is not an *Error
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
