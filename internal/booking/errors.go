package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a booking failure. The HTTP layer maps it to a status code
// and the worker carries it across the workflow boundary.
type Kind string

const (
	KindBadRequest        Kind = "bad_request"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInvalidSeatClass  Kind = "invalid_seat_class"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// Error is a classified booking failure
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error without an underlying cause
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
