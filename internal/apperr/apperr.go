// Package apperr defines the error kinds surfaced by casino operations.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind string

// Error kinds.
const (
	KindUnauthenticated Kind = "unauthenticated"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
)

// Error is a classified operation failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for any not-found error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrConflict        = &Error{Kind: KindConflict}
)

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unauthenticated reports a missing caller identity.
func Unauthenticated() *Error {
	return New(KindUnauthenticated, "not authenticated")
}

// NotFound reports a missing entity.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Validation reports a rejected request.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// KindOf returns the kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
