// Package apperrors defines the error taxonomy shared by services and
// controllers. Every error that crosses a service boundary carries a Kind
// so HTTP mapping never string-matches messages.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientFunds
	KindConflict
	KindDependency
)

// String returns the kind name for logging
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindConflict:
		return "conflict"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Error is a classified application error
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation reports a malformed or out-of-range input
func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

// NotFound reports a missing entity
func NotFound(format string, args ...interface{}) *Error {
	return Newf(KindNotFound, format, args...)
}

// InsufficientFunds reports a failed balance check
func InsufficientFunds(format string, args ...interface{}) *Error {
	return Newf(KindInsufficientFunds, format, args...)
}

// Conflict reports a lost concurrent-update race
func Conflict(format string, args ...interface{}) *Error {
	return Newf(KindConflict, format, args...)
}

// Dependency reports a failure in an external system (mongo, redis, broker)
func Dependency(msg string, err error) *Error {
	return Wrap(KindDependency, msg, err)
}

// KindOf extracts the Kind from an error chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
