// Package pvfserr defines the error taxonomy shared by the job engine,
// request scheduler, state-machine driver and wire codec.
package pvfserr

import (
	"errors"
	"fmt"
)

// Code identifies the category of a Error.
type Code int

const (
	// Protocol indicates the decoder encountered invalid framing, an
	// out-of-range length, or an unknown tag.
	Protocol Code = iota

	// Unsupported indicates a version or encoding mismatch.
	Unsupported

	// NoMemory indicates an allocation failed.
	NoMemory

	// InvalidArgument indicates a caller contract violation.
	InvalidArgument

	// NotPermitted indicates the scheduler rejected a write while
	// admin-mode is pending or effective.
	NotPermitted

	// Busy indicates the context table is full.
	Busy

	// Timeout indicates a network or flow operation exceeded its deadline.
	Timeout

	// Cancelled indicates the caller requested cancellation.
	Cancelled

	// Transient indicates a recoverable storage or network error; the
	// message-pair layer may retry.
	Transient

	// Fatal indicates a scheduler or state-machine invariant violation.
	Fatal
)

func (c Code) String() string {
	switch c {
	case Protocol:
		return "protocol"
	case Unsupported:
		return "unsupported"
	case NoMemory:
		return "no-memory"
	case InvalidArgument:
		return "invalid-argument"
	case NotPermitted:
		return "not-permitted"
	case Busy:
		return "busy"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the core runtime's single error sum type. It wraps an optional
// underlying cause so errors.Is/errors.As compose across layers.
type Error struct {
	code    Code
	message string
	cause   error
}

// New creates a Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap creates a Error that wraps cause, preserving it for errors.Is/As.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Code returns the error's category.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable description, excluding the wrapped cause.
func (e *Error) Message() string { return e.message }

// Unwrap returns the wrapped cause, enabling errors.Is/errors.As to match
// through the Error wrapper.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is a Error with the same code, independent of
// message or wrapped cause. This lets callers write errors.Is(err, pvfserr.New(pvfserr.Timeout, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Is reports whether err carries the given code, unwrapping through any
// number of wrapping errors.
func Is(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.code == code
}

func Protocolf(format string, args ...any) *Error {
	return New(Protocol, fmt.Sprintf(format, args...))
}

func Unsupportedf(format string, args ...any) *Error {
	return New(Unsupported, fmt.Sprintf(format, args...))
}

func InvalidArgumentf(format string, args ...any) *Error {
	return New(InvalidArgument, fmt.Sprintf(format, args...))
}

func NotPermittedf(format string, args ...any) *Error {
	return New(NotPermitted, fmt.Sprintf(format, args...))
}

func Busyf(format string, args ...any) *Error {
	return New(Busy, fmt.Sprintf(format, args...))
}

func Timeoutf(format string, args ...any) *Error {
	return New(Timeout, fmt.Sprintf(format, args...))
}

func Cancelledf(format string, args ...any) *Error {
	return New(Cancelled, fmt.Sprintf(format, args...))
}

func Transientf(format string, args ...any) *Error {
	return New(Transient, fmt.Sprintf(format, args...))
}

func Fatalf(format string, args ...any) *Error {
	return New(Fatal, fmt.Sprintf(format, args...))
}
