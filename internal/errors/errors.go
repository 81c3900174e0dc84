// Package errors defines the coded error kinds raised by timelines and forests.
//
// Expected negative outcomes (a split with nothing to split, a backtrack from the
// root) are reported as booleans or zero ids by the callers, never as errors.
// The kinds here are reserved for misuse and data-integrity violations.
package errors

import "fmt"

// Code is a machine-readable error code.
type Code string

const (
	// CodeNotReady reports an append against an unstarted or paused timeline.
	CodeNotReady Code = "NOT_READY"
	// CodeOutOfRange reports a record index outside the sequence.
	CodeOutOfRange Code = "OUT_OF_RANGE"
	// CodeIntegrity reports snapshot or pool data that references missing timelines.
	CodeIntegrity Code = "INTEGRITY"
	// CodeInvalidArgument reports a snapshot of the wrong kind or an unknown id.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is matching by code.
var (
	ErrNotReady        = &Error{Code: CodeNotReady, Message: "timeline not ready"}
	ErrOutOfRange      = &Error{Code: CodeOutOfRange, Message: "index out of range"}
	ErrIntegrity       = &Error{Code: CodeIntegrity, Message: "integrity violation"}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

// Error is a coded error with optional metadata and cause.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates a coded error carrying key/value context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
