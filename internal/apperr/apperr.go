// Package apperr defines the error-kind taxonomy shared across the
// repository, scheduler, and transport layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of HTTP mapping and logging.
// It is never compared against a string; callers use errors.As to recover
// the *Error and inspect Kind.
type Kind string

const (
	ValidationFailure Kind = "validation_failure"
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	Timeout           Kind = "timeout"
	TransientStore    Kind = "transient_store"
	FatalConfig       Kind = "fatal_config"
	Unknown           Kind = "unknown"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Value    any    `json:"value,omitempty"`
}

// Error is the single error type produced by this module's domain code.
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind with no validation details.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that preserves cause for errors.Is/As chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validation builds a ValidationFailure carrying field-level details.
func Validation(message string, details ...FieldError) *Error {
	return &Error{Kind: ValidationFailure, Message: message, Details: details}
}

// NotFoundf builds a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// KindOf recovers the Kind of err, defaulting to Unknown when err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
