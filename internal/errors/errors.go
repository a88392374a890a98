package errors

import (
	"errors"
	"fmt"
)

// CodeError is the structured error type carried across the wire.
// It pairs a stable code with a human-readable message and optional details.
type CodeError struct {
	// Code is one of the stable wire codes from codes.go.
	Code string

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *CodeError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CodeError) Unwrap() error {
	return e.Cause
}

// Is matches CodeErrors by code so errors.Is works across wrapping.
func (e *CodeError) Is(target error) bool {
	if t, ok := target.(*CodeError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *CodeError) WithDetail(key, value string) *CodeError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a CodeError with the given code and message.
func New(code, message string) *CodeError {
	return &CodeError{Code: code, Message: message}
}

// Newf creates a CodeError with a formatted message.
func Newf(code, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a CodeError from an existing error, keeping it as the cause.
// Returns nil if err is nil. If err is already a CodeError its code wins.
func Wrap(code string, err error) *CodeError {
	if err == nil {
		return nil
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	return &CodeError{Code: code, Message: err.Error(), Cause: err}
}

// GetCode extracts the wire code from an error chain.
// Returns empty string when no CodeError is present.
func GetCode(err error) string {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
