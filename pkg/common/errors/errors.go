// Package errors defines the error kinds shared by every fast-gzip package.
//
// Callers classify failures with the standard library's errors.Is and
// errors.As against the sentinels and types declared here.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrSourceNotFound indicates that the compressed input could not be opened
	ErrSourceNotFound = errors.New("source not found")

	// ErrProducerFailure indicates that decompression failed mid-stream
	ErrProducerFailure = errors.New("producer failure")

	// ErrUseAfterClose indicates a read attempted after the reader was closed
	ErrUseAfterClose = errors.New("use after close")

	// ErrNotRewindable indicates that a stream source cannot restart from its beginning
	ErrNotRewindable = errors.New("source is not rewindable")

	// ErrUnsupported indicates a codec operation the format does not provide
	ErrUnsupported = errors.New("unsupported operation")
)

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint sets a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError records which operation of which module failed.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError wrapping cause.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches free-form detail (a path, a size) and returns the same error.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// ProducerError is delivered in place of the end-of-stream marker when the
// decompressing producer cannot continue. Offset is the number of
// decompressed bytes successfully handed to the consumer before the failure.
type ProducerError struct {
	Offset int64
	Cause  error
}

// NewProducerError creates a ProducerError at the given decompressed offset.
func NewProducerError(offset int64, cause error) *ProducerError {
	return &ProducerError{Offset: offset, Cause: cause}
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer failure at byte %d: %v", e.Offset, e.Cause)
}

// Unwrap matches both ErrProducerFailure and the underlying cause.
func (e *ProducerError) Unwrap() []error {
	return []error{ErrProducerFailure, e.Cause}
}

// IsRetryable returns true if the error indicates a condition that might
// be resolved by retrying the operation
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// IsTemporary returns true if the error indicates a temporary condition
func IsTemporary(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsProducerError reports whether err is or wraps a ProducerError.
func IsProducerError(err error) bool {
	var perr *ProducerError
	return errors.As(err, &perr)
}
