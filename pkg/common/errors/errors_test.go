package errors

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrClosed", ErrClosed, "resource is closed"},
		{"ErrTimeout", ErrTimeout, "operation timed out"},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration, "invalid configuration"},
		{"ErrSourceNotFound", ErrSourceNotFound, "source not found"},
		{"ErrProducerFailure", ErrProducerFailure, "producer failure"},
		{"ErrUseAfterClose", ErrUseAfterClose, "use after close"},
		{"ErrNotRewindable", ErrNotRewindable, "source is not rewindable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err: &ValidationError{
				Module: "reader",
				Field:  "ChunkSize",
				Value:  -1,
				Reason: "must be positive",
			},
			want: "reader: invalid ChunkSize=-1 (must be positive)",
		},
		{
			name: "with hint",
			err: &ValidationError{
				Module: "channel",
				Field:  "BufferSize",
				Value:  0,
				Reason: "must be positive",
				Hint:   "use a value greater than 0",
			},
			want: "channel: invalid BufferSize=0 (must be positive) - use a value greater than 0",
		},
		{
			name: "string value",
			err: &ValidationError{
				Module: "codec",
				Field:  "Format",
				Value:  "",
				Reason: "cannot be empty",
			},
			want: "codec: invalid Format= (cannot be empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	verr := NewValidationError("test", "field", 0, "test")

	if verr.Unwrap() != ErrInvalidConfiguration {
		t.Errorf("Unwrap() = %v, want ErrInvalidConfiguration", verr.Unwrap())
	}
	if !errors.Is(verr, ErrInvalidConfiguration) {
		t.Error("ValidationError should wrap ErrInvalidConfiguration")
	}
}

func TestValidationError_WithHint(t *testing.T) {
	err := NewValidationError("test", "field", 0, "invalid")
	if err.Hint != "" {
		t.Errorf("Hint = %q, want empty string", err.Hint)
	}

	if result := err.WithHint("try a positive value"); result != err {
		t.Error("WithHint should return the same instance")
	}
	if err.Hint != "try a positive value" {
		t.Errorf("Hint = %q", err.Hint)
	}
}

func TestOperationError(t *testing.T) {
	cause := errors.New("write failed")

	plain := NewOperationError("writer", "Write", cause)
	if got, want := plain.Error(), "writer.Write failed: write failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withCtx := NewOperationError("reader", "Open", cause).WithContext("/tmp/x.gz")
	if got, want := withCtx.Error(), "reader.Open failed: write failed (/tmp/x.gz)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if !errors.Is(withCtx, cause) {
		t.Error("OperationError should wrap the cause error")
	}
}

func TestProducerError(t *testing.T) {
	perr := NewProducerError(42, io.ErrUnexpectedEOF)

	if !errors.Is(perr, ErrProducerFailure) {
		t.Error("ProducerError should match ErrProducerFailure")
	}
	if !errors.Is(perr, io.ErrUnexpectedEOF) {
		t.Error("ProducerError should match its cause")
	}
	if !strings.Contains(perr.Error(), "42") {
		t.Errorf("error message should contain the offset, got %q", perr.Error())
	}

	wrapped := NewOperationError("reader", "NextLine", perr)
	if !IsProducerError(wrapped) {
		t.Error("IsProducerError should see through OperationError")
	}
	if IsProducerError(io.EOF) {
		t.Error("io.EOF is not a producer error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout error", ErrTimeout, true},
		{"deadline exceeded", os.ErrDeadlineExceeded, true},
		{"wrapped timeout", &OperationError{Cause: ErrTimeout}, true},
		{"closed error", ErrClosed, false},
		{"unexpected eof", io.ErrUnexpectedEOF, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTemporary(t *testing.T) {
	if !IsTemporary(&OperationError{Cause: ErrTimeout}) {
		t.Error("wrapped timeout should be temporary")
	}
	if IsTemporary(ErrClosed) {
		t.Error("ErrClosed should not be temporary")
	}
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation error", &ValidationError{Module: "test", Field: "field", Value: 0, Reason: "test"}, true},
		{"wrapped validation error", &OperationError{Cause: &ValidationError{Module: "test"}}, true},
		{"operation error", &OperationError{Cause: errors.New("test")}, false},
		{"standard error", errors.New("test"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidationError(tt.err); got != tt.want {
				t.Errorf("IsValidationError() = %v, want %v", got, tt.want)
			}
		})
	}
}
