package writer

import (
	"time"

	"github.com/go-kit/log"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/common/validation"
	"github.com/legaultmarc/fast-gzip/pkg/metrics"
)

// Config holds configuration options for a Writer.
type Config struct {
	// BufferSize is the number of uncompressed bytes collected before they
	// are handed to the compressor.
	// Default: 64KB
	BufferSize int

	// FlushInterval is how often buffered data is pushed through the
	// compressor to the destination. Set to 0 to disable automatic flushing.
	// Default: 1 second
	FlushInterval time.Duration

	// BlockOnFull determines behavior when the request queue is full.
	// If true, Write waits until its data has been accepted.
	// If false, Write returns ErrBufferFull instead of waiting.
	// Default: true
	BlockOnFull bool

	// MaxRetries is the number of times a failed destination write is retried.
	// Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// Format of the compressed output. FormatAuto is only accepted by Create,
	// which picks the format from the file extension.
	// Default: gzip
	Format codec.Format

	// Level is the compression level; codec.DefaultLevel lets the codec choose.
	Level int

	// Command, when set, runs an external compressor instead of the
	// in-process codec for Format.
	Command codec.Command

	// Name labels log lines and metrics.
	// Default: "writer"
	Name string

	// Logger receives lifecycle and failure logs.
	// Default: no-op logger
	Logger log.Logger

	// Metrics is optional; nil disables collection.
	Metrics *metrics.Registry

	// OnError is called when a write to the compressor or destination fails.
	OnError func(error)

	// OnFlush is called after buffered data was handed to the compressor.
	OnFlush func(bytesWritten int, duration time.Duration)

	// OnBufferFull is called when a non-blocking Write is rejected.
	OnBufferFull func()
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:    64 * 1024, // 64KB
		FlushInterval: time.Second,
		BlockOnFull:   true,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
		Format:        codec.FormatGzip,
		Level:         codec.DefaultLevel,
		Name:          "writer",
		Logger:        log.NewNopLogger(),
	}
}

// withDefaults fills unset fields. Negative values are left for Validate.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("writer", "BufferSize", c.BufferSize); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("writer", "FlushInterval", c.FlushInterval); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("writer", "MaxRetries", c.MaxRetries); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("writer", "RetryDelay", c.RetryDelay); err != nil {
		return err
	}
	if !c.Command.IsZero() {
		return c.Command.Validate("writer")
	}
	if c.Format == codec.FormatAuto {
		return gferrors.NewValidationError("writer", "Format", c.Format, "cannot detect the format of an output").
			WithHint("name the format, or use Create with a known file extension")
	}
	if _, err := codec.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	return nil
}
