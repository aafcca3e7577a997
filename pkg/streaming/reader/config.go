package reader

import (
	"time"

	"github.com/go-kit/log"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/common/validation"
	"github.com/legaultmarc/fast-gzip/pkg/metrics"
	"github.com/legaultmarc/fast-gzip/pkg/ratelimit/bucket"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/chunk"
)

// Config holds configuration options for a Reader.
type Config struct {
	// ChunkSize is the number of decompressed bytes per chunk.
	// Default: 128 KiB
	ChunkSize int

	// Capacity is the number of chunks buffered between the producer and
	// the line parser. In-flight memory is about Capacity × ChunkSize.
	// Default: 3
	Capacity int

	// KeepTerminator keeps the trailing '\n' on returned lines.
	// Default: false (stripped)
	KeepTerminator bool

	// Format of the compressed input. FormatAuto detects it.
	// Default: gzip
	Format codec.Format

	// Command, when set, runs an external decompressor instead of the
	// in-process codec for Format.
	Command codec.Command

	// MaxRetries bounds retries of timed-out reads per chunk.
	// Default: 3
	MaxRetries int

	// RetryDelay is the pause between retries.
	// Default: 10ms
	RetryDelay time.Duration

	// RateLimit caps decompression at this many bytes per second.
	// Zero means unlimited.
	RateLimit bucket.Limit

	// ReadTimeout bounds each NextLine wait. Zero waits indefinitely.
	ReadTimeout time.Duration

	// CloseTimeout bounds how long Close waits for the producer to stop.
	// It only matters for sources whose Read ignores Close: caller-supplied
	// streams and standard input. Zero waits until the producer has stopped,
	// except on standard input where StdinCloseTimeout applies. A producer
	// left behind by the timeout exits when its pending Read returns.
	CloseTimeout time.Duration

	// Name labels log lines and metrics.
	// Default: "reader"
	Name string

	// Logger receives lifecycle and failure logs.
	// Default: no-op logger
	Logger log.Logger

	// Metrics is optional; nil disables collection.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  chunk.DefaultSize,
		Capacity:   3,
		Format:     codec.FormatGzip,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
		Name:       "reader",
		Logger:     log.NewNopLogger(),
	}
}

// withDefaults fills unset fields. Negative values are left for Validate.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.Capacity == 0 {
		c.Capacity = d.Capacity
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
	if err := validation.ValidatePositive("reader", "ChunkSize", c.ChunkSize); err != nil {
		return err
	}
	if err := validation.ValidatePositive("reader", "Capacity", c.Capacity); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("reader", "MaxRetries", c.MaxRetries); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("reader", "RetryDelay", c.RetryDelay); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("reader", "ReadTimeout", c.ReadTimeout); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("reader", "CloseTimeout", c.CloseTimeout); err != nil {
		return err
	}
	if c.RateLimit < 0 {
		return gferrors.NewValidationError("reader", "RateLimit", c.RateLimit, "cannot be negative").
			WithHint("use 0 for unlimited")
	}
	if !c.Command.IsZero() {
		return c.Command.Validate("reader")
	}
	if _, err := codec.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	return nil
}
