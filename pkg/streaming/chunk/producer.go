package chunk

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/common/validation"
	"github.com/legaultmarc/fast-gzip/pkg/metrics"
)

// maxConsecutiveEmptyReads matches the limit bufio uses before giving up on
// a reader that returns (0, nil) forever.
const maxConsecutiveEmptyReads = 100

// Config holds configuration for a Producer.
type Config struct {
	// ChunkSize is the maximum number of bytes per data chunk.
	// Default: 128 KiB
	ChunkSize int

	// MaxRetries bounds how often a retryable read error is retried while
	// filling one chunk.
	// Default: 3
	MaxRetries int

	// RetryDelay is the pause between retries.
	// Default: 10ms
	RetryDelay time.Duration

	// Name labels log lines and metrics.
	Name string

	// Throttle, when set, is waited on for every chunk's byte count before
	// the chunk is sent.
	Throttle Throttle

	Logger  log.Logger
	Metrics *metrics.Registry
}

// Throttle paces the producer. *bucket.Limiter implements it.
type Throttle interface {
	WaitN(ctx context.Context, n int) error
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  DefaultSize,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
		Name:       "reader",
		Logger:     log.NewNopLogger(),
	}
}

// Stats holds producer counters.
type Stats struct {
	// Chunks is the number of data chunks sent.
	Chunks int64

	// Bytes is the number of decompressed bytes sent.
	Bytes int64

	// Retries is the number of retried reads.
	Retries int64
}

// Producer reads a decompressed stream and publishes it as chunks.
type Producer struct {
	src    io.Reader
	out    Sink
	config Config
	logger log.Logger

	chunks  atomic.Int64
	bytes   atomic.Int64
	retries atomic.Int64
}

// NewProducer creates a Producer that reads src and sends to out.
func NewProducer(src io.Reader, out Sink, config Config) (*Producer, error) {
	if err := validation.ValidateNotNil("chunk", "src", src); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("chunk", "out", out); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("chunk", "ChunkSize", config.ChunkSize); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("chunk", "MaxRetries", config.MaxRetries); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("chunk", "RetryDelay", config.RetryDelay); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}

	return &Producer{
		src:    src,
		out:    out,
		config: config,
		logger: log.With(config.Logger, "component", "producer", "name", config.Name),
	}, nil
}

// Run publishes the stream until it ends, fails, or ctx is cancelled.
//
// A normal end sends the sentinel. A read failure first sends the bytes
// already read, then a Failure carrying a *errors.ProducerError; Run returns
// nil in both cases. On cancellation, or when out refuses a send, Run
// returns that error without sending anything further.
func (p *Producer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		buf := make([]byte, p.config.ChunkSize)
		n, err := p.fill(ctx, buf)

		if n > 0 && p.config.Throttle != nil {
			if werr := p.config.Throttle.WaitN(ctx, n); werr != nil {
				return werr
			}
		}

		if n > 0 {
			if serr := p.out.Send(ctx, Chunk{Data: buf[:n:n]}); serr != nil {
				return serr
			}
			p.chunks.Add(1)
			p.bytes.Add(int64(n))
			p.config.Metrics.ChunkProduced(p.config.Name, n)
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			level.Debug(p.logger).Log("msg", "stream complete", "chunks", p.chunks.Load(), "bytes", p.bytes.Load())
			return p.out.Send(ctx, Sentinel())
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			perr := gferrors.NewProducerError(p.bytes.Load(), err)
			level.Error(p.logger).Log("msg", "decompression failed", "offset", perr.Offset, "err", err)
			p.config.Metrics.ProducerFailure(p.config.Name)
			return p.out.Send(ctx, Failure(perr))
		}
	}
}

// Stats returns a snapshot of the producer counters.
func (p *Producer) Stats() Stats {
	return Stats{
		Chunks:  p.chunks.Load(),
		Bytes:   p.bytes.Load(),
		Retries: p.retries.Load(),
	}
}

// fill reads until buf is full or the source returns an error.
func (p *Producer) fill(ctx context.Context, buf []byte) (int, error) {
	var n, empty, retries int

	for n < len(buf) {
		m, err := p.src.Read(buf[n:])
		n += m

		if err != nil {
			if !gferrors.IsRetryable(err) || retries >= p.config.MaxRetries || ctx.Err() != nil {
				return n, err
			}
			retries++
			p.retries.Add(1)
			p.config.Metrics.ProducerRetry(p.config.Name)
			level.Warn(p.logger).Log("msg", "retrying read", "attempt", retries, "err", err)

			if werr := sleep(ctx, p.config.RetryDelay); werr != nil {
				return n, werr
			}
			continue
		}

		if m > 0 {
			empty = 0
			continue
		}
		if empty++; empty >= maxConsecutiveEmptyReads {
			return n, io.ErrNoProgress
		}
	}

	return n, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
