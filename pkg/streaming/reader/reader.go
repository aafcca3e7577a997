package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/ratelimit/bucket"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/channel"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/chunk"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/lines"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// StdinCloseTimeout replaces a zero Config.CloseTimeout when reading
// standard input, which Close cannot interrupt.
const StdinCloseTimeout = time.Second

// State is the lifecycle position of a Reader.
type State int32

const (
	// StateCreated: the producer is started and no chunk has been consumed.
	StateCreated State = iota
	// StateRunning: chunks are flowing.
	StateRunning
	// StateDraining: the terminal element was received; the final line may
	// still be pending.
	StateDraining
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats holds statistics about a Reader.
type Stats struct {
	// Chunks and Bytes count what the producer has sent.
	Chunks int64
	Bytes  int64

	// Retries is the number of retried decompressor reads.
	Retries int64

	// Lines is the number of lines returned to the caller.
	Lines int64

	// LineBytes counts the bytes of returned lines, terminators included.
	LineBytes int64

	// BlockedSends is how often the producer waited on a full channel.
	BlockedSends int64

	// Digest is the xxhash64 of the bytes returned so far, terminators
	// included. Once the stream is drained it is the digest of the whole
	// decompressed stream.
	Digest uint64
}

// Reader returns the lines of a compressed stream. Decompression runs on a
// background goroutine that stays at most Config.Capacity chunks ahead of
// the caller.
//
// NextLine, Lines and WriteTo must be called from one goroutine at a time.
// Close, State and Stats may be called from any goroutine.
type Reader struct {
	config Config
	logger log.Logger

	path   string    // "" for caller-supplied streams
	stream io.Reader // the caller's stream, kept for Reopen
	file   *os.File  // owned file, closed by Close

	decomp   io.ReadCloser
	ch       channel.BackpressureChannel[chunk.Chunk]
	producer *chunk.Producer
	parser   *lines.Parser

	group  *errgroup.Group
	cancel context.CancelFunc

	state     atomic.Int32
	closeOnce sync.Once

	mu        sync.Mutex
	lines     int64
	lineBytes int64
	digest    *xxhash.Digest

	lineCounter prometheus.Counter // nil without metrics
}

// Open opens a compressed file with the default configuration.
func Open(path string) (*Reader, error) {
	return OpenWithConfig(path, DefaultConfig())
}

// OpenWithConfig opens a compressed file. The path "-" reads standard input.
//
// An unopenable path yields an error matching errors.ErrSourceNotFound and,
// where it applies, fs.ErrNotExist. Decompression errors, including a bad
// header, surface from NextLine.
func OpenWithConfig(path string, config Config) (*Reader, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if path == Stdin {
		if config.CloseTimeout == 0 {
			config.CloseTimeout = StdinCloseTimeout
		}
		return start(config, os.Stdin, nil, Stdin, nil)
	}

	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return start(config, f, f, path, nil)
}

// New reads a compressed stream with the default configuration. The caller
// keeps ownership of r.
func New(r io.Reader) (*Reader, error) {
	return NewWithConfig(r, DefaultConfig())
}

// NewWithConfig reads a compressed stream. The caller keeps ownership of r;
// Close stops reading from it but does not close it.
func NewWithConfig(r io.Reader, config Config) (*Reader, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, gferrors.NewValidationError("reader", "source", nil, "cannot be nil")
	}
	return start(config, r, nil, "", r)
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gferrors.NewOperationError("reader", "Open",
			fmt.Errorf("%w: %w", gferrors.ErrSourceNotFound, err)).WithContext(path)
	}

	fi, err := f.Stat()
	if err == nil && fi.IsDir() {
		_ = f.Close()
		return nil, gferrors.NewOperationError("reader", "Open",
			fmt.Errorf("%w: is a directory", gferrors.ErrSourceNotFound)).WithContext(path)
	}
	return f, nil
}

func start(config Config, src io.Reader, file *os.File, path string, stream io.Reader) (*Reader, error) {
	name := path
	if name == "" {
		name = "stream"
	}

	r := &Reader{
		config: config,
		logger: log.With(config.Logger, "component", "reader", "name", config.Name, "source", name),
		path:   path,
		stream: stream,
		file:   file,
		digest: xxhash.New(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	chConfig := channel.DefaultConfig()
	chConfig.BufferSize = config.Capacity
	chConfig.OnBlock = func() { config.Metrics.Backpressure(config.Name) }
	r.ch = channel.NewWithConfig[chunk.Chunk](chConfig)

	// Header parsing and detection block on the source, so they run on the
	// producer goroutine and fail through the stream.
	r.decomp = codec.NewLazyReader(func() (io.ReadCloser, error) {
		if !config.Command.IsZero() {
			pr, err := config.Command.Reader(ctx, src)
			if err != nil {
				return nil, err
			}
			return pr, nil
		}
		return codec.NewReader(config.Format, src, path)
	})

	pconfig := chunk.Config{
		ChunkSize:  config.ChunkSize,
		MaxRetries: config.MaxRetries,
		RetryDelay: config.RetryDelay,
		Name:       config.Name,
		Logger:     config.Logger,
		Metrics:    config.Metrics,
	}

	var err error
	if config.RateLimit > 0 {
		pconfig.Throttle, err = bucket.New(config.RateLimit, config.ChunkSize)
	}

	var producer *chunk.Producer
	if err == nil {
		producer, err = chunk.NewProducer(r.decomp, r.ch, pconfig)
	}
	if err != nil {
		cancel()
		if file != nil {
			_ = file.Close()
		}
		return nil, err
	}
	r.producer = producer

	var opts []lines.Option
	if config.KeepTerminator {
		opts = append(opts, lines.KeepTerminator(true))
	}
	r.parser = lines.NewParser(lines.SourceFunc(r.receive), opts...)

	group, gctx := errgroup.WithContext(ctx)
	r.group = group
	group.Go(func() error {
		return producer.Run(gctx)
	})

	if config.Metrics != nil {
		r.lineCounter = config.Metrics.LinesEmitted.WithLabelValues(config.Name)
	}
	config.Metrics.ReaderOpened(r.format())
	level.Debug(r.logger).Log("msg", "reader started", "format", r.format(),
		"chunk_size", config.ChunkSize, "capacity", config.Capacity)

	return r, nil
}

// NextLine returns the next line, or io.EOF once the stream is exhausted.
func (r *Reader) NextLine() ([]byte, error) {
	return r.NextLineContext(context.Background())
}

// NextLineContext is NextLine bounded by ctx. A cancelled wait loses no data;
// the next call resumes where this one stopped.
//
// A decompression failure is returned as a *errors.ProducerError after every
// line completed before it, and again on every later call.
func (r *Reader) NextLineContext(ctx context.Context) ([]byte, error) {
	if r.State() == StateClosed {
		return nil, gferrors.NewOperationError("reader", "NextLine", gferrors.ErrUseAfterClose)
	}

	if r.config.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.config.ReadTimeout, gferrors.ErrTimeout)
		defer cancel()
	}

	line, err := r.parser.Next(ctx)
	if err != nil {
		return nil, r.lineError(ctx, err)
	}

	r.record(line, r.parser.Terminated())
	return line, nil
}

func (r *Reader) lineError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, channel.ErrChannelClosed) || r.State() == StateClosed:
		return gferrors.NewOperationError("reader", "NextLine", gferrors.ErrUseAfterClose)
	case errors.Is(context.Cause(ctx), gferrors.ErrTimeout):
		return gferrors.NewOperationError("reader", "NextLine", gferrors.ErrTimeout).
			WithContext(r.config.ReadTimeout.String())
	default:
		return err
	}
}

// Lines returns an iterator over the remaining lines. The iterator is a view
// of the Reader's single forward position: ranging over it again continues
// where the previous loop stopped. An error is yielded once, as the last pair.
func (r *Reader) Lines() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			line, err := r.NextLine()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// WriteTo writes the remaining lines to w, putting back every terminator
// that was stripped. Draining a fresh Reader writes the decompressed stream.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, r.config.ChunkSize)
	var n int64

	for {
		line, err := r.NextLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = bw.Flush()
			return n, err
		}

		m, err := bw.Write(line)
		n += int64(m)
		if err != nil {
			return n, err
		}
		if r.parser.Terminated() && !r.config.KeepTerminator {
			if err := bw.WriteByte(lines.Terminator); err != nil {
				return n, err
			}
			n++
		}
	}

	return n, bw.Flush()
}

// Close stops the producer and releases the source. It is safe to call in
// any state and more than once, and it always returns nil: problems while
// tearing down are logged.
//
// Close returns once the producer goroutine has exited, or after
// Config.CloseTimeout when one is set.
func (r *Reader) Close() error {
	r.closeOnce.Do(r.shutdown)
	return nil
}

func (r *Reader) shutdown() {
	r.state.Store(int32(StateClosed))

	r.cancel()
	_ = r.ch.Close()

	// Unblocks a producer waiting in Read on the file.
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			level.Warn(r.logger).Log("msg", "closing source", "err", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()

	var timeout <-chan time.Time
	if r.config.CloseTimeout > 0 {
		t := time.NewTimer(r.config.CloseTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case err := <-done:
		if err != nil && !isTeardown(err) {
			level.Warn(r.logger).Log("msg", "producer stopped with error", "err", err)
		}
		// The producer is gone, so the decompressor has no reader left.
		if err := r.decomp.Close(); err != nil {
			level.Warn(r.logger).Log("msg", "closing decompressor", "err", err)
		}
	case <-timeout:
		level.Warn(r.logger).Log("msg", "producer still blocked in source read after close timeout",
			"timeout", r.config.CloseTimeout)
	}

	r.config.Metrics.ReaderClosed(r.format())
	level.Debug(r.logger).Log("msg", "reader closed", "lines", r.Stats().Lines)
}

// isTeardown reports errors the producer returns because Close stopped it.
func isTeardown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, channel.ErrChannelClosed)
}

// Reopen closes r and returns a new Reader positioned at the start of the
// same source, with the same configuration. This is the only form of
// seeking a Reader supports.
//
// A caller-supplied stream must implement io.Seeker; otherwise Reopen fails
// with errors.ErrNotRewindable and leaves r open. Standard input is never
// rewindable.
func (r *Reader) Reopen() (*Reader, error) {
	if r.path != "" && r.path != Stdin {
		_ = r.Close()
		return OpenWithConfig(r.path, r.config)
	}

	seeker, ok := r.stream.(io.Seeker)
	if !ok {
		return nil, gferrors.NewOperationError("reader", "Reopen", gferrors.ErrNotRewindable)
	}

	_ = r.Close()
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return nil, gferrors.NewOperationError("reader", "Reopen",
			fmt.Errorf("%w: %w", gferrors.ErrNotRewindable, err))
	}
	return NewWithConfig(r.stream, r.config)
}

// State returns the current lifecycle state.
func (r *Reader) State() State {
	return State(r.state.Load())
}

// Stats returns a snapshot of the reader statistics.
func (r *Reader) Stats() Stats {
	ps := r.producer.Stats()
	cs := r.ch.Stats()

	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Chunks:       ps.Chunks,
		Bytes:        ps.Bytes,
		Retries:      ps.Retries,
		Lines:        r.lines,
		LineBytes:    r.lineBytes,
		BlockedSends: cs.BlockedSends,
		Digest:       r.digest.Sum64(),
	}
}

// Config returns the configuration the Reader runs with, defaults applied.
func (r *Reader) Config() Config {
	return r.config
}

// receive is the parser's view of the channel.
func (r *Reader) receive(ctx context.Context) (chunk.Chunk, error) {
	begin := time.Now()
	c, err := r.ch.Receive(ctx)
	r.config.Metrics.ChunkWait(r.config.Name, time.Since(begin))
	if err != nil {
		return c, err
	}

	if c.Terminal() {
		r.advance(StateDraining)
	} else {
		r.advance(StateRunning)
	}
	return c, nil
}

// advance moves the state forward to s; it never moves backwards.
func (r *Reader) advance(s State) {
	for {
		cur := r.state.Load()
		if cur >= int32(s) || r.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (r *Reader) record(line []byte, terminated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines++
	r.lineBytes += int64(len(line))
	_, _ = r.digest.Write(line)
	if terminated && !r.config.KeepTerminator {
		r.lineBytes++
		_, _ = r.digest.Write(newline)
	}
	if r.lineCounter != nil {
		r.lineCounter.Inc()
	}
}

var newline = []byte{lines.Terminator}

func (r *Reader) format() string {
	if !r.config.Command.IsZero() {
		return "command"
	}
	return string(r.config.Format)
}
