package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

// ErrWriterClosed is returned when attempting to write to a closed writer.
var ErrWriterClosed = fmt.Errorf("writer is closed: %w", gferrors.ErrUseAfterClose)

// ErrBufferFull is returned by a non-blocking Write when its data cannot be
// queued.
var ErrBufferFull = errors.New("buffer is full")

// Stats holds statistics about a Writer.
type Stats struct {
	// BytesWritten is the number of uncompressed bytes accepted.
	BytesWritten int64

	// CompressedBytes is the number of bytes that reached the destination.
	CompressedBytes int64

	// WriteCount is the total number of write operations.
	WriteCount int64

	// FlushCount is the number of times buffered data went to the compressor.
	FlushCount int64

	// ErrorCount is the total number of errors encountered.
	ErrorCount int64

	// BufferOverflows is the number of rejected non-blocking writes.
	BufferOverflows int64

	// Retries is the number of retried destination writes.
	Retries int64

	// AverageWriteTime is the average time per write operation.
	AverageWriteTime time.Duration

	// TotalWriteTime is the total time spent writing.
	TotalWriteTime time.Duration

	// LastWriteTime is the timestamp of the last write operation.
	LastWriteTime time.Time

	// BufferUtilization is the current buffer utilization (0.0 to 1.0).
	BufferUtilization float64

	// Digest is the xxhash64 of the uncompressed bytes accepted so far. A
	// Reader draining the output reports the same value.
	Digest uint64
}

type writeRequest struct {
	data []byte
	done chan error // nil for non-blocking writes
}

// Writer compresses what is written to it on a background goroutine.
//
// Writes are collected in a buffer of Config.BufferSize bytes, which is
// handed to the compressor when it fills, on Flush, every FlushInterval and
// on Close. Close must be called to write the compressed stream's trailer.
//
// Writer is safe for concurrent use; data from one goroutine keeps its order.
type Writer struct {
	config Config
	logger log.Logger

	dst  *destination
	file *os.File // owned file, closed by Close
	comp io.WriteCloser

	buffer   []byte
	bufferMu sync.RWMutex

	writeCh chan writeRequest
	flushCh chan chan error
	closeCh chan chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error

	stats   Stats
	failure error // first compressor or destination error, sticky
	digest  *xxhash.Digest
	statsMu sync.RWMutex
}

// New creates a gzip Writer over w with the default configuration. The
// caller keeps ownership of w.
func New(w io.Writer) (*Writer, error) {
	return NewWithConfig(w, DefaultConfig())
}

// NewWithConfig creates a Writer over w. Close finishes the compressed
// stream but does not close w.
func NewWithConfig(w io.Writer, config Config) (*Writer, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, gferrors.NewValidationError("writer", "destination", nil, "cannot be nil")
	}
	return start(config, w, nil)
}

// Create creates or truncates the file at path with the default
// configuration. The path "-" writes to standard output.
func Create(path string) (*Writer, error) {
	return CreateWithConfig(path, DefaultConfig())
}

// CreateWithConfig creates or truncates the file at path. With FormatAuto the
// format follows the file extension, falling back to gzip.
func CreateWithConfig(path string, config Config) (*Writer, error) {
	if config.Format == codec.FormatAuto {
		format, ok := codec.FromExtension(path)
		if !ok {
			format = codec.FormatGzip
		}
		config.Format = format
	}

	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if path == Stdout {
		return start(config, os.Stdout, nil)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, gferrors.NewOperationError("writer", "Create", err).WithContext(path)
	}

	w, err := start(config, f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func start(config Config, dst io.Writer, file *os.File) (*Writer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Writer{
		config:  config,
		logger:  log.With(config.Logger, "component", "writer", "name", config.Name),
		file:    file,
		buffer:  make([]byte, 0, config.BufferSize),
		writeCh: make(chan writeRequest, 100),
		flushCh: make(chan chan error, 10),
		closeCh: make(chan chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
		digest:  xxhash.New(),
	}
	w.dst = &destination{
		w:          dst,
		maxRetries: config.MaxRetries,
		delay:      config.RetryDelay,
		ctx:        ctx,
		onRetry:    w.retried,
	}

	var err error
	if !config.Command.IsZero() {
		w.comp, err = config.Command.Writer(ctx, w.dst)
	} else {
		w.comp, err = codec.NewWriter(config.Format, w.dst, config.Level)
	}
	if err != nil {
		cancel()
		return nil, gferrors.NewOperationError("writer", "start", err)
	}

	w.wg.Add(1)
	go w.writerLoop()

	if config.FlushInterval > 0 {
		w.wg.Add(1)
		go w.flushLoop()
	}

	level.Debug(w.logger).Log("msg", "writer started", "format", w.format(), "buffer_size", config.BufferSize)
	return w, nil
}

// Write queues p for compression and implements io.Writer. In blocking mode
// it returns once p is in the buffer or has reached the compressor.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.WriteContext(context.Background(), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString writes a string.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// WriteContext writes data with context support for cancellation. A write
// abandoned after it was queued is still compressed.
func (w *Writer) WriteContext(ctx context.Context, data []byte) error {
	w.closeMu.RLock()
	if w.closed {
		w.closeMu.RUnlock()
		return ErrWriterClosed
	}
	if err := w.err(); err != nil {
		w.closeMu.RUnlock()
		return err
	}
	if len(data) == 0 {
		w.closeMu.RUnlock()
		return nil
	}

	req := writeRequest{data: bytes.Clone(data)}
	if w.config.BlockOnFull {
		req.done = make(chan error, 1)
	}

	if !w.config.BlockOnFull {
		select {
		case w.writeCh <- req:
			w.closeMu.RUnlock()
			return nil
		default:
			w.closeMu.RUnlock()
			w.overflow()
			return ErrBufferFull
		}
	}

	select {
	case w.writeCh <- req:
	case <-ctx.Done():
		w.closeMu.RUnlock()
		return ctx.Err()
	}
	w.closeMu.RUnlock()

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush pushes everything written so far through the compressor to the
// destination. For codecs that support it the output then decodes up to the
// last byte written.
func (w *Writer) Flush(ctx context.Context) error {
	w.closeMu.RLock()
	if w.closed {
		w.closeMu.RUnlock()
		return ErrWriterClosed
	}

	done := make(chan error, 1)
	select {
	case w.flushCh <- done:
	case <-ctx.Done():
		w.closeMu.RUnlock()
		return ctx.Err()
	}
	w.closeMu.RUnlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the remaining data, finishes the compressed stream and
// closes an owned file. For an external Command it waits for the process to
// exit. It returns the first error the Writer met, including one from an
// earlier non-blocking Write; later calls return the same result.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.closeMu.Lock()
		w.closed = true
		w.closeMu.Unlock()

		done := make(chan error, 1)
		w.closeCh <- done
		w.closeErr = <-done

		w.cancel()
		w.wg.Wait()

		stats := w.Stats()
		level.Debug(w.logger).Log("msg", "writer closed", "bytes", stats.BytesWritten,
			"compressed", stats.CompressedBytes, "err", w.closeErr)
	})
	return w.closeErr
}

// Stats returns a snapshot of the writer statistics.
func (w *Writer) Stats() Stats {
	w.statsMu.RLock()
	stats := w.stats
	stats.Digest = w.digest.Sum64()
	w.statsMu.RUnlock()

	stats.CompressedBytes = w.dst.written.Load()

	w.bufferMu.RLock()
	if cap(w.buffer) > 0 {
		stats.BufferUtilization = float64(len(w.buffer)) / float64(cap(w.buffer))
	}
	w.bufferMu.RUnlock()

	if stats.WriteCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.WriteCount)
	}

	return stats
}

// IsClosed returns true if the writer is closed.
func (w *Writer) IsClosed() bool {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	return w.closed
}

// BufferSize returns the current number of buffered bytes.
func (w *Writer) BufferSize() int {
	w.bufferMu.RLock()
	defer w.bufferMu.RUnlock()
	return len(w.buffer)
}

// BufferCapacity returns the maximum buffer capacity.
func (w *Writer) BufferCapacity() int {
	w.bufferMu.RLock()
	defer w.bufferMu.RUnlock()
	return cap(w.buffer)
}

// Config returns the configuration the Writer runs with, defaults applied.
func (w *Writer) Config() Config {
	return w.config
}

// writerLoop owns the buffer and the compressor.
func (w *Writer) writerLoop() {
	defer w.wg.Done()

	for {
		select {
		case req := <-w.writeCh:
			w.reply(req.done, w.handleWriteRequest(req))

		case done := <-w.flushCh:
			// Writes queued before the flush belong to it.
			w.drainWrites()
			w.reply(done, w.flush())

		case done := <-w.closeCh:
			// Close stopped new requests; answer the queued ones first.
			w.drainWrites()
			w.drainFlushes()
			done <- w.finish()
			return
		}
	}
}

// flushLoop automatically flushes the buffer at regular intervals.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case w.flushCh <- nil:
			default: // a flush is already pending
			}
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Writer) drainWrites() {
	for {
		select {
		case req := <-w.writeCh:
			w.reply(req.done, w.handleWriteRequest(req))
		default:
			return
		}
	}
}

func (w *Writer) drainFlushes() {
	for {
		select {
		case done := <-w.flushCh:
			w.reply(done, w.flush())
		default:
			return
		}
	}
}

func (w *Writer) reply(done chan error, err error) {
	if done != nil {
		done <- err
	}
}

// handleWriteRequest buffers req, handing the buffer to the compressor first
// when req does not fit.
func (w *Writer) handleWriteRequest(req writeRequest) error {
	if err := w.err(); err != nil {
		return err
	}
	startTime := time.Now()

	w.bufferMu.RLock()
	fits := len(w.buffer)+len(req.data) <= cap(w.buffer)
	w.bufferMu.RUnlock()

	if !fits {
		if err := w.flushBuffer(); err != nil {
			return err
		}
	}

	// Data larger than the whole buffer bypasses it.
	if len(req.data) > cap(w.buffer) {
		if err := w.compress(req.data); err != nil {
			return err
		}
	} else {
		w.bufferMu.Lock()
		w.buffer = append(w.buffer, req.data...)
		w.bufferMu.Unlock()
	}

	duration := time.Since(startTime)
	w.statsMu.Lock()
	w.stats.WriteCount++
	w.stats.BytesWritten += int64(len(req.data))
	w.stats.TotalWriteTime += duration
	w.stats.LastWriteTime = time.Now()
	_, _ = w.digest.Write(req.data)
	w.statsMu.Unlock()

	return nil
}

// flushBuffer hands all buffered data to the compressor.
func (w *Writer) flushBuffer() error {
	if err := w.err(); err != nil {
		return err
	}

	w.bufferMu.Lock()
	if len(w.buffer) == 0 {
		w.bufferMu.Unlock()
		return nil
	}
	data := bytes.Clone(w.buffer)
	w.buffer = w.buffer[:0]
	w.bufferMu.Unlock()

	return w.compress(data)
}

func (w *Writer) compress(data []byte) error {
	startTime := time.Now()
	n, err := w.comp.Write(data)
	duration := time.Since(startTime)

	w.statsMu.Lock()
	w.stats.FlushCount++
	w.statsMu.Unlock()

	w.config.Metrics.WriterFlushed(w.config.Name, n)
	if w.config.OnFlush != nil {
		w.config.OnFlush(n, duration)
	}

	if err != nil {
		return w.fail(err)
	}
	return nil
}

// flush empties the buffer and asks the compressor to emit everything it
// holds.
func (w *Writer) flush() error {
	if err := w.flushBuffer(); err != nil {
		return err
	}
	if f, ok := w.comp.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return w.fail(err)
		}
	}
	return nil
}

// finish ends the compressed stream. It runs once, on the writer goroutine.
func (w *Writer) finish() error {
	err := w.flushBuffer()

	if cerr := w.comp.Close(); cerr != nil && err == nil {
		err = w.fail(cerr)
	}

	if w.file != nil {
		if ferr := w.file.Close(); ferr != nil && err == nil {
			err = w.fail(ferr)
		}
	}
	return err
}

// fail records err and returns the Writer's first error.
func (w *Writer) fail(err error) error {
	w.statsMu.Lock()
	w.stats.ErrorCount++
	if w.failure == nil {
		w.failure = gferrors.NewOperationError("writer", "Write", err)
	}
	first := w.failure
	w.statsMu.Unlock()

	level.Error(w.logger).Log("msg", "write failed", "err", err)
	w.config.Metrics.WriterError(w.config.Name)
	if w.config.OnError != nil {
		w.config.OnError(err)
	}
	return first
}

func (w *Writer) err() error {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.failure
}

func (w *Writer) overflow() {
	w.statsMu.Lock()
	w.stats.BufferOverflows++
	w.statsMu.Unlock()

	w.config.Metrics.Backpressure(w.config.Name)
	if w.config.OnBufferFull != nil {
		w.config.OnBufferFull()
	}
}

func (w *Writer) retried(attempt int, err error) {
	w.statsMu.Lock()
	w.stats.Retries++
	w.statsMu.Unlock()

	level.Warn(w.logger).Log("msg", "retrying destination write", "attempt", attempt, "err", err)
}

func (w *Writer) format() string {
	if !w.config.Command.IsZero() {
		return "command"
	}
	return string(w.config.Format)
}

// destination retries failed writes to the underlying writer and counts the
// compressed bytes that reach it.
type destination struct {
	w          io.Writer
	maxRetries int
	delay      time.Duration
	ctx        context.Context
	onRetry    func(attempt int, err error)

	written atomic.Int64
}

func (d *destination) Write(data []byte) (int, error) {
	n, err := d.writeWithRetries(data)
	d.written.Add(int64(n))
	return n, err
}

// writeWithRetries writes data with retry logic.
func (d *destination) writeWithRetries(data []byte) (int, error) {
	var totalWritten int
	var lastErr error

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			d.onRetry(attempt, lastErr)

			t := time.NewTimer(d.delay)
			select {
			case <-t.C:
			case <-d.ctx.Done():
				t.Stop()
				return totalWritten, lastErr
			}
		}

		written, err := d.w.Write(data[totalWritten:])
		totalWritten += written

		if err != nil {
			lastErr = err
			continue
		}

		if totalWritten >= len(data) {
			return totalWritten, nil
		}
		lastErr = io.ErrShortWrite
	}

	return totalWritten, lastErr
}
