package testutil

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSimulated is returned by the mocks when they are told to fail.
var ErrSimulated = errors.New("simulated error")

// MockWriter is a destination that can be made slow or failing, and counts
// the writes it receives.
type MockWriter struct {
	buf         *bytes.Buffer
	mu          sync.Mutex
	writeDelay  time.Duration
	errorOnNth  int
	writeCount  int
	shouldError bool
	err         error
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer interface with configurable behavior.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++

	if mw.writeDelay > 0 {
		time.Sleep(mw.writeDelay)
	}

	if mw.shouldError {
		return 0, mw.err
	}

	if mw.errorOnNth > 0 && mw.writeCount == mw.errorOnNth {
		return 0, ErrSimulated
	}

	return mw.buf.Write(p)
}

// Bytes returns a copy of everything written so far.
func (mw *MockWriter) Bytes() []byte {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return bytes.Clone(mw.buf.Bytes())
}

// Len returns the current buffer length.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.Len()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}

// SetWriteDelay configures a delay for each write operation.
func (mw *MockWriter) SetWriteDelay(delay time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writeDelay = delay
}

// SetErrorOnNth configures the writer to error on the nth write.
func (mw *MockWriter) SetErrorOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.errorOnNth = n
}

// SetAlwaysError configures the writer to always return the given error.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shouldError = true
	mw.err = err
}

// FailingReader yields Data and then fails with Err instead of io.EOF.
type FailingReader struct {
	Data []byte
	Err  error
	off  int
}

func (r *FailingReader) Read(p []byte) (int, error) {
	if r.off >= len(r.Data) {
		return 0, r.Err
	}
	n := copy(p, r.Data[r.off:])
	r.off += n
	return n, nil
}

// FlakyReader fails every Nth Read with Err before delegating to R.
type FlakyReader struct {
	R     io.Reader
	Err   error
	Every int

	calls  int
	Failed atomic.Int64
}

func (r *FlakyReader) Read(p []byte) (int, error) {
	r.calls++
	if r.Every > 0 && r.calls%r.Every == 0 {
		r.Failed.Add(1)
		return 0, r.Err
	}
	return r.R.Read(p)
}

// StallReader returns data once and then blocks until Release or Close.
type StallReader struct {
	data    []byte
	once    sync.Once
	release chan struct{}
	closed  atomic.Bool
	Blocked atomic.Int64
}

// NewStallReader creates a reader that stalls after data is consumed.
func NewStallReader(data []byte) *StallReader {
	return &StallReader{data: data, release: make(chan struct{})}
}

func (r *StallReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	r.Blocked.Add(1)
	<-r.release
	if r.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return 0, io.EOF
}

// Release lets a stalled Read return io.EOF.
func (r *StallReader) Release() {
	r.once.Do(func() { close(r.release) })
}

// Close unblocks a stalled Read with io.ErrClosedPipe.
func (r *StallReader) Close() error {
	r.closed.Store(true)
	r.Release()
	return nil
}

// ZeroReader returns (0, nil) forever.
type ZeroReader struct{}

func (ZeroReader) Read([]byte) (int, error) { return 0, nil }
