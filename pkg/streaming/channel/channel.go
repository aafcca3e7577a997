package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrChannelFull is returned by TrySend when the buffer is full.
var ErrChannelFull = errors.New("channel buffer is full")

// ErrChannelClosed is returned when attempting to operate on a closed channel.
var ErrChannelClosed = errors.New("channel is closed")

// BackpressureChannel is a bounded FIFO whose Send blocks while the buffer is
// full and whose Receive blocks while it is empty.
type BackpressureChannel[T any] interface {
	// Send appends a value, blocking while the buffer is full.
	Send(ctx context.Context, value T) error

	// TrySend appends a value without blocking.
	TrySend(value T) error

	// Receive removes the oldest value, blocking while the buffer is empty.
	// Buffered values are still delivered after Close.
	Receive(ctx context.Context) (T, error)

	// TryReceive removes the oldest value without blocking.
	TryReceive() (T, bool, error)

	// Close wakes every blocked Send and Receive. Idempotent.
	Close() error

	// IsClosed returns true if the channel is closed.
	IsClosed() bool

	// Len returns the current number of buffered elements.
	Len() int

	// Cap returns the buffer capacity.
	Cap() int

	// Stats returns channel statistics.
	Stats() Stats
}

// Stats holds statistics about channel performance.
type Stats struct {
	// SendCount is the total number of completed sends.
	SendCount int64

	// ReceiveCount is the total number of completed receives.
	ReceiveCount int64

	// BlockedSends is the number of sends that found the buffer full.
	BlockedSends int64

	// BlockedReceives is the number of receives that found the buffer empty.
	BlockedReceives int64

	// SendWaitTime is the total time senders spent waiting for space.
	SendWaitTime time.Duration

	// BufferUtilization is the current buffer utilization (0.0 to 1.0).
	BufferUtilization float64
}

// Config holds configuration for BackpressureChannel.
type Config struct {
	// BufferSize is the number of elements the channel holds before Send blocks.
	BufferSize int

	// OnBlock is called each time a Send has to wait for space.
	OnBlock func()

	// SendTimeout bounds each Send (0 = no timeout).
	SendTimeout time.Duration

	// ReceiveTimeout bounds each Receive (0 = no timeout).
	ReceiveTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 3,
	}
}

type backpressureChannel[T any] struct {
	config Config

	mu       sync.Mutex
	sendCond *sync.Cond
	recvCond *sync.Cond
	buffer   []T
	head     int
	tail     int
	count    int
	closed   atomic.Bool

	stats Stats
}

// New creates a new BackpressureChannel holding at most bufferSize elements.
func New[T any](bufferSize int) BackpressureChannel[T] {
	config := DefaultConfig()
	config.BufferSize = bufferSize
	return NewWithConfig[T](config)
}

// NewWithConfig creates a new BackpressureChannel with the specified configuration.
func NewWithConfig[T any](config Config) BackpressureChannel[T] {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}

	ch := &backpressureChannel[T]{
		config: config,
		buffer: make([]T, config.BufferSize),
	}
	ch.sendCond = sync.NewCond(&ch.mu)
	ch.recvCond = sync.NewCond(&ch.mu)

	return ch
}

// Send implements BackpressureChannel.Send.
func (ch *backpressureChannel[T]) Send(ctx context.Context, value T) error {
	if ch.IsClosed() {
		return ErrChannelClosed
	}

	if ch.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ch.config.SendTimeout)
		defer cancel()
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.count >= len(ch.buffer) && !ch.IsClosed() {
		ch.stats.BlockedSends++
		if ch.config.OnBlock != nil {
			ch.config.OnBlock()
		}

		start := time.Now()
		stop := ch.wakeOnDone(ctx, ch.sendCond)
		for ch.count >= len(ch.buffer) && !ch.IsClosed() && ctx.Err() == nil {
			ch.sendCond.Wait()
		}
		stop()
		ch.stats.SendWaitTime += time.Since(start)
	}

	if ch.IsClosed() {
		return ErrChannelClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch.pushLocked(value)
	return nil
}

// TrySend implements BackpressureChannel.TrySend.
func (ch *backpressureChannel[T]) TrySend(value T) error {
	if ch.IsClosed() {
		return ErrChannelClosed
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.count >= len(ch.buffer) {
		return ErrChannelFull
	}

	ch.pushLocked(value)
	return nil
}

// Receive implements BackpressureChannel.Receive.
func (ch *backpressureChannel[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	if ch.config.ReceiveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ch.config.ReceiveTimeout)
		defer cancel()
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.count == 0 && !ch.IsClosed() {
		ch.stats.BlockedReceives++

		stop := ch.wakeOnDone(ctx, ch.recvCond)
		for ch.count == 0 && !ch.IsClosed() && ctx.Err() == nil {
			ch.recvCond.Wait()
		}
		stop()
	}

	if ch.count == 0 {
		if ch.IsClosed() {
			return zero, ErrChannelClosed
		}
		return zero, ctx.Err()
	}

	return ch.popLocked(), nil
}

// TryReceive implements BackpressureChannel.TryReceive.
func (ch *backpressureChannel[T]) TryReceive() (T, bool, error) {
	var zero T

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.count == 0 {
		if ch.IsClosed() {
			return zero, false, ErrChannelClosed
		}
		return zero, false, nil
	}

	return ch.popLocked(), true, nil
}

// Close implements BackpressureChannel.Close.
func (ch *backpressureChannel[T]) Close() error {
	if !ch.closed.CompareAndSwap(false, true) {
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.sendCond.Broadcast()
	ch.recvCond.Broadcast()

	return nil
}

// IsClosed implements BackpressureChannel.IsClosed.
func (ch *backpressureChannel[T]) IsClosed() bool {
	return ch.closed.Load()
}

// Len implements BackpressureChannel.Len.
func (ch *backpressureChannel[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count
}

// Cap implements BackpressureChannel.Cap.
func (ch *backpressureChannel[T]) Cap() int {
	return len(ch.buffer)
}

// Stats implements BackpressureChannel.Stats.
func (ch *backpressureChannel[T]) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	stats := ch.stats
	stats.BufferUtilization = float64(ch.count) / float64(len(ch.buffer))
	return stats
}

// wakeOnDone broadcasts cond when ctx ends so a waiter can observe ctx.Err().
// The returned func must be called with ch.mu held.
func (ch *backpressureChannel[T]) wakeOnDone(ctx context.Context, cond *sync.Cond) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() {
		ch.mu.Lock()
		cond.Broadcast()
		ch.mu.Unlock()
	})
	return func() { stop() }
}

// pushLocked appends a value (must hold lock).
func (ch *backpressureChannel[T]) pushLocked(value T) {
	ch.buffer[ch.tail] = value
	ch.tail = (ch.tail + 1) % len(ch.buffer)
	ch.count++
	ch.stats.SendCount++
	ch.recvCond.Signal()
}

// popLocked removes the oldest value (must hold lock).
func (ch *backpressureChannel[T]) popLocked() T {
	value := ch.buffer[ch.head]
	var zero T
	ch.buffer[ch.head] = zero // drop the reference so chunks can be collected
	ch.head = (ch.head + 1) % len(ch.buffer)
	ch.count--
	ch.stats.ReceiveCount++
	ch.sendCond.Signal()
	return value
}
