package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/legaultmarc/fast-gzip/pkg/common/errors"
)

// Limit is a throughput in bytes per second. Use Inf for no limit.
type Limit float64

// Inf is the infinite rate limit; it allows all events.
var Inf = Limit(math.Inf(1))

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Rate is the number of bytes admitted per second.
	Rate Limit

	// Burst is the maximum number of bytes admitted at once.
	Burst int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// InitialTokens is the number of tokens to start with.
	// If negative, starts with full capacity.
	InitialTokens int
}

// Limiter is a token bucket over bytes. It is safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	limit      Limit
	burst      int
	tokens     float64
	lastUpdate time.Time
	clock      Clock
}

// New creates a limiter admitting rate bytes per second, at most burst at a
// time. It starts full.
func New(rate Limit, burst int) (*Limiter, error) {
	return NewWithConfig(Config{
		Rate:          rate,
		Burst:         burst,
		InitialTokens: -1,
	})
}

// NewWithConfig creates a limiter from config.
func NewWithConfig(config Config) (*Limiter, error) {
	if !(config.Rate > 0) {
		return nil, errors.NewValidationError("bucket", "rate", config.Rate, "rate must be positive").
			WithHint("use bucket.Inf to disable limiting")
	}
	if config.Burst <= 0 {
		return nil, errors.NewValidationError("bucket", "burst", config.Burst, "burst must be positive").
			WithHint("burst is usually the chunk size")
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	initialTokens := float64(config.InitialTokens)
	if config.InitialTokens < 0 {
		initialTokens = float64(config.Burst)
	}

	return &Limiter{
		limit:      config.Rate,
		burst:      config.Burst,
		tokens:     initialTokens,
		lastUpdate: config.Clock.Now(),
		clock:      config.Clock,
	}, nil
}

// AllowN reports whether n bytes may pass now, and takes them if so.
func (l *Limiter) AllowN(n int) bool {
	_, ok := l.reserve(l.clock.Now(), n, 0)
	return ok
}

// WaitN blocks until n bytes may pass. Requests larger than the burst are
// admitted in burst-sized steps.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	for n > 0 {
		step := min(n, l.Burst())
		if err := l.wait(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

func (l *Limiter) wait(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay, _ := l.reserve(l.clock.Now(), n, math.MaxInt64)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		l.cancel(n)
		return ctx.Err()
	}
}

// SetLimit changes the rate limit.
func (l *Limiter) SetLimit(newLimit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updateTokens(l.clock.Now())
	l.limit = newLimit
}

// Limit returns the current rate limit.
func (l *Limiter) Limit() Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Burst returns the current burst size.
func (l *Limiter) Burst() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burst
}

// Tokens returns the number of bytes that may pass right now. It is
// negative while earlier waits are still being paid for.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updateTokens(l.clock.Now())
	return l.tokens
}

// reserve takes n tokens and returns how long the caller must wait before
// using them. It takes nothing when the wait would exceed maxWait.
func (l *Limiter) reserve(now time.Time, n int, maxWait time.Duration) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || l.limit == Inf {
		return 0, true
	}

	l.updateTokens(now)

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return 0, true
	}

	tokensNeeded := float64(n) - l.tokens
	waitTime := time.Duration(float64(time.Second) * tokensNeeded / float64(l.limit))
	if waitTime > maxWait {
		return 0, false
	}

	// Can go negative; later callers queue behind this one.
	l.tokens -= float64(n)
	return waitTime, true
}

// cancel returns the tokens of an abandoned wait.
func (l *Limiter) cancel(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updateTokens(l.clock.Now())
	l.tokens = math.Min(l.tokens+float64(n), float64(l.burst))
}

// updateTokens adds tokens based on the time elapsed since the last update.
func (l *Limiter) updateTokens(now time.Time) {
	if l.limit == Inf {
		l.tokens = float64(l.burst)
		l.lastUpdate = now
		return
	}

	elapsed := now.Sub(l.lastUpdate)
	if elapsed <= 0 {
		return
	}

	tokensToAdd := elapsed.Seconds() * float64(l.limit)
	l.tokens = math.Min(l.tokens+tokensToAdd, float64(l.burst))
	l.lastUpdate = now
}
