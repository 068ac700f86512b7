package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed right now without blocking
	Allow() bool
	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interval spaces consecutive requests by a random delay drawn from
// [min, max]. The first request is never delayed.
type Interval struct {
	min, max time.Duration
	sleep    SleepFunc
	rnd      func() float64

	mu   sync.Mutex
	last time.Time
}

// NewInterval creates an interval limiter. A zero max disables pacing.
func NewInterval(min, max time.Duration) *Interval {
	if max < min {
		max = min
	}
	return &Interval{min: min, max: max, sleep: Sleep, rnd: rand.Float64}
}

// WithSleep replaces the sleep function, mostly for tests.
func (iv *Interval) WithSleep(sleep SleepFunc) *Interval {
	iv.sleep = sleep
	return iv
}

func (iv *Interval) next() time.Duration {
	return iv.min + time.Duration(iv.rnd()*float64(iv.max-iv.min))
}

// Allow reports whether the interval since the previous request has elapsed,
// and records a request if so.
func (iv *Interval) Allow() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	now := time.Now()
	if iv.last.IsZero() || now.Sub(iv.last) >= iv.next() {
		iv.last = now
		return true
	}
	return false
}

// Wait sleeps out the remainder of a freshly drawn interval, then records the
// request. Concurrent callers are serialized.
func (iv *Interval) Wait(ctx context.Context) error {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	if iv.max > 0 && !iv.last.IsZero() {
		remaining := iv.next() - time.Since(iv.last)
		if remaining > 0 {
			if err := iv.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	iv.last = time.Now()
	return nil
}

// Reset forgets the previous request.
func (iv *Interval) Reset() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.last = time.Time{}
}

// TokenBucket admits capacity requests per refill period. Tokens come back
// one at a time, so a drained bucket recovers smoothly instead of in a
// single burst at the end of the period.
type TokenBucket struct {
	limit rate.Limit
	burst int

	mu  sync.Mutex
	lim *rate.Limiter
}

// NewTokenBucket creates a full bucket. A capacity below one is raised to one.
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	limit := rate.Every(refillPeriod / time.Duration(capacity))
	return &TokenBucket{limit: limit, burst: capacity, lim: rate.NewLimiter(limit, capacity)}
}

// PerMinute returns a bucket allowing n requests per minute.
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(n, time.Minute)
}

func (tb *TokenBucket) limiter() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lim
}

// Allow takes a token if one is available
func (tb *TokenBucket) Allow() bool {
	return tb.limiter().Allow()
}

// Wait blocks until a token is available or ctx is done. A deadline that
// would pass before the next token fails right away.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter().Wait(ctx)
}

// Reset refills the bucket to capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.lim = rate.NewLimiter(tb.limit, tb.burst)
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
