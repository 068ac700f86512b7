package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Schedule builds a fresh backoff for one Do call. Backoffs carry state, so a
// policy shared between goroutines hands each call its own.
type Schedule func() backoff.BackOff

// Exponential grows the delay from base by multiplier up to max, with 10%
// jitter. Zero or invalid values keep the library defaults.
func Exponential(base, max time.Duration, multiplier float64) Schedule {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		if base > 0 {
			b.InitialInterval = base
		}
		if max > 0 {
			b.MaxInterval = max
		}
		if multiplier >= 1 {
			b.Multiplier = multiplier
		}
		b.RandomizationFactor = 0.1
		// attempts are bounded by the policy, not by elapsed time
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// Constant waits d before every retry
func Constant(d time.Duration) Schedule {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// DefaultSchedule starts at one second and caps at one minute
func DefaultSchedule() Schedule {
	return Exponential(time.Second, time.Minute, 2.0)
}
