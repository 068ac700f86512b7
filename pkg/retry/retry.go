package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"opusdl/pkg/config"
	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Policy holds retry configuration
type Policy struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff spaces the attempts. Nil uses DefaultSchedule.
	Backoff Schedule
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultPolicy returns a retry policy with sensible defaults
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Backoff:     DefaultSchedule(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// FromConfig builds a policy from the retry section of the configuration.
// A disabled configuration yields a policy that makes exactly one attempt.
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Policy {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return &Policy{MaxAttempts: 1, Backoff: Constant(0), RetryIf: DefaultRetryIf, Logger: log}
	}
	return &Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     Exponential(cfg.BaseDelay, cfg.MaxDelay, cfg.Multiplier),
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	}
}

// DefaultRetryIf retries transport failures, throttling and server errors.
// Abort errors and cancellation are never retried.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return false
}

// Do executes op until it succeeds, fails with a non-retryable error, runs
// out of attempts or ctx is done. Non-retryable errors are returned as is.
func Do(ctx context.Context, op Operation, p *Policy) error {
	if p == nil {
		p = DefaultPolicy()
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	schedule := p.Backoff
	if schedule == nil {
		schedule = DefaultSchedule()
	}

	b := schedule()
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}

	attempt := 0
	var last error
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err
		if !retryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if p.Logger != nil {
			p.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": p.MaxAttempts,
			})
		}
	})

	switch {
	case err == nil:
		if attempt > 1 && p.Logger != nil {
			p.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
				"attempt": attempt,
			})
		}
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(last, ctx.Err()):
		// the context ended between attempts
		return fmt.Errorf("retry cancelled: %w", err)
	case p.MaxAttempts > 1 && attempt >= p.MaxAttempts && retryIf(err):
		if p.Logger != nil {
			p.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
		}
		return fmt.Errorf("max retry attempts (%d) exceeded: %w", p.MaxAttempts, err)
	default:
		return err
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op func(ctx context.Context) (T, error), p *Policy) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, p)
	return result, err
}
