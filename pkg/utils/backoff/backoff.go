package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	cbackoff "github.com/cenkalti/backoff/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

// Policy retries calls that fail with a *RateLimitError.
// Delay before attempt n+1 is the server's retry-after hint when present,
// otherwise BaseDelay * 2^n capped at MaxDelay. A retry-after hint longer than
// MaxDelay ends the retries immediately.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns 3 attempts starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return goerr.New("max attempts must be at least 1", goerr.V("max_attempts", p.MaxAttempts))
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return goerr.New("delays must not be negative", goerr.V("base_delay", p.BaseDelay), goerr.V("max_delay", p.MaxDelay))
	}
	if p.MaxDelay > 0 && p.BaseDelay > p.MaxDelay {
		return goerr.New("base delay exceeds max delay", goerr.V("base_delay", p.BaseDelay), goerr.V("max_delay", p.MaxDelay))
	}
	return nil
}

// RateLimitError marks a throttled call. RetryAfter is zero when the platform gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RateLimited wraps err as a *RateLimitError.
func RateLimited(err error, retryAfter time.Duration) error {
	return &RateLimitError{RetryAfter: retryAfter, Err: err}
}

// IsRateLimited reports whether err, or anything it wraps, is a *RateLimitError.
// Do returns such an error once attempts are exhausted.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Do runs fn until it succeeds, fails with an error that is not rate limiting, or MaxAttempts is reached.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	opts := []cbackoff.RetryOption{
		cbackoff.WithBackOff(p.exponential()),
		cbackoff.WithMaxTries(uint(attempts)),
		// waits are bounded by MaxAttempts and MaxDelay
		cbackoff.WithMaxElapsedTime(0),
		cbackoff.WithNotify(func(err error, delay time.Duration) {
			logging.From(ctx).Warn("rate limited, backing off",
				"max_attempts", attempts,
				"delay", delay,
				"error", err.Error(),
			)
		}),
	}

	_, err := cbackoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.classify(ctx, fn(ctx))
	}, opts...)
	if err == nil {
		return nil
	}

	switch {
	case IsRateLimited(err):
		return goerr.Wrap(err, "rate limit retries exhausted", goerr.V("max_attempts", attempts))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return goerr.Wrap(err, "cancelled during backoff", goerr.V("max_attempts", attempts))
	default:
		return err
	}
}

// classify maps an attempt's error onto the retry library's signals:
// rate limits are retried (after the hint when given), everything else is permanent.
func (p Policy) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		return cbackoff.Permanent(err)
	}

	if p.MaxDelay > 0 && rl.RetryAfter > p.MaxDelay {
		logging.From(ctx).Warn("retry-after exceeds max delay, giving up",
			"retry_after", rl.RetryAfter,
			"max_delay", p.MaxDelay,
		)
		return cbackoff.Permanent(err)
	}
	if rl.RetryAfter > 0 {
		return errors.Join(&cbackoff.RetryAfterError{Duration: rl.RetryAfter}, err)
	}
	return err
}

func (p Policy) exponential() *cbackoff.ExponentialBackOff {
	b := cbackoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = cbackoff.DefaultMaxInterval
	}
	b.Reset()
	return b
}

// Delay returns the wait before the attempt following attempt (zero based).
func (p Policy) Delay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	b := p.exponential()
	delay := b.NextBackOff()
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
