package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/utils/backoff"
)

func fastPolicy(attempts int) backoff.Policy {
	return backoff.Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
}

func TestDoSucceedsAfterRateLimit(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return backoff.RateLimited(errors.New("slow down"), 0)
		}
		return nil
	})

	gt.NoError(t, err)
	gt.Value(t, calls).Equal(3)
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return backoff.RateLimited(errors.New("slow down"), time.Millisecond)
	})

	gt.Error(t, err)
	gt.Value(t, calls).Equal(2)
	gt.Bool(t, backoff.IsRateLimited(err)).True()
}

func TestDoStopsOnOtherError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := fastPolicy(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	gt.Value(t, calls).Equal(1)
	gt.Bool(t, errors.Is(err, boom)).True()
	gt.Bool(t, backoff.IsRateLimited(err)).False()
}

func TestDoCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := backoff.Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}

	err := p.Do(ctx, func(ctx context.Context) error {
		cancel()
		return backoff.RateLimited(errors.New("slow down"), 0)
	})

	gt.Bool(t, errors.Is(err, context.Canceled)).True()
}

func TestDelay(t *testing.T) {
	p := backoff.Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	gt.Value(t, p.Delay(0, 0)).Equal(time.Second)
	gt.Value(t, p.Delay(1, 0)).Equal(2 * time.Second)
	gt.Value(t, p.Delay(2, 0)).Equal(4 * time.Second)
	gt.Value(t, p.Delay(3, 0)).Equal(5 * time.Second)
	gt.Value(t, p.Delay(1, 42*time.Second)).Equal(42 * time.Second)
}

func TestPolicyValidate(t *testing.T) {
	gt.NoError(t, backoff.DefaultPolicy().Validate())
	gt.Error(t, backoff.Policy{MaxAttempts: 0}.Validate())
	gt.Error(t, backoff.Policy{MaxAttempts: 1, BaseDelay: time.Minute, MaxDelay: time.Second}.Validate())
}

func TestDoGivesUpOnLongRetryAfter(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return backoff.RateLimited(errors.New("slow down"), time.Hour)
	})

	gt.Value(t, calls).Equal(1)
	gt.Bool(t, backoff.IsRateLimited(err)).True()
}

func TestDoHonoursRetryAfterHint(t *testing.T) {
	// the exponential delay would be an hour; the hint must win
	p := backoff.Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	start := time.Now()
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return backoff.RateLimited(errors.New("slow down"), 5*time.Millisecond)
		}
		return nil
	})

	gt.NoError(t, err)
	gt.Value(t, calls).Equal(2)
	gt.Bool(t, time.Since(start) < time.Minute).True()
}
