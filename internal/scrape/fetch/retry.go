package fetch

import (
	"context"
	"math/rand"
	"time"
)

// Policy parameterizes Retry.
type Policy struct {
	MaxAttempts int
	// Delay before attempt n+1 is BaseDelay*n plus up to Jitter.
	BaseDelay time.Duration
	Jitter    time.Duration
	Retryable func(error) bool
	// OnRetry is called before sleeping; attempt is the attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)

	sleep func(context.Context, time.Duration) error
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(attempt)
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// Retry runs fn until it succeeds, returns an error the policy does not
// consider retryable, or MaxAttempts is exhausted. The last error is returned.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := fn(ctx, attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == attempts || !retryable(err) {
			break
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
