package synth

import (
	"context"
	"time"

	"github.com/onetake-ai/hackernews-watercooler/internal/errdefs"
)

// RetryPolicy bounds the exponential backoff applied to rate-limited calls.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy retries five times starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 500 * time.Millisecond,
	}
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or
// the retry budget is spent. The delay doubles after every attempt.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := p.InitialDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errdefs.New(errdefs.CodeCanceled, "synthesis canceled", ctx.Err())
		}
		if !errdefs.IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return errdefs.New(errdefs.CodeCanceled, "synthesis canceled", err)
		}
		delay *= 2
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
