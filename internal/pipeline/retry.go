package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/kiranshivaraju/bookvoice/internal/provider"
)

// callWithRetry invokes fn up to maxAttempts times with a per-call timeout.
// Only errors the provider taxonomy marks retryable are retried; fatal
// errors return immediately. Backoff doubles from base up to maxDelay with
// jitter. onAttempt runs before every try and aborts the loop when it errors.
func callWithRetry(ctx context.Context, maxAttempts int, base, maxDelay, callTimeout time.Duration,
	fn func(ctx context.Context) error, onAttempt func(attempt int) error) error {

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := onAttempt(attempt); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if !provider.Retryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		if err := sleepBackoff(ctx, attempt, base, maxDelay); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func sleepBackoff(ctx context.Context, attempt int, base, maxDelay time.Duration) error {
	delay := base << (attempt - 1)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	// Up to 25% jitter so concurrent retries spread out.
	delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
