package embedding

import (
	"context"
	"errors"
	"time"
)

// maxBackoff caps the delay between two provider calls.
const maxBackoff = 5 * time.Second

// backoff returns the wait before retry number n (1-based): the base delay
// doubled per retry, capped at maxBackoff.
func (b *Batcher) backoff(n int) time.Duration {
	d := b.baseDelay
	for i := 1; i < n && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// retry runs call up to maxAttempts times and returns the last error.
// Cancellation, whether seen on ctx or returned by call, stops at once.
func (b *Batcher) retry(ctx context.Context, what string, call func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = call(); err == nil {
			if attempt > 1 {
				b.logger.Debug("provider call recovered", "call", what, "attempt", attempt)
			}
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt >= b.maxAttempts {
			return err
		}

		wait := b.backoff(attempt)
		b.logger.Debug("provider call failed, retrying", "call", what, "attempt", attempt, "wait", wait, "err", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
