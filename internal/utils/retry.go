package utils

import (
	"context"
	"time"
)

// retryBackoff spaces attempts out just enough to let the competing writer
// commit first.
const retryBackoff = 25 * time.Millisecond

// WithRetry runs fn up to attempts times. A failed attempt is retried only
// when transient classifies its error as recoverable; any other error aborts
// immediately. Each attempt is expected to re-read state fresh. When every
// attempt fails with a transient error the result is a CONFLICT AppError
// wrapping the last one.
func WithRetry(ctx context.Context, attempts int, transient func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !transient(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return NewAppError(ErrConflict, "write conflict persisted after retries", lastErr)
}
