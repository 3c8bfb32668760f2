package service

import (
	"context"
	"time"
)

// retryConfig controls repeated attempts against the extractor.
type retryConfig struct {
	maxAttempts int
	delay       time.Duration
}

// retry executes fn up to maxAttempts times with a fixed delay between
// attempts. Cancelling the context aborts the wait, not a running attempt.
func retry[T any](ctx context.Context, cfg retryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Don't wait after the last attempt
		if attempt == cfg.maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.delay):
		}
	}

	return zero, lastErr
}
