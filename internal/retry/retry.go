// Package retry provides a bounded retry combinator for operations that can
// fail transiently under storage contention.
package retry

import (
	"context"
	"time"
)

// Backoff computes the sleep before the given 1-based retry attempt.
type Backoff func(attempt int) time.Duration

// Linear scales a base delay by the attempt number (0.2s, 0.4s, 0.6s ...).
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Do runs op up to attempts times, sleeping per backoff between tries. It
// retries only while retryable(err) holds; any other error is returned
// immediately. Context cancellation aborts the wait.
func Do(ctx context.Context, attempts int, backoff Backoff, retryable func(error) bool, op func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
