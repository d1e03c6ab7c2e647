package history

import (
	"context"
	"time"
)

const (
	retryAttempts = 3
	retryDelay    = 100 * time.Millisecond
)

// retry calls fn up to retryAttempts times, doubling the delay after each
// failure that isRetryable accepts. Other errors are returned at once.
func retry(ctx context.Context, delay time.Duration, isRetryable func(error) bool, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !isRetryable(err) || attempt == retryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
}
