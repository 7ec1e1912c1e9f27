// Package retry provides the single bounded-retry helper shared by every
// caller that talks to an unreliable collaborator. Eligibility is decided
// by the caller-supplied predicate; there is no unbounded loop anywhere.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is returned when every attempt failed.
var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")

// Options controls a bounded retry loop.
type Options struct {
	MaxAttempts int
	// Backoff between attempts. Zero means retry immediately.
	Backoff time.Duration
	// Retryable decides whether the error from an attempt is worth another
	// try. A nil predicate retries every error.
	Retryable func(error) bool
}

// Do runs fn up to opts.MaxAttempts times and returns the first success.
// On exhaustion it returns the last error wrapped with ErrAttemptsExhausted.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if opts.Retryable != nil && !opts.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if opts.Backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(opts.Backoff):
			}
		}
	}
	return zero, errors.Join(ErrAttemptsExhausted, lastErr)
}
