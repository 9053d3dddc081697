// Package retry runs a closure under a bounded, fixed-delay retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxAttemptsExceeded is wrapped into the error returned when a policy gives up
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Policy configures how often and how patiently a call is retried
type Policy struct {
	// Attempts is the total number of calls, including the first one
	Attempts int
	// Delay is the fixed wait between attempts
	Delay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
	// OnRetry is called before each wait, if set
	OnRetry func(attempt int, err error)
}

// Once retries a failed call a single time after delay.
func Once(delay time.Duration, retryable func(error) bool) Policy {
	return Policy{Attempts: 2, Delay: delay, Retryable: retryable}
}

// Bounded is the call-site budget used around token and job listing calls.
func Bounded() Policy {
	return Policy{Attempts: 4, Delay: 2 * time.Second}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Waits are cut short by ctx.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, attempts, lastErr)
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
