// Package backoff provides a small retry policy applied to external call
// sites: bounded attempts, exponential delay, and jitter.
package backoff

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Retryable marks an error as transient so Policy.Do will retry the call.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so that IsRetryable reports true for it. A nil err
// returns nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err (or any error it wraps) was marked
// transient via Retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Policy describes a bounded exponential backoff with jitter. The delay for
// attempt n (0-based) is BaseDelay * 2^n, capped at MaxDelay, with up to
// Jitter fraction of the delay added randomly.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// Default is the policy applied to rate-limited external APIs: three
// attempts starting at one second.
var Default = Policy{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    30 * time.Second,
	Jitter:      0.5,
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. Between attempts it sleeps the backoff delay,
// returning ctx.Err() if the context is cancelled during the wait. The last
// error from fn is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt - 1)):
			}
		}

		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

// delay computes the sleep before retrying after the given 0-based attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}
