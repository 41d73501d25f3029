// Package retry runs an operation a bounded number of times.
package retry

import (
	"context"
	"errors"
	"time"
)

type Backoff func(attempt int) time.Duration

// Linear waits base*attempt after the given failed attempt.
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Exponential doubles the wait after each attempt, capped at max.
func Exponential(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base << (attempt - 1)
		if d > max || d <= 0 {
			return max
		}
		return d
	}
}

type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	// Retryable decides whether an error is worth another attempt. Nil
	// retries everything except context errors.
	Retryable func(error) bool
}

// Result is the tagged outcome of Do.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) Result[T] {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var res Result[T]
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res.Attempts = attempt

		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		v, err := fn(ctx)
		if err == nil {
			res.Value = v
			res.Err = nil
			return res
		}
		res.Err = err

		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		if !p.retryable(err) || attempt == p.MaxAttempts {
			return res
		}

		if p.Backoff != nil {
			if wait := p.Backoff(attempt); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					res.Err = ctx.Err()
					return res
				case <-timer.C:
				}
			}
		}
	}
	return res
}

// A navigation timeout is retryable; cancellation of the run is not.
func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
