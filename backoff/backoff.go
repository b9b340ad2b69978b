// Package backoff provides pluggable retry delay strategies for task
// execution. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"time"
)

// MaxAttempts is the total attempt budget (initial send plus retries)
// the task queue enforces before moving a task to the failed set.
const MaxAttempts = 3

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Exponential grows the delay by Factor each attempt.
// Delay = min(Initial * Factor^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy. Factor
// defaults to 2 (classic doubling) if zero or negative.
func NewExponential(initial time.Duration, factor float64, maxDelay time.Duration) *Exponential {
	if factor <= 0 {
		factor = 2
	}
	return &Exponential{Initial: initial, Factor: factor, Max: maxDelay}
}

// Delay returns Initial * Factor^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	factor := e.Factor
	if factor <= 0 {
		factor = 2
	}
	d := time.Duration(float64(e.Initial) * math.Pow(factor, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// DefaultStrategy returns the retry policy for delivery tasks: attempt
// delays of 5s, 25s, 125s (initial 5s, factor 5, capped at 125s). Under
// MaxAttempts total attempts the queue uses the first two.
func DefaultStrategy() Strategy {
	return NewExponential(5*time.Second, 5, 125*time.Second)
}
