package workflow

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffStrategy selects how RetryPolicy.Delay grows between attempts.
type BackoffStrategy string

const (
	// BackoffFixed always waits InitialDelay (capped at MaxDelay).
	BackoffFixed BackoffStrategy = "fixed"
	// BackoffLinear waits InitialDelay*attempt (capped at MaxDelay).
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential doubles the wait each attempt (capped at MaxDelay).
	BackoffExponential BackoffStrategy = "exponential"
	// BackoffJitteredExponential is BackoffExponential with +/-30% jitter,
	// matching the bound spec.md §8 testable property 4 requires:
	// delay(a) in [0, delay_exp(a)*1.3].
	BackoffJitteredExponential BackoffStrategy = "jittered-exponential"
)

// RetryPolicy governs how a workflow step's retry loop spaces out
// attempts. Grounded on the teacher's RetryConfig/calculateBackoff in
// orchestration/workflow_engine.go (same fixed/linear/exponential switch);
// the jittered-exponential variant and the deterministic-per-attempt
// Delay(attempt) contract are new to spec.md and are built on top of the
// real github.com/cenkalti/backoff/v5 ExponentialBackOff engine rather
// than reproducing its randomization by hand.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     BackoffStrategy
}

// DefaultRetryPolicy is a conservative policy new workflows fall back to
// when neither the step nor the workflow specifies one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Strategy:     BackoffExponential,
	}
}

// Delay computes the wait before attempt (attempts count from 1, per
// spec.md §3). It is deterministic for every strategy except
// jittered-exponential, and is always <= MaxDelay when MaxDelay is positive.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Strategy {
	case BackoffFixed:
		return capDuration(p.InitialDelay, p.MaxDelay)
	case BackoffLinear:
		return capDuration(p.InitialDelay*time.Duration(attempt), p.MaxDelay)
	case BackoffJitteredExponential:
		return capDuration(p.exponentialBackoff(0.3, attempt), p.MaxDelay)
	case BackoffExponential:
		fallthrough
	default:
		return capDuration(p.exponentialBackoff(0, attempt), p.MaxDelay)
	}
}

// exponentialBackoff steps a fresh backoff.ExponentialBackOff forward
// `attempt` times and returns the last interval. A fresh instance is used
// per call so Delay(a) never depends on delays computed for other
// attempts, keeping the exponential variant (randomizationFactor 0)
// fully deterministic.
func (p RetryPolicy) exponentialBackoff(randomizationFactor float64, attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	maxInterval := p.MaxDelay
	if maxInterval <= 0 {
		maxInterval = initial
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.Multiplier = 2
	b.RandomizationFactor = randomizationFactor

	var d time.Duration
	for i := 0; i < attempt; i++ {
		next := b.NextBackOff()
		if next < 0 {
			break
		}
		d = next
	}
	return d
}

func capDuration(d, max time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
