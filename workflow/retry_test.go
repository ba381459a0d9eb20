package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyFixed(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, Strategy: BackoffFixed}
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 200*time.Millisecond, p.Delay(5))
}

func TestRetryPolicyLinear(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Strategy: BackoffLinear}
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 300*time.Millisecond, p.Delay(3))
}

func TestRetryPolicyLinearCapsAtMaxDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond, Strategy: BackoffLinear}
	assert.Equal(t, 250*time.Millisecond, p.Delay(10))
}

func TestRetryPolicyExponentialMonotonicAndCapped(t *testing.T) {
	p := RetryPolicy{InitialDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second, Strategy: BackoffExponential}
	var prev time.Duration
	for attempt := 1; attempt <= 8; attempt++ {
		d := p.Delay(attempt)
		require.LessOrEqual(t, d, p.MaxDelay)
		require.GreaterOrEqual(t, d, prev, "exponential delay must never shrink between attempts")
		prev = d
	}
	assert.Equal(t, p.MaxDelay, p.Delay(8), "must have saturated at MaxDelay by the 8th attempt")
}

func TestRetryPolicyExponentialIsPureFunctionOfAttempt(t *testing.T) {
	p := RetryPolicy{InitialDelay: 50 * time.Millisecond, MaxDelay: 10 * time.Second, Strategy: BackoffExponential}
	first := p.Delay(4)
	second := p.Delay(4)
	assert.Equal(t, first, second, "Delay(a) must be deterministic regardless of prior calls")
}

func TestRetryPolicyJitteredExponentialBoundedByExponential(t *testing.T) {
	exp := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, Strategy: BackoffExponential}
	jittered := exp
	jittered.Strategy = BackoffJitteredExponential

	for attempt := 1; attempt <= 5; attempt++ {
		base := exp.Delay(attempt)
		bound := time.Duration(float64(base) * 1.3)
		for i := 0; i < 10; i++ {
			d := jittered.Delay(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, bound+time.Millisecond, "jittered delay must stay within delay_exp(a)*1.3")
		}
	}
}

func TestRetryPolicyDelayClampsNonPositiveAttempt(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, p.Delay(1), p.Delay(0))
	assert.Equal(t, p.Delay(1), p.Delay(-5))
}

func TestCapDuration(t *testing.T) {
	assert.Equal(t, time.Second, capDuration(2*time.Second, time.Second))
	assert.Equal(t, time.Duration(0), capDuration(-time.Second, time.Second))
	assert.Equal(t, 500*time.Millisecond, capDuration(500*time.Millisecond, 0))
}
