package keymanager

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) Sleep(d time.Duration) { f.now = f.now.Add(d) }
func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.now = f.now.Add(d)
	ch <- f.now
	return ch
}

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestZeroKeysAlwaysUnavailable(t *testing.T) {
	m := NewManager(nil, DefaultQuotaInfo(), RoundRobin)
	_, ok := m.GetAvailableKey(100)
	assert.False(t, ok)
	assert.Equal(t, float64(0), m.EstimatedWaitTime())
}

func TestKeyRotationUnderRateLimit(t *testing.T) {
	clock := newFakeClock()
	quota := DefaultQuotaInfo()
	quota.RequestsPerMinute = 2
	m := NewManager([]string{"k1", "k2", "k3"}, quota, RoundRobin, WithClock(clock))

	k1, ok := m.GetAvailableKey(10)
	require.True(t, ok)
	k2, ok := m.GetAvailableKey(10)
	require.True(t, ok)
	assert.NotEqual(t, k1, k2)

	_, ok = m.GetAvailableKey(10)
	assert.False(t, ok, "third call within the same 60s window must find no key")

	wait := m.EstimatedWaitTime()
	assert.InDelta(t, 60, wait, 1)
}

func TestKeyDisableOnConsecutiveErrors(t *testing.T) {
	clock := newFakeClock()
	m := NewManager([]string{"k1", "k2"}, DefaultQuotaInfo(), RoundRobin, WithClock(clock))

	boom := errors.New("boom")
	m.ReportError("k1", boom)
	m.ReportError("k1", boom)
	assert.True(t, m.CanUseKey("k1", 10))
	m.ReportError("k1", boom)

	assert.False(t, m.CanUseKey("k1", 10))

	for i := 0; i < 10; i++ {
		key, ok := m.GetAvailableKey(10)
		require.True(t, ok)
		assert.Equal(t, "k2", key)
	}
}

func TestKeyRevivesAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	m := NewManager([]string{"k1"}, DefaultQuotaInfo(), RoundRobin, WithClock(clock), WithCooldown(60*time.Second))

	boom := errors.New("boom")
	m.ReportError("k1", boom)
	m.ReportError("k1", boom)
	m.ReportError("k1", boom)
	assert.False(t, m.CanUseKey("k1", 10))

	clock.advance(61 * time.Second)
	assert.True(t, m.CanUseKey("k1", 10), "stale disabled flag should be tolerated at read time")
}

func TestReportSuccessResetsErrorCounter(t *testing.T) {
	clock := newFakeClock()
	m := NewManager([]string{"k1"}, DefaultQuotaInfo(), RoundRobin, WithClock(clock))

	boom := errors.New("boom")
	m.ReportError("k1", boom)
	m.ReportError("k1", boom)
	m.ReportSuccess("k1", 1024)

	m.ReportError("k1", boom)
	m.ReportError("k1", boom)
	assert.True(t, m.CanUseKey("k1", 10), "error streak must have been reset by the intervening success")

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1024), snap[0].TotalBytes)
}

func TestLeastUsedPolicyOrdersByUsageThenBytes(t *testing.T) {
	clock := newFakeClock()
	quota := DefaultQuotaInfo()
	quota.RequestsPerMinute = 100
	m := NewManager([]string{"k1", "k2"}, quota, LeastUsed, WithClock(clock))

	first, ok := m.GetAvailableKey(10)
	require.True(t, ok)
	second, ok := m.GetAvailableKey(10)
	require.True(t, ok)
	assert.NotEqual(t, first, second, "least-used must rotate once the first key's usage count rises")
}

func TestByteCapIsSlidingNotCumulative(t *testing.T) {
	clock := newFakeClock()
	quota := DefaultQuotaInfo()
	quota.RequestsPerMinute = 1000
	quota.BytesPerMinute = 100
	m := NewManager([]string{"k1"}, quota, RoundRobin, WithClock(clock))

	_, ok := m.GetAvailableKey(90)
	require.True(t, ok)

	_, ok = m.GetAvailableKey(50)
	assert.False(t, ok, "90+50 exceeds the 100 byte/min cap")

	clock.advance(61 * time.Second)
	_, ok = m.GetAvailableKey(50)
	assert.True(t, ok, "the sliding window should have rolled the earlier reservation off")
}

func TestRecommendedBatchSize(t *testing.T) {
	clock := newFakeClock()
	quota := QuotaInfo{RequestsPerMinute: 100, RequestsPerHour: 1000, BytesPerMinute: 1000, MaxConcurrentUploads: 4}
	m := NewManager([]string{"k1", "k2"}, quota, RoundRobin, WithClock(clock))

	batch := m.RecommendedBatchSize(10)
	assert.Equal(t, 50, batch) // min(100/2, 1000/2/10) = min(50, 50)
}
