// Package keymanager implements the API-key rotation manager: quota
// enforcement, per-key health tracking, and selection policy. It is the
// single shared-mutable structure in this module, following the
// single-owner-mailbox shape the teacher uses for its circuit breaker in
// resilience/circuit_breaker.go (one guarding mutex, short critical
// sections, no I/O while held).
package keymanager

import "time"

// SelectionPolicy chooses which eligible key getAvailableKey returns.
type SelectionPolicy string

const (
	// RoundRobin advances a shared index modulo the eligible key list.
	RoundRobin SelectionPolicy = "round-robin"
	// LeastUsed returns the key with the fewest uses so far.
	LeastUsed SelectionPolicy = "least-used"
	// WeightedRandom favors less-used keys probabilistically.
	WeightedRandom SelectionPolicy = "weighted-random"
)

// QuotaInfo is immutable configuration for every managed key.
type QuotaInfo struct {
	RequestsPerMinute  int
	RequestsPerHour    int
	BytesPerMinute     int64
	MaxConcurrentUploads int
}

// DefaultQuotaInfo matches typical hosted-API free-tier limits.
func DefaultQuotaInfo() QuotaInfo {
	return QuotaInfo{
		RequestsPerMinute:    60,
		RequestsPerHour:      1000,
		BytesPerMinute:       20 << 20, // 20MiB
		MaxConcurrentUploads: 4,
	}
}

// KeyUsage is the per-key running record. All mutation happens under the
// manager's mutex; callers never see inconsistent intermediate states.
type KeyUsage struct {
	ID               string
	Key              string
	UsageCount       int64
	LastUsed         time.Time
	TotalBytes       int64
	MinuteRequests   []time.Time // not filled in by Manager, which keeps one manager-wide request window
	HourRequests     []time.Time // not filled in by Manager, which keeps one manager-wide request window
	ConsecutiveErrors int
	Disabled         bool
	DisabledUntil    time.Time
}

// snapshot returns a value copy safe to hand to a caller outside the lock.
func (k *KeyUsage) snapshot() KeyUsage {
	cp := *k
	cp.MinuteRequests = append([]time.Time(nil), k.MinuteRequests...)
	cp.HourRequests = append([]time.Time(nil), k.HourRequests...)
	return cp
}
