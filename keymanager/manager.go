package keymanager

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/nimbuslabs/conductor/core"
)

const defaultDisableCooldown = 60 * time.Second

// byteEntry is one provisional byte reservation recorded at selection
// time, used to enforce the per-key sliding-window byte cap (Open
// Question 1 in DESIGN.md: a sliding window, not a cumulative lifetime
// total).
type byteEntry struct {
	at    time.Time
	bytes int64
}

type managedKey struct {
	usage       KeyUsage
	byteWindow  []byteEntry
}

// Manager is the single shared-mutable structure in this module. All
// mutation is serialized behind mu, mirroring the teacher's circuit
// breaker (resilience/circuit_breaker.go): short critical sections, no
// I/O performed while the lock is held.
type Manager struct {
	mu     sync.Mutex
	quota     QuotaInfo
	policy    SelectionPolicy
	clock     core.Clock
	logger    core.Logger
	telemetry core.Telemetry
	rand      *rand.Rand

	cooldown time.Duration

	keys  map[string]*managedKey
	order []string // insertion order, stable across policies

	globalTimestamps []time.Time
	rrIndex          int

	stopHousekeeping chan struct{}
	housekeepingOnce sync.Once
}

// Option configures a Manager at construction, following the teacher's
// functional-options style (ai/provider.go).
type Option func(*Manager)

// WithClock overrides the manager's time source, for deterministic tests.
func WithClock(clock core.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithLogger attaches a logger for disable/revive/quota-exhaustion events.
func WithLogger(logger core.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCooldown overrides the default 60s disable cooldown.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) { m.cooldown = d }
}

// WithRandSource overrides the weighted-random policy's source, for
// deterministic tests.
func WithRandSource(src rand.Source) Option {
	return func(m *Manager) { m.rand = rand.New(src) }
}

// WithTelemetry attaches span/metric instrumentation around key selection
// and disable decisions. Falls back to core.NoOpTelemetry when not set.
func WithTelemetry(t core.Telemetry) Option {
	return func(m *Manager) { m.telemetry = t }
}

// NewManager creates a key manager over the given keys. An empty keys
// slice is valid: every operation degrades to its documented
// zero-keys behavior instead of erroring.
func NewManager(keys []string, quota QuotaInfo, policy SelectionPolicy, opts ...Option) *Manager {
	m := &Manager{
		quota:     quota,
		policy:    policy,
		clock:     core.DefaultClock,
		logger:    core.NoOpLogger{},
		telemetry: core.NoOpTelemetry{},
		cooldown:  defaultDisableCooldown,
		keys:      make(map[string]*managedKey, len(keys)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rand == nil {
		m.rand = rand.New(rand.NewSource(1))
	}

	for _, key := range keys {
		m.keys[key] = &managedKey{usage: KeyUsage{ID: core.NewID(), Key: key}}
		m.order = append(m.order, key)
	}

	return m
}

// StartHousekeeping launches the background ticker described in spec §4.1:
// roughly every interval, prune stale global timestamps, prune stale
// per-key byte-window entries, and clear disables whose cooldown passed.
// Call Stop to release the goroutine.
func (m *Manager) StartHousekeeping(interval time.Duration) {
	m.mu.Lock()
	if m.stopHousekeeping != nil {
		m.mu.Unlock()
		return
	}
	m.stopHousekeeping = make(chan struct{})
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.houseKeep()
			case <-m.stopHousekeeping:
				return
			}
		}
	}()
}

// Stop halts the background housekeeping goroutine, if running.
func (m *Manager) Stop() {
	m.housekeepingOnce.Do(func() {
		m.mu.Lock()
		ch := m.stopHousekeeping
		m.mu.Unlock()
		if ch != nil {
			close(ch)
		}
	})
}

func (m *Manager) houseKeep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.pruneGlobalLocked(now)
	for _, mk := range m.keys {
		mk.byteWindow = pruneByteWindow(mk.byteWindow, now)
		if mk.usage.Disabled && !mk.usage.DisabledUntil.After(now) {
			mk.usage.Disabled = false
			m.logger.Info("key revived after cooldown", map[string]interface{}{"key_id": mk.usage.ID})
		}
	}
}

func (m *Manager) pruneGlobalLocked(now time.Time) {
	hourAgo := now.Add(-time.Hour)
	i := 0
	for i < len(m.globalTimestamps) && m.globalTimestamps[i].Before(hourAgo) {
		i++
	}
	if i > 0 {
		m.globalTimestamps = append([]time.Time(nil), m.globalTimestamps[i:]...)
	}
}

func pruneByteWindow(window []byteEntry, now time.Time) []byteEntry {
	minuteAgo := now.Add(-time.Minute)
	i := 0
	for i < len(window) && window[i].at.Before(minuteAgo) {
		i++
	}
	if i == 0 {
		return window
	}
	return append([]byteEntry(nil), window[i:]...)
}

// isAvailableLocked reports whether mk is currently usable, treating a
// disabled key whose cooldown has elapsed as available even if the
// background tick hasn't cleared its flag yet (Open Question 2).
func (m *Manager) isAvailableLocked(mk *managedKey, now time.Time) bool {
	if !mk.usage.Disabled {
		return true
	}
	return !mk.usage.DisabledUntil.After(now)
}

func (m *Manager) byteCapOKLocked(mk *managedKey, requestSize int64, now time.Time) bool {
	mk.byteWindow = pruneByteWindow(mk.byteWindow, now)
	var sum int64
	for _, e := range mk.byteWindow {
		sum += e.bytes
	}
	return sum+requestSize <= m.quota.BytesPerMinute
}

// globalWindowCountsLocked returns the number of requests recorded in the
// last minute and the last hour, across all keys. spec.md §4.1 makes RPM
// and RPH a shared quota over the whole manager, not per key: the
// quota check compares the SAME global counts against every candidate.
func (m *Manager) globalWindowCountsLocked(now time.Time) (minuteCount, hourCount int) {
	minuteAgo := now.Add(-time.Minute)
	hourAgo := now.Add(-time.Hour)
	for _, ts := range m.globalTimestamps {
		if ts.After(hourAgo) {
			hourCount++
			if ts.After(minuteAgo) {
				minuteCount++
			}
		}
	}
	return
}

// eligibleLocked returns the keys passing the disabled/byte-cap checks,
// sorted per the shared pre-filter ordering (errors asc, usageCount asc,
// totalBytes asc) used by every selection policy.
func (m *Manager) eligibleLocked(requestSize int64, now time.Time) []*managedKey {
	var candidates []*managedKey
	for _, key := range m.order {
		mk := m.keys[key]
		if !m.isAvailableLocked(mk, now) {
			continue
		}
		if !m.byteCapOKLocked(mk, requestSize, now) {
			continue
		}
		candidates = append(candidates, mk)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].usage, candidates[j].usage
		if a.ConsecutiveErrors != b.ConsecutiveErrors {
			return a.ConsecutiveErrors < b.ConsecutiveErrors
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount < b.UsageCount
		}
		return a.TotalBytes < b.TotalBytes
	})
	return candidates
}

// GetAvailableKey returns a currently usable key string, or ("", false) if
// none qualifies. Selection considers only keys that are not disabled and
// that would not violate any quota if this request proceeded.
func (m *Manager) GetAvailableKey(requestSize int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.keys) == 0 {
		return "", false
	}

	now := m.clock.Now()
	minuteCount, hourCount := m.globalWindowCountsLocked(now)
	if minuteCount >= m.quota.RequestsPerMinute || hourCount >= m.quota.RequestsPerHour {
		m.telemetry.RecordMetric("key_manager_selection_count", 1, map[string]string{"outcome": "quota-exhausted"})
		return "", false
	}

	eligible := m.eligibleLocked(requestSize, now)
	if len(eligible) == 0 {
		m.telemetry.RecordMetric("key_manager_selection_count", 1, map[string]string{"outcome": "no-eligible-key"})
		return "", false
	}

	chosen := m.selectLocked(eligible)
	if chosen == nil {
		m.telemetry.RecordMetric("key_manager_selection_count", 1, map[string]string{"outcome": "no-eligible-key"})
		return "", false
	}

	// Record usage immediately; do not wait for ReportSuccess.
	chosen.usage.UsageCount++
	chosen.usage.LastUsed = now
	chosen.byteWindow = append(chosen.byteWindow, byteEntry{at: now, bytes: requestSize})
	m.globalTimestamps = append(m.globalTimestamps, now)

	m.telemetry.RecordMetric("key_manager_selection_count", 1, map[string]string{"outcome": "selected"})
	return chosen.usage.Key, true
}

// CanUseKey is the predicate form of GetAvailableKey for one key: it does
// not record usage.
func (m *Manager) CanUseKey(key string, requestSize int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mk, ok := m.keys[key]
	if !ok {
		return false
	}
	now := m.clock.Now()
	minuteCount, hourCount := m.globalWindowCountsLocked(now)
	if minuteCount >= m.quota.RequestsPerMinute || hourCount >= m.quota.RequestsPerHour {
		return false
	}
	if !m.isAvailableLocked(mk, now) {
		return false
	}
	return m.byteCapOKLocked(mk, requestSize, now)
}

// ReportSuccess records a completed call: adds the actual bytes uploaded
// to the key's lifetime total and resets its consecutive-error counter.
func (m *Manager) ReportSuccess(key string, bytesUploaded int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.keys[key]
	if !ok {
		return
	}
	mk.usage.TotalBytes += bytesUploaded
	mk.usage.ConsecutiveErrors = 0
}

// ReportError records a failed call. Three consecutive errors (no
// intervening success) disable the key for the configured cooldown.
func (m *Manager) ReportError(key string, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.keys[key]
	if !ok {
		return
	}
	mk.usage.ConsecutiveErrors++
	if mk.usage.ConsecutiveErrors >= 3 && !mk.usage.Disabled {
		mk.usage.Disabled = true
		mk.usage.DisabledUntil = m.clock.Now().Add(m.cooldown)
		m.logger.Warn("key disabled after consecutive errors", map[string]interface{}{
			"key_id": mk.usage.ID,
			"errors": mk.usage.ConsecutiveErrors,
		})
		m.telemetry.RecordMetric("key_manager_disabled_count", 1, map[string]string{"key_id": mk.usage.ID})
	}
}

// EstimatedWaitTime returns 0 if any active key currently has minute-window
// capacity; otherwise the seconds until the oldest request in the minute
// window ages out.
func (m *Manager) EstimatedWaitTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.keys) == 0 {
		return 0
	}

	now := m.clock.Now()
	hasActiveKey := false
	for _, mk := range m.keys {
		if m.isAvailableLocked(mk, now) {
			hasActiveKey = true
			break
		}
	}
	if !hasActiveKey {
		return 0
	}

	minuteCount, _ := m.globalWindowCountsLocked(now)
	if minuteCount < m.quota.RequestsPerMinute {
		return 0
	}

	minuteAgo := now.Add(-time.Minute)
	for _, ts := range m.globalTimestamps {
		if ts.After(minuteAgo) {
			wait := ts.Add(time.Minute).Sub(now).Seconds()
			if wait < 0 {
				return 0
			}
			return wait
		}
	}
	return 0
}

// RecommendedBatchSize derives a safe per-tick batch size given an
// estimated per-item file size, spread across currently active keys.
func (m *Manager) RecommendedBatchSize(estimatedFileSize int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	active := 0
	for _, mk := range m.keys {
		if m.isAvailableLocked(mk, now) {
			active++
		}
	}
	if active == 0 {
		active = 1
	}
	if estimatedFileSize <= 0 {
		estimatedFileSize = 1
	}

	byRequests := m.quota.RequestsPerMinute / active
	byBytes := int(m.quota.BytesPerMinute / int64(active) / estimatedFileSize)

	batch := byRequests
	if byBytes < batch {
		batch = byBytes
	}
	if batch < 1 {
		batch = 1
	}
	return batch
}

// Snapshot returns a point-in-time copy of every key's usage record, for
// inspection and tests.
func (m *Manager) Snapshot() []KeyUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]KeyUsage, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.keys[key].usage.snapshot())
	}
	return out
}
