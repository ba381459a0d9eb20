package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// instruments caches the counter/histogram instruments Provider.RecordMetric
// routes into, keyed by metric name. Grounded on the teacher's
// MetricInstruments (telemetry/metrics.go): same double-checked-locking
// cache, trimmed to the two instrument kinds RecordMetric's name-based
// routing actually reaches (counter, histogram) - the teacher's up-down
// counter and observable-gauge variants have no caller in this module.
type instruments struct {
	meter      metric.Meter
	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func newInstruments(meter metric.Meter) *instruments {
	return &instruments{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (m *instruments) recordCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) error {
	m.mu.RLock()
	counter, ok := m.counters[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		if counter, ok = m.counters[name]; !ok {
			var err error
			counter, err = m.meter.Int64Counter(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("telemetry: create counter %s: %w", name, err)
			}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, opts...)
	return nil
}

func (m *instruments) recordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) error {
	m.mu.RLock()
	histogram, ok := m.histograms[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		if histogram, ok = m.histograms[name]; !ok {
			var err error
			histogram, err = m.meter.Float64Histogram(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("telemetry: create histogram %s: %w", name, err)
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.Record(ctx, value, opts...)
	return nil
}

// looksLike reports whether name contains any of substrings, the same
// naming heuristic the teacher's RecordMetric uses to pick an instrument
// kind from a bare metric name.
func looksLike(name string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(name, substr) {
			return true
		}
	}
	return false
}
