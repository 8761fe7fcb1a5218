package logging

import (
	"sort"
	"sync"
)

const (
	MetricEventsTotal   = "logging_events_total"
	MetricEventsDropped = "logging_events_dropped_total"
)

// Metrics is a process-local counter set. The zero value is ready to use and
// a nil *Metrics discards writes.
type Metrics struct {
	mu     sync.RWMutex
	values map[string]uint64
}

// NewMetrics returns an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]uint64)}
}

// Add increments key by delta.
func (m *Metrics) Add(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] += delta
	m.mu.Unlock()
}

// Store overwrites key with value.
func (m *Metrics) Store(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] = value
	m.mu.Unlock()
}

// TelemetryAdd is the entry point used by the telemetry adapter.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	m.Add(key, delta)
}

// TelemetryStore is the entry point used by the telemetry adapter.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	m.Store(key, value)
}

// Value reads a single counter.
func (m *Metrics) Value(key string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Keys lists counter names in sorted order.
func (m *Metrics) Keys() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
