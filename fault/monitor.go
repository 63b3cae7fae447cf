// Package fault tracks per-extension failure history and trips the
// quarantine when an extension keeps erroring during a session.
package fault

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

const (
	// DefaultHistorySize is how many recent faults are kept per
	// extension for debugging.
	DefaultHistorySize = 10
	// DefaultThreshold is the session error count at which an
	// extension is quarantined.
	DefaultThreshold = 10
)

// Record is one captured fault.
type Record struct {
	ExtensionID values.ExtensionID
	Hook        string
	Message     string
	Time        time.Time
}

// Monitor counts faults per extension within a session window and keeps
// a bounded history of recent records. When the count reaches the
// threshold the quarantine callback fires exactly once per window; the
// window resets on activation and on a manual reset.
type Monitor struct {
	mu      sync.Mutex
	history map[values.ExtensionID][]Record
	counts  map[values.ExtensionID]int
	tripped map[values.ExtensionID]bool

	historySize int
	threshold   int
	onThreshold func(values.ExtensionID)
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThreshold sets the session error count that trips quarantine.
func WithThreshold(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithHistorySize sets how many recent faults are retained per extension.
func WithHistorySize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.historySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a fault monitor. onThreshold is invoked, outside the
// monitor's lock, when an extension's session count reaches the
// threshold; nil disables quarantining.
func New(onThreshold func(values.ExtensionID), opts ...Option) *Monitor {
	m := &Monitor{
		history:     make(map[values.ExtensionID][]Record),
		counts:      make(map[values.ExtensionID]int),
		tripped:     make(map[values.ExtensionID]bool),
		historySize: DefaultHistorySize,
		threshold:   DefaultThreshold,
		onThreshold: onThreshold,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Report records a fault for the extension. Returns true when this
// report tripped the quarantine threshold.
func (m *Monitor) Report(id values.ExtensionID, hook string, err error) bool {
	if err == nil {
		return false
	}
	record := Record{
		ExtensionID: id,
		Hook:        hook,
		Message:     err.Error(),
		Time:        m.now(),
	}

	m.mu.Lock()
	ring := append(m.history[id], record)
	if len(ring) > m.historySize {
		ring = ring[len(ring)-m.historySize:]
	}
	m.history[id] = ring
	m.counts[id]++
	count := m.counts[id]
	trip := count >= m.threshold && !m.tripped[id]
	if trip {
		m.tripped[id] = true
	}
	m.mu.Unlock()

	m.logger.Warn("extension fault",
		"extension_id", id.String(),
		"hook", hook,
		"error", err,
		"session_count", count)

	if trip && m.onThreshold != nil {
		m.onThreshold(id)
	}
	return trip
}

// Count returns the extension's fault count in the current session window.
func (m *Monitor) Count(id values.ExtensionID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id]
}

// Records returns the retained fault history, oldest first.
func (m *Monitor) Records(id values.ExtensionID) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.history[id]))
	copy(out, m.history[id])
	return out
}

// ResetSession clears the session counter and trip latch for the
// extension. The fault history is kept for debugging.
func (m *Monitor) ResetSession(id values.ExtensionID) {
	m.mu.Lock()
	delete(m.counts, id)
	delete(m.tripped, id)
	m.mu.Unlock()
}

// Forget drops all state for the extension, history included. Called
// on unregister.
func (m *Monitor) Forget(id values.ExtensionID) {
	m.mu.Lock()
	delete(m.counts, id)
	delete(m.tripped, id)
	delete(m.history, id)
	m.mu.Unlock()
}
