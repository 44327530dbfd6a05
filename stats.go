package stratum

import "sync"

// SessionStats contains counters and gauges tracked for one session.
// All standard stratum metrics use keys prefixed with "stratum:" to
// avoid collisions with user-defined keys.
//
// # Use Cases
//
// Stats serve two purposes:
//
//  1. Compaction decisions: read by triggers to decide when to compact
//     (e.g., records logged since the last compaction, current window
//     size).
//
//  2. Observability: read by callers for diagnostics and milestones
//     (e.g., summarizer failure counts, last compression ratio).
//
// # Counters vs Gauges
//
// Counters are monotonically non-decreasing (only go up). Use gauges
// for values that reset or fluctuate, such as the current window size
// or the last compression ratio.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type SessionStats struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
}

// NewSessionStats creates an empty SessionStats.
func NewSessionStats() *SessionStats {
	return &SessionStats{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

// IncrCounter increments a counter by delta. Creates the counter if it
// doesn't exist.
//
// Panics if delta is negative (counters only go up).
func (s *SessionStats) IncrCounter(key StatKey, delta int64) {
	if delta < 0 {
		panic("stratum: IncrCounter called with negative delta")
	}
	s.mu.Lock()
	s.counters[string(key)] += delta
	s.mu.Unlock()
}

// GetCounter returns the current value of a counter, or 0 if not set.
func (s *SessionStats) GetCounter(key StatKey) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[string(key)]
}

// IncrGauge increments a gauge by delta (positive or negative).
// Creates the gauge if it doesn't exist.
func (s *SessionStats) IncrGauge(key StatKey, delta float64) {
	s.mu.Lock()
	s.gauges[string(key)] += delta
	s.mu.Unlock()
}

// SetGauge sets a gauge to a specific value.
func (s *SessionStats) SetGauge(key StatKey, value float64) {
	s.mu.Lock()
	s.gauges[string(key)] = value
	s.mu.Unlock()
}

// GetGauge returns the current value of a gauge, or 0.0 if not set.
func (s *SessionStats) GetGauge(key StatKey) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gauges[string(key)]
}

// ResetGauge sets a gauge to 0.0.
func (s *SessionStats) ResetGauge(key StatKey) {
	s.mu.Lock()
	s.gauges[string(key)] = 0
	s.mu.Unlock()
}

// Counters returns a copy of all counters.
func (s *SessionStats) Counters() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		result[k] = v
	}
	return result
}

// Gauges returns a copy of all gauges.
func (s *SessionStats) Gauges() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]float64, len(s.gauges))
	for k, v := range s.gauges {
		result[k] = v
	}
	return result
}
