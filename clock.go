package stratum

import (
	"sync"
	"time"
)

// Clock supplies the current time. It exists so record timestamps and
// compaction timestamps are deterministic in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is the standard Clock backed by the system clock.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock is a Clock that returns a fixed time. Useful for testing
// time-dependent behavior.
type MockClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewMockClock creates a MockClock fixed at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{t: t}
}

// Now returns the fixed time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// SetTime updates the fixed time returned by Now.
func (m *MockClock) SetTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
}

// Advance moves the fixed time forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
}

// Compile-time checks.
var (
	_ Clock = SystemClock{}
	_ Clock = (*MockClock)(nil)
)
