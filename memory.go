package stratum

import (
	"fmt"
	"sync"
	"time"
)

// MemoryEntry is a single tagged fact in the session's layered memory.
// Entries are owned exclusively by the [MemoryStore] and immutable once
// created, except for layer-specific updates (TASK entries may be marked
// resolved).
type MemoryEntry struct {
	// ID is unique and monotonically increasing within the session.
	ID string

	// Layer the entry belongs to.
	Layer Layer

	// Content is the fact text.
	Content string

	// Importance in [0.0, 1.0]. Advisory metadata only; the layer's
	// retention policy is authoritative.
	Importance float64

	// CreatedAt is when the entry was added.
	CreatedAt time.Time

	// Resolved marks a TASK entry as no longer active. Zero value for
	// all other layers.
	Resolved bool
}

// MemoryStore holds the layered facts for one session. One store per
// session; safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   Clock
	ids     *idGenerator
	entries []*MemoryEntry
	byID    map[string]*MemoryEntry
}

// NewMemoryStore creates an empty store using the given clock.
func NewMemoryStore(clock Clock) *MemoryStore {
	return newMemoryStore(clock, newIDGenerator(clock))
}

// newMemoryStore creates a store sharing an id generator with the rest
// of the session.
func newMemoryStore(clock Clock, ids *idGenerator) *MemoryStore {
	return &MemoryStore{
		clock: clock,
		ids:   ids,
		byID:  make(map[string]*MemoryEntry),
	}
}

// Add appends a fact to the given layer and returns its id. Unknown
// layers are rejected with [ErrInvalidLayer]. Importance is clamped to
// [0.0, 1.0]. O(1) append.
func (s *MemoryStore) Add(layer Layer, content string, importance float64) (string, error) {
	if !layer.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLayer, string(layer))
	}
	id := s.ids.Next()
	s.insert(id, layer, content, importance)
	return id, nil
}

// insert appends an entry with a pre-assigned id. The layer must already
// be validated. Used by Add and by the session's queued-event merge.
func (s *MemoryStore) insert(id string, layer Layer, content string, importance float64) {
	entry := &MemoryEntry{
		ID:         id,
		Layer:      layer,
		Content:    content,
		Importance: clampImportance(importance),
		CreatedAt:  s.clock.Now(),
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.byID[id] = entry
	s.mu.Unlock()
}

// GetLayer returns the entries of one layer in insertion order. The
// returned slice holds copies; mutating it does not affect the store.
func (s *MemoryStore) GetLayer(layer Layer) []MemoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []MemoryEntry
	for _, e := range s.entries {
		if e.Layer == layer {
			result = append(result, *e)
		}
	}
	return result
}

// All returns copies of every entry in insertion order.
func (s *MemoryStore) All() []MemoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MemoryEntry, len(s.entries))
	for i, e := range s.entries {
		result[i] = *e
	}
	return result
}

// Get returns a copy of the entry with the given id.
func (s *MemoryStore) Get(id string) (MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return MemoryEntry{}, fmt.Errorf("%w: memory entry %s", ErrNotFound, id)
	}
	return *e, nil
}

// ResolveTask marks a TASK entry as resolved. Returns [ErrNotFound] if
// the id is absent or the entry is not in the TASK layer. This is the
// only mutation the store supports.
func (s *MemoryStore) ResolveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: memory entry %s", ErrNotFound, id)
	}
	if e.Layer != LayerTask {
		return fmt.Errorf(
			"%w: entry %s is in layer %q, not %q",
			ErrNotFound, id, string(e.Layer), string(LayerTask),
		)
	}
	e.Resolved = true
	return nil
}

// Has reports whether an entry with the given id exists.
func (s *MemoryStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func clampImportance(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
