package stratum

import "time"

// Snapshot is a frozen, self-contained view of one session's state at a
// single point in time. The session builds it while the store is
// frozen, so a compaction strategy can run, including its blocking
// summarizer call, against a consistent snapshot even if the caller
// appends new events concurrently.
//
// All slices hold copies; a strategy can read them freely without
// touching live session state.
type Snapshot struct {
	// Entries is every memory entry in insertion order.
	Entries []MemoryEntry

	// Actions, Decisions, Errors are the append-only logs in append
	// order.
	Actions   []ActionRecord
	Decisions []DecisionRecord
	Errors    []ErrorRecord

	// Window is the conversation window passed to Compact.
	Window Window

	// MaxSize is the effective context budget at snapshot time.
	MaxSize int

	// Threshold is the compaction trigger fraction at snapshot time.
	Threshold float64

	// TakenAt is when the snapshot was frozen.
	TakenAt time.Time
}

// EntriesByLayer returns the snapshot's entries for one layer, in
// insertion order.
func (s *Snapshot) EntriesByLayer(layer Layer) []MemoryEntry {
	var result []MemoryEntry
	for _, e := range s.Entries {
		if e.Layer == layer {
			result = append(result, e)
		}
	}
	return result
}

// OriginalSize is the estimated token size of everything the snapshot
// holds: memory entries, log records, and the conversation window.
func (s *Snapshot) OriginalSize() int {
	total := s.Window.TotalSize()
	for _, e := range s.Entries {
		total += EstimateSize(e.Content)
	}
	for _, a := range s.Actions {
		total += EstimateSize(a.Description)
	}
	for _, d := range s.Decisions {
		total += EstimateSize(d.Choice) + EstimateSize(d.Rationale)
	}
	for _, e := range s.Errors {
		total += EstimateSize(e.ErrorText) + EstimateSize(e.FixText)
	}
	return total
}

// HasAction reports whether an action record with the given id exists
// in the snapshot.
func (s *Snapshot) HasAction(id string) bool {
	for _, a := range s.Actions {
		if a.ID == id {
			return true
		}
	}
	return false
}
