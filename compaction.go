package stratum

import "context"

// Trigger decides WHEN compaction should run.
//
// The session consults the trigger in [Session.ShouldCompact], which
// callers are expected to invoke after every turn; triggers must be
// side-effect free and cheap.
//
// # Available Implementations
//
//   - compaction.NewThresholdTrigger: fires when the window's
//     estimated size reaches a fraction of the context budget
//   - compaction.NewStatThresholdTrigger: fires when stat thresholds
//     are exceeded (counter deltas or gauge absolutes)
//
// # Implementing Custom Triggers
//
//	type EveryNTurnsTrigger struct {
//	    n int
//	}
//
//	func (t *EveryNTurnsTrigger) ShouldCompact(
//	    window stratum.Window, stats *stratum.SessionStats,
//	) bool {
//	    return len(window) > 0 && len(window)%t.n == 0
//	}
type Trigger interface {
	// ShouldCompact returns true if compaction should run now. Must be
	// a pure function of the window and stats: no side effects, safe
	// to call every turn. An empty conversation never triggers.
	ShouldCompact(window Window, stats *SessionStats) bool

	// NotifyCompacted is called after a successful compaction.
	// Implementations use this to update internal state (e.g.,
	// snapshot counter values for delta-based triggers).
	NotifyCompacted(stats *SessionStats)
}

// Strategy decides HOW to compact a frozen snapshot.
//
// The session freezes its state into a [Snapshot], hands it to the
// strategy together with the injected summarizer, and commits the
// returned result. A strategy must not retain the snapshot after
// returning.
//
// # Error Handling
//
// A returned error aborts the compaction: the session's live state is
// unchanged and no result is committed. Strategies return errors only
// for fatal conditions ([InvariantViolationError], context
// cancellation); summarizer failures are recovered internally via
// trim fallback and surfaced as [CompactionResult.Diagnostics].
//
// # Available Implementations
//
//   - compaction.New: the standard layered retention compactor
type Strategy interface {
	// Compact produces a compacted representation of the snapshot.
	// summarizer may be nil, in which case summarize-eligible content
	// falls back to deterministic trimming with no diagnostic.
	Compact(ctx context.Context, snap *Snapshot, summarizer Summarizer) (*CompactionResult, error)
}

// Recorder receives completed records for persistence. Implementations
// (e.g. journal.Journal) serialize them as ordered, append-only records
// keyed by id to support audit and session recovery.
//
// Records are handed over only once fully formed; a torn-down session
// never produces partial writes. Recorder errors are logged as
// diagnostics and never fail the originating operation.
type Recorder interface {
	RecordEntry(entry MemoryEntry) error
	RecordAction(record ActionRecord) error
	RecordDecision(record DecisionRecord) error
	RecordError(record ErrorRecord) error
	RecordResult(result *CompactionResult) error
}

// ShouldCompact is the pure compaction predicate: true when the
// window's estimated size has reached threshold × maxSize. An empty
// conversation never triggers, regardless of threshold.
func ShouldCompact(window Window, maxSize int, threshold float64) bool {
	if window.Empty() || maxSize <= 0 {
		return false
	}
	return float64(window.TotalSize()) >= threshold*float64(maxSize)
}
