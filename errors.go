package stratum

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. All are local, recoverable conditions: they are
// returned to the caller and never crash the session.
var (
	// ErrInvalidLayer is returned by AddMemory for a layer outside the
	// closed set. Rejected locally; never reaches compaction.
	ErrInvalidLayer = errors.New("stratum: invalid layer")

	// ErrNotFound is returned by ResolveTask/ResolveError when the id
	// is absent or belongs to the wrong layer.
	ErrNotFound = errors.New("stratum: record not found")

	// ErrCompactionInProgress is returned by Compact when another
	// compaction for the same session is in flight. Retry later or
	// await the in-flight result.
	ErrCompactionInProgress = errors.New("stratum: compaction already in progress")

	// ErrSessionClosed is returned when the session was torn down.
	// A compaction outstanding at close time is discarded: its result
	// is not committed and no partial record is written.
	ErrSessionClosed = errors.New("stratum: session closed")

	// ErrNoStrategy is returned by Compact when no compaction strategy
	// has been configured on the session.
	ErrNoStrategy = errors.New("stratum: no compaction strategy configured")
)

// InvariantViolationError reports that a defensively checked invariant
// failed on an assembled compaction result. This should never occur
// given the algorithm; when it does it is fatal for that compaction.
// The compaction aborts and the pre-compaction state is left unchanged;
// a result that violates invariants is never returned.
type InvariantViolationError struct {
	// Invariant names the violated invariant, e.g.
	// "identity byte-identical" or "decision links resolve".
	Invariant string

	// RecordID is the offending entry or record id, if one exists.
	RecordID string

	// Diff is a unified diff of expected vs. actual content, when the
	// violation is a content mismatch. Empty otherwise.
	Diff string
}

func (e *InvariantViolationError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf(
			"stratum: invariant violation (%s) on record %s",
			e.Invariant, e.RecordID,
		)
	}
	return fmt.Sprintf("stratum: invariant violation (%s)", e.Invariant)
}

// SummarizerFailure is a non-fatal diagnostic recorded when the external
// summarizer failed or timed out. The affected batch falls back to
// deterministic trimming instead of being lost; the failure is surfaced
// on the [CompactionResult] and counted in stats, never propagated as an
// error.
type SummarizerFailure struct {
	// Batch labels the content batch whose summarization failed,
	// e.g. "context+turns".
	Batch string

	// Reason is the summarizer error text.
	Reason string

	// OccurredAt is when the failure happened.
	OccurredAt time.Time
}
