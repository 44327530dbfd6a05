package stratum

import "time"

// CompactionResult is the output of one compaction cycle: the compacted
// representation of session memory plus metrics about what happened to
// each piece of content.
type CompactionResult struct {
	// CompressedText is the compacted representation, assembled in the
	// fixed layer order (IDENTITY, TASK, ERRORS, DECISIONS, ACTIONS,
	// WORKSPACE, CONTEXT/turns).
	CompressedText string

	// CompressionRatio is compressed size / original size, clamped to
	// (0, 1]. A no-op compaction reports 1.0.
	CompressionRatio float64

	// OriginalSize and CompressedSize are the estimated token sizes on
	// either side of compaction.
	OriginalSize   int
	CompressedSize int

	// PreservedIDs are the entry/record ids whose content survived
	// into the compacted text verbatim or trimmed. Sorted.
	PreservedIDs []string

	// DroppedIDs are the entry ids whose content was folded into a
	// lossy summary, or replaced by a newer snapshot (WORKSPACE).
	// Dropped means dropped from the compacted rendering only; the
	// underlying stores and logs keep every record. Sorted.
	DroppedIDs []string

	// Diagnostics holds non-fatal summarizer failures recovered during
	// this compaction.
	Diagnostics []SummarizerFailure

	// ProducedAt is when the result was assembled.
	ProducedAt time.Time
}

// NoOp reports whether this result was an idempotent no-op (nothing was
// eligible for compaction).
func (r *CompactionResult) NoOp() bool {
	return r.CompressionRatio == 1.0 && len(r.DroppedIDs) == 0
}
