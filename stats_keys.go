package stratum

// StatKey identifies a counter or gauge in [SessionStats].
type StatKey string

// Standard key prefix for all stratum library keys. Users should use
// their own prefix (e.g., "myapp:") for custom metrics to avoid
// collisions with stratum's standard keys.
const KeyPrefix = "stratum:"

// Counter keys. Counters are monotonically non-decreasing.
const (
	// KeyCompactions counts completed compactions.
	KeyCompactions StatKey = "stratum:compactions"

	// KeySummarizerCalls counts calls made to the injected summarizer.
	KeySummarizerCalls StatKey = "stratum:summarizer_calls"

	// KeySummarizerFailures counts summarizer calls that failed or
	// timed out and fell back to trimming.
	KeySummarizerFailures StatKey = "stratum:summarizer_failures"

	// KeyQueuedEventsApplied counts events that arrived during a
	// frozen compaction window and were merged in afterwards.
	KeyQueuedEventsApplied StatKey = "stratum:queued_events_applied"

	// KeyMemoryEntries counts memory entries added.
	KeyMemoryEntries StatKey = "stratum:memory_entries"

	// KeyRecordsLogged counts action, decision, and error records
	// appended. Per-kind counterparts use the KeyRecordsLoggedFor
	// prefix plus the record kind.
	KeyRecordsLogged    StatKey = "stratum:records_logged"
	KeyRecordsLoggedFor StatKey = "stratum:records_logged:" // + "action" | "decision" | "error"
)

// Gauge keys. Gauges can go up and down.
const (
	// KeyLastCompressionRatio is the compression ratio of the most
	// recent compaction, in (0, 1].
	KeyLastCompressionRatio StatKey = "stratum:last_compression_ratio"

	// KeyLastOriginalSize and KeyLastCompressedSize are the size
	// estimates on either side of the most recent compaction.
	KeyLastOriginalSize   StatKey = "stratum:last_original_size"
	KeyLastCompressedSize StatKey = "stratum:last_compressed_size"

	// KeyWindowSize is the estimated size of the conversation window
	// at the last ShouldCompact check.
	KeyWindowSize StatKey = "stratum:window_size"
)

// HasPrefix reports whether the key starts with the given prefix key.
func (k StatKey) HasPrefix(prefix StatKey) bool {
	return len(k) >= len(prefix) && k[:len(prefix)] == prefix
}
