package compaction

import "github.com/rickchristie/stratum"

// turnBands is the recency-gradient classification of a conversation
// window: the newest turns keep full detail, a middle band is reduced
// to key points, and everything older is batched for summarization.
type turnBands struct {
	older  stratum.Window // summarize, batched into one call
	mid    stratum.Window // trim to key points
	recent stratum.Window // keep verbatim
}

// classifyTurns splits a window into recency bands. keepVerbatim is
// how many of the newest turns keep full detail; keyPoint is the total
// recency band (counted from the end) reduced to key points rather
// than summarized.
func classifyTurns(w stratum.Window, keepVerbatim, keyPoint int) turnBands {
	n := len(w)
	verbatimStart := n - keepVerbatim
	if verbatimStart < 0 {
		verbatimStart = 0
	}
	midStart := n - keyPoint
	if midStart < 0 {
		midStart = 0
	}
	if midStart > verbatimStart {
		midStart = verbatimStart
	}
	return turnBands{
		older:  w[:midStart],
		mid:    w[midStart:verbatimStart],
		recent: w[verbatimStart:],
	}
}

// retentionFor returns the retention action for a memory entry. The
// layer's policy is authoritative; importance is advisory metadata and
// never overrides it.
func retentionFor(entry stratum.MemoryEntry) stratum.RetentionAction {
	return entry.Layer.Policy()
}

// latestWorkspace picks the newest WORKSPACE entry; earlier snapshots
// are superseded wholesale.
func latestWorkspace(entries []stratum.MemoryEntry) (stratum.MemoryEntry, []stratum.MemoryEntry) {
	if len(entries) == 0 {
		return stratum.MemoryEntry{}, nil
	}
	latest := entries[len(entries)-1]
	stale := entries[:len(entries)-1]
	return latest, stale
}
