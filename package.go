// Package stratum is a layered session-memory compaction engine for
// long-running LLM agent sessions.
//
// An agent session accumulates conversational state without bound: facts
// about the task, decisions and their rationale, actions taken, errors hit,
// and the raw conversation itself. stratum keeps that state within a bounded
// context budget by selectively compressing it, while guaranteeing that
// specific classes of information are never lost.
//
// # The Layered Memory Model
//
// Session memory is split into seven fixed layers, each with its own
// retention policy (see [Layer]):
//
//	IDENTITY   never altered or dropped
//	TASK       preserved verbatim while unresolved
//	DECISIONS  preserved with rationale, linked to actions
//	ACTIONS    append-only; verbose output may be trimmed
//	ERRORS     preserved verbatim until a fix is recorded
//	WORKSPACE  replaced wholesale each cycle
//	CONTEXT    the only layer eligible for lossy summarization
//
// The conversation window gets a recency gradient on top of the layer
// policies: the most recent turns are kept verbatim, the next band is
// reduced to key points, and everything older is batched into a single
// summarization call.
//
// # Quick Start
//
//	cfg := stratum.DefaultConfig()
//	cfg.MaxContextSize = 100000
//
//	session := stratum.NewSession(cfg).
//	    WithStrategy(compaction.New(cfg))
//
//	session.AddMemory(stratum.LayerIdentity, "Agent: release engineer", 1.0)
//	taskID, _ := session.AddMemory(stratum.LayerTask, "Ship v2.1", 0.9)
//	actionID, _ := session.LogAction("ran test suite", []string{"Makefile"}, stratum.OutcomeSuccess)
//
//	if session.ShouldCompact(window) {
//	    result, err := session.Compact(ctx, window, summarizer)
//	    // result.CompressedText replaces the conversation history
//	}
//
// The summarizer is injected (see [Summarizer]), never owned: tests can
// substitute a deterministic stub, and production code can wrap any
// LangChainGo model with [NewLLMSummarizer]. If the summarizer fails or
// times out, compaction falls back to deterministic trimming and records a
// [SummarizerFailure] diagnostic instead of failing the session.
//
// # Guarantees
//
// Across any number of compactions:
//
//   - IDENTITY content is byte-identical before and after.
//   - No action, decision, or unresolved error ever disappears from the
//     append-only logs. Compaction only changes how a record is rendered
//     into the compacted text.
//   - Unresolved TASK entries appear verbatim in every result.
//   - Decision→action links keep resolving (no dangling references).
//
// Compaction either succeeds with a valid [CompactionResult] or fails
// cleanly with the prior state intact. A defensive invariant check runs on
// every assembled result; a violation aborts the compaction with an
// [InvariantViolationError] rather than returning a lossy result.
//
// # Concurrency Model
//
// One [Session] per agent session; sessions are independent and may compact
// concurrently with no shared state. Within a session, at most one
// compaction runs at a time (a second call returns
// [ErrCompactionInProgress]). The store is frozen for the duration of the
// summarizer call: events appended while frozen are queued and merged in
// after the compacted snapshot, in the order received, never interleaved
// into it.
package stratum
