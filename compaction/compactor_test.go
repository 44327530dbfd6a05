package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/stratum"
	"github.com/rickchristie/stratum/internal/tt"
)

func compactorConfig() stratum.Config {
	cfg := stratum.DefaultConfig()
	cfg.MaxContextSize = 100
	return cfg
}

// longWindow builds n turns with unique, zero-padded markers so
// substring assertions cannot match across turns.
func longWindow(n int) stratum.Window {
	w := make(stratum.Window, n)
	for i := range w {
		w[i] = stratum.NewTurn(i, "user", fmt.Sprintf("turn-%02d content", i))
	}
	return w
}

func snapshotOf(cfg stratum.Config, window stratum.Window) *stratum.Snapshot {
	return &stratum.Snapshot{
		Window:    window,
		MaxSize:   cfg.EffectiveMaxSize(),
		Threshold: cfg.Threshold,
		TakenAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCompactor_RecencyGradient(t *testing.T) {
	cfg := compactorConfig()
	summarizer := tt.NewMockSummarizer().AddResponse("SUMMARY-OF-OLDER-TURNS")
	compactor := New(cfg)

	snap := snapshotOf(cfg, longWindow(15))
	snap.Entries = []stratum.MemoryEntry{
		{ID: "id-1", Layer: stratum.LayerIdentity, Content: "You are a Go refactoring assistant."},
		{ID: "id-2", Layer: stratum.LayerTask, Content: "Build feature X end to end."},
		{ID: "id-3", Layer: stratum.LayerContext, Content: "the repo splits config per environment"},
	}

	result, err := compactor.Compact(context.Background(), snap, summarizer)
	require.NoError(t, err)

	text := result.CompressedText

	// Unresolved task: verbatim.
	assert.Contains(t, text, "Build feature X end to end.")

	// Last 3 turns: full detail.
	assert.Contains(t, text, "turn-12 content")
	assert.Contains(t, text, "turn-13 content")
	assert.Contains(t, text, "turn-14 content")

	// Turns older than the key point band: folded into the summary.
	assert.NotContains(t, text, "turn-00 content")
	assert.NotContains(t, text, "turn-04 content")
	assert.Contains(t, text, "SUMMARY-OF-OLDER-TURNS")

	// One batched summarizer call carrying the old turns and the
	// CONTEXT entries.
	require.Equal(t, 1, summarizer.CallCount())
	batch := summarizer.Captured[0]
	assert.Contains(t, batch, "turn-00 content")
	assert.Contains(t, batch, "turn-04 content")
	assert.Contains(t, batch, "the repo splits config per environment")
	assert.NotContains(t, batch, "turn-12 content")

	// Context entries fold into the lossy summary.
	assert.Contains(t, result.DroppedIDs, "id-3")
	assert.Contains(t, result.PreservedIDs, "id-1")
	assert.Contains(t, result.PreservedIDs, "id-2")

	assert.Greater(t, result.CompressionRatio, 0.0)
	assert.LessOrEqual(t, result.CompressionRatio, 1.0)
	assert.False(t, result.NoOp())
}

func TestCompactor_SummarizerFailureFallsBackToTrim(t *testing.T) {
	type input struct {
		summarizer stratum.Summarizer
	}

	tests := []struct {
		name  string
		input input
	}{
		{
			name: "summarizer error",
			input: input{
				summarizer: tt.NewMockSummarizer().AddError(errors.New("model unavailable")),
			},
		},
		{
			name: "summarizer timeout",
			input: input{
				summarizer: tt.NewMockSummarizer().WithDelay(time.Second),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := compactorConfig()
			cfg.SummarizerTimeout = 20 * time.Millisecond
			compactor := New(cfg)

			snap := snapshotOf(cfg, longWindow(15))
			snap.Entries = []stratum.MemoryEntry{
				{ID: "id-1", Layer: stratum.LayerTask, Content: "Build feature X."},
			}

			result, err := compactor.Compact(context.Background(), snap, tc.input.summarizer)
			require.NoError(t, err, "summarizer failure must never fail the compaction")

			// The batch fell back to deterministic trimming: old turn
			// content survives instead of being lost.
			assert.Contains(t, result.CompressedText, "turn-00 content")
			assert.Contains(t, result.CompressedText, "Build feature X.")

			require.Len(t, result.Diagnostics, 1)
			assert.Equal(t, "context+turns", result.Diagnostics[0].Batch)
			assert.NotEmpty(t, result.Diagnostics[0].Reason)
		})
	}
}

func TestCompactor_NilSummarizerTrimsWithoutDiagnostic(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	snap := snapshotOf(cfg, longWindow(15))

	result, err := compactor.Compact(context.Background(), snap, nil)
	require.NoError(t, err)

	assert.Contains(t, result.CompressedText, "turn-00 content")
	assert.Empty(t, result.Diagnostics)
}

func TestCompactor_Idempotence(t *testing.T) {
	cfg := compactorConfig()
	summarizer := tt.NewMockSummarizer()
	compactor := New(cfg)

	// Small window below threshold, nothing summarize-eligible.
	snap := snapshotOf(cfg, longWindow(2))
	snap.Entries = []stratum.MemoryEntry{
		{ID: "id-1", Layer: stratum.LayerIdentity, Content: "You are an assistant."},
	}

	result, err := compactor.Compact(context.Background(), snap, summarizer)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.CompressionRatio)
	assert.True(t, result.NoOp())
	assert.Empty(t, result.DroppedIDs)
	assert.Contains(t, result.CompressedText, "You are an assistant.")
	assert.Contains(t, result.CompressedText, "turn-01 content")
	assert.Equal(t, 0, summarizer.CallCount())
}

func TestCompactor_EmptySnapshotIsNoOp(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	result, err := compactor.Compact(context.Background(), snapshotOf(cfg, nil), nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.CompressionRatio)
	assert.True(t, result.NoOp())
}

func TestCompactor_IdentityStableAcrossRepeatedCompactions(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	identity := "You are a code review assistant. Never push to main."
	snap := snapshotOf(cfg, longWindow(15))
	snap.Entries = []stratum.MemoryEntry{
		{ID: "id-1", Layer: stratum.LayerIdentity, Content: identity},
	}

	for i := 0; i < 5; i++ {
		summarizer := tt.NewMockSummarizer().AddResponse(fmt.Sprintf("summary %d", i))
		result, err := compactor.Compact(context.Background(), snap, summarizer)
		require.NoError(t, err)
		assert.Contains(t, result.CompressedText, identity,
			"identity must survive compaction %d byte-identical", i)
	}
}

func TestCompactor_WorkspaceKeepsOnlyLatestSnapshot(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	snap := snapshotOf(cfg, longWindow(15))
	snap.Entries = []stratum.MemoryEntry{
		{ID: "ws-1", Layer: stratum.LayerWorkspace, Content: "branch main, clean tree"},
		{ID: "ws-2", Layer: stratum.LayerWorkspace, Content: "branch feature/auth, 3 modified files"},
	}

	result, err := compactor.Compact(context.Background(), snap, nil)
	require.NoError(t, err)

	assert.Contains(t, result.CompressedText, "branch feature/auth, 3 modified files")
	assert.NotContains(t, result.CompressedText, "branch main, clean tree")
	assert.Contains(t, result.PreservedIDs, "ws-2")
	assert.Contains(t, result.DroppedIDs, "ws-1")
}

func TestCompactor_ErrorRetention(t *testing.T) {
	cfg := compactorConfig()
	cfg.TrimHead = 40
	cfg.TrimTail = 20
	compactor := New(cfg)

	longError := "panic: runtime error: index out of range [5] with length 3\n" +
		strings.Repeat("goroutine stack frame filler ", 20)

	snap := snapshotOf(cfg, longWindow(15))
	snap.Errors = []stratum.ErrorRecord{
		{ID: "err-1", ErrorText: longError},
		{ID: "err-2", ErrorText: "connection refused on :5432", FixText: "started the container"},
	}

	result, err := compactor.Compact(context.Background(), snap, nil)
	require.NoError(t, err)

	// Unresolved: verbatim, however long.
	assert.Contains(t, result.CompressedText, longError)

	// Resolved: marked and trimmed.
	assert.Contains(t, result.CompressedText, "[fixed]")
	assert.Contains(t, result.CompressedText, "started the container")
	assert.Contains(t, result.PreservedIDs, "err-1")
	assert.Contains(t, result.PreservedIDs, "err-2")
}

func TestCompactor_ResolvedTaskIsMarkedAndTrimmed(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	snap := snapshotOf(cfg, longWindow(15))
	snap.Entries = []stratum.MemoryEntry{
		{ID: "task-1", Layer: stratum.LayerTask, Content: "Migrate the billing tables.", Resolved: true},
	}

	result, err := compactor.Compact(context.Background(), snap, nil)
	require.NoError(t, err)

	assert.Contains(t, result.CompressedText, "[resolved] Migrate the billing tables.")
}

func TestCompactor_ActionsAndDecisionsRender(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	snap := snapshotOf(cfg, longWindow(15))
	snap.Actions = []stratum.ActionRecord{
		{
			ID:          "act-1",
			Description: "rewrote the auth middleware",
			Files:       []string{"auth.go", "middleware.go"},
			Outcome:     stratum.OutcomeSuccess,
			CreatedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	snap.Decisions = []stratum.DecisionRecord{
		{
			ID:              "dec-1",
			Choice:          "middleware over per-handler checks",
			Rationale:       "single enforcement point",
			LinkedActionIDs: []string{"act-1"},
		},
	}

	result, err := compactor.Compact(context.Background(), snap, nil)
	require.NoError(t, err)

	text := result.CompressedText
	assert.Contains(t, text, "rewrote the auth middleware")
	assert.Contains(t, text, "auth.go, middleware.go")
	assert.Contains(t, text, "middleware over per-handler checks")
	assert.Contains(t, text, "single enforcement point")
	assert.Contains(t, text, "act-1")
	assert.Contains(t, result.PreservedIDs, "act-1")
	assert.Contains(t, result.PreservedIDs, "dec-1")
}

func TestCompactor_DanglingDecisionLinkIsInvariantViolation(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	snap := snapshotOf(cfg, longWindow(15))
	snap.Decisions = []stratum.DecisionRecord{
		{ID: "dec-1", Choice: "a choice", LinkedActionIDs: []string{"act-missing"}},
	}

	_, err := compactor.Compact(context.Background(), snap, nil)

	var violation *stratum.InvariantViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "decision links resolve", violation.Invariant)
	assert.Equal(t, "dec-1", violation.RecordID)
}

func TestCompactor_NoOpPathStillValidates(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	// Two turns: below threshold and nothing to summarize, so the
	// no-op path is taken. The invariant re-check runs there too.
	snap := snapshotOf(cfg, longWindow(2))
	snap.Decisions = []stratum.DecisionRecord{
		{ID: "dec-1", Choice: "a choice", LinkedActionIDs: []string{"act-missing"}},
	}

	_, err := compactor.Compact(context.Background(), snap, nil)

	var violation *stratum.InvariantViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "decision links resolve", violation.Invariant)
	assert.Equal(t, "dec-1", violation.RecordID)
}

func TestCompactor_CancelledContextAborts(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := compactor.Compact(ctx, snapshotOf(cfg, longWindow(15)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompactor_SectionOrderFollowsAssemblyOrder(t *testing.T) {
	cfg := compactorConfig()
	compactor := New(cfg)

	snap := snapshotOf(cfg, longWindow(15))
	snap.Entries = []stratum.MemoryEntry{
		{ID: "id-1", Layer: stratum.LayerIdentity, Content: "identity content"},
		{ID: "id-2", Layer: stratum.LayerTask, Content: "task content"},
		{ID: "id-3", Layer: stratum.LayerWorkspace, Content: "workspace content"},
	}
	snap.Errors = []stratum.ErrorRecord{{ID: "err-1", ErrorText: "error content"}}

	result, err := compactor.Compact(context.Background(), snap, nil)
	require.NoError(t, err)

	text := result.CompressedText
	idxIdentity := strings.Index(text, "## IDENTITY")
	idxTask := strings.Index(text, "## TASK")
	idxErrors := strings.Index(text, "## ERRORS")
	idxWorkspace := strings.Index(text, "## WORKSPACE")
	idxContext := strings.Index(text, "## CONTEXT")

	require.NotEqual(t, -1, idxIdentity)
	assert.Less(t, idxIdentity, idxTask)
	assert.Less(t, idxTask, idxErrors)
	assert.Less(t, idxErrors, idxWorkspace)
	assert.Less(t, idxWorkspace, idxContext)
}

func TestCompactor_StatsCountSummarizerCalls(t *testing.T) {
	cfg := compactorConfig()
	stats := stratum.NewSessionStats()
	compactor := New(cfg).WithStats(stats)

	_, err := compactor.Compact(
		context.Background(),
		snapshotOf(cfg, longWindow(15)),
		tt.NewMockSummarizer().AddResponse("summary"),
	)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.GetCounter(stratum.KeySummarizerCalls))
}
