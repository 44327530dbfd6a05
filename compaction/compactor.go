package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rickchristie/stratum"
)

// Compactor is the standard layered retention strategy. For each layer
// it applies the layer's policy from the retention table; conversation
// turns get the recency gradient on top. Content destined for
// summarization (CONTEXT entries and turns older than the key-point
// band) is batched into a single summarizer call to amortize the
// external round trip.
//
// # Failure Recovery
//
// If the summarizer call fails or times out, the batch falls back to
// deterministic middle-trimming and a [stratum.SummarizerFailure]
// diagnostic is recorded on the result. Summarizer failure is never
// fatal to a compaction.
//
// # Idempotence
//
// When the snapshot is already below the compaction threshold and
// nothing is eligible for summarization, Compact renders everything
// verbatim and reports a compression ratio of 1.0. Compacting an
// already-compacted session is a no-op.
//
// # Invariant Checking
//
// Every assembled result is re-validated before being returned:
// IDENTITY content byte-identical, unresolved TASK and ERROR content
// present verbatim, every action and decision preserved, decision
// links resolving. A violation aborts with a
// [stratum.InvariantViolationError] instead of returning a lossy
// result.
//
// # Example
//
//	strategy := compaction.New(cfg).
//	    WithClock(clock).
//	    WithStats(session.Stats())
type Compactor struct {
	cfg    stratum.Config
	clock  stratum.Clock
	logger *slog.Logger
	stats  *stratum.SessionStats
}

// New creates a Compactor with the given configuration, the system
// clock, and slog's default logger.
func New(cfg stratum.Config) *Compactor {
	return &Compactor{
		cfg:    cfg,
		clock:  stratum.SystemClock{},
		logger: slog.Default(),
	}
}

// WithClock sets the clock used for result timestamps.
func (c *Compactor) WithClock(clock stratum.Clock) *Compactor {
	c.clock = clock
	return c
}

// WithLogger sets the logger used for non-fatal diagnostics.
func (c *Compactor) WithLogger(logger *slog.Logger) *Compactor {
	c.logger = logger
	return c
}

// WithStats sets the stats instance on which summarizer calls are
// counted. Optional.
func (c *Compactor) WithStats(stats *stratum.SessionStats) *Compactor {
	c.stats = stats
	return c
}

// Compact implements stratum.Strategy.
func (c *Compactor) Compact(
	ctx context.Context,
	snap *stratum.Snapshot,
	summarizer stratum.Summarizer,
) (*stratum.CompactionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compaction aborted: %w", err)
	}

	originalSize := snap.OriginalSize()
	bands := classifyTurns(snap.Window, c.cfg.KeepVerbatimTurns, c.cfg.KeyPointTurns)
	contextEntries := snap.EntriesByLayer(stratum.LayerContext)

	belowThreshold := !stratum.ShouldCompact(snap.Window, snap.MaxSize, snap.Threshold)
	nothingToSummarize := len(bands.older) == 0 && len(contextEntries) == 0
	if belowThreshold && nothingToSummarize {
		asm, result := c.noOpResult(snap, originalSize)
		// The defensive re-check runs on every returned result, the
		// no-op path included.
		if err := c.validate(snap, asm, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	asm := newAssembly()
	c.renderIdentity(asm, snap)
	c.renderTasks(asm, snap)
	c.renderErrors(asm, snap)
	c.renderDecisions(asm, snap)
	c.renderActions(asm, snap)
	c.renderWorkspace(asm, snap)
	c.renderContext(ctx, asm, snap, bands, contextEntries, summarizer)

	result := asm.finish(originalSize, c.clock.Now())
	if err := c.validate(snap, asm, result); err != nil {
		return nil, err
	}
	return result, nil
}

// noOpResult renders the snapshot without trims or summaries and
// reports ratio 1.0: everything was preserved.
func (c *Compactor) noOpResult(snap *stratum.Snapshot, originalSize int) (*assembly, *stratum.CompactionResult) {
	asm := newAssembly()
	for _, layer := range stratum.AssemblyOrder {
		entries := snap.EntriesByLayer(layer)
		for _, e := range entries {
			asm.writeBlock(e.Content)
			asm.preserve(e.ID)
		}
		if layer == stratum.LayerIdentity {
			asm.identity = append(asm.identity, entries...)
		}
	}
	for _, a := range snap.Actions {
		asm.writeBlock(a.Description)
		asm.preserve(a.ID)
	}
	for _, d := range snap.Decisions {
		asm.writeBlock(d.Choice)
		asm.preserve(d.ID)
	}
	for _, e := range snap.Errors {
		asm.writeBlock(e.ErrorText)
		asm.preserve(e.ID)
	}
	for _, t := range snap.Window {
		asm.writeBlock(fmt.Sprintf("%s: %s", t.Role, t.Text))
	}

	result := asm.finish(originalSize, c.clock.Now())
	result.CompressionRatio = 1.0
	result.CompressedSize = originalSize
	return asm, result
}

// -----------------------------------------------------------------------------
// Layer Rendering
// -----------------------------------------------------------------------------

func (c *Compactor) renderIdentity(asm *assembly, snap *stratum.Snapshot) {
	entries := snap.EntriesByLayer(stratum.LayerIdentity)
	if len(entries) == 0 {
		return
	}
	asm.startSection("IDENTITY")
	for _, e := range entries {
		// Never altered or dropped: byte-for-byte.
		asm.writeBlock(e.Content)
		asm.preserve(e.ID)
	}
	asm.identity = append(asm.identity, entries...)
}

func (c *Compactor) renderTasks(asm *assembly, snap *stratum.Snapshot) {
	entries := snap.EntriesByLayer(stratum.LayerTask)
	if len(entries) == 0 {
		return
	}
	asm.startSection("TASK")
	for _, e := range entries {
		if e.Resolved {
			asm.writeBlock("[resolved] " + TrimMiddle(e.Content, c.cfg.TrimHead, c.cfg.TrimTail))
		} else {
			asm.writeBlock(e.Content)
		}
		asm.preserve(e.ID)
	}
}

func (c *Compactor) renderErrors(asm *assembly, snap *stratum.Snapshot) {
	if len(snap.Errors) == 0 {
		return
	}
	asm.startSection("ERRORS")
	for _, r := range snap.Errors {
		if r.Resolved() {
			asm.writeBlock(fmt.Sprintf(
				"[fixed] %s\n  fix: %s",
				TrimMiddle(r.ErrorText, c.cfg.TrimHead, c.cfg.TrimTail),
				TrimMiddle(r.FixText, c.cfg.TrimHead, c.cfg.TrimTail),
			))
		} else {
			asm.writeBlock(r.ErrorText)
		}
		asm.preserve(r.ID)
	}
}

func (c *Compactor) renderDecisions(asm *assembly, snap *stratum.Snapshot) {
	if len(snap.Decisions) == 0 {
		return
	}
	asm.startSection("DECISIONS")
	for _, d := range snap.Decisions {
		block := d.Choice
		if d.Rationale != "" {
			block += "\n  rationale: " + d.Rationale
		}
		if len(d.LinkedActionIDs) > 0 {
			block += "\n  actions: " + strings.Join(d.LinkedActionIDs, ", ")
		}
		asm.writeBlock(block)
		asm.preserve(d.ID)
	}
}

func (c *Compactor) renderActions(asm *assembly, snap *stratum.Snapshot) {
	if len(snap.Actions) == 0 {
		return
	}
	asm.startSection("ACTIONS")
	for _, a := range snap.Actions {
		line := fmt.Sprintf(
			"[%s] %s -> %s",
			a.CreatedAt.Format(time.RFC3339),
			TrimMiddle(a.Description, c.cfg.TrimHead, c.cfg.TrimTail),
			a.Outcome,
		)
		if len(a.Files) > 0 {
			line += "\n  files: " + strings.Join(a.Files, ", ")
		}
		asm.writeBlock(line)
		asm.preserve(a.ID)
	}
}

func (c *Compactor) renderWorkspace(asm *assembly, snap *stratum.Snapshot) {
	entries := snap.EntriesByLayer(stratum.LayerWorkspace)
	if len(entries) == 0 {
		return
	}
	latest, stale := latestWorkspace(entries)
	asm.startSection("WORKSPACE")
	asm.writeBlock(latest.Content)
	asm.preserve(latest.ID)
	for _, e := range stale {
		asm.drop(e.ID)
	}
}

// renderContext handles the lossy tail: CONTEXT entries plus
// summarize-eligible old turns are batched into one summarizer call,
// the key-point band is trimmed, the recent band is verbatim.
func (c *Compactor) renderContext(
	ctx context.Context,
	asm *assembly,
	snap *stratum.Snapshot,
	bands turnBands,
	contextEntries []stratum.MemoryEntry,
	summarizer stratum.Summarizer,
) {
	if len(contextEntries) == 0 && len(snap.Window) == 0 {
		return
	}
	asm.startSection("CONTEXT")

	if len(contextEntries) > 0 || len(bands.older) > 0 {
		batch := buildBatch(contextEntries, bands.older)
		summary, failure := c.summarizeBatch(ctx, batch, summarizer)
		asm.writeBlock(fmt.Sprintf(
			"Summary of %d earlier turns and %d context entries:\n%s",
			len(bands.older), len(contextEntries), summary,
		))
		if failure != nil {
			asm.diagnostics = append(asm.diagnostics, *failure)
		}
		for _, e := range contextEntries {
			asm.drop(e.ID)
		}
	}

	for _, t := range bands.mid {
		asm.writeBlock(fmt.Sprintf(
			"[%d] %s: %s",
			t.Index, t.Role, KeyPoints(t.Text, c.cfg.TrimHead),
		))
	}
	for _, t := range bands.recent {
		asm.writeBlock(fmt.Sprintf("[%d] %s: %s", t.Index, t.Role, t.Text))
	}
}

// summarizeBatch runs one summarizer call under the configured timeout.
// Any failure falls back to deterministic trimming; the content is
// never lost and the error is never propagated.
func (c *Compactor) summarizeBatch(
	ctx context.Context,
	batch string,
	summarizer stratum.Summarizer,
) (string, *stratum.SummarizerFailure) {
	if summarizer == nil {
		// Rule-based fallback: no summarizer configured, trim
		// deterministically without recording a diagnostic.
		return TrimMiddle(batch, c.cfg.TrimHead, c.cfg.TrimTail), nil
	}

	callCtx := ctx
	if c.cfg.SummarizerTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.SummarizerTimeout)
		defer cancel()
	}

	if c.stats != nil {
		c.stats.IncrCounter(stratum.KeySummarizerCalls, 1)
	}
	summary, err := summarizer.Summarize(callCtx, batch)
	if err != nil {
		c.logger.Warn("stratum: summarizer failed, falling back to trim",
			"error", err)
		return TrimMiddle(batch, c.cfg.TrimHead, c.cfg.TrimTail), &stratum.SummarizerFailure{
			Batch:      "context+turns",
			Reason:     err.Error(),
			OccurredAt: c.clock.Now(),
		}
	}
	return summary, nil
}

// buildBatch concatenates summarize-eligible content into the text
// handed to one summarizer call.
func buildBatch(entries []stratum.MemoryEntry, older stratum.Window) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Content)
		sb.WriteString("\n\n")
	}
	for _, t := range older {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", t.Index, t.Role, t.Text)
	}
	return strings.TrimSpace(sb.String())
}

// -----------------------------------------------------------------------------
// Invariant Validation
// -----------------------------------------------------------------------------

// validate re-checks the core invariants against the assembled result.
// The algorithm should make violations impossible; the check is
// defensive, and a failure aborts the compaction rather than returning
// a lossy result.
func (c *Compactor) validate(
	snap *stratum.Snapshot,
	asm *assembly,
	result *stratum.CompactionResult,
) error {
	text := result.CompressedText

	// 1. IDENTITY entries byte-identical.
	for _, e := range asm.identity {
		if !strings.Contains(text, e.Content) {
			return &stratum.InvariantViolationError{
				Invariant: "identity preserved byte-identical",
				RecordID:  e.ID,
				Diff:      unifiedDiff(e.Content, text),
			}
		}
	}

	// 2. No action or decision record disappears from the rendering.
	preserved := make(map[string]struct{}, len(result.PreservedIDs))
	for _, id := range result.PreservedIDs {
		preserved[id] = struct{}{}
	}
	for _, a := range snap.Actions {
		if _, ok := preserved[a.ID]; !ok {
			return &stratum.InvariantViolationError{
				Invariant: "action records never dropped",
				RecordID:  a.ID,
			}
		}
	}
	for _, d := range snap.Decisions {
		if _, ok := preserved[d.ID]; !ok {
			return &stratum.InvariantViolationError{
				Invariant: "decision records never dropped",
				RecordID:  d.ID,
			}
		}
	}

	// 3. Unresolved TASK entries and ERROR records present verbatim.
	for _, e := range snap.EntriesByLayer(stratum.LayerTask) {
		if !e.Resolved && !strings.Contains(text, e.Content) {
			return &stratum.InvariantViolationError{
				Invariant: "unresolved task preserved verbatim",
				RecordID:  e.ID,
				Diff:      unifiedDiff(e.Content, text),
			}
		}
	}
	for _, r := range snap.Errors {
		if !r.Resolved() && !strings.Contains(text, r.ErrorText) {
			return &stratum.InvariantViolationError{
				Invariant: "unresolved error preserved verbatim",
				RecordID:  r.ID,
				Diff:      unifiedDiff(r.ErrorText, text),
			}
		}
	}

	// 4. Decision links resolve to existing action records.
	for _, d := range snap.Decisions {
		for _, actionID := range d.LinkedActionIDs {
			if !snap.HasAction(actionID) {
				return &stratum.InvariantViolationError{
					Invariant: "decision links resolve",
					RecordID:  d.ID,
				}
			}
		}
	}

	return nil
}

// unifiedDiff renders expected-vs-actual content for invariant
// violation reports.
func unifiedDiff(expected, actual string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "compacted",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}

// -----------------------------------------------------------------------------
// Assembly
// -----------------------------------------------------------------------------

// assembly accumulates the compacted text and id bookkeeping while
// layers render in the fixed order.
type assembly struct {
	sb          strings.Builder
	preserved   []string
	dropped     []string
	identity    []stratum.MemoryEntry
	diagnostics []stratum.SummarizerFailure
}

func newAssembly() *assembly {
	return &assembly{}
}

func (a *assembly) startSection(name string) {
	if a.sb.Len() > 0 {
		a.sb.WriteString("\n")
	}
	a.sb.WriteString("## " + name + "\n\n")
}

func (a *assembly) writeBlock(text string) {
	a.sb.WriteString(text)
	a.sb.WriteString("\n\n")
}

func (a *assembly) preserve(id string) {
	a.preserved = append(a.preserved, id)
}

func (a *assembly) drop(id string) {
	a.dropped = append(a.dropped, id)
}

func (a *assembly) finish(originalSize int, producedAt time.Time) *stratum.CompactionResult {
	text := a.sb.String()
	compressedSize := stratum.EstimateSize(text)

	ratio := 1.0
	if originalSize > 0 {
		ratio = float64(compressedSize) / float64(originalSize)
		if ratio > 1 {
			ratio = 1
		}
	}

	sort.Strings(a.preserved)
	sort.Strings(a.dropped)
	return &stratum.CompactionResult{
		CompressedText:   text,
		CompressionRatio: ratio,
		OriginalSize:     originalSize,
		CompressedSize:   compressedSize,
		PreservedIDs:     a.preserved,
		DroppedIDs:       a.dropped,
		Diagnostics:      a.diagnostics,
		ProducedAt:       producedAt,
	}
}

// Compile-time check.
var _ stratum.Strategy = (*Compactor)(nil)
