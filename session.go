package stratum

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Session owns one memory store, one set of append-only logs, and the
// compaction machinery for a single agent session. Sessions are
// independent: they share no state and may compact concurrently with
// each other.
//
// Within a session, compaction is effectively single-threaded
// cooperative. At most one compaction runs at a time; a second Compact
// call returns [ErrCompactionInProgress]. While a compaction is in
// flight the session is frozen: events appended by the caller are
// queued and merged into the live store after the compacted snapshot,
// in the order received, never interleaved into it.
//
// Construct with [NewSession] and the With* options:
//
//	session := stratum.NewSession(cfg).
//	    WithStrategy(compaction.New(cfg)).
//	    WithTrigger(compaction.NewThresholdTrigger(cfg))
type Session struct {
	cfg       Config
	clock     Clock
	logger    *slog.Logger
	stats     *SessionStats
	ids       *idGenerator
	store     *MemoryStore
	actions   *ActionLog
	decisions *DecisionLog
	errors    *ErrorLog
	trigger   Trigger
	strategy  Strategy
	recorder  Recorder

	compacting atomic.Bool

	mu        sync.Mutex
	frozen    bool
	queue     []func()
	queuedIDs map[string]struct{}
	history   []*CompactionResult
	closed    bool
}

// NewSession creates a session with the given configuration, the
// system clock, and slog's default logger.
func NewSession(cfg Config) *Session {
	s := &Session{
		cfg:    cfg,
		logger: slog.Default(),
		stats:  NewSessionStats(),
	}
	s.initStores(SystemClock{})
	return s
}

func (s *Session) initStores(clock Clock) {
	s.clock = clock
	s.ids = newIDGenerator(clock)
	s.store = newMemoryStore(clock, s.ids)
	s.actions = newActionLog(clock, s.ids)
	s.decisions = newDecisionLog(s.ids, s.actions)
	s.errors = newErrorLog(clock, s.ids)
}

// WithClock replaces the session clock. Must be called before any
// records are added; it resets the (empty) stores so all of them share
// the new clock.
func (s *Session) WithClock(clock Clock) *Session {
	s.initStores(clock)
	return s
}

// WithLogger sets the logger used for non-fatal diagnostics.
func (s *Session) WithLogger(logger *slog.Logger) *Session {
	s.logger = logger
	return s
}

// WithTrigger sets the compaction trigger consulted by
// [Session.ShouldCompact]. Without one, the default size-threshold
// predicate is used.
func (s *Session) WithTrigger(trigger Trigger) *Session {
	s.trigger = trigger
	return s
}

// WithStrategy sets the compaction strategy used by [Session.Compact].
func (s *Session) WithStrategy(strategy Strategy) *Session {
	s.strategy = strategy
	return s
}

// WithRecorder sets the persistence recorder. Records are handed to it
// fully formed, in creation order; recorder errors are logged and never
// fail the originating operation.
func (s *Session) WithRecorder(recorder Recorder) *Session {
	s.recorder = recorder
	return s
}

// -----------------------------------------------------------------------------
// Memory and Logs
// -----------------------------------------------------------------------------

// AddMemory appends a fact to the given layer and returns its id.
// Unknown layers are rejected with [ErrInvalidLayer].
func (s *Session) AddMemory(layer Layer, content string, importance float64) (string, error) {
	if !layer.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLayer, string(layer))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	id := s.ids.Next()
	apply := func() {
		s.store.insert(id, layer, content, importance)
		s.stats.IncrCounter(KeyMemoryEntries, 1)
		s.recordEntry(id)
	}
	if s.frozen {
		s.queueLocked(id, apply)
		return id, nil
	}
	apply()
	return id, nil
}

// ResolveTask marks a TASK entry as resolved, ending its verbatim
// preservation. Returns [ErrNotFound] if the id is absent or not a
// TASK entry.
func (s *Session) ResolveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.frozen {
		if err := s.validateFrozenResolveLocked(id, LayerTask); err != nil {
			return err
		}
		s.queueLocked("", func() {
			if err := s.store.ResolveTask(id); err != nil {
				s.logger.Warn("stratum: queued task resolution failed",
					"id", id, "error", err)
			}
			s.recordEntry(id)
		})
		return nil
	}
	if err := s.store.ResolveTask(id); err != nil {
		return err
	}
	s.recordEntry(id)
	return nil
}

// LogAction appends to the action log and returns the record id.
// Returns [ErrSessionClosed] after [Session.Close].
func (s *Session) LogAction(description string, files []string, outcome Outcome) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	id := s.ids.Next()
	apply := func() {
		s.actions.insert(id, description, files, outcome)
		s.stats.IncrCounter(KeyRecordsLogged, 1)
		s.stats.IncrCounter(KeyRecordsLoggedFor+"action", 1)
		s.recordAction(id)
	}
	if s.frozen {
		s.queueLocked(id, apply)
		return id, nil
	}
	apply()
	return id, nil
}

// LogDecision appends to the decision log and returns the record id.
// Every linked action id must resolve to an existing action record;
// unknown ids are rejected with [ErrNotFound].
func (s *Session) LogDecision(choice, rationale string, linkedActionIDs []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	for _, actionID := range linkedActionIDs {
		if !s.actions.Has(actionID) && !s.queuedHasLocked(actionID) {
			return "", fmt.Errorf("%w: linked action %s", ErrNotFound, actionID)
		}
	}
	id := s.ids.Next()
	apply := func() {
		s.decisions.insert(id, choice, rationale, linkedActionIDs)
		s.stats.IncrCounter(KeyRecordsLogged, 1)
		s.stats.IncrCounter(KeyRecordsLoggedFor+"decision", 1)
		s.recordDecision(id)
	}
	if s.frozen {
		s.queueLocked(id, apply)
		return id, nil
	}
	apply()
	return id, nil
}

// LogError appends to the error log and returns the record id. The
// record is unresolved (preserved verbatim by compaction) until
// [Session.ResolveError] is called against it. Returns
// [ErrSessionClosed] after [Session.Close].
func (s *Session) LogError(errorText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	id := s.ids.Next()
	apply := func() {
		s.errors.insert(id, errorText)
		s.stats.IncrCounter(KeyRecordsLogged, 1)
		s.stats.IncrCounter(KeyRecordsLoggedFor+"error", 1)
		s.recordError(id)
	}
	if s.frozen {
		s.queueLocked(id, apply)
		return id, nil
	}
	apply()
	return id, nil
}

// ResolveError records fix text against an error record. Returns
// [ErrNotFound] for an unknown id.
func (s *Session) ResolveError(id, fixText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.frozen {
		if !s.errorExistsLocked(id) {
			return fmt.Errorf("%w: error record %s", ErrNotFound, id)
		}
		s.queueLocked("", func() {
			if err := s.errors.Resolve(id, fixText); err != nil {
				s.logger.Warn("stratum: queued error resolution failed",
					"id", id, "error", err)
			}
			s.recordError(id)
		})
		return nil
	}
	if err := s.errors.Resolve(id, fixText); err != nil {
		return err
	}
	s.recordError(id)
	return nil
}

// -----------------------------------------------------------------------------
// Compaction
// -----------------------------------------------------------------------------

// ShouldCompact reports whether compaction should run for the given
// conversation window. Side-effect free apart from updating the
// window-size gauge; safe to call after every turn. An empty
// conversation never triggers compaction.
func (s *Session) ShouldCompact(window Window) bool {
	s.stats.SetGauge(KeyWindowSize, float64(window.TotalSize()))
	if s.trigger != nil {
		return s.trigger.ShouldCompact(window, s.stats)
	}
	return ShouldCompact(window, s.cfg.EffectiveMaxSize(), s.cfg.Threshold)
}

// Compact runs one compaction cycle: freeze the session state into a
// snapshot, hand it to the configured strategy, and commit the result.
//
// Returns [ErrCompactionInProgress] if another compaction for this
// session is in flight (the session state is not altered).
// Summarizer failures never surface as errors here; they become
// [CompactionResult.Diagnostics] with trim fallback. A returned error
// ([InvariantViolationError], context cancellation) means the
// compaction aborted with the pre-compaction state intact.
//
// Events appended while Compact runs are queued and merged into the
// live session afterwards, in order; even when the compaction itself
// fails.
func (s *Session) Compact(ctx context.Context, window Window, summarizer Summarizer) (*CompactionResult, error) {
	if s.strategy == nil {
		return nil, ErrNoStrategy
	}
	if !s.compacting.CompareAndSwap(false, true) {
		return nil, ErrCompactionInProgress
	}
	defer s.compacting.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.frozen = true
	snap := s.snapshotLocked(window)
	s.mu.Unlock()

	result, err := s.strategy.Compact(ctx, snap, summarizer)

	s.mu.Lock()
	// Merge events that arrived during the frozen window, in the order
	// received. The session lock is held until the last queued event
	// is applied: an append racing the unfreeze orders after every
	// queued event, never between two of them. The merge runs
	// regardless of the compaction outcome; queued events are never
	// discarded. Apply closures take only the store/log mutexes, not
	// s.mu.
	queued := len(s.queue)
	for _, apply := range s.queue {
		apply()
	}
	s.queue = nil
	s.queuedIDs = nil
	s.frozen = false
	closed := s.closed
	if err == nil && !closed {
		s.history = append(s.history, result)
	}
	s.mu.Unlock()

	if queued > 0 {
		s.stats.IncrCounter(KeyQueuedEventsApplied, int64(queued))
		s.logger.Debug("stratum: merged queued events", "count", queued)
	}

	if err != nil {
		return nil, err
	}
	if closed {
		// Session torn down mid-compaction: discard the in-flight
		// result, commit nothing.
		return nil, ErrSessionClosed
	}

	s.stats.IncrCounter(KeyCompactions, 1)
	if n := len(result.Diagnostics); n > 0 {
		s.stats.IncrCounter(KeySummarizerFailures, int64(n))
	}
	s.stats.SetGauge(KeyLastCompressionRatio, result.CompressionRatio)
	s.stats.SetGauge(KeyLastOriginalSize, float64(result.OriginalSize))
	s.stats.SetGauge(KeyLastCompressedSize, float64(result.CompressedSize))

	if s.trigger != nil {
		s.trigger.NotifyCompacted(s.stats)
	}
	if s.recorder != nil {
		if rerr := s.recorder.RecordResult(result); rerr != nil {
			s.logger.Warn("stratum: journal write failed",
				"kind", "result", "error", rerr)
		}
	}
	return result, nil
}

// History returns the results of all committed compactions, oldest
// first.
func (s *Session) History() []*CompactionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*CompactionResult, len(s.history))
	copy(result, s.history)
	return result
}

// Close tears the session down. An outstanding compaction is
// discarded: its result is never committed and no partial record is
// written. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// Store returns the session's memory store.
func (s *Session) Store() *MemoryStore { return s.store }

// Actions returns the append-only action log.
func (s *Session) Actions() *ActionLog { return s.actions }

// Decisions returns the append-only decision log.
func (s *Session) Decisions() *DecisionLog { return s.decisions }

// Errors returns the append-only error log.
func (s *Session) Errors() *ErrorLog { return s.errors }

// Stats returns the session's stats.
func (s *Session) Stats() *SessionStats { return s.stats }

// Config returns the session's configuration.
func (s *Session) Config() Config { return s.cfg }

// -----------------------------------------------------------------------------
// Internal
// -----------------------------------------------------------------------------

func (s *Session) snapshotLocked(window Window) *Snapshot {
	w := make(Window, len(window))
	copy(w, window)
	return &Snapshot{
		Entries:   s.store.All(),
		Actions:   s.actions.All(),
		Decisions: s.decisions.All(),
		Errors:    s.errors.All(),
		Window:    w,
		MaxSize:   s.cfg.EffectiveMaxSize(),
		Threshold: s.cfg.Threshold,
		TakenAt:   s.clock.Now(),
	}
}

func (s *Session) queueLocked(id string, apply func()) {
	if id != "" {
		if s.queuedIDs == nil {
			s.queuedIDs = make(map[string]struct{})
		}
		s.queuedIDs[id] = struct{}{}
	}
	s.queue = append(s.queue, apply)
}

func (s *Session) queuedHasLocked(id string) bool {
	_, ok := s.queuedIDs[id]
	return ok
}

// validateFrozenResolveLocked checks a resolve target while frozen: the
// id must exist in the live store (with the right layer) or be queued
// for creation in this same frozen window.
func (s *Session) validateFrozenResolveLocked(id string, layer Layer) error {
	if s.store.Has(id) {
		entry, err := s.store.Get(id)
		if err != nil {
			return err
		}
		if entry.Layer != layer {
			return fmt.Errorf(
				"%w: entry %s is in layer %q, not %q",
				ErrNotFound, id, string(entry.Layer), string(layer),
			)
		}
		return nil
	}
	if s.queuedHasLocked(id) {
		return nil
	}
	return fmt.Errorf("%w: memory entry %s", ErrNotFound, id)
}

func (s *Session) errorExistsLocked(id string) bool {
	if s.queuedHasLocked(id) {
		return true
	}
	for _, r := range s.errors.All() {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) recordEntry(id string) {
	if s.recorder == nil {
		return
	}
	entry, err := s.store.Get(id)
	if err != nil {
		return
	}
	if err := s.recorder.RecordEntry(entry); err != nil {
		s.logger.Warn("stratum: journal write failed",
			"kind", "entry", "id", id, "error", err)
	}
}

func (s *Session) recordAction(id string) {
	if s.recorder == nil {
		return
	}
	for _, r := range s.actions.All() {
		if r.ID == id {
			if err := s.recorder.RecordAction(r); err != nil {
				s.logger.Warn("stratum: journal write failed",
					"kind", "action", "id", id, "error", err)
			}
			return
		}
	}
}

func (s *Session) recordDecision(id string) {
	if s.recorder == nil {
		return
	}
	for _, r := range s.decisions.All() {
		if r.ID == id {
			if err := s.recorder.RecordDecision(r); err != nil {
				s.logger.Warn("stratum: journal write failed",
					"kind", "decision", "id", id, "error", err)
			}
			return
		}
	}
}

func (s *Session) recordError(id string) {
	if s.recorder == nil {
		return
	}
	for _, r := range s.errors.All() {
		if r.ID == id {
			if err := s.recorder.RecordError(r); err != nil {
				s.logger.Warn("stratum: journal write failed",
					"kind", "error", "id", id, "error", err)
			}
			return
		}
	}
}
