package stratum

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Outcome is the result classification of an action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// ActionRecord is one entry in the append-only action log: a factual
// record of something the agent did.
type ActionRecord struct {
	ID          string
	Description string

	// Files is the set of paths the action touched, stored sorted and
	// deduplicated.
	Files []string

	Outcome   Outcome
	CreatedAt time.Time
}

// DecisionRecord captures a significant decision and why it was made.
// LinkedActionIDs reference [ActionRecord] ids; the links are validated
// at append time and re-validated across compaction, so they never
// dangle.
type DecisionRecord struct {
	ID              string
	Choice          string
	Rationale       string
	LinkedActionIDs []string
}

// ErrorRecord is one entry in the append-only error log. A record with
// no FixText is unresolved and is preserved verbatim by compaction until
// a fix is recorded.
type ErrorRecord struct {
	ID        string
	ErrorText string
	FixText   string
	CreatedAt time.Time
}

// Resolved reports whether a fix has been recorded for this error.
func (r ErrorRecord) Resolved() bool {
	return r.FixText != ""
}

// ActionLog is the append-only log of actions. There is no delete
// operation: compaction may change how a record renders into the
// compacted text, never remove it. The log persists independently of
// compacted output, enabling later audit and recovery.
type ActionLog struct {
	mu      sync.RWMutex
	clock   Clock
	ids     *idGenerator
	records []ActionRecord
	byID    map[string]struct{}
}

// NewActionLog creates an empty action log.
func NewActionLog(clock Clock) *ActionLog {
	return newActionLog(clock, newIDGenerator(clock))
}

func newActionLog(clock Clock, ids *idGenerator) *ActionLog {
	return &ActionLog{
		clock: clock,
		ids:   ids,
		byID:  make(map[string]struct{}),
	}
}

// Append records an action and returns its id.
func (l *ActionLog) Append(description string, files []string, outcome Outcome) string {
	id := l.ids.Next()
	l.insert(id, description, files, outcome)
	return id
}

func (l *ActionLog) insert(id, description string, files []string, outcome Outcome) {
	record := ActionRecord{
		ID:          id,
		Description: description,
		Files:       normalizeFiles(files),
		Outcome:     outcome,
		CreatedAt:   l.clock.Now(),
	}
	l.mu.Lock()
	l.records = append(l.records, record)
	l.byID[id] = struct{}{}
	l.mu.Unlock()
}

// All returns copies of every record in append order.
func (l *ActionLog) All() []ActionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]ActionRecord, len(l.records))
	copy(result, l.records)
	return result
}

// Has reports whether a record with the given id exists.
func (l *ActionLog) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byID[id]
	return ok
}

// Len returns the number of records.
func (l *ActionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// DecisionLog is the append-only log of decisions.
type DecisionLog struct {
	mu      sync.RWMutex
	ids     *idGenerator
	actions *ActionLog
	records []DecisionRecord
}

// NewDecisionLog creates an empty decision log. Appended records may
// link to records in the given action log.
func NewDecisionLog(clock Clock, actions *ActionLog) *DecisionLog {
	return newDecisionLog(newIDGenerator(clock), actions)
}

func newDecisionLog(ids *idGenerator, actions *ActionLog) *DecisionLog {
	return &DecisionLog{ids: ids, actions: actions}
}

// Append records a decision and returns its id. Every linked action id
// must resolve to an existing [ActionRecord]; an unknown id is rejected
// with [ErrNotFound], keeping the no-dangling-links invariant
// enforceable at the boundary.
func (l *DecisionLog) Append(choice, rationale string, linkedActionIDs []string) (string, error) {
	for _, actionID := range linkedActionIDs {
		if !l.actions.Has(actionID) {
			return "", fmt.Errorf("%w: linked action %s", ErrNotFound, actionID)
		}
	}
	id := l.ids.Next()
	l.insert(id, choice, rationale, linkedActionIDs)
	return id, nil
}

func (l *DecisionLog) insert(id, choice, rationale string, linkedActionIDs []string) {
	linked := make([]string, len(linkedActionIDs))
	copy(linked, linkedActionIDs)
	sort.Strings(linked)
	l.mu.Lock()
	l.records = append(l.records, DecisionRecord{
		ID:              id,
		Choice:          choice,
		Rationale:       rationale,
		LinkedActionIDs: linked,
	})
	l.mu.Unlock()
}

// All returns copies of every record in append order.
func (l *DecisionLog) All() []DecisionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]DecisionRecord, len(l.records))
	copy(result, l.records)
	return result
}

// Len returns the number of records.
func (l *DecisionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// ErrorLog is the append-only log of errors. Resolve is the only
// mutation: it attaches fix text to an existing record.
type ErrorLog struct {
	mu      sync.RWMutex
	clock   Clock
	ids     *idGenerator
	records []*ErrorRecord
	byID    map[string]*ErrorRecord
}

// NewErrorLog creates an empty error log.
func NewErrorLog(clock Clock) *ErrorLog {
	return newErrorLog(clock, newIDGenerator(clock))
}

func newErrorLog(clock Clock, ids *idGenerator) *ErrorLog {
	return &ErrorLog{
		clock: clock,
		ids:   ids,
		byID:  make(map[string]*ErrorRecord),
	}
}

// Append records an error and returns its id.
func (l *ErrorLog) Append(errorText string) string {
	id := l.ids.Next()
	l.insert(id, errorText)
	return id
}

func (l *ErrorLog) insert(id, errorText string) {
	record := &ErrorRecord{
		ID:        id,
		ErrorText: errorText,
		CreatedAt: l.clock.Now(),
	}
	l.mu.Lock()
	l.records = append(l.records, record)
	l.byID[id] = record
	l.mu.Unlock()
}

// Resolve records fix text against an error, ending its verbatim
// preservation. Returns [ErrNotFound] for an unknown id.
func (l *ErrorLog) Resolve(id, fixText string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("%w: error record %s", ErrNotFound, id)
	}
	record.FixText = fixText
	return nil
}

// All returns copies of every record in append order.
func (l *ErrorLog) All() []ErrorRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]ErrorRecord, len(l.records))
	for i, r := range l.records {
		result[i] = *r
	}
	return result
}

// Unresolved returns copies of records that have no fix recorded, in
// append order.
func (l *ErrorLog) Unresolved() []ErrorRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var result []ErrorRecord
	for _, r := range l.records {
		if !r.Resolved() {
			result = append(result, *r)
		}
	}
	return result
}

// Len returns the number of records.
func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// normalizeFiles sorts and deduplicates a path set.
func normalizeFiles(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(files))
	result := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		result = append(result, f)
	}
	sort.Strings(result)
	return result
}
