// Package journal persists session records to an append-only SQLite
// journal for audit and crash recovery.
//
// Journal implements [stratum.Recorder]: every memory entry, action,
// decision, error, and compaction result handed to it is serialized
// as one ordered row. Rows are never updated or deleted; replaying
// them in sequence order reconstructs the session's durable state.
//
// # Example
//
//	j, err := journal.Open(filepath.Join(dir, "session.db"))
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//
//	sess := stratum.NewSession(cfg).WithRecorder(j)
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rickchristie/stratum"
)

// Kind identifies the record type of a journal row.
type Kind string

const (
	KindEntry    Kind = "entry"
	KindAction   Kind = "action"
	KindDecision Kind = "decision"
	KindError    Kind = "error"
	KindResult   Kind = "result"
)

// Record is one replayed journal row. Payload holds the original
// record as JSON; use the typed accessors to decode it.
type Record struct {
	Seq       int64
	Kind      Kind
	RecordID  string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Entry decodes an entry record.
func (r Record) Entry() (stratum.MemoryEntry, error) {
	var e stratum.MemoryEntry
	err := json.Unmarshal(r.Payload, &e)
	return e, err
}

// Action decodes an action record.
func (r Record) Action() (stratum.ActionRecord, error) {
	var a stratum.ActionRecord
	err := json.Unmarshal(r.Payload, &a)
	return a, err
}

// Decision decodes a decision record.
func (r Record) Decision() (stratum.DecisionRecord, error) {
	var d stratum.DecisionRecord
	err := json.Unmarshal(r.Payload, &d)
	return d, err
}

// Error decodes an error record.
func (r Record) Error() (stratum.ErrorRecord, error) {
	var e stratum.ErrorRecord
	err := json.Unmarshal(r.Payload, &e)
	return e, err
}

// Result decodes a compaction result record.
func (r Record) Result() (*stratum.CompactionResult, error) {
	var res stratum.CompactionResult
	if err := json.Unmarshal(r.Payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Journal is an append-only SQLite record store.
type Journal struct {
	db    *sql.DB
	clock stratum.Clock
}

// Open opens or creates a journal database at the given path. Parent
// directories are created as needed.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{db: db, clock: stratum.SystemClock{}}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// WithClock sets the clock used for row timestamps.
func (j *Journal) WithClock(clock stratum.Clock) *Journal {
	j.clock = clock
	return j
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       TEXT NOT NULL,
		record_id  TEXT NOT NULL DEFAULT '',
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
	CREATE INDEX IF NOT EXISTS idx_records_record_id ON records(record_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

func (j *Journal) append(kind Kind, recordID string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}
	_, err = j.db.Exec(
		`INSERT INTO records (kind, record_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		string(kind), recordID, string(b),
		j.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append %s record: %w", kind, err)
	}
	return nil
}

// RecordEntry implements stratum.Recorder.
func (j *Journal) RecordEntry(entry stratum.MemoryEntry) error {
	return j.append(KindEntry, entry.ID, entry)
}

// RecordAction implements stratum.Recorder.
func (j *Journal) RecordAction(record stratum.ActionRecord) error {
	return j.append(KindAction, record.ID, record)
}

// RecordDecision implements stratum.Recorder.
func (j *Journal) RecordDecision(record stratum.DecisionRecord) error {
	return j.append(KindDecision, record.ID, record)
}

// RecordError implements stratum.Recorder.
func (j *Journal) RecordError(record stratum.ErrorRecord) error {
	return j.append(KindError, record.ID, record)
}

// RecordResult implements stratum.Recorder.
func (j *Journal) RecordResult(result *stratum.CompactionResult) error {
	return j.append(KindResult, "", result)
}

// Replay invokes fn for every journal row in append order. Replay
// stops at the first error from fn and returns it.
func (j *Journal) Replay(ctx context.Context, fn func(Record) error) error {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, kind, record_id, payload, created_at FROM records ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("replay query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       Record
			kind      string
			payload   string
			createdAt string
		)
		if err := rows.Scan(&rec.Seq, &kind, &rec.RecordID, &payload, &createdAt); err != nil {
			return fmt.Errorf("replay scan: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.Payload = json.RawMessage(payload)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Len reports the number of journal rows.
func (j *Journal) Len(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Compile-time check.
var _ stratum.Recorder = (*Journal)(nil)
