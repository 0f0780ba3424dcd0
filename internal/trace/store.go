// Package trace persists per-function analysis summaries to a local
// sqlite file, letting knightc's --trace flag replay or diff a run
// after the fact without re-analyzing. It is grounded on the
// teacher's own database package (internal/database/database.go's
// Connect/sql.Open/sql.DB.Query dispatch over a driver-name switch),
// adapted from that package's multi-driver, read-mostly connection
// pool down to this package's single pure-Go sqlite driver and a
// write path (CREATE TABLE / INSERT) the teacher's package never
// needed since it only ever queried someone else's database.
package trace

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	label      TEXT NOT NULL,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS summaries (
	run_id        INTEGER NOT NULL REFERENCES runs(id),
	function_name TEXT NOT NULL,
	dump          TEXT NOT NULL,
	may_be_unsound INTEGER NOT NULL
);
`

// Store is a handle to one sqlite trace database.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the sqlite database at path and ensures its
// schema exists. path may be ":memory:" for a scratch, process-local
// store (used by tests; knightc opens a store only when --trace is given).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun records a new analysis run under label (typically the
// translation unit's path), returning its row id for use by RecordSummary.
func (s *Store) BeginRun(ctx context.Context, label string, startedAtUnix int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO runs (label, started_at) VALUES (?, ?)`, label, startedAtUnix)
	if err != nil {
		return 0, fmt.Errorf("trace: begin run: %w", err)
	}
	return res.LastInsertId()
}

// RecordSummary appends one function's analysis outcome to runID.
func (s *Store) RecordSummary(ctx context.Context, runID int64, functionName, dump string, mayBeUnsound bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (run_id, function_name, dump, may_be_unsound) VALUES (?, ?, ?, ?)`,
		runID, functionName, dump, mayBeUnsound)
	if err != nil {
		return fmt.Errorf("trace: record summary: %w", err)
	}
	return nil
}

// FunctionSummary is one row read back from the summaries table.
type FunctionSummary struct {
	FunctionName string
	Dump         string
	MayBeUnsound bool
}

// Summaries returns every summary recorded for runID, in insertion order.
func (s *Store) Summaries(ctx context.Context, runID int64) ([]FunctionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT function_name, dump, may_be_unsound FROM summaries WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: query summaries: %w", err)
	}
	defer rows.Close()

	var out []FunctionSummary
	for rows.Next() {
		var fs FunctionSummary
		var unsound int
		if err := rows.Scan(&fs.FunctionName, &fs.Dump, &unsound); err != nil {
			return nil, fmt.Errorf("trace: scan summary: %w", err)
		}
		fs.MayBeUnsound = unsound != 0
		out = append(out, fs)
	}
	return out, rows.Err()
}
