// Package store persists reconcile runs and their output rows to SQLite so
// summaries and density views can be served without re-running the pipeline.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID           string
	Policy       string
	InputRows    int
	RetainedRows int
	DroppedRows  int
	InRegion     int
	OutRegion    int
	CreatedAt    time.Time
}

// CrashRow is one reconciled record as persisted.
type CrashRow struct {
	ID       int
	Date     time.Time
	Severity string
	Lat      *float64
	Lon      float64
	OCC      *string
	ICC      *string
	InRegion bool
	Count    int
	Radius   float64
}

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	policy        TEXT NOT NULL,
	input_rows    INTEGER NOT NULL,
	retained_rows INTEGER NOT NULL,
	dropped_rows  INTEGER NOT NULL,
	in_region     INTEGER NOT NULL,
	out_region    INTEGER NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS crashes (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	id        INTEGER NOT NULL,
	dt        DATETIME,
	severity  TEXT NOT NULL,
	lat       REAL,
	lon       REAL NOT NULL,
	occ       TEXT,
	icc       TEXT,
	in_region INTEGER NOT NULL,
	lls_count INTEGER NOT NULL,
	radius    REAL NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE INDEX IF NOT EXISTS idx_crashes_severity ON crashes(run_id, severity);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run and all its rows in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, rows []CrashRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, policy, input_rows, retained_rows, dropped_rows, in_region, out_region, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Policy, run.InputRows, run.RetainedRows, run.DroppedRows,
		run.InRegion, run.OutRegion, run.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crashes (run_id, id, dt, severity, lat, lon, occ, icc, in_region, lls_count, radius)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		var dt any
		if !row.Date.IsZero() {
			dt = row.Date.UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, row.ID, dt, row.Severity, row.Lat, row.Lon,
			row.OCC, row.ICC, row.InRegion, row.Count, row.Radius,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert crash %d", row.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit")
	}
	return nil
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, policy, input_rows, retained_rows, dropped_rows, in_region, out_region, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanRun(row)
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, policy, input_rows, retained_rows, dropped_rows, in_region, out_region, created_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Policy, &r.InputRows, &r.RetainedRows, &r.DroppedRows,
		&r.InRegion, &r.OutRegion, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

// SeverityCounts returns retained-row counts per severity for a run.
func (s *Store) SeverityCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM crashes WHERE run_id = ? GROUP BY severity`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query severity counts")
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan severity count")
		}
		counts[severity] = n
	}
	return counts, rows.Err()
}

// DensityRows returns the stored rows for a run, heaviest locations first.
func (s *Store) DensityRows(ctx context.Context, runID string, limit int) ([]CrashRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dt, severity, lat, lon, occ, icc, in_region, lls_count, radius
		FROM crashes WHERE run_id = ?
		ORDER BY lls_count DESC, id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query density rows")
	}
	defer func() { _ = rows.Close() }()

	var out []CrashRow
	for rows.Next() {
		var r CrashRow
		var dt sql.NullTime
		if err := rows.Scan(&r.ID, &dt, &r.Severity, &r.Lat, &r.Lon,
			&r.OCC, &r.ICC, &r.InRegion, &r.Count, &r.Radius); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan density row")
		}
		if dt.Valid {
			r.Date = dt.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
