// Package runlog keeps an append-only history of sync runs in a local
// SQLite file. It is written after each run for the operator's benefit;
// the engine never reads it to make decisions.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/tonimelisma/chemsync/internal/sync"
)

const (
	sqlInsertRun = `INSERT INTO runs
		(id, started_at, duration_ms, dry_run, skip_files, import_only, phase,
		 seen, created, updated, disposed, unreconciled, files_uploaded,
		 exported_seen, skipped, pushed, failures, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlInsertFailure = `INSERT INTO run_failures (run_id, seq, phase, item_id, message)
		VALUES (?, ?, ?, ?, ?)`

	sqlRecentRuns = `SELECT id, started_at, duration_ms, dry_run, skip_files, import_only,
		phase, seen, created, updated, disposed, unreconciled, files_uploaded,
		exported_seen, skipped, pushed, failures, error
		FROM runs ORDER BY started_at DESC, id LIMIT ?`

	sqlRunFailures = `SELECT phase, item_id, message FROM run_failures
		WHERE run_id = ? ORDER BY seq`
)

// Run is one recorded run.
type Run struct {
	ID            string        `json:"id" yaml:"id"`
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	DryRun        bool          `json:"dry_run" yaml:"dry_run"`
	SkipFiles     bool          `json:"skip_files" yaml:"skip_files"`
	ImportOnly    bool          `json:"import_only" yaml:"import_only"`
	Phase         string        `json:"phase" yaml:"phase"`
	Seen          int           `json:"seen" yaml:"seen"`
	Created       int           `json:"created" yaml:"created"`
	Updated       int           `json:"updated" yaml:"updated"`
	Disposed      int           `json:"disposed" yaml:"disposed"`
	Unreconciled  int           `json:"unreconciled" yaml:"unreconciled"`
	FilesUploaded int           `json:"files_uploaded" yaml:"files_uploaded"`
	ExportedSeen  int           `json:"exported_seen" yaml:"exported_seen"`
	Skipped       int           `json:"skipped" yaml:"skipped"`
	Pushed        int           `json:"pushed" yaml:"pushed"`
	Failures      int           `json:"failures" yaml:"failures"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store is the run log database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the run log at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("runlog: creating directory for %s: %w", path, err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("runlog: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("run log opened", slog.String("path", path))

	return &Store{db: db, logger: logger}, nil
}

// Record appends a run and its per-item failures in one transaction.
// runErr is the error that stopped the run early, if any.
func (s *Store) Record(ctx context.Context, r *sync.Report, runErr error) error {
	if r == nil {
		return errors.New("runlog: nil report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runlog: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, sqlInsertRun,
		r.RunID, r.StartedAt.UnixNano(), r.Duration.Milliseconds(),
		r.DryRun, r.SkipFiles, r.ImportOnly, r.Phase,
		r.Import.Seen, r.Import.Created, r.Import.Updated, r.Import.Disposed,
		r.Import.Unreconciled, r.Import.FilesUploaded,
		r.Export.Seen, r.Export.Skipped, r.Export.Pushed,
		r.FailureCount(), errText,
	)
	if err != nil {
		return fmt.Errorf("runlog: inserting run %s: %w", r.RunID, err)
	}

	for i, f := range r.Failures {
		if _, err := tx.ExecContext(ctx, sqlInsertFailure, r.RunID, i, f.Phase, f.ID, f.Error); err != nil {
			return fmt.Errorf("runlog: inserting failure %d of run %s: %w", i, r.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("runlog: committing run %s: %w", r.RunID, err)
	}

	s.logger.Debug("run recorded",
		slog.String("run_id", r.RunID),
		slog.Int("failures", len(r.Failures)),
	)

	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			run        Run
			startedAt  int64
			durationMS int64
			errText    sql.NullString
		)

		if err := rows.Scan(
			&run.ID, &startedAt, &durationMS, &run.DryRun, &run.SkipFiles, &run.ImportOnly,
			&run.Phase, &run.Seen, &run.Created, &run.Updated, &run.Disposed, &run.Unreconciled,
			&run.FilesUploaded, &run.ExportedSeen, &run.Skipped, &run.Pushed, &run.Failures, &errText,
		); err != nil {
			return nil, fmt.Errorf("runlog: scanning run: %w", err)
		}

		run.StartedAt = time.Unix(0, startedAt)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.Error = errText.String
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: iterating runs: %w", err)
	}

	return runs, nil
}

// Failures returns the per-item failures recorded for a run.
func (s *Store) Failures(ctx context.Context, runID string) ([]sync.ItemFailure, error) {
	rows, err := s.db.QueryContext(ctx, sqlRunFailures, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: querying failures of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []sync.ItemFailure

	for rows.Next() {
		var f sync.ItemFailure
		if err := rows.Scan(&f.Phase, &f.ID, &f.Error); err != nil {
			return nil, fmt.Errorf("runlog: scanning failure: %w", err)
		}

		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: iterating failures: %w", err)
	}

	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
