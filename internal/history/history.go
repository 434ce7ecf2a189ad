// Package history persists run reports to a local SQLite database so past
// runs can be listed and re-read later.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/smlab/smconform/internal/report"
)

//go:embed schema.sql
var schemaSQL string

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 20

// Store keeps finished runs in a SQLite database. WAL mode lets past runs
// be listed while a new one is being written.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path. Safe to call on an
// existing database; the schema is applied idempotently.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history db: %w", err)
	}

	// SQLite allows one writer at a time; more connections would only
	// trade SQLITE_BUSY errors back and forth.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores one finished run. Saving the same run twice is a no-op.
func (s *Store) Save(ctx context.Context, rep *report.Report) error {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rep.RunID, err)
	}
	participantsJSON, err := json.Marshal(rep.Participants)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rep.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, started_at, finished_at, participants, total, passed, failed, timed_out, skipped, clean, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		rep.RunID,
		rep.StartedAt.UTC().Format(time.RFC3339Nano),
		rep.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(participantsJSON),
		rep.Summary.Total,
		rep.Summary.Passed,
		rep.Summary.Failed,
		rep.Summary.TimedOut,
		rep.Summary.Skipped,
		rep.Clean(),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rep.RunID, err)
	}
	log.Debug().Str("run_id", rep.RunID).Msg("run persisted")
	return nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Participants []string       `json:"participants"`
	Summary      report.Summary `json:"summary"`
	Clean        bool           `json:"clean"`
}

// List returns the most recent runs, newest first. Ties on start time are
// broken by run ID so the order is stable.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, participants, total, passed, failed, timed_out, skipped, clean
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started, finished, participantsJSON string
		if err := rows.Scan(
			&rs.RunID, &started, &finished, &participantsJSON,
			&rs.Summary.Total, &rs.Summary.Passed, &rs.Summary.Failed,
			&rs.Summary.TimedOut, &rs.Summary.Skipped, &rs.Clean,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rs.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("scan run %s: %w", rs.RunID, err)
		}
		if rs.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("scan run %s: %w", rs.RunID, err)
		}
		if err := json.Unmarshal([]byte(participantsJSON), &rs.Participants); err != nil {
			return nil, fmt.Errorf("scan run %s: %w", rs.RunID, err)
		}
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Load returns the full report for one run.
func (s *Store) Load(ctx context.Context, runID string) (*report.Report, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM runs WHERE run_id = ?`, runID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var rep report.Report
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &rep, nil
}
