package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run statuses recorded in sync_runs.status.
const (
	RunRunning               = "running"
	RunCompleted             = "completed"
	RunCompletedWithFailures = "completed_with_failures"
	RunFailed                = "failed"
	RunCanceled              = "canceled"
)

// Run is one row of sync_runs.
type Run struct {
	ID         string         `json:"id"`
	RootID     string         `json:"root_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Status     string         `json:"status"`
	Counts     map[string]int `json:"counts"`
	Failures   []RunFailure   `json:"failures"`
	Error      string         `json:"error,omitempty"`
}

// RunFailure is a soft failure as recorded in sync_runs.failures.
type RunFailure struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Op    string `json:"op"`
	Error string `json:"error"`
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, root_id, started_at, status)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.RootID, formatTime(run.StartedAt), RunRunning)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run started with BeginRun.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	counts := run.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	failures := run.Failures
	if failures == nil {
		failures = []RunFailure{}
	}
	countsJSON, err := marshalJSON(counts)
	if err != nil {
		return fmt.Errorf("finish run %s: marshal counts: %w", run.ID, err)
	}
	failuresJSON, err := marshalJSON(failures)
	if err != nil {
		return fmt.Errorf("finish run %s: marshal failures: %w", run.ID, err)
	}

	errText := sql.NullString{String: run.Error, Valid: run.Error != ""}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, status = ?, counts = ?, failures = ?, error = ?
		WHERE id = ?
	`, formatTime(run.FinishedAt), run.Status, countsJSON, failuresJSON, errText, run.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// LastRuns returns up to limit runs, newest first.
func (s *Store) LastRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root_id, started_at, finished_at, status, counts, failures, error
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("last runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                     Run
			started               string
			finished, errText     sql.NullString
			countsJSON, failsJSON string
		)
		if err := rows.Scan(&r.ID, &r.RootID, &started, &finished, &r.Status, &countsJSON, &failsJSON, &errText); err != nil {
			return nil, fmt.Errorf("last runs: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("last runs: %w", err)
		}
		if finished.Valid {
			if r.FinishedAt, err = parseTime(finished.String); err != nil {
				return nil, fmt.Errorf("last runs: %w", err)
			}
		}
		if err := json.Unmarshal([]byte(countsJSON), &r.Counts); err != nil {
			return nil, fmt.Errorf("last runs: counts: %w", err)
		}
		if err := json.Unmarshal([]byte(failsJSON), &r.Failures); err != nil {
			return nil, fmt.Errorf("last runs: failures: %w", err)
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("last runs: %w", err)
	}
	return runs, nil
}
