package lease

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const batchRunColumns = "id, program, start_date, window_days, kind, status, triggered_by, claimed_at, completed_at, output_json, error_message"

// ClaimBatchRun acquires the singleton lease for one batch window. The first
// caller for a window inserts the row and wins; later callers win only when
// the previous run for the same window failed. The returned bool reports
// whether this caller now holds the lease.
func (s *Store) ClaimBatchRun(ctx context.Context, program, startDate string, windowDays int, kind RunKind, triggeredBy string) (*BatchRun, bool, error) {
	if strings.TrimSpace(program) == "" || strings.TrimSpace(startDate) == "" {
		return nil, false, errors.New("program and start date are required")
	}
	if windowDays <= 0 {
		return nil, false, errors.New("window days must be positive")
	}

	id := uuid.NewString()
	now := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO batch_runs (
            id, program, start_date, window_days, kind, status, triggered_by, claimed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, program, startDate, windowDays, kind, RunRunning, triggeredBy, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert batch run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		run, err := s.GetBatchRun(ctx, program, startDate, windowDays, kind)
		return run, true, err
	}

	// A row already exists for this window. Re-claim it only if the prior
	// run failed; running and completed windows stay with their holder.
	res, err = s.execWithRetry(
		ctx,
		`UPDATE batch_runs
         SET id = ?, status = ?, triggered_by = ?, claimed_at = ?,
             completed_at = NULL, output_json = NULL, error_message = NULL
         WHERE program = ? AND start_date = ? AND window_days = ? AND kind = ? AND status = ?`,
		id, RunRunning, triggeredBy, now,
		program, startDate, windowDays, kind, RunFailed,
	)
	if err != nil {
		return nil, false, fmt.Errorf("reclaim batch run: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	run, getErr := s.GetBatchRun(ctx, program, startDate, windowDays, kind)
	if getErr != nil {
		return nil, false, getErr
	}
	return run, affected > 0, nil
}

// CompleteBatchRun marks a held run lease completed, storing the run summary.
func (s *Store) CompleteBatchRun(ctx context.Context, runID, outputJSON string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE batch_runs SET status = ?, completed_at = ?, output_json = ?
         WHERE id = ? AND status = ?`,
		RunCompleted, formatTime(time.Now()), nullableString(outputJSON),
		runID, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("complete batch run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleLease
	}
	return nil
}

// FailBatchRun marks a held run lease failed with the given message.
func (s *Store) FailBatchRun(ctx context.Context, runID, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE batch_runs SET status = ?, completed_at = ?, error_message = ?
         WHERE id = ? AND status = ?`,
		RunFailed, formatTime(time.Now()), message,
		runID, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("fail batch run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleLease
	}
	return nil
}

// FailStaleBatchRuns force-fails runs of a kind still running past the TTL,
// freeing their windows for a fresh claim. Returns the number of runs failed.
func (s *Store) FailStaleBatchRuns(ctx context.Context, kind RunKind, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, errors.New("ttl must be positive")
	}
	now := time.Now()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE batch_runs SET status = ?, completed_at = ?, error_message = ?
         WHERE kind = ? AND status = ? AND claimed_at < ?`,
		RunFailed, formatTime(now), "lease expired",
		kind, RunRunning, formatTime(now.Add(-ttl)),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale batch runs: %w", err)
	}
	return res.RowsAffected()
}

// GetBatchRun fetches the run row for a batch window, nil when none exists.
func (s *Store) GetBatchRun(ctx context.Context, program, startDate string, windowDays int, kind RunKind) (*BatchRun, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+batchRunColumns+` FROM batch_runs
         WHERE program = ? AND start_date = ? AND window_days = ? AND kind = ?`,
		program, startDate, windowDays, kind,
	)
	run, err := scanBatchRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch run: %w", err)
	}
	return run, nil
}

// BatchRunsByKind returns runs of a kind ordered by most recent claim.
func (s *Store) BatchRunsByKind(ctx context.Context, kind RunKind, limit int) ([]*BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+batchRunColumns+` FROM batch_runs
         WHERE kind = ? ORDER BY claimed_at DESC LIMIT ?`,
		kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []*BatchRun
	for rows.Next() {
		run, err := scanBatchRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanBatchRun(scanner interface{ Scan(dest ...any) error }) (*BatchRun, error) {
	var (
		id           string
		program      string
		startDate    string
		windowDays   int
		kindStr      string
		statusStr    string
		triggeredBy  string
		claimedRaw   string
		completedRaw sql.NullString
		outputJSON   sql.NullString
		errorMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&program,
		&startDate,
		&windowDays,
		&kindStr,
		&statusStr,
		&triggeredBy,
		&claimedRaw,
		&completedRaw,
		&outputJSON,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	run := &BatchRun{
		ID:           id,
		Program:      program,
		StartDate:    startDate,
		WindowDays:   windowDays,
		Kind:         RunKind(kindStr),
		Status:       RunStatus(statusStr),
		TriggeredBy:  triggeredBy,
		OutputJSON:   outputJSON.String,
		ErrorMessage: errorMessage.String,
	}
	if claimed, err := parseTimeString(claimedRaw); err == nil {
		run.ClaimedAt = claimed
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = &completed
		}
	}
	return run, nil
}
