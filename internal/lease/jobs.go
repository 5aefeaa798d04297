package lease

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, episode_id, segment_key, program, episode_date, script_version, script_text, voice_id, model_id, status, attempt_count, job_key, audio_storage_path, audio_duration_seconds, last_error_class, last_error_message, claimed_at, retry_at, created_at, updated_at"

// MarkPending records the upstream editorial signal that a segment script is
// approved for audio. It creates the job row or re-arms a terminal one,
// resetting the attempt counter for a fresh retry cycle. Re-arming a job
// while a worker holds its claim is refused with ErrLeaseHeld.
func (s *Store) MarkPending(ctx context.Context, script SegmentScript) (*Job, error) {
	if strings.TrimSpace(script.EpisodeID) == "" || strings.TrimSpace(script.SegmentKey) == "" {
		return nil, errors.New("episode id and segment key are required")
	}
	if strings.TrimSpace(script.EpisodeDate) == "" {
		return nil, errors.New("episode date is required")
	}
	if script.ScriptVersion <= 0 {
		script.ScriptVersion = 1
	}
	now := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO segment_jobs (
            episode_id, segment_key, program, episode_date, script_version, script_text,
            voice_id, model_id, status, attempt_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT (episode_id, segment_key) DO UPDATE SET
            program = excluded.program,
            episode_date = excluded.episode_date,
            script_version = excluded.script_version,
            script_text = excluded.script_text,
            voice_id = excluded.voice_id,
            model_id = excluded.model_id,
            status = ?,
            attempt_count = 0,
            job_key = NULL,
            audio_storage_path = NULL,
            audio_duration_seconds = NULL,
            last_error_class = NULL,
            last_error_message = NULL,
            claimed_at = NULL,
            retry_at = NULL,
            updated_at = excluded.updated_at
        WHERE segment_jobs.status != ?`,
		script.EpisodeID,
		script.SegmentKey,
		script.Program,
		script.EpisodeDate,
		script.ScriptVersion,
		script.ScriptText,
		nullableString(script.VoiceID),
		nullableString(script.ModelID),
		JobPending,
		now,
		now,
		JobPending,
		JobGenerating,
	)
	if err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrLeaseHeld
	}

	return s.GetJob(ctx, script.EpisodeID, script.SegmentKey)
}

// GetJob fetches a segment job by its logical identifier.
func (s *Store) GetJob(ctx context.Context, episodeID, segmentKey string) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM segment_jobs WHERE episode_id = ? AND segment_key = ?`,
		episodeID, segmentKey,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimableJobs returns jobs eligible for a claim at the given instant:
// pending rows plus failed-retryable rows whose backoff has elapsed, oldest
// episode first.
func (s *Store) ClaimableJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 1
	}
	cutoff := formatTime(now)
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM segment_jobs
         WHERE (status = ? AND (retry_at IS NULL OR retry_at <= ?))
            OR (status = ? AND retry_at IS NOT NULL AND retry_at <= ?)
         ORDER BY episode_date, segment_key LIMIT ?`,
		JobPending, cutoff,
		JobFailed, cutoff,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query claimable jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Claim atomically transitions an eligible job to generating, incrementing
// its attempt counter and stamping the claim time and job key. It returns
// (nil, nil) when another worker won the race or the job is no longer
// eligible. The whole claim is one conditional UPDATE, so two concurrent
// claims can never both succeed.
func (s *Store) Claim(ctx context.Context, episodeID, segmentKey, jobKey string, now time.Time) (*Claim, error) {
	if strings.TrimSpace(jobKey) == "" {
		return nil, errors.New("job key is required")
	}
	stamp := formatTime(now)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE segment_jobs
         SET status = ?, attempt_count = attempt_count + 1, job_key = ?,
             claimed_at = ?, retry_at = NULL, updated_at = ?
         WHERE episode_id = ? AND segment_key = ?
           AND ((status = ? AND (retry_at IS NULL OR retry_at <= ?))
             OR (status = ? AND retry_at IS NOT NULL AND retry_at <= ?))`,
		JobGenerating, jobKey,
		stamp, stamp,
		episodeID, segmentKey,
		JobPending, stamp,
		JobFailed, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	job, err := s.GetJob(ctx, episodeID, segmentKey)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("claimed job %s/%s disappeared", episodeID, segmentKey)
	}
	return &Claim{Job: *job, Attempt: job.AttemptCount}, nil
}

// Commit transitions a held claim to ready, recording the storage path and
// measured duration. A commit by a superseded holder returns ErrStaleLease.
func (s *Store) Commit(ctx context.Context, episodeID, segmentKey, jobKey, storagePath string, durationSeconds float64) error {
	if strings.TrimSpace(storagePath) == "" {
		return errors.New("storage path is required for a ready job")
	}
	if durationSeconds <= 0 {
		return fmt.Errorf("duration must be positive, got %f", durationSeconds)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE segment_jobs
         SET status = ?, audio_storage_path = ?, audio_duration_seconds = ?,
             last_error_class = NULL, last_error_message = NULL,
             claimed_at = NULL, retry_at = NULL, updated_at = ?
         WHERE episode_id = ? AND segment_key = ? AND status = ? AND job_key = ?`,
		JobReady, storagePath, durationSeconds,
		formatTime(time.Now()),
		episodeID, segmentKey, JobGenerating, jobKey,
	)
	if err != nil {
		return fmt.Errorf("commit job: %w", err)
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

// Fail transitions a held claim to failed, recording the classified error.
// retryAt, when non-nil, re-arms the job for a later claim; nil parks the
// job until an operator or the editorial pipeline re-queues it. A fail by a
// superseded holder returns ErrStaleLease.
func (s *Store) Fail(ctx context.Context, episodeID, segmentKey, jobKey, errorClass, message string, retryAt *time.Time) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE segment_jobs
         SET status = ?, last_error_class = ?, last_error_message = ?,
             claimed_at = NULL, retry_at = ?, updated_at = ?
         WHERE episode_id = ? AND segment_key = ? AND status = ? AND job_key = ?`,
		JobFailed, errorClass, message,
		nullableTime(retryAt), formatTime(time.Now()),
		episodeID, segmentKey, JobGenerating, jobKey,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
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

// Release returns a held claim to pending without recording a failure and
// hands back the attempt the claim consumed, so obsolete work such as a
// script re-versioned between the eligibility scan and the claim does not
// count against the retry ceiling. A release by a superseded holder returns
// ErrStaleLease.
func (s *Store) Release(ctx context.Context, episodeID, segmentKey, jobKey string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE segment_jobs
         SET status = ?, attempt_count = MAX(attempt_count - 1, 0),
             claimed_at = NULL, updated_at = ?
         WHERE episode_id = ? AND segment_key = ? AND status = ? AND job_key = ?`,
		JobPending, formatTime(time.Now()),
		episodeID, segmentKey, JobGenerating, jobKey,
	)
	if err != nil {
		return fmt.Errorf("release job: %w", err)
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

// RequeueStale forces jobs still generating past the TTL back to pending so
// another worker can claim them. This is the only mutation permitted without
// holding the lease, and it never moves a job directly to ready.
func (s *Store) RequeueStale(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, errors.New("ttl must be positive")
	}
	cutoff := formatTime(time.Now().Add(-ttl))
	res, err := s.execWithRetry(
		ctx,
		`UPDATE segment_jobs
         SET status = ?, claimed_at = NULL, updated_at = ?
         WHERE status = ? AND claimed_at IS NOT NULL AND claimed_at < ?`,
		JobPending,
		formatTime(time.Now()),
		JobGenerating,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// JobsForDate returns the jobs for an episode date restricted to the given
// segment keys (all segments when keys is empty).
func (s *Store) JobsForDate(ctx context.Context, episodeDate string, keys ...string) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM segment_jobs WHERE episode_date = ?`
	args := []any{episodeDate}
	if len(keys) > 0 {
		query += ` AND segment_key IN (` + makePlaceholders(len(keys)) + `)`
		for _, key := range keys {
			args = append(args, key)
		}
	}
	query += ` ORDER BY segment_key`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs for date: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobsByStatus returns jobs matching a status ordered by episode date.
func (s *Store) JobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM segment_jobs WHERE status = ? ORDER BY episode_date, segment_key`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs by status: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DatesWithAllSegmentsReady returns episode dates for which every required
// segment is ready with a storage path, oldest first.
func (s *Store) DatesWithAllSegmentsReady(ctx context.Context, required []string, limit int) ([]string, error) {
	if len(required) == 0 {
		return nil, errors.New("required segment list must not be empty")
	}
	if limit <= 0 {
		limit = 30
	}
	args := make([]any, 0, len(required)+2)
	for _, key := range required {
		args = append(args, key)
	}
	args = append(args, JobReady, len(required), limit)

	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT episode_date FROM segment_jobs
         WHERE segment_key IN (`+makePlaceholders(len(required))+`)
           AND status = ? AND audio_storage_path IS NOT NULL
         GROUP BY episode_date
         HAVING COUNT(DISTINCT segment_key) = ?
         ORDER BY episode_date LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query stitchable dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM segment_jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch status {
		case JobPending:
			stats.Pending += count
		case JobGenerating:
			stats.Generating += count
		case JobReady:
			stats.Ready += count
		case JobFailed:
			stats.Failed += count
		}
	}
	return stats, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            int64
		episodeID     string
		segmentKey    string
		program       sql.NullString
		episodeDate   string
		scriptVersion int
		scriptText    string
		voiceID       sql.NullString
		modelID       sql.NullString
		statusStr     string
		attemptCount  int
		jobKey        sql.NullString
		storagePath   sql.NullString
		duration      sql.NullFloat64
		errorClass    sql.NullString
		errorMessage  sql.NullString
		claimedRaw    sql.NullString
		retryRaw      sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&segmentKey,
		&program,
		&episodeDate,
		&scriptVersion,
		&scriptText,
		&voiceID,
		&modelID,
		&statusStr,
		&attemptCount,
		&jobKey,
		&storagePath,
		&duration,
		&errorClass,
		&errorMessage,
		&claimedRaw,
		&retryRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                   id,
		EpisodeID:            episodeID,
		SegmentKey:           segmentKey,
		Program:              program.String,
		EpisodeDate:          episodeDate,
		ScriptVersion:        scriptVersion,
		ScriptText:           scriptText,
		VoiceID:              voiceID.String,
		ModelID:              modelID.String,
		Status:               JobStatus(statusStr),
		AttemptCount:         attemptCount,
		JobKey:               jobKey.String,
		AudioStoragePath:     storagePath.String,
		AudioDurationSeconds: duration.Float64,
		LastErrorClass:       errorClass.String,
		LastErrorMessage:     errorMessage.String,
	}

	if claimedRaw.Valid {
		if claimed, err := parseTimeString(claimedRaw.String); err == nil {
			job.ClaimedAt = &claimed
		}
	}
	if retryRaw.Valid {
		if retry, err := parseTimeString(retryRaw.String); err == nil {
			job.RetryAt = &retry
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
