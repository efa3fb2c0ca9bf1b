package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewJob inserts a freshly submitted job in the queued stage.
func (s *Store) NewJob(ctx context.Context, documentRef, documentFormat, title, settingsJSON string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            document_ref, document_format, title, settings_json, stage, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		documentRef,
		documentFormat,
		nullableString(title),
		nullableString(settingsJSON),
		StageQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to a job guarded by its revision. The write
// succeeds only when the stored revision still matches the one the caller
// read; on success the revision is incremented and reflected on the struct.
// A lost race returns ErrRevisionConflict.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET document_ref = ?, document_format = ?, title = ?, settings_json = ?,
             stage = ?, revision = revision + 1,
             extract_attempts = ?, generate_attempts = ?, optimize_attempts = ?,
             error_kind = ?, error_stage = ?, error_message = ?, artifact_ref = ?,
             updated_at = ?,
             extract_started_at = ?, extract_completed_at = ?,
             generate_started_at = ?, generate_completed_at = ?,
             optimize_started_at = ?, optimize_completed_at = ?
         WHERE id = ? AND revision = ?`,
		job.DocumentRef,
		job.DocumentFormat,
		nullableString(job.Title),
		nullableString(job.SettingsJSON),
		job.Stage,
		job.ExtractAttempts,
		job.GenerateAttempts,
		job.OptimizeAttempts,
		nullableString(job.ErrorKind),
		nullableString(string(job.ErrorStage)),
		nullableString(job.ErrorMessage),
		nullableString(job.ArtifactRef),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.ExtractStartedAt),
		nullableTime(job.ExtractCompletedAt),
		nullableTime(job.GenerateStartedAt),
		nullableTime(job.GenerateCompletedAt),
		nullableTime(job.OptimizeStartedAt),
		nullableTime(job.OptimizeCompletedAt),
		job.ID,
		job.Revision,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetJob(ctx, job.ID); errors.Is(getErr, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return ErrRevisionConflict
	}
	job.Revision++
	return nil
}

// ListJobs returns jobs filtered by stage. With no stages given all jobs are
// returned, newest first.
func (s *Store) ListJobs(ctx context.Context, stages ...Stage) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(stages))
	if len(stages) > 0 {
		query += ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)`
		for _, stage := range stages {
			args = append(args, string(stage))
		}
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// DeleteJob removes a job and, through cascading foreign keys, its chunk set,
// stage outputs, and work items.
func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	return s.execWithoutResultRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
}

// ClearTerminal removes all jobs in terminal stages and returns the count.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE stage IN (?, ?, ?)`,
		StageSucceeded,
		StageFailed,
		StageCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns the number of jobs currently in each stage.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(*) FROM jobs GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var stageStr string
		var count int
		if err := rows.Scan(&stageStr, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[Stage(stageStr)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// Health summarizes queue activity for diagnostics and status reporting.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	summary := HealthSummary{
		Queued:    stats[StageQueued],
		Succeeded: stats[StageSucceeded],
		Failed:    stats[StageFailed],
		Cancelled: stats[StageCancelled],
	}
	for stage, count := range stats {
		summary.Total += count
		if stage.IsWorkStage() {
			summary.Processing += count
		}
	}
	return summary, nil
}
