package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutStageOutput stores the result payload a stage produced for a job. A
// retried stage overwrites its earlier payload so downstream stages always
// read the latest attempt's output.
func (s *Store) PutStageOutput(ctx context.Context, output *StageOutput) error {
	if output == nil {
		return errors.New("stage output is nil")
	}
	if !output.Stage.IsWorkStage() {
		return fmt.Errorf("stage %q does not produce output", output.Stage)
	}
	if output.ProducedAt.IsZero() {
		output.ProducedAt = time.Now().UTC()
	}
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO stage_outputs (job_id, stage, payload_json, produced_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(job_id, stage) DO UPDATE SET
             payload_json = excluded.payload_json,
             produced_at = excluded.produced_at`,
		output.JobID,
		output.Stage,
		output.PayloadJSON,
		output.ProducedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put stage output: %w", err)
	}
	return nil
}

// GetStageOutput fetches the payload a stage recorded for a job, or nil when
// the stage has not completed yet.
func (s *Store) GetStageOutput(ctx context.Context, jobID int64, stage Stage) (*StageOutput, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, stage, payload_json, produced_at FROM stage_outputs WHERE job_id = ? AND stage = ?`,
		jobID,
		stage,
	)

	var (
		output      StageOutput
		stageStr    string
		producedRaw string
	)
	err := row.Scan(&output.JobID, &stageStr, &output.PayloadJSON, &producedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stage output: %w", err)
	}
	output.Stage = Stage(stageStr)
	if produced, err := parseTimeString(producedRaw); err == nil {
		output.ProducedAt = produced
	}
	return &output, nil
}
