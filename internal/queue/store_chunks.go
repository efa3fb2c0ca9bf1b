package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PutChunkSet stores the chunk plan for a job. A job keeps at most one chunk
// set; writing again replaces the previous plan so a retried extraction sees
// a single authoritative plan.
func (s *Store) PutChunkSet(ctx context.Context, set *ChunkSet) error {
	if set == nil {
		return errors.New("chunk set is nil")
	}
	chunksJSON, err := json.Marshal(set.Chunks)
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}
	err = s.execWithoutResultRetry(
		ctx,
		`INSERT INTO chunk_sets (job_id, strategy, params_json, total_bytes, chunks_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
             strategy = excluded.strategy,
             params_json = excluded.params_json,
             total_bytes = excluded.total_bytes,
             chunks_json = excluded.chunks_json,
             created_at = excluded.created_at`,
		set.JobID,
		set.Strategy,
		set.ParamsJSON,
		set.TotalBytes,
		string(chunksJSON),
		set.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put chunk set: %w", err)
	}
	return nil
}

// GetChunkSet fetches the chunk plan for a job, or nil when none exists.
func (s *Store) GetChunkSet(ctx context.Context, jobID int64) (*ChunkSet, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, strategy, params_json, total_bytes, chunks_json, created_at
         FROM chunk_sets WHERE job_id = ?`,
		jobID,
	)

	var (
		set        ChunkSet
		chunksJSON string
		createdRaw string
	)
	err := row.Scan(&set.JobID, &set.Strategy, &set.ParamsJSON, &set.TotalBytes, &chunksJSON, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk set: %w", err)
	}
	if err := json.Unmarshal([]byte(chunksJSON), &set.Chunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		set.CreatedAt = created
	}
	return &set, nil
}
