package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const workItemColumns = "id, job_id, stage, attempt, enqueued_at, not_before, lease_token, lease_deadline"

func scanWorkItem(scanner interface{ Scan(dest ...any) error }) (*WorkItem, error) {
	var (
		item        WorkItem
		stageStr    string
		enqueuedRaw string
		notBefore   sql.NullString
		token       sql.NullString
		deadline    sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.JobID,
		&stageStr,
		&item.Attempt,
		&enqueuedRaw,
		&notBefore,
		&token,
		&deadline,
	); err != nil {
		return nil, err
	}
	item.Stage = Stage(stageStr)
	item.LeaseToken = token.String
	if enqueued, err := parseTimeString(enqueuedRaw); err == nil {
		item.EnqueuedAt = enqueued
	}
	if notBefore.Valid {
		if ts, err := parseTimeString(notBefore.String); err == nil {
			item.NotBefore = &ts
		}
	}
	if deadline.Valid {
		if ts, err := parseTimeString(deadline.String); err == nil {
			item.LeaseDeadline = &ts
		}
	}
	return &item, nil
}

// EnqueueWork adds a dispatchable item for a job's stage. At most one item
// exists per (job, stage); re-enqueueing an existing pair is a no-op so a
// crashed writer can safely repeat the call.
func (s *Store) EnqueueWork(ctx context.Context, jobID int64, stage Stage) error {
	if !stage.IsWorkStage() {
		return fmt.Errorf("stage %q is not dispatchable", stage)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO work_items (job_id, stage, enqueued_at)
         VALUES (?, ?, ?)
         ON CONFLICT(job_id, stage) DO NOTHING`,
		jobID,
		stage,
		now,
	)
	if err != nil {
		return fmt.Errorf("enqueue work: %w", err)
	}
	return nil
}

// LeaseWork claims the oldest eligible item for a stage. Eligible means not
// currently leased and past any retry hold-off. maxLeased caps concurrent
// leases per stage; at or over the cap no item is claimed. Returns nil when
// nothing is available.
func (s *Store) LeaseWork(ctx context.Context, stage Stage, maxLeased int, leaseFor time.Duration) (*WorkItem, error) {
	ctx = ensureContext(ctx)
	var leased *WorkItem
	err := retryOnBusy(ctx, func() error {
		leased = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin lease tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC()
		nowStr := now.Format(time.RFC3339Nano)

		var active int
		err = tx.QueryRowContext(
			ctx,
			`SELECT COUNT(*) FROM work_items
             WHERE stage = ? AND lease_token IS NOT NULL AND lease_deadline > ?`,
			stage,
			nowStr,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("count leased: %w", err)
		}
		if maxLeased > 0 && active >= maxLeased {
			return nil
		}

		row := tx.QueryRowContext(
			ctx,
			`SELECT `+workItemColumns+` FROM work_items
             WHERE stage = ? AND lease_token IS NULL
               AND (not_before IS NULL OR not_before <= ?)
             ORDER BY enqueued_at, id
             LIMIT 1`,
			stage,
			nowStr,
		)
		item, err := scanWorkItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select work item: %w", err)
		}

		token := uuid.NewString()
		deadline := now.Add(leaseFor)
		res, err := tx.ExecContext(
			ctx,
			`UPDATE work_items SET lease_token = ?, lease_deadline = ?
             WHERE id = ? AND lease_token IS NULL`,
			token,
			deadline.Format(time.RFC3339Nano),
			item.ID,
		)
		if err != nil {
			return fmt.Errorf("claim work item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			return nil
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit lease: %w", err)
		}
		item.LeaseToken = token
		item.LeaseDeadline = &deadline
		leased = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leased, nil
}

// RenewLease extends a held lease. The token must still match; a reclaimed
// or cancelled item returns ErrLeaseLost and the worker must abandon the run.
func (s *Store) RenewLease(ctx context.Context, itemID int64, token string, leaseFor time.Duration) error {
	deadline := time.Now().UTC().Add(leaseFor)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE work_items SET lease_deadline = ? WHERE id = ? AND lease_token = ?`,
		deadline.Format(time.RFC3339Nano),
		itemID,
		token,
	)
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renew lease rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// AckDone removes a work item after a worker finished with it, whether the
// run succeeded or failed terminally. The token guards against a stale
// worker acknowledging an item that was reclaimed and re-leased.
func (s *Store) AckDone(ctx context.Context, itemID int64, token string) error {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM work_items WHERE id = ? AND lease_token = ?`,
		itemID,
		token,
	)
	if err != nil {
		return fmt.Errorf("ack work item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ack rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// AckRetry releases a work item back to the queue for another attempt. The
// attempt counter advances and notBefore holds the item out of dispatch
// until the backoff elapses.
func (s *Store) AckRetry(ctx context.Context, itemID int64, token string, notBefore time.Time) error {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE work_items
         SET attempt = attempt + 1, enqueued_at = ?, not_before = ?,
             lease_token = NULL, lease_deadline = NULL
         WHERE id = ? AND lease_token = ?`,
		now.Format(time.RFC3339Nano),
		notBefore.UTC().Format(time.RFC3339Nano),
		itemID,
		token,
	)
	if err != nil {
		return fmt.Errorf("release work item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// ReclaimExpired returns items with lapsed leases to the queue. The attempt
// counter advances so a worker that dies mid-run still consumes attempts,
// and enqueued_at is reset to the old deadline so reclaimed items queue
// behind work that arrived while they were held.
func (s *Store) ReclaimExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE work_items
         SET attempt = attempt + 1, enqueued_at = lease_deadline,
             lease_token = NULL, lease_deadline = NULL, not_before = NULL
         WHERE lease_token IS NOT NULL AND lease_deadline <= ?`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	return res.RowsAffected()
}

// DeleteWorkForJob removes every pending or leased item for a job. Leased
// workers discover the loss on their next token-guarded call.
func (s *Store) DeleteWorkForJob(ctx context.Context, jobID int64) error {
	return s.execWithoutResultRetry(ctx, `DELETE FROM work_items WHERE job_id = ?`, jobID)
}

// GetWorkItem fetches a work item by identifier, or nil when absent.
func (s *Store) GetWorkItem(ctx context.Context, itemID int64) (*WorkItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE id = ?`, itemID)
	item, err := scanWorkItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// ListWork returns work items filtered by stage, oldest first. With no
// stages given all items are returned.
func (s *Store) ListWork(ctx context.Context, stages ...Stage) ([]*WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items`
	args := make([]any, 0, len(stages))
	if len(stages) > 0 {
		query += ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)`
		for _, stage := range stages {
			args = append(args, string(stage))
		}
	}
	query += ` ORDER BY enqueued_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work items: %w", err)
	}
	return items, nil
}
