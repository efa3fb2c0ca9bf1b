package workflow

import (
	"context"
	"errors"
	"fmt"

	"deckforge/internal/queue"
)

// Cancel moves a non-terminal job to cancelled and removes its outstanding
// work items, making any still-held lease inert. Cancelling a job that is
// already terminal is a no-op; the final job record is returned either way.
func Cancel(ctx context.Context, store *queue.Store, jobID int64) (*queue.Job, error) {
	for {
		job, err := store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Stage.IsTerminal() {
			return job, nil
		}

		job.Stage = queue.StageCancelled
		switch err := store.UpdateJob(ctx, job); {
		case err == nil:
		case errors.Is(err, queue.ErrRevisionConflict):
			// A worker advanced the job in the meantime; re-read and retry
			// unless it finished first.
			continue
		default:
			return nil, fmt.Errorf("cancel job %d: %w", jobID, err)
		}

		if err := store.DeleteWorkForJob(ctx, jobID); err != nil {
			return nil, fmt.Errorf("cancel job %d: clear work items: %w", jobID, err)
		}
		return job, nil
	}
}
