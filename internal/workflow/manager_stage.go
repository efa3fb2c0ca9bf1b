package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services"
	"deckforge/internal/stage"
)

// errJobSuperseded signals that another writer changed the job while a
// worker held it. The worker discards its result: cancellation recorded
// before the success report wins, and a reclaimed job belongs to whoever
// leased it next.
var errJobSuperseded = errors.New("job superseded by concurrent update")

func (m *Manager) processItem(ctx context.Context, st queue.Stage, item *queue.WorkItem) error {
	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithJobID(ctx, item.JobID), string(st)), requestID)
	logger := logging.WithContext(stageCtx, m.logger)

	job, err := m.store.GetJob(stageCtx, item.JobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			m.discardItem(stageCtx, logger, item, "job missing for work item")
			return nil
		}
		m.setLastError(err)
		logger.Error("failed to load job for work item", logging.Error(err))
		return err
	}

	if !m.jobEligible(job, st) {
		m.discardItem(stageCtx, logger, item, "job no longer at this stage")
		return nil
	}

	if err := m.beginAttempt(stageCtx, job, st, item); err != nil {
		if errors.Is(err, errJobSuperseded) {
			m.discardItem(stageCtx, logger, item, "job changed before attempt start")
			return nil
		}
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, logger, st, job, item)
}

// jobEligible reports whether the work item still matches the job's state.
// Extraction additionally accepts queued jobs, which it moves into the first
// work stage.
func (m *Manager) jobEligible(job *queue.Job, st queue.Stage) bool {
	if job.Stage == st {
		return true
	}
	return job.Stage == queue.StageQueued && st == queue.StageExtracting
}

// beginAttempt records the attempt number and stage entry on the job record.
func (m *Manager) beginAttempt(ctx context.Context, job *queue.Job, st queue.Stage, item *queue.WorkItem) error {
	job.Stage = st
	job.SetAttempts(st, item.Attempt)
	job.MarkStageStarted(st, time.Now())
	job.ErrorKind = ""
	job.ErrorStage = ""
	job.ErrorMessage = ""
	return m.persistJob(ctx, job)
}

func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, st queue.Stage, job *queue.Job, item *queue.WorkItem) error {
	proc := m.procs.forStage(st)
	stageStart := time.Now()
	logger.Info("stage started",
		logging.String("document", job.DocumentRef),
		logging.Int("attempt", item.Attempt),
	)

	if err := proc.Prepare(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		m.handleStageFailure(ctx, logger, st, job, item, err)
		return err
	}
	if err := m.persistJob(ctx, job); err != nil {
		if errors.Is(err, errJobSuperseded) {
			m.discardItem(ctx, logger, item, "job changed during preparation")
			return nil
		}
		m.setLastError(err)
		logger.Error("failed to persist stage preparation", logging.Error(err))
		return err
	}

	execErr := m.executeWithRenewal(ctx, proc, job, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			if ctx.Err() != nil {
				logger.Debug("stage interrupted by shutdown")
				return execErr
			}
			// Renewal lost the lease mid-call; the result belongs to no one.
			logger.Warn("lease lost during execution, abandoning result")
			return nil
		}
		m.handleStageFailure(ctx, logger, st, job, item, execErr)
		return execErr
	}

	if err := m.advance(ctx, job, st, item); err != nil {
		if errors.Is(err, errJobSuperseded) {
			m.discardItem(ctx, logger, item, "job changed before success applied")
			return nil
		}
		m.setLastError(err)
		logger.Error("failed to record stage success", logging.Error(err))
		return err
	}

	logger.Info("stage completed",
		logging.String("next_stage", string(job.Stage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	return nil
}

// executeWithRenewal runs the processor while a companion goroutine keeps the
// lease alive. Losing the lease cancels the execution context.
func (m *Manager) executeWithRenewal(ctx context.Context, proc stage.Processor, job *queue.Job, item *queue.WorkItem) error {
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	interval := m.renewInterval
	if interval <= 0 {
		interval = m.dispatcher.LeaseDuration() / 3
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-execCtx.Done():
				return
			case <-ticker.C:
				if err := m.dispatcher.Renew(execCtx, item); err != nil {
					if errors.Is(err, queue.ErrLeaseLost) {
						cancel()
						return
					}
					m.logger.Warn("lease renewal failed", logging.Error(err))
				}
			}
		}
	}()

	err := proc.Execute(execCtx, job)
	cancel()
	wg.Wait()
	return err
}

// advance moves the job to the next stage, enqueues its work item when one
// exists, and removes the finished item.
func (m *Manager) advance(ctx context.Context, job *queue.Job, st queue.Stage, item *queue.WorkItem) error {
	next, ok := st.Next()
	if !ok {
		return errJobSuperseded
	}
	job.MarkStageCompleted(st, time.Now())
	job.Stage = next
	if err := m.persistJob(ctx, job); err != nil {
		return err
	}
	if next.IsWorkStage() {
		if err := m.dispatcher.Enqueue(ctx, job.ID, next); err != nil {
			return err
		}
	}
	if err := m.dispatcher.AckDone(ctx, item); err != nil && !errors.Is(err, queue.ErrLeaseLost) {
		return err
	}
	return nil
}

// persistJob applies the compare-and-swap update, translating a revision
// conflict into errJobSuperseded.
func (m *Manager) persistJob(ctx context.Context, job *queue.Job) error {
	err := m.store.UpdateJob(ctx, job)
	if errors.Is(err, queue.ErrRevisionConflict) || errors.Is(err, queue.ErrJobNotFound) {
		return errJobSuperseded
	}
	return err
}

// discardItem drops a work item whose result no longer matters. A lost lease
// here means reclaim or cancellation already removed the claim.
func (m *Manager) discardItem(ctx context.Context, logger *slog.Logger, item *queue.WorkItem, reason string) {
	logger.Debug("discarding work item", logging.String("reason", reason))
	if err := m.dispatcher.AckDone(ctx, item); err != nil && !errors.Is(err, queue.ErrLeaseLost) {
		logger.Warn("failed to discard work item", logging.Error(err))
	}
}
