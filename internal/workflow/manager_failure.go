package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services"
)

// handleStageFailure applies the retry decision for a failed attempt. Retry
// decisions live here, not in the processors, so attempt counts and backoff
// stay consistent across stages.
func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, st queue.Stage, job *queue.Job, item *queue.WorkItem, stageErr error) {
	m.setLastError(stageErr)
	kind := services.Classify(stageErr)
	maxAttempts := m.maxAttemptsFor(job)
	retryable := services.Retryable(stageErr)

	if retryable && item.Attempt < maxAttempts {
		delay := m.retryDelayFor(item.Attempt, stageErr)
		logger.Warn("stage attempt failed, will retry",
			logging.Error(stageErr),
			logging.String("error_kind", string(kind)),
			logging.Int("attempt", item.Attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("backoff", delay),
		)
		if err := m.dispatcher.AckRetry(ctx, item, time.Now().UTC().Add(delay)); err != nil {
			if errors.Is(err, queue.ErrLeaseLost) {
				logger.Debug("lease lost before retry could be recorded")
				return
			}
			logger.Error("failed to re-enqueue stage attempt", logging.Error(err))
		}
		return
	}

	job.SetFailed(st, string(kind), services.Details(stageErr))
	logger.Error("stage failed terminally",
		logging.Error(stageErr),
		logging.String("error_kind", string(kind)),
		logging.Int("attempt", item.Attempt),
		logging.Bool("retryable", retryable),
	)
	if err := m.persistJob(ctx, job); err != nil {
		if errors.Is(err, errJobSuperseded) {
			m.discardItem(ctx, logger, item, "job changed before failure applied")
			return
		}
		logger.Error("failed to persist stage failure", logging.Error(err))
		return
	}
	m.setLastJob(job)
	if err := m.dispatcher.AckDone(ctx, item); err != nil && !errors.Is(err, queue.ErrLeaseLost) {
		logger.Warn("failed to remove work item after terminal failure", logging.Error(err))
	}
}

// maxAttemptsFor resolves the attempt ceiling, honoring a per-job settings
// override when one parses cleanly.
func (m *Manager) maxAttemptsFor(job *queue.Job) int {
	limit := m.cfg.Workflow.MaxAttempts
	if settings, err := job.ParseSettings(); err == nil && settings.MaxAttempts > 0 {
		limit = settings.MaxAttempts
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// retryDelayFor computes the hold-off before the next attempt. A provider
// rate-limit hint stretches the jittered backoff but never shortens it.
func (m *Manager) retryDelayFor(attempt int, err error) time.Duration {
	delay := backoffDelay(attempt, m.backoffBase(), m.backoffMax())
	if hint := services.RetryAfterHint(err); hint > delay {
		delay = hint
	}
	return delay
}

func (m *Manager) backoffBase() time.Duration {
	return time.Duration(m.cfg.Workflow.BackoffBaseSeconds) * time.Second
}

func (m *Manager) backoffMax() time.Duration {
	return time.Duration(m.cfg.Workflow.BackoffMaxSeconds) * time.Second
}
