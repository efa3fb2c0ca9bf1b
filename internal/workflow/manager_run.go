package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"deckforge/internal/logging"
	"deckforge/internal/queue"
)

func (m *Manager) runWorker(ctx context.Context, st queue.Stage) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("stage", string(st)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := m.dispatcher.Lease(ctx, st)
		if err != nil {
			m.handleLeaseError(ctx, logger, err)
			continue
		}
		if item == nil {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := m.processItem(ctx, st, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) handleLeaseError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to lease work item", logging.Error(err))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
