package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"deckforge/internal/config"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
)

// Dispatcher hands out work item leases with per-stage concurrency caps and
// reclaims leases whose holders went quiet. The caps are the system's
// backpressure: no matter how deep a stage's queue gets, at most the
// configured number of leases are live at once.
type Dispatcher struct {
	store    *queue.Store
	logger   *slog.Logger
	caps     map[queue.Stage]int
	leaseFor time.Duration
	reclaim  time.Duration
}

// New builds a Dispatcher from configuration.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		logger: logging.NewComponentLogger(logger, "dispatch"),
		caps: map[queue.Stage]int{
			queue.StageExtracting: cfg.Workflow.ExtractConcurrency,
			queue.StageGenerating: cfg.Workflow.GenerateConcurrency,
			queue.StageOptimizing: cfg.Workflow.OptimizeConcurrency,
		},
		leaseFor: time.Duration(cfg.Workflow.LeaseSeconds) * time.Second,
		reclaim:  time.Duration(cfg.Workflow.ReclaimInterval) * time.Second,
	}
}

// Cap returns the lease cap for a stage.
func (d *Dispatcher) Cap(stage queue.Stage) int {
	if cap, ok := d.caps[stage]; ok && cap > 0 {
		return cap
	}
	return 1
}

// LeaseDuration returns the configured lease lifetime.
func (d *Dispatcher) LeaseDuration() time.Duration {
	return d.leaseFor
}

// Enqueue adds a work item for a job's stage.
func (d *Dispatcher) Enqueue(ctx context.Context, jobID int64, stage queue.Stage) error {
	return d.store.EnqueueWork(ctx, jobID, stage)
}

// Lease claims at most one eligible item for the stage, honoring the
// per-stage cap. Returns nil when the queue is empty or the cap is reached.
func (d *Dispatcher) Lease(ctx context.Context, stage queue.Stage) (*queue.WorkItem, error) {
	return d.store.LeaseWork(ctx, stage, d.Cap(stage), d.leaseFor)
}

// Renew extends the lease on a held item.
func (d *Dispatcher) Renew(ctx context.Context, item *queue.WorkItem) error {
	return d.store.RenewLease(ctx, item.ID, item.LeaseToken, d.leaseFor)
}

// AckDone removes a finished item from the queue, for both success and
// terminal failure.
func (d *Dispatcher) AckDone(ctx context.Context, item *queue.WorkItem) error {
	return d.store.AckDone(ctx, item.ID, item.LeaseToken)
}

// AckRetry returns an item to the queue with a hold-off for the next attempt.
func (d *Dispatcher) AckRetry(ctx context.Context, item *queue.WorkItem, notBefore time.Time) error {
	return d.store.AckRetry(ctx, item.ID, item.LeaseToken, notBefore)
}

// Reclaim returns expired leases to the queue once.
func (d *Dispatcher) Reclaim(ctx context.Context) (int64, error) {
	return d.store.ReclaimExpired(ctx, time.Now().UTC())
}

// RunReclaimer periodically reclaims expired leases until the context ends.
func (d *Dispatcher) RunReclaimer(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	interval := d.reclaim
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := d.Reclaim(ctx)
			if err != nil {
				d.logger.Warn("lease reclaim failed", logging.Error(err))
				continue
			}
			if reclaimed > 0 {
				d.logger.Info("reclaimed expired leases", logging.Int64("count", reclaimed))
			}
		}
	}
}
