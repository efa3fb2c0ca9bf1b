package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"deckforge/internal/config"
	"deckforge/internal/dispatch"
	"deckforge/internal/extraction"
	"deckforge/internal/generation"
	"deckforge/internal/logging"
	"deckforge/internal/optimization"
	"deckforge/internal/queue"
	"deckforge/internal/stage"
)

// Processors binds one processor to each work stage.
type Processors struct {
	Extract  stage.Processor
	Generate stage.Processor
	Optimize stage.Processor
}

func (p Processors) forStage(st queue.Stage) stage.Processor {
	switch st {
	case queue.StageExtracting:
		return p.Extract
	case queue.StageGenerating:
		return p.Generate
	case queue.StageOptimizing:
		return p.Optimize
	default:
		return nil
	}
}

// Manager advances jobs through the pipeline. It runs a pool of workers per
// work stage, each leasing items from the dispatcher and feeding them into
// the stage's processor, plus a background reclaimer for expired leases.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	dispatcher *dispatch.Dispatcher
	procs      Processors
	logger     *slog.Logger

	pollInterval  time.Duration
	renewInterval time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a manager with the production stage processors.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithProcessors(cfg, store, logger, Processors{
		Extract:  extraction.New(cfg, store, logger),
		Generate: generation.New(cfg, store, logger),
		Optimize: optimization.New(cfg, store, logger),
	})
}

// NewManagerWithProcessors constructs a manager with injected processors
// (used in tests).
func NewManagerWithProcessors(cfg *config.Config, store *queue.Store, logger *slog.Logger, procs Processors) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		dispatcher:    dispatch.New(cfg, store, logger),
		procs:         procs,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		renewInterval: time.Duration(cfg.Workflow.LeaseRenewInterval) * time.Second,
	}
}

// Dispatcher exposes the manager's dispatcher, primarily for submission.
func (m *Manager) Dispatcher() *dispatch.Dispatcher {
	return m.dispatcher
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	for _, st := range queue.WorkStages() {
		if m.procs.forStage(st) == nil {
			return errors.New("workflow stages not configured")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, st := range queue.WorkStages() {
		workers := m.dispatcher.Cap(st)
		for i := 0; i < workers; i++ {
			m.wg.Add(1)
			go m.runWorker(runCtx, st)
		}
	}
	m.wg.Add(1)
	go m.dispatcher.RunReclaimer(runCtx, &m.wg)

	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		cp := *job
		m.lastJob = &cp
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *queue.Job
	QueueStats  queue.Stats
	StageHealth map[queue.Stage]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[queue.Stage]stage.Health, 3)
	for _, st := range queue.WorkStages() {
		proc := m.procs.forStage(st)
		if proc == nil {
			continue
		}
		health[st] = proc.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		cp := *lastJob
		summary.LastJob = &cp
	}
	return summary
}
