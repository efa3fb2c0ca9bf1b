package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deckforge/internal/config"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services"
	"deckforge/internal/stage"
	"deckforge/internal/testsupport"
	"deckforge/internal/workflow"
)

type stubProcessor struct {
	name    string
	prepare func(*queue.Job) error
	execute func(*queue.Job) error
	health  stage.Health

	mu    sync.Mutex
	calls int
}

func newStubProcessor(name string) *stubProcessor {
	return &stubProcessor{name: name, health: stage.Healthy(name)}
}

func (s *stubProcessor) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepare != nil {
		return s.prepare(job)
	}
	return nil
}

func (s *stubProcessor) Execute(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.execute != nil {
		return s.execute(job)
	}
	return nil
}

func (s *stubProcessor) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubProcessor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func workflowConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	cfg.Workflow.BackoffBaseSeconds = 0
	cfg.Workflow.BackoffMaxSeconds = 0
	cfg.Workflow.MaxAttempts = 3
	return cfg
}

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, procs workflow.Processors) *workflow.Manager {
	t.Helper()
	mgr := workflow.NewManagerWithProcessors(cfg, store, logging.NewNop(), procs)
	ctx, cancel := context.WithCancel(context.Background())
	if err := mgr.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		mgr.Stop()
		cancel()
	})
	return mgr
}

func submitJob(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()
	job := testsupport.NewJob(t, store, "report.txt", "Report")
	if err := store.EnqueueWork(context.Background(), job.ID, queue.StageExtracting); err != nil {
		t.Fatalf("EnqueueWork: %v", err)
	}
	return job
}

func waitForStage(t *testing.T, store *queue.Store, jobID int64, want queue.Stage) *queue.Job {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			job, _ := store.GetJob(context.Background(), jobID)
			t.Fatalf("timed out waiting for stage %s, job %+v", want, job)
		default:
		}
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Stage == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerRunsJobToCompletion(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	extract := newStubProcessor("extract")
	generate := newStubProcessor("generate")
	optimize := newStubProcessor("optimize")
	optimize.execute = func(job *queue.Job) error {
		job.ArtifactRef = "decks/final.html"
		return nil
	}
	startManager(t, cfg, store, workflow.Processors{Extract: extract, Generate: generate, Optimize: optimize})

	job := submitJob(t, store)
	final := waitForStage(t, store, job.ID, queue.StageSucceeded)

	for _, st := range queue.WorkStages() {
		if got := final.AttemptsFor(st); got != 1 {
			t.Fatalf("%s attempts = %d, want 1", st, got)
		}
	}
	if extract.Calls() != 1 || generate.Calls() != 1 || optimize.Calls() != 1 {
		t.Fatalf("call counts = %d/%d/%d, want 1/1/1", extract.Calls(), generate.Calls(), optimize.Calls())
	}
	if final.ArtifactRef != "decks/final.html" {
		t.Fatalf("artifact ref = %q", final.ArtifactRef)
	}
	if final.ExtractStartedAt == nil || final.ExtractCompletedAt == nil ||
		final.GenerateStartedAt == nil || final.GenerateCompletedAt == nil ||
		final.OptimizeStartedAt == nil || final.OptimizeCompletedAt == nil {
		t.Fatal("expected all stage timestamps recorded")
	}
	items, err := store.ListWork(context.Background())
	if err != nil {
		t.Fatalf("ListWork: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no work items after completion, got %d", len(items))
	}
}

func TestMalformedInputFailsWithoutRetry(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	extract := newStubProcessor("extract")
	extract.execute = func(*queue.Job) error {
		return services.Wrap(services.ErrMalformedInput, "extracting", "build chunk plan", "unsupported document format", nil)
	}
	generate := newStubProcessor("generate")
	startManager(t, cfg, store, workflow.Processors{Extract: extract, Generate: generate, Optimize: newStubProcessor("optimize")})

	job := submitJob(t, store)
	failed := waitForStage(t, store, job.ID, queue.StageFailed)

	if failed.ExtractAttempts != 1 {
		t.Fatalf("extract attempts = %d, want 1", failed.ExtractAttempts)
	}
	if failed.ErrorKind != string(services.ClassMalformed) {
		t.Fatalf("error kind = %q", failed.ErrorKind)
	}
	if failed.ErrorStage != queue.StageExtracting {
		t.Fatalf("error stage = %q", failed.ErrorStage)
	}
	if generate.Calls() != 0 {
		t.Fatalf("generation ran %d times after terminal extraction failure", generate.Calls())
	}
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	var mu sync.Mutex
	failures := 2
	generate := newStubProcessor("generate")
	generate.execute = func(*queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return services.Wrap(services.ErrTransient, "generating", "draft deck", "capability call timed out", errors.New("timeout"))
		}
		return nil
	}
	startManager(t, cfg, store, workflow.Processors{Extract: newStubProcessor("extract"), Generate: generate, Optimize: newStubProcessor("optimize")})

	job := submitJob(t, store)
	final := waitForStage(t, store, job.ID, queue.StageSucceeded)

	if final.GenerateAttempts != 3 {
		t.Fatalf("generate attempts = %d, want 3", final.GenerateAttempts)
	}
	if generate.Calls() != 3 {
		t.Fatalf("generate calls = %d, want 3", generate.Calls())
	}
}

func TestAttemptExhaustionFailsJobForGood(t *testing.T) {
	cfg := workflowConfig(t)
	cfg.Workflow.MaxAttempts = 2
	store := testsupport.MustOpenStore(t, cfg)

	generate := newStubProcessor("generate")
	generate.execute = func(*queue.Job) error {
		return services.Wrap(services.ErrTransient, "generating", "draft deck", "capability call timed out", nil)
	}
	startManager(t, cfg, store, workflow.Processors{Extract: newStubProcessor("extract"), Generate: generate, Optimize: newStubProcessor("optimize")})

	job := submitJob(t, store)
	failed := waitForStage(t, store, job.ID, queue.StageFailed)

	if failed.GenerateAttempts != 2 {
		t.Fatalf("generate attempts = %d, want 2", failed.GenerateAttempts)
	}
	if failed.ErrorKind != string(services.ClassTransient) {
		t.Fatalf("error kind = %q", failed.ErrorKind)
	}

	// The job must never re-enter the queue once failed.
	time.Sleep(200 * time.Millisecond)
	items, err := store.ListWork(context.Background())
	if err != nil {
		t.Fatalf("ListWork: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty queue after exhaustion, got %d items", len(items))
	}
	if still, _ := store.GetJob(context.Background(), job.ID); still.Stage != queue.StageFailed {
		t.Fatalf("stage = %s, want failed", still.Stage)
	}
}

func TestCancelDuringGenerationDiscardsLateSuccess(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	generate := newStubProcessor("generate")
	generate.execute = func(*queue.Job) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}
	optimize := newStubProcessor("optimize")
	startManager(t, cfg, store, workflow.Processors{Extract: newStubProcessor("extract"), Generate: generate, Optimize: optimize})

	job := submitJob(t, store)
	<-started

	cancelled, err := workflow.Cancel(context.Background(), store, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Stage != queue.StageCancelled {
		t.Fatalf("stage after cancel = %s", cancelled.Stage)
	}
	close(release)

	// The late success report must be discarded, not applied.
	time.Sleep(300 * time.Millisecond)
	final, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if final.Stage != queue.StageCancelled {
		t.Fatalf("stage = %s, want cancelled", final.Stage)
	}
	if optimize.Calls() != 0 {
		t.Fatalf("optimization ran %d times on a cancelled job", optimize.Calls())
	}
	items, err := store.ListWork(context.Background())
	if err != nil {
		t.Fatalf("ListWork: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no work items for cancelled job, got %d", len(items))
	}
}

func TestCancelTerminalJobIsNoOp(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	startManager(t, cfg, store, workflow.Processors{
		Extract:  newStubProcessor("extract"),
		Generate: newStubProcessor("generate"),
		Optimize: newStubProcessor("optimize"),
	})

	job := submitJob(t, store)
	waitForStage(t, store, job.ID, queue.StageSucceeded)

	after, err := workflow.Cancel(context.Background(), store, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if after.Stage != queue.StageSucceeded {
		t.Fatalf("stage = %s, want succeeded", after.Stage)
	}
}

func TestPerJobMaxAttemptsOverride(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	generate := newStubProcessor("generate")
	generate.execute = func(*queue.Job) error {
		return services.Wrap(services.ErrTransient, "generating", "draft deck", "capability call timed out", nil)
	}
	startManager(t, cfg, store, workflow.Processors{Extract: newStubProcessor("extract"), Generate: generate, Optimize: newStubProcessor("optimize")})

	job, err := store.NewJob(context.Background(), "report.txt", "txt", "Report", `{"max_attempts":1}`)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := store.EnqueueWork(context.Background(), job.ID, queue.StageExtracting); err != nil {
		t.Fatalf("EnqueueWork: %v", err)
	}

	failed := waitForStage(t, store, job.ID, queue.StageFailed)
	if failed.GenerateAttempts != 1 {
		t.Fatalf("generate attempts = %d, want 1", failed.GenerateAttempts)
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	extract := newStubProcessor("extract")
	extract.health = stage.Unhealthy("extract", "capability unreachable")
	mgr := workflow.NewManagerWithProcessors(cfg, store, logging.NewNop(), workflow.Processors{
		Extract:  extract,
		Generate: newStubProcessor("generate"),
		Optimize: newStubProcessor("optimize"),
	})

	status := mgr.Status(context.Background())
	health, ok := status.StageHealth[queue.StageExtracting]
	if !ok {
		t.Fatal("expected health entry for extraction")
	}
	if health.Ready {
		t.Fatalf("expected not ready, got %+v", health)
	}
	if health.Detail != "capability unreachable" {
		t.Fatalf("detail = %q", health.Detail)
	}
	if status.Running {
		t.Fatal("manager not started, Running should be false")
	}
}
