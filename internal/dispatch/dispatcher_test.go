package dispatch_test

import (
	"context"
	"testing"
	"time"

	"deckforge/internal/dispatch"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/testsupport"
)

func TestLeaseHonorsConfiguredCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.ExtractConcurrency = 1
	store := testsupport.MustOpenStore(t, cfg)
	d := dispatch.New(cfg, store, logging.NewNop())
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "a.txt", "A")
	second := testsupport.NewJob(t, store, "b.txt", "B")
	for _, job := range []*queue.Job{first, second} {
		if err := d.Enqueue(ctx, job.ID, queue.StageExtracting); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	held, err := d.Lease(ctx, queue.StageExtracting)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if held == nil || held.JobID != first.ID {
		t.Fatalf("expected to lease job %d first, got %+v", first.ID, held)
	}
	if blocked, err := d.Lease(ctx, queue.StageExtracting); err != nil || blocked != nil {
		t.Fatalf("expected cap to block second lease, got %+v err %v", blocked, err)
	}

	if err := d.AckDone(ctx, held); err != nil {
		t.Fatalf("AckDone: %v", err)
	}
	next, err := d.Lease(ctx, queue.StageExtracting)
	if err != nil {
		t.Fatalf("Lease after ack: %v", err)
	}
	if next == nil || next.JobID != second.ID {
		t.Fatalf("expected job %d after ack, got %+v", second.ID, next)
	}
}

func TestCapDefaultsToOne(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.GenerateConcurrency = 0
	d := dispatch.New(cfg, testsupport.MustOpenStore(t, cfg), logging.NewNop())
	if got := d.Cap(queue.StageGenerating); got != 1 {
		t.Fatalf("Cap = %d, want 1", got)
	}
}

func TestReclaimReturnsExpiredLease(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLeaseSeconds(0))
	store := testsupport.MustOpenStore(t, cfg)
	d := dispatch.New(cfg, store, logging.NewNop())
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "a.txt", "A")
	if err := d.Enqueue(ctx, job.ID, queue.StageExtracting); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	held, err := d.Lease(ctx, queue.StageExtracting)
	if err != nil || held == nil {
		t.Fatalf("Lease: item %+v err %v", held, err)
	}

	time.Sleep(5 * time.Millisecond)
	reclaimed, err := d.Reclaim(ctx)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	item, err := store.GetWorkItem(ctx, held.ID)
	if err != nil {
		t.Fatalf("GetWorkItem: %v", err)
	}
	if item.LeaseToken != "" {
		t.Fatal("expected lease cleared after reclaim")
	}
	if item.Attempt != held.Attempt+1 {
		t.Fatalf("attempt = %d, want %d", item.Attempt, held.Attempt+1)
	}
	if err := d.AckDone(ctx, held); err == nil {
		t.Fatal("expected stale ack to fail after reclaim")
	}
}
