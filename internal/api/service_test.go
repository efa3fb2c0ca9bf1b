package api_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"deckforge/internal/api"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/testsupport"
)

func newService(t *testing.T) (*api.Service, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteDocument(t, filepath.Join(cfg.Paths.DocumentsDir, "report.txt"), "Quarterly Report\n\nRevenue grew.")
	return api.NewService(cfg, store, logging.NewNop()), store
}

func TestSubmitJobEnqueuesExtraction(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	job, err := svc.SubmitJob(ctx, "report.txt", "", `{"style":"academic","max_attempts":2}`)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if job.Stage != queue.StageQueued {
		t.Fatalf("stage = %s, want queued", job.Stage)
	}
	if job.DocumentFormat != "txt" {
		t.Fatalf("format = %q, want txt", job.DocumentFormat)
	}
	settings, err := job.ParseSettings()
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	if settings.Style != "academic" || settings.MaxAttempts != 2 {
		t.Fatalf("settings = %+v", settings)
	}

	items, err := store.ListWork(ctx, queue.StageExtracting)
	if err != nil {
		t.Fatalf("ListWork: %v", err)
	}
	if len(items) != 1 || items[0].JobID != job.ID {
		t.Fatalf("expected one extraction item for job %d, got %+v", job.ID, items)
	}
}

func TestSubmitJobRejectsUnknownSettingKey(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.SubmitJob(context.Background(), "report.txt", "", `{"paper_size":"a4"}`)
	if !errors.Is(err, api.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSubmitJobRejectsUnknownStyle(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.SubmitJob(context.Background(), "report.txt", "", `{"style":"vaporwave"}`)
	if !errors.Is(err, api.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSubmitJobRejectsMissingDocument(t *testing.T) {
	svc, _ := newService(t)

	if _, err := svc.SubmitJob(context.Background(), "nope.txt", "", ""); err == nil {
		t.Fatal("expected error for missing document")
	}
}

func TestSubmitJobAcceptsUnsupportedDeclaredFormat(t *testing.T) {
	svc, _ := newService(t)

	// Registry lookup happens at extraction; submission records the format
	// as declared.
	job, err := svc.SubmitJob(context.Background(), "report.txt", "pdf", "")
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if job.DocumentFormat != "pdf" {
		t.Fatalf("format = %q, want pdf", job.DocumentFormat)
	}
}

func TestCancelAndStatusRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.SubmitJob(ctx, "report.txt", "", "")
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if _, err := svc.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	status, err := svc.GetJobStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if status.Stage != string(queue.StageCancelled) {
		t.Fatalf("stage = %q, want cancelled", status.Stage)
	}
	if status.Error != nil {
		t.Fatalf("cancelled job should carry no error, got %+v", status.Error)
	}
}

func TestGetJobStatusSurfacesFailure(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	job, err := svc.SubmitJob(ctx, "report.txt", "", "")
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	fresh, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	fresh.ExtractAttempts = 1
	fresh.SetFailed(queue.StageExtracting, "malformed_input_error", "unsupported document format")
	if err := store.UpdateJob(ctx, fresh); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	status, err := svc.GetJobStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if status.Error == nil {
		t.Fatal("expected error payload for failed job")
	}
	if status.Error.Kind != "malformed_input_error" || status.Error.Stage != string(queue.StageExtracting) {
		t.Fatalf("error = %+v", status.Error)
	}
	if status.AttemptCounts[string(queue.StageExtracting)] != 1 {
		t.Fatalf("extract attempts = %d, want 1", status.AttemptCounts[string(queue.StageExtracting)])
	}
}

func TestRetryJobRequeuesFailedStage(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	job, err := svc.SubmitJob(ctx, "report.txt", "", "")
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	fresh, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	fresh.SetFailed(queue.StageGenerating, "transient_capability_error", "capability call timed out")
	if err := store.UpdateJob(ctx, fresh); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if err := store.DeleteWorkForJob(ctx, job.ID); err != nil {
		t.Fatalf("DeleteWorkForJob: %v", err)
	}

	retried, err := svc.RetryJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryJob: %v", err)
	}
	if retried.Stage != queue.StageGenerating {
		t.Fatalf("stage = %s, want generating", retried.Stage)
	}
	items, err := store.ListWork(ctx, queue.StageGenerating)
	if err != nil {
		t.Fatalf("ListWork: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one generation item, got %d", len(items))
	}
}

func TestRetryJobRejectsNonFailed(t *testing.T) {
	svc, _ := newService(t)

	job, err := svc.SubmitJob(context.Background(), "report.txt", "", "")
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if _, err := svc.RetryJob(context.Background(), job.ID); err == nil {
		t.Fatal("expected retry of non-failed job to be rejected")
	}
}

func TestListJobsFiltersByStage(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.SubmitJob(ctx, "report.txt", "", "")
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if _, err := svc.SubmitJob(ctx, "report.txt", "", ""); err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if _, err := svc.CancelJob(ctx, first.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	cancelled, err := svc.ListJobs(ctx, queue.StageCancelled)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != first.ID {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	all, err := svc.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
}
