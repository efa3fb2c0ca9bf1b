package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"deckforge/internal/config"
	"deckforge/internal/documents"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services/render"
	"deckforge/internal/workflow"
)

// ErrInvalidSettings marks a submission rejected for bad settings. The job is
// never created; unrecognized options fail here instead of being ignored.
var ErrInvalidSettings = errors.New("invalid settings")

// Service exposes the job operations consumed by the CLI and any future
// transport layer. Safe for concurrent use across different job ids.
type Service struct {
	cfg    *config.Config
	store  *queue.Store
	docs   *documents.Store
	logger *slog.Logger
}

// NewService constructs the job API service.
func NewService(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		docs:   documents.NewStore(cfg),
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

// SubmitJob validates settings, records the job, and enqueues extraction.
// The declared format may name an unsupported type; that submission is
// accepted and fails at extraction, where the format registry lives.
func (s *Service) SubmitJob(ctx context.Context, documentRef, declaredFormat, rawSettings string) (*queue.Job, error) {
	if strings.TrimSpace(documentRef) == "" {
		return nil, fmt.Errorf("%w: document reference must not be empty", ErrInvalidSettings)
	}

	if _, err := os.Stat(s.docs.Resolve(documentRef)); err != nil {
		return nil, fmt.Errorf("document %q is not readable: %w", documentRef, err)
	}

	settings, err := queue.ParseSettings(rawSettings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if settings.Style != "" && !render.IsStyle(settings.Style) {
		return nil, fmt.Errorf("%w: unknown style %q (choose one of %s)",
			ErrInvalidSettings, settings.Style, strings.Join(render.Styles(), ", "))
	}

	settingsJSON := ""
	if settings != (queue.Settings{}) {
		encoded, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("encode settings: %w", err)
		}
		settingsJSON = string(encoded)
	}

	format := documents.DetectFormat(documentRef, declaredFormat)
	job, err := s.store.NewJob(ctx, documentRef, format, "", settingsJSON)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.store.EnqueueWork(ctx, job.ID, queue.StageExtracting); err != nil {
		return nil, fmt.Errorf("enqueue extraction: %w", err)
	}

	s.logger.Info("job submitted",
		logging.Int64("job_id", job.ID),
		logging.String("document", documentRef),
		logging.String("format", format),
	)
	return job, nil
}

// CancelJob cancels a job. Terminal jobs are left untouched.
func (s *Service) CancelJob(ctx context.Context, jobID int64) (*queue.Job, error) {
	return workflow.Cancel(ctx, s.store, jobID)
}

// GetJobStatus returns the current stage, attempt counts, timings, and for
// failed jobs the stable error classification.
func (s *Service) GetJobStatus(ctx context.Context, jobID int64) (JobStatus, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}
	return jobStatusFromJob(job), nil
}

// ListJobs returns job statuses, optionally filtered by stage.
func (s *Service) ListJobs(ctx context.Context, stages ...queue.Stage) ([]JobStatus, error) {
	jobs, err := s.store.ListJobs(ctx, stages...)
	if err != nil {
		return nil, err
	}
	statuses := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		statuses = append(statuses, jobStatusFromJob(job))
	}
	return statuses, nil
}

// RetryJob re-enqueues a failed job at the stage that failed.
func (s *Service) RetryJob(ctx context.Context, jobID int64) (*queue.Job, error) {
	for {
		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Stage != queue.StageFailed {
			return nil, fmt.Errorf("job %d is %s, only failed jobs can be retried", jobID, job.Stage)
		}

		resume := job.ErrorStage
		if !resume.IsWorkStage() {
			resume = queue.StageExtracting
		}
		job.Stage = resume
		job.ErrorKind = ""
		job.ErrorStage = ""
		job.ErrorMessage = ""
		job.SetAttempts(resume, 0)

		switch err := s.store.UpdateJob(ctx, job); {
		case err == nil:
		case errors.Is(err, queue.ErrRevisionConflict):
			continue
		default:
			return nil, fmt.Errorf("retry job %d: %w", jobID, err)
		}
		if err := s.store.EnqueueWork(ctx, jobID, resume); err != nil {
			return nil, fmt.Errorf("retry job %d: enqueue: %w", jobID, err)
		}
		s.logger.Info("job retried", logging.Int64("job_id", jobID), logging.String("stage", string(resume)))
		return job, nil
	}
}

// Stats returns per-stage job counts.
func (s *Service) Stats(ctx context.Context) (queue.Stats, error) {
	return s.store.Stats(ctx)
}

// ClearTerminal removes succeeded, failed, and cancelled jobs.
func (s *Service) ClearTerminal(ctx context.Context) (int64, error) {
	return s.store.ClearTerminal(ctx)
}
