package api

import (
	"time"

	"deckforge/internal/queue"
)

// JobError is the stable failure surface for terminal-failed jobs: a
// classification and originating stage, never an internal trace.
type JobError struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
}

// StageTiming reports when one work stage started and finished.
type StageTiming struct {
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobStatus describes a job in a transport-friendly format.
type JobStatus struct {
	ID             int64                  `json:"id"`
	DocumentRef    string                 `json:"documentRef"`
	DocumentFormat string                 `json:"documentFormat"`
	Title          string                 `json:"title,omitempty"`
	Stage          string                 `json:"stage"`
	AttemptCounts  map[string]int         `json:"attemptCounts"`
	Timings        map[string]StageTiming `json:"timings,omitempty"`
	ArtifactRef    string                 `json:"artifactRef,omitempty"`
	Error          *JobError              `json:"error,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func jobStatusFromJob(job *queue.Job) JobStatus {
	status := JobStatus{
		ID:             job.ID,
		DocumentRef:    job.DocumentRef,
		DocumentFormat: job.DocumentFormat,
		Title:          job.Title,
		Stage:          string(job.Stage),
		ArtifactRef:    job.ArtifactRef,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		AttemptCounts: map[string]int{
			string(queue.StageExtracting): job.ExtractAttempts,
			string(queue.StageGenerating): job.GenerateAttempts,
			string(queue.StageOptimizing): job.OptimizeAttempts,
		},
		Timings: map[string]StageTiming{
			string(queue.StageExtracting): {StartedAt: job.ExtractStartedAt, CompletedAt: job.ExtractCompletedAt},
			string(queue.StageGenerating): {StartedAt: job.GenerateStartedAt, CompletedAt: job.GenerateCompletedAt},
			string(queue.StageOptimizing): {StartedAt: job.OptimizeStartedAt, CompletedAt: job.OptimizeCompletedAt},
		},
	}
	if job.Stage == queue.StageFailed {
		status.Error = &JobError{
			Kind:    job.ErrorKind,
			Stage:   string(job.ErrorStage),
			Message: job.ErrorMessage,
		}
	}
	return status
}
