package queue

import (
	"strings"
	"time"
)

// Stage represents the lifecycle position of a job.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageExtracting Stage = "extracting"
	StageGenerating Stage = "generating"
	StageOptimizing Stage = "optimizing"
	StageSucceeded  Stage = "succeeded"
	StageFailed     Stage = "failed"
	StageCancelled  Stage = "cancelled"
)

var allStages = []Stage{
	StageQueued,
	StageExtracting,
	StageGenerating,
	StageOptimizing,
	StageSucceeded,
	StageFailed,
	StageCancelled,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// workStages is the ordered processing sequence between the terminal ends.
var workStages = []Stage{StageExtracting, StageGenerating, StageOptimizing}

// stageRank orders stages for the monotonicity invariant: a job's observed
// stage never decreases except for same-stage retries.
var stageRank = map[Stage]int{
	StageQueued:     0,
	StageExtracting: 1,
	StageGenerating: 2,
	StageOptimizing: 3,
	StageSucceeded:  4,
}

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// WorkStages returns the ordered processing stages.
func WorkStages() []Stage {
	cp := make([]Stage, len(workStages))
	copy(cp, workStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a stage permits no further mutation.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageSucceeded, StageFailed, StageCancelled:
		return true
	default:
		return false
	}
}

// IsWorkStage reports whether the stage has a processor attached.
func (s Stage) IsWorkStage() bool {
	switch s {
	case StageExtracting, StageGenerating, StageOptimizing:
		return true
	default:
		return false
	}
}

// Next returns the stage that follows s in the pipeline sequence. The final
// work stage advances to StageSucceeded. Terminal stages have no successor.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageQueued:
		return StageExtracting, true
	case StageExtracting:
		return StageGenerating, true
	case StageGenerating:
		return StageOptimizing, true
	case StageOptimizing:
		return StageSucceeded, true
	default:
		return "", false
	}
}

// Rank returns the ordering position used by the monotonicity invariant.
// Terminal failure stages report -1: they are reachable from anywhere.
func (s Stage) Rank() int {
	if rank, ok := stageRank[s]; ok {
		return rank
	}
	return -1
}

// Job identifies one end-to-end conversion request. Mutated only through the
// store's compare-and-swap update so concurrent advance/retry/cancel calls
// serialize on the revision counter.
type Job struct {
	ID               int64
	DocumentRef      string
	DocumentFormat   string
	Title            string
	SettingsJSON     string
	Stage            Stage
	Revision         int64
	ExtractAttempts  int
	GenerateAttempts int
	OptimizeAttempts int
	ErrorKind        string
	ErrorStage       Stage
	ErrorMessage     string
	ArtifactRef      string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	ExtractStartedAt    *time.Time
	ExtractCompletedAt  *time.Time
	GenerateStartedAt   *time.Time
	GenerateCompletedAt *time.Time
	OptimizeStartedAt   *time.Time
	OptimizeCompletedAt *time.Time
}

// AttemptsFor returns the attempt count recorded for a work stage.
func (j *Job) AttemptsFor(stage Stage) int {
	switch stage {
	case StageExtracting:
		return j.ExtractAttempts
	case StageGenerating:
		return j.GenerateAttempts
	case StageOptimizing:
		return j.OptimizeAttempts
	default:
		return 0
	}
}

// SetAttempts records the attempt count for a work stage.
func (j *Job) SetAttempts(stage Stage, attempts int) {
	switch stage {
	case StageExtracting:
		j.ExtractAttempts = attempts
	case StageGenerating:
		j.GenerateAttempts = attempts
	case StageOptimizing:
		j.OptimizeAttempts = attempts
	}
}

// MarkStageStarted records the start timestamp for a work stage if unset.
func (j *Job) MarkStageStarted(stage Stage, at time.Time) {
	at = at.UTC()
	switch stage {
	case StageExtracting:
		if j.ExtractStartedAt == nil {
			j.ExtractStartedAt = &at
		}
	case StageGenerating:
		if j.GenerateStartedAt == nil {
			j.GenerateStartedAt = &at
		}
	case StageOptimizing:
		if j.OptimizeStartedAt == nil {
			j.OptimizeStartedAt = &at
		}
	}
}

// MarkStageCompleted records the completion timestamp for a work stage.
func (j *Job) MarkStageCompleted(stage Stage, at time.Time) {
	at = at.UTC()
	switch stage {
	case StageExtracting:
		j.ExtractCompletedAt = &at
	case StageGenerating:
		j.GenerateCompletedAt = &at
	case StageOptimizing:
		j.OptimizeCompletedAt = &at
	}
}

// SetFailed marks the job as failed with classification and origin recorded.
func (j *Job) SetFailed(stage Stage, kind, message string) {
	j.Stage = StageFailed
	j.ErrorStage = stage
	j.ErrorKind = kind
	j.ErrorMessage = message
}

// ChunkRole tags how a chunk relates to the source document.
type ChunkRole string

const (
	RoleFull         ChunkRole = "full"
	RoleIntroduction ChunkRole = "introduction"
	RoleBodySample   ChunkRole = "body-sample"
	RoleConclusion   ChunkRole = "conclusion"
)

// Chunk is a bounded, tagged slice of a source document.
type Chunk struct {
	Seq   int       `json:"seq"`
	Role  ChunkRole `json:"role"`
	Start int       `json:"start"`
	End   int       `json:"end"`
	Text  string    `json:"text"`
}

// ChunkSet is the ordered chunk sequence produced from one document for one
// job. Written once at the extraction boundary and immutable thereafter; the
// recorded strategy and parameters make retries reproduce identical chunks.
type ChunkSet struct {
	JobID      int64
	Strategy   string
	ParamsJSON string
	TotalBytes int
	Chunks     []Chunk
	CreatedAt  time.Time
}

// StageOutput is the structured result of one stage. At most one current
// output exists per (job, stage); a retry replaces the prior attempt's output.
type StageOutput struct {
	JobID       int64
	Stage       Stage
	PayloadJSON string
	ProducedAt  time.Time
}

// WorkItem is a queued unit of dispatch. At most one item exists per
// (job, stage); a non-expired lease grants exclusive processing rights.
type WorkItem struct {
	ID            int64
	JobID         int64
	Stage         Stage
	Attempt       int
	EnqueuedAt    time.Time
	NotBefore     *time.Time
	LeaseToken    string
	LeaseDeadline *time.Time
}

// Leased reports whether the item currently holds a live lease.
func (w *WorkItem) Leased(now time.Time) bool {
	return w.LeaseToken != "" && w.LeaseDeadline != nil && w.LeaseDeadline.After(now)
}

// Stats aggregates job counts per stage for diagnostics.
type Stats map[Stage]int

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Succeeded  int
	Failed     int
	Cancelled  int
}
