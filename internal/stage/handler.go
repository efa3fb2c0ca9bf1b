package stage

import (
	"context"

	"deckforge/internal/queue"
)

// Processor describes the contract the workflow manager needs from each
// pipeline stage. Prepare validates inputs and loads prior stage output,
// Execute performs the work and records the stage's own output. Both must
// honor context cancellation; neither mutates the job's stage, which is the
// state machine's responsibility.
type Processor interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
