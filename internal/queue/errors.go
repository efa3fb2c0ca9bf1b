package queue

import "errors"

// ErrJobNotFound indicates the requested job does not exist.
var ErrJobNotFound = errors.New("job not found")

// ErrRevisionConflict indicates an update lost the compare-and-swap race:
// another writer changed the job since it was read. Callers should re-read
// the job and decide whether their change still applies.
var ErrRevisionConflict = errors.New("job revision conflict")

// ErrLeaseLost indicates a lease-scoped operation presented a token that no
// longer matches the work item. The lease expired and was reclaimed, or the
// item was cancelled out from under the worker.
var ErrLeaseLost = errors.New("work lease lost")
