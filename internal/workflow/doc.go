// Package workflow advances jobs through the conversion pipeline.
//
// The Manager runs a worker pool per work stage (extracting, generating,
// optimizing). Each worker leases an item from the dispatcher, records the
// attempt on the job, runs the stage processor while renewing the lease, and
// then either advances the job to the next stage or applies the retry
// decision. All job mutations go through the store's compare-and-swap
// update, so a cancellation recorded first beats a late success report and
// a worker whose lease was reclaimed cannot overwrite its successor's work.
//
// Processors never retry internally. Retry policy, attempt counting, and
// backoff live here so they are uniform across stages and visible in one
// place.
package workflow
