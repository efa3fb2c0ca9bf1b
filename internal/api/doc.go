// Package api exposes the job operations the CLI builds on: submission with
// strict settings validation, cancellation, status, listing, and retry of
// failed jobs. All functions are safe to call concurrently for different
// job ids.
package api
