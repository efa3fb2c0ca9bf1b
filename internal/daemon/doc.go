// Package daemon ties the queue store, workflow manager, and preflight
// checks into a single long-running process. A flock-based lock file keeps
// a second instance from sharing the queue database.
package daemon
