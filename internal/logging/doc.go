// Package logging wraps log/slog with the handlers and helpers the daemon
// and CLI share: a compact console handler, a JSON handler for machine
// consumption, attribute aliases, and context-derived job/stage fields.
package logging
