// Package queue persists jobs, chunk plans, stage outputs, and dispatchable
// work items in SQLite.
//
// The Store manages database connections, schema initialization, stats
// queries, and the lease protocol used by the dispatcher. Job writes are
// guarded by a revision column: every UpdateJob is a compare-and-swap, so a
// worker whose lease lapsed cannot clobber a job that moved on without it.
// Work items carry their own lease token and deadline; token-guarded
// acknowledgement means a reclaimed item silently rejects its old holder.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users clear the database to adopt the new schema.
package queue
