// Package storage provides persistence backends for the usage event log.
//
// # Overview
//
// The usage event log is append-only: events are written once, never
// updated or deleted, and retained indefinitely for billing and audit.
// Two backends implement the usage.Store interface:
//
//   - MemoryStore: in-memory slice, for development and tests
//   - SQLiteStore: durable SQLite file with WAL mode and prepared statements
//
// The SQLite backend can run on either the cgo driver (mattn/go-sqlite3)
// or the pure-Go driver (modernc.org/sqlite), selected by configuration.
//
// # Multi-instance deployments
//
// The event store is the shared source of truth across process instances.
// Monthly quota aggregates are computed from it on every evaluation, so
// multiple instances pointed at the same store enforce quotas consistently
// even though each instance runs its own in-process request rate limiter.
package storage
