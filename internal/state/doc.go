// Package state persists what devservices has started so that repeated
// invocations are idempotent and shared dependencies are reference counted.
//
// The store is a SQLite database (by default
// ~/.local/share/devservices/state.db) with four tables:
//
//   - records: one row per running dependency, keyed by graph node ID, with
//     its status, runtime, adapter handle and referrer count
//   - claims: one row per (service, dependency, mode) that needs it running
//   - runtimes: the runtime preference set by toggle, kept while stopped
//   - starting: dependencies claimed by an in-flight up, with the owning PID
//
// Referrer counts change only together with the claims table, inside one
// transaction, using referrers = referrers ± 1. Deleting the database is
// safe: a missing record reads as not_running.
package state
