// Package auditlog provides the SQLite-backed append-only audit trail used by
// the simulator's mutating endpoints.
//
// Every mutation appends one entry recording the actor, role, reason and the
// before/after state of the changed object. Entries are never updated or
// deleted: triggers on the table abort any UPDATE or DELETE, and the Store has
// no API for either. Reset drops and recreates the table so tests do not leak
// entries into one another.
//
// # Identity and Time
//
//   - IDs come from an injectable Generator (UUIDv7 by default)
//   - Timestamps come from a sched.Scheduler, so virtual time in tests yields
//     reproducible entries
//   - Ordering uses the seq column, never the timestamp
//
// # Database Configuration
//
// An empty path opens a private in-memory database. The pool is limited to
// one connection, which also keeps the in-memory database alive for the
// lifetime of the Store.
package auditlog
