// Package store provides a bun-based implementation of queue.Store.
//
// It is grounded directly on the teacher's sql package
// (github.com/romanqed/gqs/sql): the same technique — a single
// UPDATE ... WHERE id IN (subquery) ... RETURNING statement to avoid a
// race between selecting eligible rows and transitioning them — drives
// Claim here exactly as it drives the teacher's Puller.Pull.
//
// Unlike the teacher, which targets SQLite and PostgreSQL
// interchangeably through bun's dialect abstraction, this package
// targets PostgreSQL in production (bun/dialect/pgdialect +
// bun/driver/pgdriver) and adds "FOR UPDATE SKIP LOCKED" to the claim
// subquery's select when the dialect supports it, falling back to the
// bare subquery (still race-free thanks to the atomic UPDATE) when it
// doesn't — which is what lets the test suite keep using
// modernc.org/sqlite + bun/dialect/sqlitedialect as the teacher's tests
// do.
//
// # Schema
//
// InitDB creates three tables (batches, dead_letter_items,
// rate_limits) and the indexes Claim, ResetExpired, RequeueDLQ, and
// the monitor's counting primitives depend on. InitDB is idempotent
// and runs inside a transaction, exactly like the teacher's InitDB.
package store
