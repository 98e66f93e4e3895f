// Package store provides the pending mutation store: one queue per action
// kind for mutations buffered while profile identity is unresolved.
//
// The Store holds the queues in memory and writes whole snapshots to a
// durable Backend on Persist (and after every Enqueue), so buffered
// mutations survive process restarts.
//
// # Queue shapes
//
//   - SET, SET_ONCE, ADD, UNION: one merged property object per kind
//   - UNSET: one merged name set, held as name -> true
//   - APPEND: an ordered list of property objects, one per original call
//
// # Merge policy
//
//   - SET overwrites keys, and cancels pending ADD, UNION and UNSET for them
//   - SET_ONCE keeps the first queued value per key, cancels pending UNSET
//   - UNSET removes the key from every other queue (including append items)
//   - ADD sums numerically; a key pending in SET is incremented in place
//   - UNION is a set-union by canonical value equality, first-seen order
//   - APPEND pushes one entry per call
//
// # Taking entries
//
// Take and TakeAppends read and remove a queue under one lock, so each
// pending payload is handed to exactly one flush. Mutations enqueued after
// the take accumulate into a fresh entry and are never lost. Enqueue only
// changes the queues once the new snapshot has been saved.
//
// # Backends
//
//   - SQLiteBackend: WAL-mode SQLite (default for the CLI)
//   - BadgerBackend: embedded BadgerDB key-value store
//   - MemoryBackend: process-local, for tests and ephemeral clients
package store
