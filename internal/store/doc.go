// Package store provides the SQLite-backed local mirror of a Notion tree.
//
// One table per entity kind, keyed by the remote identifier:
//   - blocks: parent reference, sibling index, type tag and payload
//   - pages: properties, urls, icon, cover
//   - databases: page columns plus is_inline, title, description
//   - comments: discussion id and rich text
//
// plus sync_runs, one row per engine run.
//
// # Write Semantics
//
// Every upsert overwrites the whole row (last-write-wins). Nothing is merged
// and no history is kept. Rows are never deleted: archived/in_trash flags
// are mirrored as data.
//
// Structured sub-objects are stored as canonical JSON text (see
// internal/canonical) and timestamps as fixed-width UTC strings, so syncing
// an unchanged tree twice leaves every entity row byte-identical.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single open connection: all writes are serialized
package store
