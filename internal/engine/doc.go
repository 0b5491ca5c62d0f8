// Package engine implements the traversal engine that mirrors a Notion tree
// into the local store.
//
// ARCHITECTURE:
//
// Frontier:
// A run owns one frontier: the containers pending or in flight. Enqueue is
// idempotent per id, so a container is expanded at most once per run even
// if malformed data points back at an ancestor. A bounded pool of workers
// consumes the frontier; the run ends when nothing is pending and nothing is
// in flight.
//
// Expansion:
// Blocks, pages and databases share one expansion. Each record yields a
// container with a list of fetchers (child blocks, database rows, comments).
// Fetchers of one container run concurrently; a fetcher walks its listing
// through a Pager, strictly in cursor order, assigning sibling indexes as
// it goes.
//
// Single writer:
// Workers never touch the store. Records flow over a channel to one writer
// goroutine, which writes each (kind, id) once per run and counts repeats.
//
// ERRORS:
//
// Transient remote errors are retried with Backoff. Anything still failing
// below the root becomes a SoftFailure: the container's subtree is skipped
// and the run continues. Store failures, structural errors, an unreachable
// root and cancellation abort the run with a *SyncError.
package engine
