package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
)

// writeKey identifies an entity within a run.
type writeKey struct {
	kind notion.Kind
	id   string
}

// writer is the single goroutine that applies every upsert of a run.
//
// Workers hand records over a channel; the writer owns the set of entities
// already written this run, so a record returned twice (a repeated listing,
// a malformed cycle) is written exactly once. Writes use a context detached
// from cancellation: a record accepted by the writer is always written
// completely.
type writer struct {
	store  Store
	in     chan notion.Object
	logger *slog.Logger

	// Owned by the writer goroutine until run returns.
	written    map[writeKey]struct{}
	counts     map[notion.Kind]int
	duplicates int
}

func newWriter(s Store, buffer int, logger *slog.Logger) *writer {
	return &writer{
		store:   s,
		in:      make(chan notion.Object, buffer),
		logger:  logger,
		written: make(map[writeKey]struct{}),
		counts:  make(map[notion.Kind]int, len(notion.Kinds)),
	}
}

// send hands obj to the writer. It fails only if ctx is done first.
func (w *writer) send(ctx context.Context, obj notion.Object) error {
	select {
	case w.in <- obj:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close signals that no more records will be sent.
func (w *writer) close() {
	close(w.in)
}

// run applies records until the channel is closed or a write fails.
func (w *writer) run(ctx context.Context) error {
	wctx := context.WithoutCancel(ctx)
	for obj := range w.in {
		if err := w.write(wctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) write(ctx context.Context, obj notion.Object) error {
	key := writeKey{kind: obj.Kind(), id: obj.ObjectID()}
	if _, ok := w.written[key]; ok {
		w.duplicates++
		w.logger.Debug("repeated", "kind", key.kind, "id", key.id)
		return nil
	}

	if err := store.Upsert(ctx, w.store, obj); err != nil {
		return &SyncError{Code: ErrCodeStoreWrite, ID: key.id, Op: "upsert_" + string(key.kind), Err: err}
	}

	w.written[key] = struct{}{}
	w.counts[key.kind]++
	w.logger.Debug("persisted", "kind", key.kind, "id", key.id)
	return nil
}
