package engine

import (
	"context"
	"sync"

	"github.com/roach88/notionsync/internal/notion"
)

// Target is a container waiting to be expanded.
type Target struct {
	ID   string
	Kind notion.Kind

	// Record is the container's record when a listing already returned it.
	// Nil means the worker must fetch it first.
	Record notion.Object
}

// frontier is the set of containers pending or in flight during one run.
//
// Every id is admitted at most once per run: Enqueue of an id that is
// pending, in flight, or already expanded is a no-op. The run is complete
// when nothing is pending and nothing is in flight.
//
// Waiters block on a broadcast channel that is closed and replaced on every
// state change, so any number of workers can wait with a context.
type frontier struct {
	mu       sync.Mutex
	pending  []Target
	admitted map[string]struct{}
	inflight int
	visited  int
	closed   bool
	changed  chan struct{}
	onVisit  func(Target)
}

func newFrontier(onVisit func(Target)) *frontier {
	return &frontier{
		pending:  make([]Target, 0, 64),
		admitted: make(map[string]struct{}),
		changed:  make(chan struct{}),
		onVisit:  onVisit,
	}
}

// Enqueue adds t unless its id was already admitted this run.
// Returns true if t was added.
func (f *frontier) Enqueue(t Target) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if _, ok := f.admitted[t.ID]; ok {
		return false
	}
	f.admitted[t.ID] = struct{}{}
	f.pending = append(f.pending, t)
	f.broadcastLocked()
	return true
}

// Next removes a pending target and marks it in flight. It blocks while
// other targets are in flight and may still enqueue work. Returns false when
// the frontier is drained or closed.
func (f *frontier) Next(ctx context.Context) (Target, bool, error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return Target{}, false, nil
		}
		if len(f.pending) > 0 {
			t := f.pending[0]
			f.pending[0] = Target{}
			if len(f.pending) == 1 {
				f.pending = f.pending[:0]
			} else {
				f.pending = f.pending[1:]
			}
			f.inflight++
			f.visited++
			onVisit := f.onVisit
			f.mu.Unlock()

			if onVisit != nil {
				onVisit(t)
			}
			return t, true, nil
		}
		if f.inflight == 0 {
			f.closeLocked()
			f.mu.Unlock()
			return Target{}, false, nil
		}
		wait := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return Target{}, false, ctx.Err()
		case <-wait:
		}
	}
}

// Done marks a target returned by Next as expanded.
func (f *frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	f.broadcastLocked()
}

// Close stops admitting work and wakes all waiters.
func (f *frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

// Visited returns the number of targets handed out by Next.
func (f *frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited
}

// Len returns the number of pending targets.
func (f *frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *frontier) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	f.broadcastLocked()
}

func (f *frontier) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}
