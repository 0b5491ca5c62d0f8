package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
	"github.com/roach88/notionsync/internal/testutil"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordedSleep replaces Backoff sleeping with bookkeeping.
type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordedSleep) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// testBackoff is DefaultBackoff without jitter or real sleeping.
func testBackoff(rec *recordedSleep) Backoff {
	b := DefaultBackoff()
	b.Jitter = 0
	b.sleep = rec.sleep
	return b
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an engine with deterministic ids and time, silent
// logging and instant retries.
func newTestEngine(s Store, r Remote, opts ...EngineOption) (*Engine, *recordedSleep) {
	rec := &recordedSleep{}
	base := []EngineOption{
		WithBackoff(testBackoff(rec)),
		WithRunIDGenerator(testutil.NewSequenceGenerator("run")),
		WithClock(testutil.NewStepClock(testutil.FixtureTime, time.Second)),
		WithLogger(discardLogger()),
	}
	return New(s, r, append(base, opts...)...), rec
}

// visitCounter counts how often each container starts expanding.
type visitCounter struct {
	mu     sync.Mutex
	visits map[string]int
}

func newVisitCounter() *visitCounter {
	return &visitCounter{visits: make(map[string]int)}
}

func (v *visitCounter) hook(t Target) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visits[t.ID]++
}

func (v *visitCounter) snapshot() map[string]int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]int, len(v.visits))
	for k, n := range v.visits {
		out[k] = n
	}
	return out
}

// failingStore fails upserts of one id.
type failingStore struct {
	*store.Store
	failID string
	err    error
}

func (s *failingStore) UpsertBlock(ctx context.Context, b *notion.Block) error {
	if b.ID == s.failID {
		return s.err
	}
	return s.Store.UpsertBlock(ctx, b)
}

func (s *failingStore) UpsertPage(ctx context.Context, p *notion.Page) error {
	if p.ID == s.failID {
		return s.err
	}
	return s.Store.UpsertPage(ctx, p)
}

// memoryStore records upserts in memory, for tests that only need counts.
type memoryStore struct {
	mu      sync.Mutex
	upserts map[notion.Kind][]string
	runs    []store.Run
}

func newMemoryStore() *memoryStore {
	return &memoryStore{upserts: make(map[notion.Kind][]string)}
}

func (m *memoryStore) record(obj notion.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts[obj.Kind()] = append(m.upserts[obj.Kind()], obj.ObjectID())
	return nil
}

func (m *memoryStore) UpsertBlock(_ context.Context, b *notion.Block) error       { return m.record(b) }
func (m *memoryStore) UpsertPage(_ context.Context, p *notion.Page) error         { return m.record(p) }
func (m *memoryStore) UpsertDatabase(_ context.Context, d *notion.Database) error { return m.record(d) }
func (m *memoryStore) UpsertComment(_ context.Context, c *notion.Comment) error   { return m.record(c) }

func (m *memoryStore) BeginRun(_ context.Context, run store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryStore) FinishRun(_ context.Context, run store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryStore) ids(kind notion.Kind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.upserts[kind]...)
}
