package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
	"github.com/roach88/notionsync/internal/testutil"
)

// Harness runs one scenario against a fresh store.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	remote   *testutil.FakeRemote
	runIDs   *testutil.SequenceGenerator
	clock    *testutil.StepClock
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario syncs into its own database in a temporary directory,
// removed on return. Execution flow:
//  1. Build the fake remote from the fixture and install the faults
//  2. Sync the fixture root
//  3. Check the expectations against the summary and the store
//  4. Check the invariants every run must satisfy
//
// An error is returned only when the harness itself cannot run; a failing
// sync is reported through the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "notionsync-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "mirror.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	h := newHarness(scenario, st)
	result := NewResult()
	result.Remote = h.remote
	result.Summary, result.SyncErr = h.sync(ctx)

	dump, err := st.Dump(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dump store: %w", err)
	}
	result.Dump = dump

	if err := checkExpectations(ctx, h, result); err != nil {
		return nil, err
	}
	if err := CheckInvariants(ctx, h, result); err != nil {
		return nil, err
	}
	return result, nil
}

// newHarness builds the fake remote for scenario, with its faults
// installed, and deterministic run ids and time.
func newHarness(scenario *Scenario, st *store.Store) *Harness {
	h := &Harness{
		scenario: scenario,
		store:    st,
		remote:   scenario.Fixture.Build(),
		runIDs:   testutil.NewSequenceGenerator("run"),
		clock:    testutil.NewStepClock(testutil.FixtureTime, time.Second),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.installFaults()
	return h
}

// installFaults registers the scenario's faults on the fake remote.
func (h *Harness) installFaults() {
	kinds := fixtureKinds(&h.scenario.Fixture)
	for _, f := range h.scenario.Faults {
		h.remote.Fail(f.Op, f.ID, f.fault(kinds[f.ID]))
	}
}

// sync runs the engine once over the fixture root.
func (h *Harness) sync(ctx context.Context) (*engine.Summary, error) {
	opts := []engine.EngineOption{
		engine.WithBackoff(h.backoff()),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
	}
	if h.scenario.Concurrency > 0 {
		opts = append(opts, engine.WithConcurrency(h.scenario.Concurrency))
	}
	if h.scenario.Comments != "" {
		opts = append(opts, engine.WithCommentScope(engine.CommentScope(h.scenario.Comments)))
	}
	eng := engine.New(h.store, h.remote, opts...)
	return eng.Sync(ctx, h.scenario.Fixture.RootID())
}

// backoff retries with millisecond delays so faults resolve without real
// waiting. Fault Retry-After hints still raise the delay.
func (h *Harness) backoff() engine.Backoff {
	b := engine.DefaultBackoff()
	if h.scenario.MaxAttempts > 0 {
		b.MaxAttempts = h.scenario.MaxAttempts
	}
	b.InitialDelay = time.Millisecond
	b.MaxDelay = time.Millisecond
	b.Multiplier = 1
	b.Jitter = 0
	return b
}

// fixtureKinds maps every fixture node id to its kind.
func fixtureKinds(fx *testutil.Fixture) map[string]notion.Kind {
	kinds := make(map[string]notion.Kind)
	walkNodes(fx.Nodes, func(n testutil.Node) {
		kind := notion.KindBlock
		if n.Kind != "" {
			kind = notion.Kind(n.Kind)
		}
		kinds[n.ID] = kind
	})
	return kinds
}

func walkNodes(nodes []testutil.Node, fn func(testutil.Node)) {
	for _, n := range nodes {
		fn(n)
		walkNodes(n.Children, fn)
	}
}
