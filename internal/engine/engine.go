package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
)

// Remote is the API client consumed by the engine.
//
// Listing operations return one page per call; an empty NextCursor marks the
// final page. Errors are classified with notion.IsTransient and
// notion.IsStructuralError.
type Remote interface {
	// Probe resolves an id of unknown kind to the block it names, if any,
	// and the container to traverse.
	Probe(ctx context.Context, id string) (notion.Probe, error)
	// FetchContainer fetches a block, page or database of known kind.
	FetchContainer(ctx context.Context, id string, kind notion.Kind) (notion.Object, error)
	ListChildren(ctx context.Context, id, cursor string) (notion.ResultPage[*notion.Block], error)
	// QueryDatabaseRows lists a database's rows: pages and nested databases.
	QueryDatabaseRows(ctx context.Context, id, cursor string) (notion.ResultPage[notion.Object], error)
	ListComments(ctx context.Context, id, cursor string) (notion.ResultPage[*notion.Comment], error)
}

// Store is the local mirror consumed by the engine.
type Store interface {
	store.Upserter
	BeginRun(ctx context.Context, run store.Run) error
	FinishRun(ctx context.Context, run store.Run) error
}

// DefaultConcurrency is the number of containers expanded at once.
const DefaultConcurrency = 4

// writeBuffer is the capacity of the channel feeding the writer.
const writeBuffer = 256

// Engine mirrors a remote tree into the store.
//
// Thread-safety model:
//   - Sync(): safe from any goroutine; each call owns its frontier and
//     writer, so concurrent runs never share traversal state
//   - the Store is only ever written from a run's writer goroutine
type Engine struct {
	store       Store
	remote      Remote
	concurrency int
	subFetches  int
	backoff     Backoff
	comments    CommentScope
	onVisit     func(Target)
	runIDs      RunIDGenerator
	clock       Clock
	logger      *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithConcurrency sets how many containers are expanded at once.
// Values below 1 are ignored.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 {
			e.concurrency = n
		}
	}
}

// WithSubFetchLimit sets how many paginated listings one container may run
// at once (its children, its comments, comments of its leaf blocks).
// Defaults to the container concurrency.
func WithSubFetchLimit(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 {
			e.subFetches = n
		}
	}
}

// WithBackoff sets the retry policy for transient remote errors.
func WithBackoff(b Backoff) EngineOption {
	return func(e *Engine) {
		e.backoff = b
	}
}

// WithCommentScope selects which entities have their comments mirrored.
func WithCommentScope(scope CommentScope) EngineOption {
	return func(e *Engine) {
		e.comments = scope
	}
}

// WithVisitHook registers fn to be called each time a container starts
// expanding. fn may be called from several goroutines at once.
func WithVisitHook(fn func(Target)) EngineOption {
	return func(e *Engine) {
		e.onVisit = fn
	}
}

// WithRunIDGenerator sets the generator for sync_runs ids.
func WithRunIDGenerator(gen RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithClock sets the time source for run bookkeeping.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine reading from r and writing to s.
func New(s Store, r Remote, opts ...EngineOption) *Engine {
	e := &Engine{
		store:       s,
		remote:      r,
		concurrency: DefaultConcurrency,
		backoff:     DefaultBackoff(),
		comments:    CommentsPages,
		runIDs:      UUIDv7Generator{},
		clock:       SystemClock{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.subFetches < 1 {
		e.subFetches = e.concurrency
	}
	return e
}

// RunSync is a one-shot helper: it builds an engine and syncs rootID.
func RunSync(ctx context.Context, rootID string, s Store, r Remote, concurrency int, opts ...EngineOption) (*Summary, error) {
	opts = append([]EngineOption{WithConcurrency(concurrency)}, opts...)
	return New(s, r, opts...).Sync(ctx, rootID)
}

// Sync mirrors the tree rooted at rootID.
//
// The root is probed to learn its kind, persisted, and expanded breadth
// first by a bounded pool of workers. Remote errors below the root become
// soft failures in the summary; store failures, structural errors, an
// unreachable root and cancellation abort the run with a *SyncError.
//
// The returned summary is never nil. On a fatal error it reflects what was
// written before the abort.
func (e *Engine) Sync(ctx context.Context, rootID string) (*Summary, error) {
	runID := e.runIDs.Generate()
	logger := e.logger.With("run", runID)
	r := &runner{
		Engine:   e,
		frontier: newFrontier(e.onVisit),
		writer:   newWriter(e.store, writeBuffer, logger),
		logger:   logger,
		summary: &Summary{
			RunID:     runID,
			RootID:    rootID,
			Counts:    map[notion.Kind]int{},
			StartedAt: e.clock.Now(),
		},
	}
	return r.run(ctx)
}

// runner holds the state of one run.
type runner struct {
	*Engine
	frontier *frontier
	writer   *writer
	summary  *Summary
	logger   *slog.Logger

	mu       sync.Mutex
	failures []*SoftFailure
}

func (r *runner) run(ctx context.Context) (*Summary, error) {
	s := r.summary
	r.logger.Info("sync started", "root", s.RootID, "concurrency", r.concurrency, "comments", r.comments)

	bookkeeping := context.WithoutCancel(ctx)
	if err := r.store.BeginRun(bookkeeping, store.Run{ID: s.RunID, RootID: s.RootID, StartedAt: s.StartedAt}); err != nil {
		s.FinishedAt = r.clock.Now()
		return s, &SyncError{Code: ErrCodeStoreWrite, ID: s.RunID, Op: "begin_run", Err: err}
	}

	err := r.traverse(ctx)

	s.Counts = r.writer.counts
	s.Duplicates = r.writer.duplicates
	s.Visited = r.frontier.Visited()
	s.Failures = r.failures
	s.sortFailures()
	s.FinishedAt = r.clock.Now()

	status := s.Status()
	if err != nil {
		err = r.fatal(ctx, err)
		status = store.RunFailed
		if IsCanceled(err) {
			status = store.RunCanceled
		}
	}

	if ferr := r.store.FinishRun(bookkeeping, s.run(status, err)); ferr != nil && err == nil {
		err = &SyncError{Code: ErrCodeStoreWrite, ID: s.RunID, Op: "finish_run", Err: ferr}
	}

	if err != nil {
		r.logger.Error("sync failed", "root", s.RootID, "status", status, "error", err)
		return s, err
	}
	r.logger.Info("sync finished",
		"root", s.RootID,
		"status", status,
		"visited", s.Visited,
		"written", s.Total(),
		"duplicates", s.Duplicates,
		"failures", len(s.Failures),
	)
	return s, nil
}

// fatal normalizes an error that aborted traversal into a *SyncError.
func (r *runner) fatal(ctx context.Context, err error) error {
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &SyncError{Code: ErrCodeCanceled, ID: r.summary.RootID, Op: "sync", Err: err}
	}
	return fmt.Errorf("sync %s: %w", r.summary.RootID, err)
}

// traverse runs the writer, resolves the root and drains the frontier.
func (r *runner) traverse(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.writer.run(gctx)
	})
	g.Go(func() error {
		defer r.writer.close()
		defer r.frontier.Close()

		if err := r.resolveRoot(gctx); err != nil {
			return err
		}

		workers, wctx := errgroup.WithContext(gctx)
		for i := 0; i < r.concurrency; i++ {
			workers.Go(func() error {
				return r.work(wctx)
			})
		}
		return workers.Wait()
	})
	return g.Wait()
}

// resolveRoot probes the root, persists what the probe returned and seeds
// the frontier. A child_page or child_database root is mirrored both as the
// block and as the page or database it stands for.
func (r *runner) resolveRoot(ctx context.Context) error {
	rootID := r.summary.RootID
	var probe notion.Probe
	_, err := r.backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		probe, err = r.remote.Probe(ctx, rootID)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if notion.IsStructuralError(err) {
			return &SyncError{Code: ErrCodeStructural, ID: rootID, Op: opFetchContainer, Err: err}
		}
		return &SyncError{Code: ErrCodeRootUnavailable, ID: rootID, Op: opFetchContainer, Err: err}
	}
	root := probe.Container
	r.summary.RootKind = root.Kind()
	r.logger.Debug("root resolved", "id", root.ObjectID(), "kind", root.Kind(), "via_block", probe.Block != nil)

	for _, obj := range probe.Records() {
		if err := r.writer.send(ctx, obj); err != nil {
			return err
		}
	}
	r.frontier.Enqueue(Target{ID: root.ObjectID(), Kind: root.Kind(), Record: root})
	return nil
}

// work expands targets until the frontier is drained.
func (r *runner) work(ctx context.Context) error {
	for {
		t, ok, err := r.frontier.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		r.logger.Debug("expanding", "kind", t.Kind, "id", t.ID, "pending", r.frontier.Len())
		err = r.expand(ctx, t)
		r.frontier.Done()
		if err != nil {
			return err
		}
	}
}

// expand persists a target's record if it was not listed already and runs
// its fetchers. Fetchers of one container run concurrently; each drains its
// own pagination in cursor order.
func (r *runner) expand(ctx context.Context, t Target) error {
	obj := t.Record
	if obj == nil {
		fetched, attempts, err := r.fetchContainer(ctx, t.ID, t.Kind)
		if err != nil {
			return r.fail(ctx, t.ID, t.Kind, opFetchContainer, attempts, err)
		}
		obj = fetched
		if err := r.writer.send(ctx, obj); err != nil {
			return err
		}
	}

	c := containerOf(obj, r.comments)
	if notion.Inactive(obj) {
		r.logger.Debug("inactive, not expanded", "kind", c.kind, "id", c.id)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.subFetches)
	for _, op := range c.fetchers {
		switch op {
		case opListChildren:
			g.Go(func() error { return r.drainChildren(gctx, c) })
		case opQueryRows:
			g.Go(func() error { return r.drainRows(gctx, c) })
		case opListComments:
			g.Go(func() error { return r.drainComments(gctx, c.id, c.kind) })
		}
	}
	return g.Wait()
}

func (r *runner) fetchContainer(ctx context.Context, id string, kind notion.Kind) (notion.Object, int, error) {
	var obj notion.Object
	attempts, err := r.backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		obj, err = r.remote.FetchContainer(ctx, id, kind)
		return err
	})
	return obj, attempts, err
}

// drainChildren lists a container's child blocks. Comments of leaf blocks
// are fetched alongside when the scope asks for them.
func (r *runner) drainChildren(ctx context.Context, c container) error {
	leaves, lctx := errgroup.WithContext(ctx)
	leaves.SetLimit(r.subFetches)

	err := r.listChildren(lctx, c, leaves)
	if werr := leaves.Wait(); err == nil {
		err = werr
	}
	return err
}

func (r *runner) listChildren(ctx context.Context, c container, leaves *errgroup.Group) error {
	p := newPager(func(ctx context.Context, cursor string) (notion.ResultPage[*notion.Block], error) {
		return r.remote.ListChildren(ctx, c.id, cursor)
	})
	for !p.Done() {
		var (
			items []*notion.Block
			start int
		)
		attempts, err := r.backoff.Do(ctx, func(ctx context.Context) error {
			var err error
			items, start, err = p.Next(ctx)
			return err
		})
		if err != nil {
			return r.fail(ctx, c.id, c.kind, opListChildren, attempts, err)
		}

		for i, b := range items {
			b.ChildIndex = start + i
			if err := r.writer.send(ctx, b); err != nil {
				return err
			}
			if err := r.discover(ctx, b, leaves); err != nil {
				return err
			}
		}
	}
	r.logger.Debug("children listed", "kind", c.kind, "id", c.id, "children", p.Fetched())
	return nil
}

// discover decides what a freshly listed block contributes to the frontier.
// child_page and child_database blocks point at a container sharing their
// id; other blocks with children are containers themselves.
func (r *runner) discover(ctx context.Context, b *notion.Block, leaves *errgroup.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Inactive() {
		return nil
	}

	if kind, ok := b.ChildContainer(); ok {
		r.enqueue(Target{ID: b.ID, Kind: kind})
		return nil
	}
	if containerOf(b, r.comments).isContainer() {
		r.enqueue(Target{ID: b.ID, Kind: notion.KindBlock, Record: b})
		return nil
	}
	if r.comments == CommentsBlocks {
		id := b.ID
		leaves.Go(func() error {
			return r.drainComments(ctx, id, notion.KindBlock)
		})
	}
	return nil
}

func (r *runner) enqueue(t Target) {
	if !r.frontier.Enqueue(t) {
		r.logger.Debug("repeated", "kind", t.Kind, "id", t.ID)
	}
}

// drainRows lists a database's rows. Rows are pages or nested databases:
// persisted as listed and expanded without being fetched again.
func (r *runner) drainRows(ctx context.Context, c container) error {
	p := newPager(func(ctx context.Context, cursor string) (notion.ResultPage[notion.Object], error) {
		return r.remote.QueryDatabaseRows(ctx, c.id, cursor)
	})
	for !p.Done() {
		var rows []notion.Object
		attempts, err := r.backoff.Do(ctx, func(ctx context.Context) error {
			var err error
			rows, _, err = p.Next(ctx)
			return err
		})
		if err != nil {
			return r.fail(ctx, c.id, c.kind, opQueryRows, attempts, err)
		}

		for _, row := range rows {
			if err := r.writer.send(ctx, row); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !notion.Inactive(row) {
				r.enqueue(Target{ID: row.ObjectID(), Kind: row.Kind(), Record: row})
			}
		}
	}
	r.logger.Debug("rows listed", "id", c.id, "rows", p.Fetched())
	return nil
}

// drainComments lists the comments attached to a page or block. Comments are
// leaves.
func (r *runner) drainComments(ctx context.Context, id string, kind notion.Kind) error {
	p := newPager(func(ctx context.Context, cursor string) (notion.ResultPage[*notion.Comment], error) {
		return r.remote.ListComments(ctx, id, cursor)
	})
	for !p.Done() {
		var comments []*notion.Comment
		attempts, err := r.backoff.Do(ctx, func(ctx context.Context) error {
			var err error
			comments, _, err = p.Next(ctx)
			return err
		})
		if err != nil {
			return r.fail(ctx, id, kind, opListComments, attempts, err)
		}
		for _, cm := range comments {
			if err := r.writer.send(ctx, cm); err != nil {
				return err
			}
		}
	}
	return nil
}

// fail records a soft failure, unless err is fatal or the run is being
// canceled.
func (r *runner) fail(ctx context.Context, id string, kind notion.Kind, op string, attempts int, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	sf, fatal := classify(id, kind, op, attempts, err)
	if fatal != nil {
		return fatal
	}

	r.mu.Lock()
	r.failures = append(r.failures, sf)
	r.mu.Unlock()

	r.logger.Warn("soft failure", "kind", kind, "id", id, "op", op, "attempts", attempts, "error", err)
	return nil
}
