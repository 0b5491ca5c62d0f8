package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/notionsync/internal/config"
	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/remote"
	"github.com/roach88/notionsync/internal/store"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Concurrency int
	Comments    string

	// Remote allows overriding the API client (for testing).
	// If nil, an HTTP client is built from the resolved config.
	Remote engine.Remote

	// EngineOptions are appended to the engine configuration (for testing).
	EngineOptions []engine.EngineOption
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *SyncOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [root]",
		Short: "Mirror the tree under a root page or database",
		Long: `Mirror the tree under a root page or database into the SQLite database.

The root may be a page or database id (with or without dashes) or a
notion.so URL. Without an argument it is read from $` + config.EnvRoot + `.

Exit status is 0 when every entity was mirrored, 1 when the run completed
with failures or was aborted, and 2 on configuration errors.

Example:
  notionsync sync 0123456789abcdef0123456789abcdef
  notionsync --db ./wiki.db sync https://www.notion.so/acme/Wiki-0123456789abcdef0123456789abcdef
  NOTION_ROOT_PAGE=... notionsync sync --comments blocks --verbose`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runSync(cmd, opts, root)
		},
	}

	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", 0,
		fmt.Sprintf("containers expanded at once (default %d)", engine.DefaultConcurrency))
	cmd.Flags().StringVar(&opts.Comments, "comments", "",
		"comments to mirror: pages, blocks or none (default pages)")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions, rootArg string) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := opts.resolveConfig(cmd.Flags())
	if err != nil {
		return configError(out, err)
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = opts.Concurrency
	}
	if cmd.Flags().Changed("comments") {
		cfg.Comments = opts.Comments
	}
	if rootArg != "" {
		cfg.Root = rootArg
	}
	if cfg.Root, err = parseRoot(cfg.Root); err != nil {
		return configError(out, err)
	}
	var checks []config.ValidateOption
	if opts.Remote != nil {
		// An injected client carries its own credentials.
		checks = append(checks, config.SkipToken())
	}
	if err := cfg.Validate(checks...); err != nil {
		return configError(out, err)
	}

	r := opts.Remote
	if r == nil {
		client, err := remote.New(cfg.RemoteConfig(), remote.WithLogger(logger))
		if err != nil {
			_ = out.Error(ErrCodeRemote, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to create API client", err)
		}
		r = client
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = out.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	engineOpts := []engine.EngineOption{
		engine.WithConcurrency(cfg.Concurrency),
		engine.WithSubFetchLimit(cfg.SubFetches),
		engine.WithBackoff(cfg.Backoff()),
		engine.WithCommentScope(cfg.CommentScope()),
		engine.WithLogger(logger),
	}
	eng := engine.New(st, r, append(engineOpts, opts.EngineOptions...)...)

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	summary, err := eng.Sync(ctx, cfg.Root)
	result := newSyncResult(summary, err)

	if err != nil {
		code := "SYNC"
		var se *engine.SyncError
		if errors.As(err, &se) {
			code = string(se.Code)
		}
		_ = out.Error(code, err.Error(), result)
		return WrapExitError(ExitFailure, "sync failed", err)
	}
	if n := len(summary.Failures); n > 0 {
		_ = out.Error(ErrCodeSoftFailures, fmt.Sprintf("sync completed with %d failures", n), result)
		return WrapExitError(ExitFailure, fmt.Sprintf("sync completed with %d failures", n), summary.Err())
	}
	return out.Success(result)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, canceling sync", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func configError(out *OutputFormatter, err error) error {
	_ = out.Error(ErrCodeConfig, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid configuration", err)
}

// syncResult is the printed outcome of a sync.
type syncResult struct {
	RunID      string          `json:"run_id"`
	RootID     string          `json:"root_id"`
	RootKind   string          `json:"root_kind,omitempty"`
	Status     string          `json:"status"`
	Counts     map[string]int  `json:"counts"`
	Visited    int             `json:"visited"`
	Duplicates int             `json:"duplicates"`
	Failures   []failureResult `json:"failures"`
	Duration   string          `json:"duration"`
}

type failureResult struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Op       string `json:"op"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

func newSyncResult(s *engine.Summary, fatal error) *syncResult {
	r := &syncResult{
		RunID:      s.RunID,
		RootID:     s.RootID,
		RootKind:   string(s.RootKind),
		Status:     s.Status(),
		Counts:     make(map[string]int, len(notion.Kinds)),
		Visited:    s.Visited,
		Duplicates: s.Duplicates,
		Failures:   make([]failureResult, 0, len(s.Failures)),
		Duration:   s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
	}
	for _, kind := range notion.Kinds {
		r.Counts[string(kind)] = s.Counts[kind]
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures, failureResult{
			ID:       f.ID,
			Kind:     string(f.Kind),
			Op:       f.Op,
			Attempts: f.Attempts,
			Error:    f.Err.Error(),
		})
	}
	switch {
	case engine.IsCanceled(fatal):
		r.Status = store.RunCanceled
	case fatal != nil:
		r.Status = store.RunFailed
	}
	return r
}

func (r *syncResult) String() string {
	var sb strings.Builder
	root := r.RootID
	if r.RootKind != "" {
		root += " (" + r.RootKind + ")"
	}
	fmt.Fprintf(&sb, "Run %s: %s\n", r.RunID, r.Status)
	fmt.Fprintf(&sb, "  root:       %s\n", root)
	fmt.Fprintf(&sb, "  mirrored:   %s\n", formatCounts(r.Counts))
	fmt.Fprintf(&sb, "  visited:    %d containers\n", r.Visited)
	fmt.Fprintf(&sb, "  duplicates: %d\n", r.Duplicates)
	fmt.Fprintf(&sb, "  duration:   %s", r.Duration)
	if len(r.Failures) > 0 {
		fmt.Fprintf(&sb, "\n  failures:   %d", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(&sb, "\n    %s %s %s: %s", f.Op, f.Kind, f.ID, f.Error)
		}
	}
	return sb.String()
}

// formatCounts renders per-kind counts in notion.Kinds order, then any
// other keys sorted.
func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	seen := make(map[string]bool, len(notion.Kinds))
	for _, kind := range notion.Kinds {
		k := string(kind)
		seen[k] = true
		parts = append(parts, fmt.Sprintf("%d %ss", counts[k], k))
	}
	var rest []string
	for k := range counts {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}
	return strings.Join(parts, ", ")
}
