package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Limit int
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *StatusOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent sync runs and mirrored row counts",
		Long: `Show the most recent sync runs recorded in the database and how many
rows of each kind it holds.

Example:
  notionsync --db ./wiki.db status
  notionsync status --limit 1 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 5, "number of runs to show")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := opts.resolveConfig(cmd.Flags())
	if err != nil {
		return configError(out, err)
	}
	if opts.Limit < 1 {
		return configError(out, fmt.Errorf("limit must be at least 1, got %d", opts.Limit))
	}

	// Never create a database just to report that it is empty.
	if _, err := os.Stat(cfg.Database); err != nil {
		_ = out.Error(ErrCodeStoreOpen, fmt.Sprintf("database not found: %s", cfg.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = out.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	runs, err := st.LastRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read runs", err)
	}
	counts, err := st.Counts(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count rows", err)
	}

	result := &statusResult{
		Database: cfg.Database,
		Counts:   make(map[string]int, len(counts)),
		Runs:     runs,
	}
	if result.Runs == nil {
		result.Runs = []store.Run{}
	}
	for kind, n := range counts {
		result.Counts[string(kind)] = n
	}
	return out.Success(result)
}

// statusResult is the printed state of a mirror database.
type statusResult struct {
	Database string         `json:"database"`
	Counts   map[string]int `json:"counts"`
	Runs     []store.Run    `json:"runs"`
}

func (r *statusResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Database %s\n", r.Database)
	fmt.Fprintf(&sb, "  rows: %s\n", formatCounts(r.Counts))
	if len(r.Runs) == 0 {
		sb.WriteString("  no sync runs recorded")
		return sb.String()
	}

	sb.WriteString("  runs:")
	for _, run := range r.Runs {
		fmt.Fprintf(&sb, "\n    %s  %s  %-23s root %s", run.ID, run.StartedAt.Format(time.RFC3339), run.Status, run.RootID)
		if !run.FinishedAt.IsZero() {
			total := 0
			for _, kind := range notion.Kinds {
				total += run.Counts[string(kind)]
			}
			fmt.Fprintf(&sb, "  %d written", total)
		}
		if n := len(run.Failures); n > 0 {
			fmt.Fprintf(&sb, "  %d failures", n)
		}
		if run.Error != "" {
			fmt.Fprintf(&sb, "\n      error: %s", run.Error)
		}
	}
	return sb.String()
}
