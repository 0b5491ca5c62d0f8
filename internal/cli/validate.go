package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/roach88/notionsync/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Errors []string    `json:"errors,omitempty"`
	Config *configView `json:"config,omitempty"`
}

// configView is the resolved configuration as printed. The token is never
// shown, only whether one is set.
type configView struct {
	TokenSet    bool    `json:"token_set"`
	Database    string  `json:"database"`
	Root        string  `json:"root"`
	Concurrency int     `json:"concurrency"`
	SubFetches  int     `json:"sub_fetches"`
	Comments    string  `json:"comments"`
	MaxAttempts int     `json:"max_attempts"`
	BaseURL     string  `json:"base_url"`
	Version     string  `json:"version"`
	PageSize    int     `json:"page_size"`
	RateLimit   float64 `json:"rate_limit"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [root]",
		Short: "Check the configuration without syncing",
		Long: `Resolve the configuration exactly as sync does (config file, environment,
flags) and report every problem found, without contacting the API or opening
the database.

The config file is checked against its schema first: unknown keys, wrong
types and out-of-range values are reported before any other check.

Example:
  notionsync --config notionsync.yaml validate
  notionsync validate https://www.notion.so/acme/Wiki-0123456789abcdef0123456789abcdef --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runValidate(cmd, rootOpts, root)
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, rootArg string) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := opts.resolveConfig(cmd.Flags())
	if err != nil {
		return outputValidationErrors(out, nil, err)
	}
	if rootArg != "" {
		cfg.Root = rootArg
	}
	if cfg.Root, err = parseRoot(cfg.Root); err != nil {
		return outputValidationErrors(out, &cfg, err)
	}
	if err := cfg.Validate(); err != nil {
		return outputValidationErrors(out, &cfg, err)
	}

	return out.Success(&ValidationResult{Valid: true, Config: newConfigView(&cfg)})
}

func newConfigView(cfg *config.Config) *configView {
	return &configView{
		TokenSet:    cfg.Token != "",
		Database:    cfg.Database,
		Root:        cfg.Root,
		Concurrency: cfg.Concurrency,
		SubFetches:  cfg.SubFetches,
		Comments:    cfg.Comments,
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseURL:     cfg.API.BaseURL,
		Version:     cfg.API.Version,
		PageSize:    cfg.API.PageSize,
		RateLimit:   cfg.API.RateLimit,
	}
}

// splitErrors flattens a multierror into its messages.
func splitErrors(err error) []string {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		msgs := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

// outputValidationErrors reports every problem and returns a command error
// (exit code 2). cfg, if not nil, is the configuration resolved so far.
func outputValidationErrors(out *OutputFormatter, cfg *config.Config, err error) error {
	result := &ValidationResult{Valid: false, Errors: splitErrors(err)}
	if cfg != nil {
		result.Config = newConfigView(cfg)
	}
	msg := fmt.Sprintf("validation failed with %d error(s)", len(result.Errors))
	_ = out.Error(ErrCodeConfig, msg, result)
	return WrapExitError(ExitCommandError, msg, err)
}

// String renders the result for text output.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if r.Valid {
		sb.WriteString("✓ Configuration valid\n")
	} else {
		sb.WriteString("✗ Configuration invalid\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
	}
	if c := r.Config; c != nil {
		token := "not set"
		if c.TokenSet {
			token = "set"
		}
		fmt.Fprintf(&sb, "  token:       %s\n", token)
		fmt.Fprintf(&sb, "  database:    %s\n", c.Database)
		fmt.Fprintf(&sb, "  root:        %s\n", c.Root)
		fmt.Fprintf(&sb, "  concurrency: %d\n", c.Concurrency)
		if c.SubFetches > 0 {
			fmt.Fprintf(&sb, "  sub fetches: %d\n", c.SubFetches)
		}
		fmt.Fprintf(&sb, "  comments:    %s\n", c.Comments)
		fmt.Fprintf(&sb, "  api:         %s (version %s, page size %d, %g req/s)\n",
			c.BaseURL, c.Version, c.PageSize, c.RateLimit)
		fmt.Fprintf(&sb, "  retries:     %d attempts", c.MaxAttempts)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
