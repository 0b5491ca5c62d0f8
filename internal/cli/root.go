package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/notionsync/internal/config"
	"github.com/roach88/notionsync/internal/notion"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Token      string
	Database   string
	ConfigPath string

	// Getenv allows overriding environment lookup (for testing).
	// If nil, defaults to os.Getenv.
	Getenv func(string) string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the notionsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{}, &SyncOptions{}, &StatusOptions{})
}

func newRootCommand(opts *RootOptions, syncOpts *SyncOptions, statusOpts *StatusOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notionsync",
		Short: "Mirror a Notion workspace tree into SQLite",
		Long: `notionsync recursively fetches a Notion page or database and every
block, page, database and comment reachable beneath it, and mirrors them
into a local SQLite database. Re-running a sync overwrites rows in place.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flags",
					fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "integration token (default $"+config.EnvToken+")")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default "+config.DefaultDatabase+")")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

	syncOpts.RootOptions = opts
	statusOpts.RootOptions = opts
	cmd.AddCommand(NewSyncCommand(syncOpts))
	cmd.AddCommand(NewStatusCommand(statusOpts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// resolveConfig layers the config file, the environment and the global
// flags that were set explicitly.
func (o *RootOptions) resolveConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return cfg, err
	}

	getenv := o.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.ApplyEnv(getenv)

	if flags.Changed("token") {
		cfg.Token = o.Token
	}
	if flags.Changed("db") {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// parseRoot normalizes a root given as an id, dashed UUID or page URL.
func parseRoot(root string) (string, error) {
	if root == "" {
		return "", nil
	}
	id, err := notion.ParseID(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", root, err)
	}
	return id, nil
}
