/*
Package cli implements the standing-orders command line.

COMMANDS:
  serve              HTTP API plus the in-process daily trigger
  run                Run one daily cycle now and print the report
  runs               List recorded cycle runs
  templates list     List templates
  import <file>      Bulk-create templates from a JSON array
  worker             Temporal worker hosting the daily cycle activity
  schedule           Start the Temporal cron workflow

CONFIGURATION:
  --config loads a YAML file (see config/). --db and --log-level override
  the file. Everything else comes from the file or its defaults.

SEE ALSO:
  - config/config.go: file format
  - cmd/standing-orders/main.go: entry point
*/
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/standing-orders/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Database   string
	LogLevel   string

	// Config is resolved before any subcommand runs.
	Config config.Config
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "standing-orders",
		Short: "Standing order scheduling and materialization",
		Long: `Manages recurring order templates and turns them into sales ledger rows,
carrier export rows and document jobs once per day.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTemplatesCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))

	return cmd
}

// resolve loads the config file, applies flag overrides and installs the
// default logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		cfg.Database = o.Database
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	o.Config = cfg
	return nil
}
