package main

import (
	"fmt"
	"os"

	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	"github.com/olegiv/crashlens-ai-go/internal/config"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
	"github.com/olegiv/crashlens-ai-go/pkg/logger"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	DBPath   string
	LogLevel string

	cfg *config.Config
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "bts",
		Short: "Bug tracking system for CrashLens",
		Long: `bts stores bugs in SQLite and serves them over a JSON API.

CrashLens files bugs here from log analyses (POST /analyze/{id}/bug) and
proxies /api/bugs to it.

Settings are read from the environment and .env (BUGTRACKER_LISTEN_ADDR,
BUGTRACKER_DB_PATH, LOG_LEVEL, LOG_DIR, LOG_FORMAT); flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if !cmd.Flags().Changed("db") {
				opts.DBPath = cfg.BugTrackerDBPath
			}
			if !cmd.Flags().Changed("log-level") {
				opts.LogLevel = cfg.LogLevel
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "Path to the SQLite database (default from BUGTRACKER_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newSeedCommand(opts))
	rootCmd.AddCommand(newListCommand(opts))
	rootCmd.AddCommand(newStatsCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// cliLogger logs to stderr so command output stays clean.
func (o *rootOptions) cliLogger() *logging.SecureLogger {
	return logging.NewSecure(logger.NewWithWriter(os.Stderr, o.LogLevel))
}

// openStore opens the tracker database.
func (o *rootOptions) openStore(log *logging.SecureLogger) (*bugtracker.Store, error) {
	store, err := bugtracker.NewStore(o.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", o.DBPath, err)
	}
	return store, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skips config loading
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "bts %s\n", version)
		},
	}
}
