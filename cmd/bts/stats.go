package main

import (
	"fmt"
	"io"

	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	"github.com/spf13/cobra"
)

// statsOptions holds options for the stats command.
type statsOptions struct {
	URL string
}

func newStatsCommand(root *rootOptions) *cobra.Command {
	opts := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show bug counts by status and priority",
		Long: `Show bug counts by status and priority, read from the local database
or, with --url, from a running tracker.

Example:
  bts stats
  bts stats --url http://localhost:3001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				stats *bugtracker.Stats
				err   error
			)
			if opts.URL != "" {
				stats, err = bugtracker.NewClient(opts.URL, 0).Stats(cmd.Context())
			} else {
				store, openErr := root.openStore(root.cliLogger())
				if openErr != nil {
					return openErr
				}
				defer func() { _ = store.Close() }()
				stats, err = store.Stats(cmd.Context())
			}
			if err != nil {
				return err
			}
			writeStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "Tracker base URL (reads the local database when empty)")

	return cmd
}

func writeStats(w io.Writer, stats *bugtracker.Stats) {
	_, _ = fmt.Fprintf(w, "Total: %d\n\nBy status:\n", stats.Total)
	for _, s := range bugtracker.Statuses {
		_, _ = fmt.Fprintf(w, "  %-12s %d\n", s, stats.ByStatus[s])
	}
	_, _ = fmt.Fprintf(w, "\nBy priority:\n")
	for i := len(bugtracker.Priorities) - 1; i >= 0; i-- {
		p := bugtracker.Priorities[i]
		_, _ = fmt.Fprintf(w, "  %-12s %d\n", p, stats.ByPriority[p])
	}
}
