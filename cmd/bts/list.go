package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// listOptions holds options for the list command.
type listOptions struct {
	Status string
	Output string
}

func newListCommand(root *rootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bugs, newest first",
		Long: `List bugs stored in the database, newest first.

Example:
  bts list
  bts list --status in-progress
  bts list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := bugtracker.Status(strings.TrimSpace(opts.Status))
			if status != "" && !status.Valid() {
				return fmt.Errorf("unknown status %q", opts.Status)
			}

			log := root.cliLogger()
			store, err := root.openStore(log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bugs, err := store.List(cmd.Context(), status)
			if err != nil {
				return err
			}
			return writeBugs(cmd.OutOrStdout(), opts.Output, bugs)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Only bugs in this status (new, assigned, in-progress, fixed, closed)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|yaml)")

	return cmd
}

func writeBugs(w io.Writer, format string, bugs []*bugtracker.Bug) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bugs)
	case "yaml":
		return yaml.NewEncoder(w).Encode(bugs)
	case "text":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	if len(bugs) == 0 {
		_, _ = fmt.Fprintln(w, "No bugs found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tCREATED\tTITLE")
	for _, b := range bugs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Status, priorityColor(b.Priority).Sprint(b.Priority),
			b.CreatedAt.Format("2006-01-02"), b.Title)
	}
	return tw.Flush()
}

func priorityColor(priority string) *color.Color {
	switch priority {
	case "critical":
		return color.New(color.FgRed, color.Bold)
	case "high":
		return color.New(color.FgRed)
	case "medium":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
