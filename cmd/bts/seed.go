package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	"github.com/spf13/cobra"
)

// seedOptions holds options for the seed command.
type seedOptions struct {
	Count int
	Force bool
	Rand  uint64
}

func newSeedCommand(root *rootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with generated demo bugs",
		Long: `Generate realistic demo bugs (audio, video, webcam, driver and codec
scenarios) tagged demo-data. Seeding is skipped when demo bugs already exist
unless --force is given.

Example:
  bts seed
  bts seed -n 200 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.cliLogger()
			store, err := root.openStore(log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if opts.Count < 1 || opts.Count > bugtracker.MaxGenerate {
				return fmt.Errorf("count must be between 1 and %d", bugtracker.MaxGenerate)
			}
			seed := opts.Rand
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			n, err := bugtracker.Seed(cmd.Context(), store, bugtracker.NewGenerator(seed), opts.Count, opts.Force)
			if errors.Is(err, bugtracker.ErrAlreadySeeded) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Demo bugs already present; use --force to add more")
				return nil
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Generated %d demo bugs in %s\n", n, root.DBPath)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", bugtracker.DefaultSeedCount, "Number of bugs to generate")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Generate even when demo bugs already exist")
	cmd.Flags().Uint64Var(&opts.Rand, "rand-seed", 0, "Random seed for reproducible data (0 uses the clock)")

	return cmd
}
