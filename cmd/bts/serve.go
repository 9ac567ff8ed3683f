package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	"github.com/olegiv/crashlens-ai-go/internal/config"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
	"github.com/olegiv/crashlens-ai-go/internal/server"
	"github.com/olegiv/crashlens-ai-go/pkg/logger"
	"github.com/spf13/cobra"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	Addr string
	Seed bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker HTTP API",
		Long: `Serve the tracker JSON API until interrupted.

Endpoints:
  GET    /health
  GET    /api/bugs[?status=<status>|all]
  POST   /api/bugs
  GET    /api/bugs/stats
  POST   /api/bugs/bulk       {"bugs": [...]}
  POST   /api/bugs/generate   {"count": 50, "force": false}
  GET    /api/bugs/{id}
  PUT    /api/bugs/{id}
  DELETE /api/bugs/{id}

Example:
  bts serve --addr :3001 --seed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				opts.Addr = root.cfg.BugTrackerListenAddr
			}
			return runServe(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default from BUGTRACKER_LISTEN_ADDR)")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "Generate demo bugs on startup when none exist")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.NewSecure(logger.New(logger.Config{
		Level:       root.LogLevel,
		LogDir:      root.cfg.LogDir,
		Filename:    "bts.log",
		Console:     true,
		ConsoleJSON: root.cfg.LogFormat == config.FormatJSON,
	}))
	defer func() { _ = log.Close() }()

	store, err := root.openStore(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	gen := bugtracker.NewGenerator(uint64(time.Now().UnixNano()))
	if opts.Seed {
		n, err := bugtracker.Seed(ctx, store, gen, bugtracker.DefaultSeedCount, false)
		switch {
		case errors.Is(err, bugtracker.ErrAlreadySeeded):
			log.Info().Msg("Demo bugs already present, skipping seed")
		case err != nil:
			return err
		default:
			log.Info().Int("count", n).Msg("Demo bugs generated")
		}
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           bugtracker.NewHandler(store, gen, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	log.Info().Str("db", root.DBPath).Msg("Starting bug tracker")
	return server.Serve(ctx, srv, log)
}
