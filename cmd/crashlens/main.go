package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/olegiv/crashlens-ai-go/internal/ai"
	"github.com/olegiv/crashlens-ai-go/internal/analyzer"
	"github.com/olegiv/crashlens-ai-go/internal/chat"
	"github.com/olegiv/crashlens-ai-go/internal/config"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
	"github.com/olegiv/crashlens-ai-go/internal/notification"
	"github.com/olegiv/crashlens-ai-go/internal/server"
	"github.com/olegiv/crashlens-ai-go/internal/session"
	"github.com/olegiv/crashlens-ai-go/pkg/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli, err := config.ParseCLI(filepath.Base(os.Args[0]), os.Args[1:], os.Stderr)
	if err != nil {
		if config.IsHelp(err) {
			return exitSuccess
		}
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailure
	}

	if cli.ShowVersion {
		fmt.Printf("crashlens %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	// Cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	if paths := cli.AnalyzePaths(); len(paths) > 0 {
		// Offline mode keeps stdout for the report
		log := logging.NewSecure(logger.NewWithWriter(os.Stderr, "warn"))
		if err := runAnalyze(ctx, cfg, paths, cli.Format, log); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
			return exitFailure
		}
		return exitSuccess
	}

	// Initialize logger with credential sanitization
	baseLog := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		LogDir:      cfg.LogDir,
		Filename:    "crashlens.log",
		MaxSizeMB:   10,
		MaxBackups:  5,
		Console:     true,
		ConsoleJSON: cfg.LogFormat == config.FormatJSON,
	})
	log := logging.NewSecure(baseLog)
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().Str("version", version).Msg("Starting CrashLens AI")

	if err := runServer(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("Server failed")
		return exitFailure
	}

	log.Info().Msg("Server stopped")
	return exitSuccess
}

func runServer(ctx context.Context, cfg *config.Config, log *logging.SecureLogger) error {
	if err := cfg.ValidateLLM(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info().Msg("Initializing components...")

	// 1. LLM provider
	provider, err := ai.NewProvider(ctx, cfg.ProviderConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	log.Info().
		Str("provider", provider.GetProviderName()).
		Str("model", cfg.GetLLMModel()).
		Msg("LLM provider initialized")
	if checker, ok := provider.(ai.ConnectionChecker); ok {
		if err := checker.CheckConnection(ctx); err != nil {
			log.Warn().Err(err).Msg("LLM backend not ready, chat requests will fail until it is")
		}
	}

	// 2. Sessions
	sessions, err := session.NewLRUStore(cfg.SessionCapacity, cfg.SessionMaxTurns, log)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	// 3. Telegram alerts (optional)
	var notifier chat.Notifier
	if cfg.HasTelegram() {
		telegramClient, err := notification.NewTelegramClient(notification.TelegramConfig{
			BotToken:       cfg.TelegramBotToken,
			ArchiveChannel: cfg.TelegramArchiveChannel,
			AlertsChannel:  cfg.TelegramAlertsChannel,
			MinSeverity:    cfg.MinSeverity(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		defer func() {
			if err := telegramClient.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Telegram client")
			}
		}()

		if username, ok := telegramClient.GetBotInfo()["username"].(string); ok {
			log.Info().Str("username", username).Str("min_severity", cfg.AlertMinSeverity).Msg("Telegram bot initialized")
		}
		notifier = telegramClient
	}

	// 4. Chat service
	chatSvc := chat.NewService(provider, sessions, crashlog.NewEngine(cfg.MaxAnalysisLines), notifier, chat.Options{
		MaxTokens:       cfg.AIMaxTokens,
		MaxRetryTokens:  cfg.AIMaxRetryTokens,
		MaxPromptTokens: cfg.MaxPromptTokens,
	}, log)

	// 5. Log sources
	sources, err := newSources(cfg)
	if err != nil {
		return err
	}

	// 6. HTTP server
	srv, err := server.New(server.Options{
		UploadDir:     cfg.UploadDir,
		MaxUploadMB:   cfg.MaxUploadSizeMB,
		BugTrackerURL: cfg.BugTrackerURL,
	}, chatSvc, sessions, sources, log)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	if cfg.HasBugTracker() {
		log.Info().Str("url", cfg.BugTrackerURL).Msg("Bug tracker integration enabled")
	}

	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newSources registers the upload and local-fetch readers.
func newSources(cfg *config.Config) (*analyzer.Registry, error) {
	sources := analyzer.NewRegistry()
	if err := sources.Register(&analyzer.LogSource{
		Type: analyzer.LogSourceUpload,
		Reader: crashlog.NewReader(crashlog.ReaderOptions{
			MaxSizeMB:         cfg.MaxUploadSizeMB,
			AllowedExtensions: crashlog.UploadExtensions,
			BaseDir:           cfg.UploadDir,
		}),
	}); err != nil {
		return nil, fmt.Errorf("failed to register upload source: %w", err)
	}
	if err := sources.Register(&analyzer.LogSource{
		Type: analyzer.LogSourceLocal,
		Reader: crashlog.NewReader(crashlog.ReaderOptions{
			MaxSizeMB:         cfg.MaxUploadSizeMB,
			AllowedExtensions: crashlog.LocalExtensions,
			BaseDir:           cfg.LocalLogDir,
			RejectBinary:      true,
		}),
	}); err != nil {
		return nil, fmt.Errorf("failed to register local source: %w", err)
	}
	return sources, nil
}
