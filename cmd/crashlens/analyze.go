package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/briandowns/spinner"
	"github.com/olegiv/crashlens-ai-go/internal/config"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
	"github.com/olegiv/crashlens-ai-go/internal/report"
	"golang.org/x/sync/errgroup"
)

// fileResult is the outcome of analyzing one file offline.
type fileResult struct {
	path   string
	result *crashlog.Result
	err    error
}

// runAnalyze analyzes paths without an LLM and prints one report per file to stdout.
func runAnalyze(ctx context.Context, cfg *config.Config, paths []string, format string, log *logging.SecureLogger) error {
	reader := crashlog.NewReader(crashlog.ReaderOptions{
		MaxSizeMB:         cfg.MaxUploadSizeMB,
		AllowedExtensions: crashlog.LocalExtensions,
		BaseDir:           cfg.LocalLogDir,
		RejectBinary:      true,
	})
	engine := crashlog.NewEngine(cfg.MaxAnalysisLines)

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = fmt.Sprintf(" Analyzing %d file(s)...", len(paths))
	s.Start()
	results := analyzeFiles(ctx, reader, engine, paths, runtime.NumCPU())
	s.Stop()

	return writeResults(os.Stdout, os.Stderr, format, results, log)
}

// analyzeFiles runs the engine over paths with at most limit files in flight.
// Results keep the order of paths; a failed file does not stop the others.
func analyzeFiles(ctx context.Context, reader *crashlog.Reader, engine *crashlog.Engine, paths []string, limit int) []fileResult {
	results := make([]fileResult, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	for i, path := range paths {
		g.Go(func() error {
			results[i].path = path
			select {
			case <-gCtx.Done():
				results[i].err = gCtx.Err()
				return nil
			default:
			}

			content, err := reader.Read(path)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].result = engine.Analyze(content, path)
			return nil
		})
	}
	// Goroutines report through results, so Wait has nothing to return
	_ = g.Wait()

	return results
}

// writeResults prints each successful report to out and each failure to errOut.
func writeResults(out, errOut io.Writer, format string, results []fileResult, log *logging.SecureLogger) error {
	var errs []error
	for i, r := range results {
		if r.err != nil {
			log.Warn().Err(r.err).Path("path", r.path).Msg("Failed to analyze file")
			_, _ = fmt.Fprintf(errOut, "%s: %v\n", r.path, r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.path, r.err))
			continue
		}
		if i > 0 && format == config.FormatText {
			_, _ = fmt.Fprintln(out)
		}
		if format == config.FormatYAML && i > 0 {
			_, _ = fmt.Fprintln(out, "---")
		}
		if err := report.Write(out, format, r.path, r.result); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", r.path, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d file(s) failed: %w", len(errs), len(results), errors.Join(errs...))
	}
	return nil
}
