// Package server exposes the chat assistant, log uploads and analyses over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"time"

	"github.com/olegiv/crashlens-ai-go/internal/analyzer"
	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	"github.com/olegiv/crashlens-ai-go/internal/chat"
	"github.com/olegiv/crashlens-ai-go/internal/httpapi"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
	"github.com/olegiv/crashlens-ai-go/internal/session"
)

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	// writeTimeout covers a full generation with retries.
	writeTimeout    = 10 * time.Minute
	idleTimeout     = 2 * time.Minute
	shutdownTimeout = 15 * time.Second
)

// Options configures the HTTP surface.
type Options struct {
	UploadDir     string
	MaxUploadMB   int
	BugTrackerURL string // empty disables /analyze/{id}/bug and the /api/bugs proxy
}

// Server wires HTTP routes to the chat service, the session store and the log readers.
type Server struct {
	opts     Options
	chat     *chat.Service
	sessions session.Store
	sources  *analyzer.Registry
	uploads  analyzer.LogReader
	local    analyzer.LogReader
	bugs     *bugtracker.Client
	bugProxy *httputil.ReverseProxy
	log      *logging.SecureLogger
	now      func() time.Time
}

// New creates a server. sources must provide the upload and local readers.
func New(opts Options, chatSvc *chat.Service, sessions session.Store, sources *analyzer.Registry, log *logging.SecureLogger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 10
	}
	if err := sources.Require(analyzer.LogSourceUpload, analyzer.LogSourceLocal); err != nil {
		return nil, err
	}
	uploads, _ := sources.Reader(analyzer.LogSourceUpload)
	local, _ := sources.Reader(analyzer.LogSourceLocal)
	uploadDir, err := filepath.Abs(opts.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	opts.UploadDir = uploadDir
	if err := os.MkdirAll(opts.UploadDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	s := &Server{
		opts:     opts,
		chat:     chatSvc,
		sessions: sessions,
		sources:  sources,
		uploads:  uploads,
		local:    local,
		log:      log.Component("server"),
		now:      time.Now,
	}

	if opts.BugTrackerURL != "" {
		proxy, err := newBugProxy(opts.BugTrackerURL, s.log)
		if err != nil {
			return nil, err
		}
		s.bugProxy = proxy
		s.bugs = bugtracker.NewClient(opts.BugTrackerURL, 10)
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /analyze/{id}", s.handleAnalyze)
	mux.HandleFunc("POST /analyze/{id}/bug", s.handleFileBug)
	mux.HandleFunc("POST /fetch-log", s.handleFetchLog)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /files", s.handleFiles)
	mux.Handle("/api/bugs", http.HandlerFunc(s.handleBugProxy))
	mux.Handle("/api/bugs/", http.HandlerFunc(s.handleBugProxy))
	mux.HandleFunc("GET /bts/bugs", s.handleBugProxy)
	mux.HandleFunc("GET /bts/bugs/{id}", s.handleBugProxy)
	return httpapi.CORS(httpapi.LogRequests(s.log, mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return Serve(ctx, srv, s.log)
}

// Serve runs srv until ctx is cancelled and then drains in-flight requests.
func Serve(ctx context.Context, srv *http.Server, log *logging.SecureLogger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
