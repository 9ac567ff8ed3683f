// Package logger builds the zerolog logger used by both binaries: JSON lines
// to a rotating file plus an optional console stream.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a zerolog.Logger that owns its rotating file, if any.
type Logger struct {
	zerolog.Logger
	closer io.Closer
}

// Config holds logger configuration. Zero values get defaults.
type Config struct {
	Level      string // debug, info, warn, error
	LogDir     string // default ./logs
	Filename   string // default crashlens.log
	MaxSizeMB  int    // default 10
	MaxBackups int    // default 5
	MaxAgeDays int    // default 30
	Console    bool
	ConsoleOut io.Writer // default os.Stdout
	// ConsoleJSON writes raw JSON lines to the console instead of the
	// human-readable format, for log collectors reading container output.
	ConsoleJSON bool
}

func (c *Config) applyDefaults() {
	if c.LogDir == "" {
		c.LogDir = "./logs"
	}
	if c.Filename == "" {
		c.Filename = "crashlens.log"
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
	if c.ConsoleOut == nil {
		c.ConsoleOut = os.Stdout
	}
}

// New creates a logger. When the log directory cannot be created it logs to
// the console (or stderr) only and says so in its first line.
func New(cfg Config) *Logger {
	cfg.applyDefaults()
	level := parseLogLevel(cfg.Level)

	var console io.Writer
	if cfg.Console {
		console = cfg.ConsoleOut
		if !cfg.ConsoleJSON {
			console = zerolog.ConsoleWriter{Out: cfg.ConsoleOut, TimeFormat: "2006-01-02 15:04:05"}
		}
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		out := console
		if out == nil {
			out = os.Stderr
		}
		l := zerolog.New(out).Level(level).With().Timestamp().Logger()
		l.Warn().Err(err).Str("log_dir", cfg.LogDir).Msg("Log directory unavailable, file logging disabled")
		return &Logger{Logger: l}
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, cfg.Filename),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}

	var out io.Writer = file
	if console != nil {
		out = zerolog.MultiLevelWriter(file, console)
	}

	return &Logger{
		Logger: zerolog.New(out).Level(level).With().Timestamp().Caller().Logger(),
		closer: file,
	}
}

// NewWithWriter creates a logger writing JSON lines to w.
// Used by tests and by one-shot CLI commands that should not touch ./logs.
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{
		Logger: zerolog.New(w).Level(parseLogLevel(level)).With().Timestamp().Logger(),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// ParseLevel accepts debug, info, warn (or warning) and error, in any case.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// parseLogLevel is ParseLevel falling back to info.
func parseLogLevel(level string) zerolog.Level {
	l, _ := ParseLevel(level)
	return l
}

// Close flushes and closes the rotating file writer, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// WithField returns a child logger carrying key=value on every event.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Logger: l.Logger.With().Interface(key, value).Logger(), closer: l.closer}
}
