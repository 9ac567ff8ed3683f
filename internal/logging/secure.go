// Package logging wraps the application logger so credentials and local
// home directories never reach log output.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"github.com/olegiv/crashlens-ai-go/pkg/logger"
	"github.com/rs/zerolog"
)

// SecureLogger sanitizes every string, error and message it is given.
type SecureLogger struct {
	log  *logger.Logger
	home string
}

// NewSecure wraps log. A nil logger discards everything.
func NewSecure(log *logger.Logger) *SecureLogger {
	if log == nil {
		log = logger.NewNop()
	}
	home, _ := os.UserHomeDir()
	return &SecureLogger{log: log, home: home}
}

// Nop returns a SecureLogger that discards everything.
func Nop() *SecureLogger {
	return NewSecure(nil)
}

// With returns a child logger carrying a sanitized key/value field.
func (s *SecureLogger) With(key, val string) *SecureLogger {
	return &SecureLogger{log: s.log.WithField(key, internalerrors.SanitizeString(val)), home: s.home}
}

// Component tags the child logger with the subsystem that owns it.
func (s *SecureLogger) Component(name string) *SecureLogger {
	return s.With("component", name)
}

func (s *SecureLogger) event(e *zerolog.Event) *SecureEvent {
	return &SecureEvent{event: e, home: s.home}
}

func (s *SecureLogger) Debug() *SecureEvent { return s.event(s.log.Debug()) }
func (s *SecureLogger) Info() *SecureEvent  { return s.event(s.log.Info()) }
func (s *SecureLogger) Warn() *SecureEvent  { return s.event(s.log.Warn()) }
func (s *SecureLogger) Error() *SecureEvent { return s.event(s.log.Error()) }

// Close closes the underlying logger.
func (s *SecureLogger) Close() error {
	return s.log.Close()
}

// SecureEvent is a zerolog event whose text fields are sanitized.
type SecureEvent struct {
	event *zerolog.Event
	home  string
}

// Str adds a sanitized string field.
func (e *SecureEvent) Str(key, val string) *SecureEvent {
	e.event.Str(key, internalerrors.SanitizeString(val))
	return e
}

// Stringer adds v.String(), sanitized. A nil v is logged as null.
func (e *SecureEvent) Stringer(key string, v fmt.Stringer) *SecureEvent {
	if v == nil {
		e.event.Interface(key, nil)
		return e
	}
	return e.Str(key, v.String())
}

// Path adds a file path with the user's home directory shortened to "~".
// Crash logs are often read from under a home directory that names the user.
func (e *SecureEvent) Path(key, p string) *SecureEvent {
	if e.home != "" && p != "" {
		clean := filepath.Clean(p)
		if clean == e.home {
			p = "~"
		} else if rest, ok := strings.CutPrefix(clean, e.home+string(filepath.Separator)); ok {
			p = filepath.Join("~", rest)
		}
	}
	return e.Str(key, p)
}

func (e *SecureEvent) Int(key string, val int) *SecureEvent {
	e.event.Int(key, val)
	return e
}

func (e *SecureEvent) Int64(key string, val int64) *SecureEvent {
	e.event.Int64(key, val)
	return e
}

func (e *SecureEvent) Float64(key string, val float64) *SecureEvent {
	e.event.Float64(key, val)
	return e
}

// Err adds a sanitized error. A nil error adds nothing.
func (e *SecureEvent) Err(err error) *SecureEvent {
	if err != nil {
		e.event.Err(internalerrors.SanitizeError(err))
	}
	return e
}

// Msg sends the event with a sanitized message.
func (e *SecureEvent) Msg(msg string) {
	e.event.Msg(internalerrors.SanitizeString(msg))
}
