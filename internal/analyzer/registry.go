package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// LogSourceType identifies where a log is read from.
type LogSourceType string

const (
	// LogSourceUpload reads files stored in the uploads directory.
	LogSourceUpload LogSourceType = "upload"
	// LogSourceLocal reads server-side paths requested through /fetch-log
	// and files named on the command line.
	LogSourceLocal LogSourceType = "local"
)

// ErrUnknownSource is returned for a source type nobody registered.
var ErrUnknownSource = errors.New("log source not registered")

// LogSource binds a reader to the source type it serves.
type LogSource struct {
	Type   LogSourceType
	Reader LogReader
}

// SourceInfo is the public description of a registered source.
type SourceInfo struct {
	Type LogSourceType `json:"type"`
	Limits
}

// Registry maps source types to readers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[LogSourceType]LogReader
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[LogSourceType]LogReader)}
}

// Register adds a source. Each type may be registered once.
func (r *Registry) Register(source *LogSource) error {
	switch {
	case source == nil:
		return fmt.Errorf("cannot register nil log source")
	case source.Type == "":
		return fmt.Errorf("log source type cannot be empty")
	case source.Reader == nil:
		return fmt.Errorf("log source %q has no reader", source.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.sources[source.Type]; dup {
		return fmt.Errorf("log source %q already registered", source.Type)
	}
	r.sources[source.Type] = source.Reader
	return nil
}

// Reader returns the reader registered for t.
func (r *Registry) Reader(t LogSourceType) (LogReader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reader, ok := r.sources[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, t)
	}
	return reader, nil
}

// Require fails unless every listed type is registered.
func (r *Registry) Require(types ...LogSourceType) error {
	var errs []error
	for _, t := range types {
		if _, err := r.Reader(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Describe lists registered sources and their limits, sorted by type.
func (r *Registry) Describe() []SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SourceInfo, 0, len(r.sources))
	for t, reader := range r.sources {
		infos = append(infos, SourceInfo{Type: t, Limits: reader.Limits()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}
