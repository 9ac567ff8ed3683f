// Package session keeps per-browser conversation history and uploaded file
// references in a bounded in-memory store.
package session

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
)

const (
	DefaultCapacity = 1000
	DefaultMaxTurns = 10
)

// Turn is one user message and the assistant reply.
type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// UploadedFile references a log stored in the uploads directory.
type UploadedFile struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Path         string    `json:"filepath"`
	Size         int64     `json:"size"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source,omitempty"`
	OriginalPath string    `json:"original_path,omitempty"`
}

// Store holds conversation state per session id.
type Store interface {
	History(sessionID string) []Turn
	AppendTurn(sessionID string, turn Turn)
	Clear(sessionID string)
	AddFile(sessionID string, file UploadedFile)
	FindFile(sessionID, fileID string) (UploadedFile, bool)
	Files(sessionID string) []UploadedFile
	Len() int
}

type state struct {
	turns []Turn
	files []UploadedFile
}

// LRUStore is a Store bounded by session count; the least recently used
// session is evicted when capacity is reached.
type LRUStore struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *state]
	maxTurns int
	log      *logging.SecureLogger
}

// NewLRUStore creates a store. Non-positive limits use the defaults.
func NewLRUStore(capacity, maxTurns int, log *logging.SecureLogger) (*LRUStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if log == nil {
		log = logging.Nop()
	}

	s := &LRUStore{maxTurns: maxTurns, log: log.Component("session")}
	cache, err := lru.NewWithEvict[string, *state](capacity, func(id string, st *state) {
		s.log.Debug().
			Str("session_id", id).
			Int("turns", len(st.turns)).
			Int("files", len(st.files)).
			Msg("Session evicted")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// get returns the session state, creating it when create is set. Callers hold s.mu.
func (s *LRUStore) get(sessionID string, create bool) *state {
	if st, ok := s.cache.Get(sessionID); ok {
		return st
	}
	if !create {
		return nil
	}
	st := &state{}
	s.cache.Add(sessionID, st)
	return st
}

// History returns a copy of the session's turns, oldest first.
func (s *LRUStore) History(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(sessionID, false)
	if st == nil {
		return []Turn{}
	}
	return append([]Turn{}, st.turns...)
}

// AppendTurn records a turn, keeping only the most recent maxTurns.
func (s *LRUStore) AppendTurn(sessionID string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(sessionID, true)
	st.turns = append(st.turns, turn)
	if over := len(st.turns) - s.maxTurns; over > 0 {
		st.turns = append([]Turn{}, st.turns[over:]...)
	}
}

// Clear drops the conversation history. Uploaded files stay available.
func (s *LRUStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.get(sessionID, false); st != nil {
		st.turns = nil
	}
}

// AddFile registers an uploaded or fetched file with the session.
func (s *LRUStore) AddFile(sessionID string, file UploadedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(sessionID, true)
	st.files = append(st.files, file)
}

// FindFile looks up a file registered with the session.
func (s *LRUStore) FindFile(sessionID, fileID string) (UploadedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(sessionID, false)
	if st == nil {
		return UploadedFile{}, false
	}
	for _, f := range st.files {
		if f.ID == fileID {
			return f, true
		}
	}
	return UploadedFile{}, false
}

// Files returns a copy of the session's files in upload order.
func (s *LRUStore) Files(sessionID string) []UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(sessionID, false)
	if st == nil {
		return []UploadedFile{}
	}
	return append([]UploadedFile{}, st.files...)
}

// Len returns the number of live sessions.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

// Compile-time interface check
var _ Store = (*LRUStore)(nil)
