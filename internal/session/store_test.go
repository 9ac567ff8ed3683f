package session

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/crashlens-ai-go/internal/logging"
	"github.com/olegiv/crashlens-ai-go/pkg/logger"
)

func newTestStore(t *testing.T, capacity, maxTurns int) *LRUStore {
	t.Helper()
	s, err := NewLRUStore(capacity, maxTurns, nil)
	if err != nil {
		t.Fatalf("NewLRUStore() error = %v", err)
	}
	return s
}

func TestNewLRUStoreDefaults(t *testing.T) {
	s := newTestStore(t, 0, 0)
	if s.maxTurns != DefaultMaxTurns {
		t.Errorf("maxTurns = %d, want %d", s.maxTurns, DefaultMaxTurns)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestHistoryBoundedToMaxTurns(t *testing.T) {
	s := newTestStore(t, 10, 3)

	for i := 1; i <= 5; i++ {
		s.AppendTurn("a", Turn{User: fmt.Sprintf("q%d", i), Assistant: fmt.Sprintf("a%d", i), Timestamp: time.Now()})
	}

	history := s.History("a")
	if len(history) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(history))
	}
	for i, want := range []string{"q3", "q4", "q5"} {
		if history[i].User != want {
			t.Errorf("history[%d].User = %s, want %s", i, history[i].User, want)
		}
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := newTestStore(t, 10, 10)
	s.AppendTurn("a", Turn{User: "q", Assistant: "a"})

	history := s.History("a")
	history[0].User = "mutated"

	if got := s.History("a")[0].User; got != "q" {
		t.Errorf("stored turn changed through returned slice: %s", got)
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestStore(t, 10, 10)

	if h := s.History("missing"); h == nil || len(h) != 0 {
		t.Errorf("History(missing) = %v, want empty non-nil", h)
	}
	if f := s.Files("missing"); f == nil || len(f) != 0 {
		t.Errorf("Files(missing) = %v, want empty non-nil", f)
	}
	if _, ok := s.FindFile("missing", "x"); ok {
		t.Error("FindFile on unknown session should fail")
	}
	s.Clear("missing")
	if s.Len() != 0 {
		t.Errorf("read-only calls created sessions: Len() = %d", s.Len())
	}
}

func TestClearKeepsFiles(t *testing.T) {
	s := newTestStore(t, 10, 10)
	s.AppendTurn("a", Turn{User: "q", Assistant: "a"})
	s.AddFile("a", UploadedFile{ID: "f1", Filename: "app.log"})

	s.Clear("a")

	if len(s.History("a")) != 0 {
		t.Error("Clear() should drop history")
	}
	if _, ok := s.FindFile("a", "f1"); !ok {
		t.Error("Clear() should keep uploaded files")
	}
}

func TestFindFile(t *testing.T) {
	s := newTestStore(t, 10, 10)
	s.AddFile("a", UploadedFile{ID: "f1", Filename: "one.log"})
	s.AddFile("a", UploadedFile{ID: "f2", Filename: "two.log"})
	s.AddFile("b", UploadedFile{ID: "f3", Filename: "three.log"})

	f, ok := s.FindFile("a", "f2")
	if !ok || f.Filename != "two.log" {
		t.Errorf("FindFile(a, f2) = %+v, %v", f, ok)
	}
	if _, ok := s.FindFile("a", "f3"); ok {
		t.Error("files must not leak across sessions")
	}
	if got := len(s.Files("a")); got != 2 {
		t.Errorf("len(Files(a)) = %d, want 2", got)
	}
}

func TestLRUEviction(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewSecure(logger.NewWithWriter(&buf, "debug"))

	s, err := NewLRUStore(2, 10, log)
	if err != nil {
		t.Fatalf("NewLRUStore() error = %v", err)
	}

	s.AppendTurn("a", Turn{User: "qa"})
	s.AppendTurn("b", Turn{User: "qb"})
	// Touch a so b becomes least recently used
	_ = s.History("a")
	s.AppendTurn("c", Turn{User: "qc"})

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if len(s.History("b")) != 0 {
		t.Error("session b should have been evicted")
	}
	if len(s.History("a")) != 1 || len(s.History("c")) != 1 {
		t.Error("sessions a and c should survive")
	}
	if !strings.Contains(buf.String(), "Session evicted") {
		t.Errorf("eviction not logged: %s", buf.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(t, 50, 5)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%5)
			for j := 0; j < 50; j++ {
				s.AppendTurn(id, Turn{User: "q"})
				s.AddFile(id, UploadedFile{ID: fmt.Sprintf("%d-%d", i, j)})
				_ = s.History(id)
				_, _ = s.FindFile(id, "0-0")
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		if got := len(s.History(fmt.Sprintf("s%d", i))); got != 5 {
			t.Errorf("session s%d history = %d, want 5", i, got)
		}
	}
}
