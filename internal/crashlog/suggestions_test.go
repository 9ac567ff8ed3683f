package crashlog

import (
	"strings"
	"testing"
)

func TestGenerateSuggestions(t *testing.T) {
	f := &Findings{
		ErrorCount:   5,
		Errors:       []LineFinding{{Line: 1, Content: "Database connection timeout"}},
		MemoryIssues: 2,
		CriticalPatterns: []CriticalPattern{
			{Type: PatternOutOfMemory, Content: "Java heap space"},
		},
	}

	suggestions := GenerateSuggestions(f)

	if len(suggestions) == 0 {
		t.Fatal("expected suggestions")
	}
	if !anyContains(suggestions, "memory") {
		t.Errorf("no memory suggestion in %q", suggestions)
	}
	if !anyContains(suggestions, "database", "connection") {
		t.Errorf("no connectivity suggestion in %q", suggestions)
	}
	if !anyContains(suggestions, "heap size") {
		t.Errorf("no heap-sizing suggestion in %q", suggestions)
	}
	if !anyContains(suggestions, "timeout") {
		t.Errorf("no timeout suggestion in %q", suggestions)
	}
	// memory, connectivity, heap-sizing keep their fixed relative order
	if !strings.Contains(strings.ToLower(suggestions[0]), "memory issues") {
		t.Errorf("suggestions[0] = %q, want memory suggestion first", suggestions[0])
	}
}

func TestGenerateSuggestions_FireOnce(t *testing.T) {
	f := &Findings{
		Errors: []LineFinding{
			{Line: 1, Content: "database unavailable"},
			{Line: 2, Content: "connection reset"},
			{Line: 3, Content: "Database connection refused"},
		},
		MemoryIssues: 7,
		CriticalPatterns: []CriticalPattern{
			{Type: PatternOutOfMemory}, {Type: PatternOutOfMemory}, {Type: PatternNullPointer},
		},
		StackTraces: []string{"a", "b"},
	}

	suggestions := GenerateSuggestions(f)

	seen := map[string]bool{}
	for _, s := range suggestions {
		if seen[s] {
			t.Errorf("duplicate suggestion %q", s)
		}
		seen[s] = true
	}
	// memory, connectivity, heap, null pointer, stack trace
	if len(suggestions) != 5 {
		t.Errorf("got %d suggestions, want 5: %q", len(suggestions), suggestions)
	}
}

func TestGenerateSuggestions_Rules(t *testing.T) {
	tests := []struct {
		name     string
		findings *Findings
		want     string
	}{
		{
			name:     "segfault",
			findings: &Findings{CriticalPatterns: []CriticalPattern{{Type: PatternSegmentationFault}}},
			want:     "AddressSanitizer",
		},
		{
			name:     "null pointer",
			findings: &Findings{CriticalPatterns: []CriticalPattern{{Type: PatternNullPointer}}},
			want:     "null checks",
		},
		{
			name:     "stack trace",
			findings: &Findings{StackTraces: []string{"Traceback"}},
			want:     "top frame",
		},
		{
			name:     "permission",
			findings: &Findings{Errors: []LineFinding{{Content: "open /etc/x: Permission denied"}}},
			want:     "ownership",
		},
		{
			name:     "timed out",
			findings: &Findings{Errors: []LineFinding{{Content: "request timed out"}}},
			want:     "timeout values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSuggestions(tt.findings)
			if len(got) != 1 || !strings.Contains(got[0], tt.want) {
				t.Errorf("GenerateSuggestions() = %q, want one suggestion containing %q", got, tt.want)
			}
		})
	}
}

func TestGenerateSuggestions_Empty(t *testing.T) {
	for name, f := range map[string]*Findings{"nil": nil, "zero": {}} {
		t.Run(name, func(t *testing.T) {
			got := GenerateSuggestions(f)
			if got == nil || len(got) != 0 {
				t.Errorf("GenerateSuggestions() = %#v, want empty non-nil slice", got)
			}
		})
	}
}

func anyContains(list []string, keywords ...string) bool {
	for _, s := range list {
		lower := strings.ToLower(s)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
