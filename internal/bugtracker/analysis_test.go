package bugtracker

import (
	"reflect"
	"strings"
	"testing"

	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
)

func TestSeverityMappings(t *testing.T) {
	tests := []struct {
		sev          crashlog.Severity
		wantPriority string
		wantSeverity string
	}{
		{crashlog.SeverityCritical, "critical", SeverityCritical},
		{crashlog.SeverityHigh, "high", SeverityMajor},
		{crashlog.SeverityMedium, "medium", SeverityMinor},
		{crashlog.SeverityLow, "low", SeverityTrivial},
	}

	for _, tt := range tests {
		t.Run(tt.sev.String(), func(t *testing.T) {
			if got := PriorityFor(tt.sev); got != tt.wantPriority {
				t.Errorf("PriorityFor() = %q, want %q", got, tt.wantPriority)
			}
			if got := SeverityFor(tt.sev); got != tt.wantSeverity {
				t.Errorf("SeverityFor() = %q, want %q", got, tt.wantSeverity)
			}
		})
	}
}

func TestBugFromAnalysis_CriticalLog(t *testing.T) {
	content := "INFO: starting worker\nFATAL: segmentation fault (core dumped)\n"
	result := crashlog.Analyze(content, "worker.crash")

	b := BugFromAnalysis(result, "worker.crash", "  The worker dereferenced a freed buffer.  ")

	if b.Title != "Segmentation fault detected at line 2 in worker.crash" {
		t.Errorf("Title = %q", b.Title)
	}
	if b.Priority != "critical" || b.Severity != SeverityCritical {
		t.Errorf("Priority/Severity = %q/%q", b.Priority, b.Severity)
	}
	if b.Status != StatusNew {
		t.Errorf("Status = %q, want new", b.Status)
	}
	if b.Category != crashlog.LogTypeCrashDump {
		t.Errorf("Category = %q", b.Category)
	}
	if want := []string{TagCrashlens, crashlog.LogTypeCrashDump, "critical"}; !reflect.DeepEqual(b.Tags, want) {
		t.Errorf("Tags = %v, want %v", b.Tags, want)
	}
	for _, part := range []string{
		"- File: worker.crash",
		"**Critical Issues:**",
		"Line 2: FATAL: segmentation fault (core dumped)",
		"**Suggestions:**",
		"**Assistant Analysis:**\nThe worker dereferenced a freed buffer.",
	} {
		if !strings.Contains(b.Description, part) {
			t.Errorf("Description missing %q:\n%s", part, b.Description)
		}
	}
	if err := b.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestBugFromAnalysis_Titles(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		filename string
		want     string
	}{
		{
			name:     "errors only",
			content:  "ERROR: disk quota exceeded\nERROR: write failed\n",
			filename: "app.log",
			want:     "2 errors in app.log (Error Log)",
		},
		{
			name:     "clean log",
			content:  "INFO: all good\n",
			filename: "app.log",
			want:     "Log review: app.log (Error Log)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BugFromAnalysis(crashlog.Analyze(tt.content, tt.filename), tt.filename, "")
			if b.Title != tt.want {
				t.Errorf("Title = %q, want %q", b.Title, tt.want)
			}
			if strings.Contains(b.Description, "Assistant Analysis") {
				t.Error("empty analysis rendered a section")
			}
		})
	}
}

func TestBugFromAnalysis_LongTitleTruncated(t *testing.T) {
	name := strings.Repeat("x", 200) + ".log"
	b := BugFromAnalysis(crashlog.Analyze("INFO: ok", name), name, "")
	if len(b.Title) > maxTitleLen {
		t.Errorf("len(Title) = %d, want <= %d", len(b.Title), maxTitleLen)
	}
	if !strings.HasSuffix(b.Title, "...") {
		t.Errorf("Title = %q, want ellipsis", b.Title)
	}
}
