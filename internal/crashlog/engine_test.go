package crashlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestEngine_Analyze(t *testing.T) {
	content := `2024-03-01 12:00:00 INFO server starting
2024-03-01 12:00:05 ERROR database connection refused (10.1.2.3:5432)
2024-03-01 12:00:06 FATAL java.lang.OutOfMemoryError: Java heap space
Exception in thread "main" java.lang.OutOfMemoryError: Java heap space
	at com.example.Cache.load(Cache.java:42)
	at com.example.Main.main(Main.java:7)
`

	r := NewEngine(200).Analyze(content, "server.log")

	if r.Severity != SeverityCritical {
		t.Errorf("Severity = %s, want critical", r.Severity)
	}
	if r.LogType != LogTypeErrorLog {
		t.Errorf("LogType = %q, want %q", r.LogType, LogTypeErrorLog)
	}
	if len(r.Findings.StackTraces) != 1 {
		t.Errorf("len(StackTraces) = %d, want 1", len(r.Findings.StackTraces))
	}
	if len(r.Suggestions) < 3 {
		t.Errorf("Suggestions = %q, want memory, connectivity and heap entries", r.Suggestions)
	}
	if r.Findings.ErrorCount != 3 {
		t.Errorf("ErrorCount = %d, want 3", r.Findings.ErrorCount)
	}
}

func TestEngine_MaxLines(t *testing.T) {
	e := NewEngine(5)
	if e.MaxLines() != 5 {
		t.Errorf("MaxLines() = %d, want 5", e.MaxLines())
	}
	content := strings.Repeat("ERROR x\n", 10)
	if got := e.ExtractFindings(content).LinesAnalyzed; got != 5 {
		t.Errorf("LinesAnalyzed = %d, want 5", got)
	}
	if NewEngine(0).MaxLines() != DefaultMaxLines {
		t.Errorf("NewEngine(0).MaxLines() = %d, want %d", NewEngine(0).MaxLines(), DefaultMaxLines)
	}
}

func TestAnalyze_ResultJSON(t *testing.T) {
	r := Analyze("ERROR: boom\nWARNING: hmm", "app.log")

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["severity"] != "medium" {
		t.Errorf("severity = %v, want medium", decoded["severity"])
	}
	if decoded["log_type"] != LogTypeErrorLog {
		t.Errorf("log_type = %v", decoded["log_type"])
	}
	findings, ok := decoded["findings"].(map[string]interface{})
	if !ok {
		t.Fatalf("findings = %T, want object", decoded["findings"])
	}
	for _, key := range []string{"lines_analyzed", "errors", "warnings", "stack_traces", "critical_issues",
		"critical_patterns", "timestamps", "file_paths", "memory_issues", "timeline_events", "summary"} {
		if _, ok := findings[key]; !ok {
			t.Errorf("findings JSON missing key %q", key)
		}
	}
	if findings["stack_traces"] == nil {
		t.Error("stack_traces encoded as null, want []")
	}
}

func TestEngine_ConcurrentUse(t *testing.T) {
	e := NewEngine(200)
	inputs := make([]string, 8)
	for i := range inputs {
		inputs[i] = fmt.Sprintf("ERROR worker %d failed\nFATAL: segmentation fault\nWARN %d", i, i)
	}
	want := make([]*Result, len(inputs))
	for i, in := range inputs {
		want[i] = e.Analyze(in, "w.log")
	}

	var wg sync.WaitGroup
	errs := make(chan string, len(inputs)*20)
	for n := 0; n < 20; n++ {
		for i, in := range inputs {
			wg.Add(1)
			go func(i int, in string) {
				defer wg.Done()
				got := e.Analyze(in, "w.log")
				if got.Findings.Summary != want[i].Findings.Summary || got.Severity != want[i].Severity {
					errs <- fmt.Sprintf("input %d: got %q/%s, want %q/%s", i,
						got.Findings.Summary, got.Severity, want[i].Findings.Summary, want[i].Severity)
				}
			}(i, in)
		}
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
