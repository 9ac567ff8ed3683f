package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const sampleLog = `2024-01-15 10:23:45 INFO Service starting
2024-01-15 10:23:46 WARNING Config value missing, using default
2024-01-15 10:23:47 ERROR NullPointerException in handler
Traceback (most recent call last):
  File "/srv/app/main.py", line 10, in <module>
2024-01-15 10:23:48 FATAL Segmentation fault
`

func TestWrite_Text(t *testing.T) {
	result := crashlog.Analyze(sampleLog, "app.log")

	var buf bytes.Buffer
	if err := Write(&buf, "text", "app.log", result); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"app.log",
		"Severity:  CRITICAL",
		"Critical issues:",
		"Segmentation fault detected",
		"Errors (",
		"Warnings (1):",
		"Stack traces (",
		"Suggestions:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWrite_TextTruncatesLongLists(t *testing.T) {
	var log strings.Builder
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&log, "ERROR request %d failed\n", i)
	}
	result := crashlog.Analyze(log.String(), "app.log")

	var buf bytes.Buffer
	if err := Write(&buf, "text", "app.log", result); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "... 5 more") {
		t.Errorf("expected truncation marker:\n%s", buf.String())
	}
}

func TestWrite_JSON(t *testing.T) {
	result := crashlog.Analyze(sampleLog, "app.log")

	var buf bytes.Buffer
	if err := Write(&buf, "json", "app.log", result); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if doc["file"] != "app.log" || doc["severity"] != "critical" {
		t.Errorf("doc = %v", doc)
	}
	if doc["summary"] != result.Findings.Summary {
		t.Errorf("summary = %v", doc["summary"])
	}
}

func TestWrite_YAML(t *testing.T) {
	result := crashlog.Analyze(sampleLog, "app.log")

	var buf bytes.Buffer
	if err := Write(&buf, "yaml", "app.log", result); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var doc struct {
		File     string `yaml:"file"`
		Severity string `yaml:"severity"`
		Findings struct {
			ErrorCount int `yaml:"error_count"`
		} `yaml:"findings"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid yaml: %v\n%s", err, buf.String())
	}
	if doc.File != "app.log" || doc.Severity != "critical" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Findings.ErrorCount != result.Findings.ErrorCount {
		t.Errorf("error_count = %d, want %d", doc.Findings.ErrorCount, result.Findings.ErrorCount)
	}
}

func TestWrite_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "text", "x.log", nil); err == nil {
		t.Error("nil result accepted")
	}
	if err := Write(&buf, "xml", "x.log", crashlog.Analyze("", "x.log")); err == nil {
		t.Error("unknown format accepted")
	}
}
