// Package report renders engine results for the terminal: colored text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	"gopkg.in/yaml.v3"
)

// maxListed caps the error and warning lines shown in text output.
const maxListed = 10

// Document is the machine-readable shape of a report.
type Document struct {
	File        string             `json:"file" yaml:"file"`
	Severity    crashlog.Severity  `json:"severity" yaml:"severity"`
	LogType     string             `json:"log_type" yaml:"log_type"`
	Summary     string             `json:"summary" yaml:"summary"`
	Findings    *crashlog.Findings `json:"findings" yaml:"findings"`
	Suggestions []string           `json:"suggestions" yaml:"suggestions"`
}

// NewDocument pairs a result with the file it came from.
func NewDocument(filename string, result *crashlog.Result) *Document {
	return &Document{
		File:        filename,
		Severity:    result.Severity,
		LogType:     result.LogType,
		Summary:     result.Findings.Summary,
		Findings:    result.Findings,
		Suggestions: result.Suggestions,
	}
}

// Write renders result to w in the given format ("text", "json" or "yaml").
func Write(w io.Writer, format, filename string, result *crashlog.Result) error {
	if result == nil || result.Findings == nil {
		return fmt.Errorf("no analysis result to report")
	}
	doc := NewDocument(filename, result)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "text", "":
		writeText(w, doc)
		return nil
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

func writeText(w io.Writer, doc *Document) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)
	f := doc.Findings

	_, _ = bold.Fprintf(w, "%s\n", doc.File)
	_, _ = fmt.Fprintf(w, "%s\n", strings.Repeat("─", 60))
	_, _ = fmt.Fprintf(w, "Log type:  %s\n", doc.LogType)
	_, _ = fmt.Fprintf(w, "Severity:  ")
	_, _ = severityColor(doc.Severity).Fprintf(w, "%s\n", strings.ToUpper(doc.Severity.String()))
	_, _ = fmt.Fprintf(w, "Summary:   %s\n", doc.Summary)

	if len(f.CriticalIssues) > 0 {
		_, _ = red.Fprintf(w, "\nCritical issues:\n")
		for _, issue := range f.CriticalIssues {
			_, _ = fmt.Fprintf(w, "  - %s\n", issue)
		}
	}

	writeLines(w, red, "Errors", f.Errors, f.ErrorCount)
	writeLines(w, yellow, "Warnings", f.Warnings, f.WarningCount)

	if len(f.StackTraces) > 0 {
		_, _ = bold.Fprintf(w, "\nStack traces (%d):\n", len(f.StackTraces))
		for _, trace := range f.StackTraces {
			for _, line := range strings.Split(trace, "\n") {
				_, _ = fmt.Fprintf(w, "  %s\n", line)
			}
			_, _ = fmt.Fprintln(w)
		}
	}

	if f.MemoryIssues > 0 || f.TimelineEvents > 0 {
		_, _ = fmt.Fprintf(w, "\nMemory-related lines: %d, timestamped lines: %d\n", f.MemoryIssues, f.TimelineEvents)
	}

	if len(doc.Suggestions) > 0 {
		_, _ = cyan.Fprintf(w, "\nSuggestions:\n")
		for i, s := range doc.Suggestions {
			_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
}

func writeLines(w io.Writer, c *color.Color, title string, lines []crashlog.LineFinding, total int) {
	if total == 0 {
		return
	}
	_, _ = c.Fprintf(w, "\n%s (%d):\n", title, total)
	for i, l := range lines {
		if i == maxListed {
			_, _ = fmt.Fprintf(w, "  ... %d more\n", total-maxListed)
			break
		}
		_, _ = fmt.Fprintf(w, "  %6d  %s\n", l.Line, l.Content)
	}
}

func severityColor(s crashlog.Severity) *color.Color {
	switch s {
	case crashlog.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case crashlog.SeverityHigh:
		return color.New(color.FgRed)
	case crashlog.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
