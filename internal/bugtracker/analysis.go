package bugtracker

import (
	"fmt"
	"strings"

	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
)

// TagCrashlens marks bugs filed from a log analysis.
const TagCrashlens = "crashlens"

// maxTitleLen caps generated titles.
const maxTitleLen = 120

// PriorityFor maps an analysis severity to a bug priority.
func PriorityFor(sev crashlog.Severity) string {
	switch sev {
	case crashlog.SeverityCritical:
		return "critical"
	case crashlog.SeverityHigh:
		return "high"
	case crashlog.SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// SeverityFor maps an analysis severity to a bug severity label.
func SeverityFor(sev crashlog.Severity) string {
	switch sev {
	case crashlog.SeverityCritical:
		return SeverityCritical
	case crashlog.SeverityHigh:
		return SeverityMajor
	case crashlog.SeverityMedium:
		return SeverityMinor
	default:
		return SeverityTrivial
	}
}

// BugFromAnalysis drafts a bug report from an engine result and the
// assistant's explanation. analysis may be empty.
func BugFromAnalysis(result *crashlog.Result, filename, analysis string) *Bug {
	f := result.Findings
	if f == nil {
		f = &crashlog.Findings{}
	}

	b := &Bug{
		Title:           bugTitle(result, f, filename),
		Description:     bugDescription(result, f, filename, analysis),
		Status:          StatusNew,
		Priority:        PriorityFor(result.Severity),
		Severity:        SeverityFor(result.Severity),
		Category:        result.LogType,
		Reproducibility: "Unknown",
		Tags:            []string{TagCrashlens, result.LogType, result.Severity.String()},
	}
	return b
}

func bugTitle(result *crashlog.Result, f *crashlog.Findings, filename string) string {
	var title string
	switch {
	case len(f.CriticalIssues) > 0:
		title = fmt.Sprintf("%s in %s", f.CriticalIssues[0], filename)
	case len(f.Errors) > 0:
		title = fmt.Sprintf("%d errors in %s (%s)", f.ErrorCount, filename, result.LogType)
	default:
		title = fmt.Sprintf("Log review: %s (%s)", filename, result.LogType)
	}
	if len(title) > maxTitleLen {
		title = strings.TrimSpace(title[:maxTitleLen-3]) + "..."
	}
	return strings.ToValidUTF8(title, "")
}

func bugDescription(result *crashlog.Result, f *crashlog.Findings, filename, analysis string) string {
	var b strings.Builder

	b.WriteString("**Source:**\n")
	fmt.Fprintf(&b, "- File: %s\n", filename)
	fmt.Fprintf(&b, "- Log type: %s\n", result.LogType)
	fmt.Fprintf(&b, "- Severity: %s\n", result.Severity)
	fmt.Fprintf(&b, "- Lines analyzed: %d (errors: %d, warnings: %d)\n",
		f.LinesAnalyzed, f.ErrorCount, f.WarningCount)

	if len(f.CriticalIssues) > 0 {
		b.WriteString("\n**Critical Issues:**\n")
		for _, issue := range f.CriticalIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	if len(f.Errors) > 0 {
		b.WriteString("\n**First Errors:**\n")
		for _, e := range f.Errors[:min(3, len(f.Errors))] {
			fmt.Fprintf(&b, "- Line %d: %s\n", e.Line, e.Content)
		}
	}

	if len(f.StackTraces) > 0 {
		b.WriteString("\n**Stack Trace:**\n```\n")
		b.WriteString(f.StackTraces[0])
		b.WriteString("\n```\n")
	}

	if len(result.Suggestions) > 0 {
		b.WriteString("\n**Suggestions:**\n")
		for _, s := range result.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if analysis = strings.TrimSpace(analysis); analysis != "" {
		b.WriteString("\n**Assistant Analysis:**\n")
		b.WriteString(analysis)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}
