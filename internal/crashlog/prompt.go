package crashlog

import (
	"fmt"
	"strings"

	"github.com/olegiv/crashlens-ai-go/internal/ai"
)

// PromptBuilder renders engine results into LLM prompts.
type PromptBuilder struct{}

// NewPromptBuilder creates a new crash log prompt builder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// GetSystemPrompt returns the system prompt used for every conversation turn.
func (p *PromptBuilder) GetSystemPrompt() string {
	return `You are a helpful assistant specializing in debugging and log analysis. You help developers understand crash dumps, stack traces and error logs from any language or platform.

**Guidelines:**
- Base your answer on the findings and log excerpts you are given; do not invent log lines
- Name the most likely root cause first, then list concrete debugging steps
- Prefer specific commands, configuration keys and code locations over general advice
- Keep the response concise and actionable
- Provide clear, complete answers. Always finish your thoughts and complete all sentences properly. Do not stop mid-sentence.`
}

// BuildAnalysisPrompt renders the findings of a single log into an analysis request.
// Log-derived text is filtered through ai.SanitizeLogContent.
func (p *PromptBuilder) BuildAnalysisPrompt(result *Result, filename string) string {
	f := result.Findings
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze this error log file '%s' and provide debugging guidance.\n\n", ai.SanitizeLogContent(filename))

	b.WriteString("Summary of findings:\n")
	fmt.Fprintf(&b, "- Total lines analyzed: %d\n", f.LinesAnalyzed)
	fmt.Fprintf(&b, "- Errors found: %d\n", f.ErrorCount)
	fmt.Fprintf(&b, "- Warnings found: %d\n", f.WarningCount)
	if len(f.CriticalIssues) > 0 {
		fmt.Fprintf(&b, "- Critical issues: %s\n", strings.Join(f.CriticalIssues[:min(5, len(f.CriticalIssues))], ", "))
	} else {
		b.WriteString("- Critical issues: None detected\n")
	}
	fmt.Fprintf(&b, "- Severity: %s\n", result.Severity)
	fmt.Fprintf(&b, "- Log type: %s\n", result.LogType)

	if len(f.Errors) > 0 {
		b.WriteString("\nKey errors (showing first 3):\n")
		for _, e := range f.Errors[:min(3, len(f.Errors))] {
			fmt.Fprintf(&b, "Line %d: %s\n", e.Line, ai.SanitizeLogContent(e.Content))
		}
	}

	fmt.Fprintf(&b, "\nStack traces found: %d\n", len(f.StackTraces))
	if len(f.StackTraces) > 0 {
		b.WriteString(ai.SanitizeLogContent(f.StackTraces[0]))
		b.WriteString("\n")
	} else {
		b.WriteString("No stack traces found\n")
	}

	if len(result.Suggestions) > 0 {
		b.WriteString("\nInitial suggestions from automated analysis:\n")
		for _, s := range result.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	b.WriteString(`
Based on this analysis, provide:
1. A brief summary of the main issues
2. The likely root cause
3. Specific debugging steps to resolve the issues
4. Any additional recommendations

Keep your response concise and actionable.`)

	return b.String()
}
