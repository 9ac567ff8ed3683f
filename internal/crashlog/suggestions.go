package crashlog

import "strings"

// suggestionRule fires at most once when its predicate holds.
type suggestionRule struct {
	applies func(*Findings) bool
	text    string
}

var suggestionRules = []suggestionRule{
	{
		applies: func(f *Findings) bool { return f.MemoryIssues > 0 },
		text:    "Memory issues detected: profile heap usage, look for leaks and review memory limits for the process.",
	},
	{
		applies: func(f *Findings) bool { return errorsMention(f, "database", "connection") },
		text:    "Database or connection errors found: verify the service is reachable, check credentials and connection pool settings, and add retries with backoff.",
	},
	{
		applies: func(f *Findings) bool { return hasPattern(f, PatternOutOfMemory) },
		text:    "Out-of-memory condition: increase the heap size (for example -Xmx for JVM apps) or reduce the working set.",
	},
	{
		applies: func(f *Findings) bool { return hasPattern(f, PatternSegmentationFault) },
		text:    "Segmentation fault: reproduce under a debugger (gdb, lldb) or rebuild with AddressSanitizer to locate the invalid access.",
	},
	{
		applies: func(f *Findings) bool { return hasPattern(f, PatternNullPointer) },
		text:    "Null pointer dereference: add null checks at the frame reported in the stack trace and verify object initialization order.",
	},
	{
		applies: func(f *Findings) bool { return len(f.StackTraces) > 0 },
		text:    "Start from the top frame of the first stack trace; it usually points at the failing call site.",
	},
	{
		applies: func(f *Findings) bool { return errorsMention(f, "timeout", "timed out") },
		text:    "Timeouts reported: check network latency and downstream load, and tune timeout values.",
	},
	{
		applies: func(f *Findings) bool { return errorsMention(f, "permission denied", "access denied") },
		text:    "Permission errors found: verify file ownership, access modes and the user the process runs as.",
	},
}

// GenerateSuggestions returns ordered, deduplicated debugging suggestions.
// Findings without any signal yield an empty slice.
func GenerateSuggestions(f *Findings) []string {
	suggestions := []string{}
	if f == nil {
		return suggestions
	}
	for _, rule := range suggestionRules {
		if rule.applies(f) {
			suggestions = append(suggestions, rule.text)
		}
	}
	return suggestions
}

func errorsMention(f *Findings, keywords ...string) bool {
	for _, e := range f.Errors {
		content := strings.ToLower(e.Content)
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				return true
			}
		}
	}
	return false
}

func hasPattern(f *Findings, kind PatternType) bool {
	for _, p := range f.CriticalPatterns {
		if p.Type == kind {
			return true
		}
	}
	return false
}
