package crashlog

import (
	"regexp"
	"strings"
)

// Line classifiers. All are case-insensitive where wording varies and are
// compiled once; a bad pattern panics at init.
var (
	errorPattern   = regexp.MustCompile(`(?i)(error|exception|fail|crash|fatal|critical)`)
	warningPattern = regexp.MustCompile(`(?i)(warning|warn)`)

	// Python tracebacks, "stack trace" banners, JVM/CLR frames "at pkg.Fn(File.java:10)"
	// and uncaught JVM exception headers.
	stackTraceStartPattern = regexp.MustCompile(`(?i)(traceback|stack trace|at .+\(.+:\d+\)|exception in thread)`)

	memoryPattern      = regexp.MustCompile(`(?i)(memory|heap|stack overflow|out of memory|\boom)`)
	segfaultPattern    = regexp.MustCompile(`(?i)(segmentation fault|sigsegv|access violation)`)
	nullPointerPattern = regexp.MustCompile(`(?i)(null\s?pointer|nullptr|nullreferenceexception)`)

	timestampPattern = regexp.MustCompile(
		`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)?` +
			`|\d{2}:\d{2}:\d{2}(?:[.,]\d+)?` +
			`|\d{2}/\d{2}/\d{4}`)

	// POSIX paths must not be glued to a preceding word or digit ("and/or", "1/2", URLs).
	// Windows paths need a drive letter.
	filePathPattern = regexp.MustCompile(
		`(?:^|[\s"'(=])(/(?:[\w.-]+/)*[\w.-]+)` +
			`|\b([A-Za-z]:\\[\w\\.-]+)`)

	ipPattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// PatternType names a critical pattern category.
type PatternType string

const (
	PatternSegmentationFault PatternType = "SegmentationFault"
	PatternNullPointer       PatternType = "NullPointer"
	PatternOutOfMemory       PatternType = "OutOfMemory"
)

// criticalMatcher is one entry of the escalation cascade.
type criticalMatcher struct {
	kind    PatternType
	pattern *regexp.Regexp
	label   string
}

// criticalCascade is evaluated in order on error lines; the first match wins.
var criticalCascade = []criticalMatcher{
	{kind: PatternSegmentationFault, pattern: segfaultPattern, label: "Segmentation fault detected"},
	{kind: PatternNullPointer, pattern: nullPointerPattern, label: "Null pointer exception"},
	{kind: PatternOutOfMemory, pattern: memoryPattern, label: "Memory issue detected"},
}

// classifyCritical returns the first cascade entry matching line.
func classifyCritical(line string) (criticalMatcher, bool) {
	for _, m := range criticalCascade {
		if m.pattern.MatchString(line) {
			return m, true
		}
	}
	return criticalMatcher{}, false
}

// findFilePath returns the first file path on line, or "".
func findFilePath(line string) string {
	m := filePathPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// isStackContinuation reports whether line continues a stack-trace block.
func isStackContinuation(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return line[0] == ' ' || line[0] == '\t' || strings.Contains(line, "at ")
}
