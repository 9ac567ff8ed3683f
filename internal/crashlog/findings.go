package crashlog

import (
	"fmt"
	"strings"
)

// Caps applied to every Findings.
const (
	MaxErrors         = 20
	MaxWarnings       = 20
	MaxCriticalIssues = 20
	MaxStackTraces    = 5
	MaxTimestamps     = 5
	MaxFilePaths      = 10
	MaxIPAddresses    = 10
	MaxURLs           = 10
	MaxLineLength     = 200
	MaxStackTraceLen  = 500
	MaxStackTraceBody = 20
)

// LineFinding is one error or warning line.
type LineFinding struct {
	Line    int    `json:"line" yaml:"line"`
	Content string `json:"content" yaml:"content"`
}

// CriticalPattern is an error line escalated by the critical cascade.
type CriticalPattern struct {
	Type    PatternType `json:"type" yaml:"type"`
	Content string      `json:"content" yaml:"content"`
}

// Findings holds the bounded diagnostic signals extracted from one log.
type Findings struct {
	LinesAnalyzed    int               `json:"lines_analyzed" yaml:"lines_analyzed"`
	Errors           []LineFinding     `json:"errors" yaml:"errors"`
	Warnings         []LineFinding     `json:"warnings" yaml:"warnings"`
	StackTraces      []string          `json:"stack_traces" yaml:"stack_traces"`
	CriticalIssues   []string          `json:"critical_issues" yaml:"critical_issues"`
	CriticalPatterns []CriticalPattern `json:"critical_patterns" yaml:"critical_patterns"`
	Timestamps       []string          `json:"timestamps" yaml:"timestamps"`
	FilePaths        []string          `json:"file_paths" yaml:"file_paths"`
	IPAddresses      []string          `json:"ip_addresses" yaml:"ip_addresses"`
	URLs             []string          `json:"urls" yaml:"urls"`
	MemoryIssues     int               `json:"memory_issues" yaml:"memory_issues"`
	TimelineEvents   int               `json:"timeline_events" yaml:"timeline_events"`
	ErrorCount       int               `json:"error_count" yaml:"error_count"`
	WarningCount     int               `json:"warning_count" yaml:"warning_count"`
	CriticalCount    int               `json:"critical_count" yaml:"critical_count"`
	Summary          string            `json:"summary" yaml:"summary"`
}

// orderedSet keeps the first limit distinct values in first-seen order.
type orderedSet struct {
	limit  int
	seen   map[string]struct{}
	values []string
}

func newOrderedSet(limit int) *orderedSet {
	return &orderedSet{limit: limit, seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" || len(s.values) >= s.limit {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}

// ExtractFindings scans the first maxLines lines of content.
// maxLines <= 0 selects DefaultMaxLines.
func ExtractFindings(content string, maxLines int) *Findings {
	return extract(NewPreprocessor(maxLines).Lines(content))
}

func extract(lines []string) *Findings {
	f := &Findings{
		LinesAnalyzed:    len(lines),
		Errors:           []LineFinding{},
		Warnings:         []LineFinding{},
		StackTraces:      []string{},
		CriticalIssues:   []string{},
		CriticalPatterns: []CriticalPattern{},
		Timestamps:       []string{},
	}
	paths := newOrderedSet(MaxFilePaths)
	ips := newOrderedSet(MaxIPAddresses)
	urls := newOrderedSet(MaxURLs)

	// Index of the last line absorbed into a stack-trace block.
	absorbedThrough := -1

	for idx, line := range lines {
		lineNo := idx + 1

		switch {
		case errorPattern.MatchString(line):
			f.ErrorCount++
			content := truncateRunes(strings.TrimSpace(line), MaxLineLength)
			if len(f.Errors) < MaxErrors {
				f.Errors = append(f.Errors, LineFinding{Line: lineNo, Content: content})
			}
			if m, ok := classifyCritical(line); ok {
				f.CriticalCount++
				if len(f.CriticalIssues) < MaxCriticalIssues {
					f.CriticalIssues = append(f.CriticalIssues, fmt.Sprintf("%s at line %d", m.label, lineNo))
				}
				// Past the cap a pattern is kept only for a kind not seen yet,
				// so every kind still gets its suggestion.
				if len(f.CriticalPatterns) < MaxCriticalIssues || !hasPatternType(f.CriticalPatterns, m.kind) {
					f.CriticalPatterns = append(f.CriticalPatterns, CriticalPattern{Type: m.kind, Content: content})
				}
			}
		case warningPattern.MatchString(line):
			f.WarningCount++
			if len(f.Warnings) < MaxWarnings {
				f.Warnings = append(f.Warnings, LineFinding{
					Line:    lineNo,
					Content: truncateRunes(strings.TrimSpace(line), MaxLineLength),
				})
			}
		}

		if idx > absorbedThrough && stackTraceStartPattern.MatchString(line) {
			end := absorbBlock(lines, idx)
			absorbedThrough = end
			if len(f.StackTraces) < MaxStackTraces {
				block := strings.Join(lines[idx:end+1], "\n")
				f.StackTraces = append(f.StackTraces, truncateRunes(block, MaxStackTraceLen))
			}
		}

		if ts := timestampPattern.FindString(line); ts != "" {
			f.TimelineEvents++
			if len(f.Timestamps) < MaxTimestamps {
				f.Timestamps = append(f.Timestamps, ts)
			}
		}

		if memoryPattern.MatchString(line) {
			f.MemoryIssues++
		}

		paths.add(findFilePath(line))
		ips.add(ipPattern.FindString(line))
		urls.add(urlPattern.FindString(line))
	}

	f.FilePaths = nonNil(paths.values)
	f.IPAddresses = nonNil(ips.values)
	f.URLs = nonNil(urls.values)
	f.Summary = summarize(f)
	return f
}

// absorbBlock returns the index of the last line of the stack-trace block
// starting at start. At most MaxStackTraceBody continuation lines are taken.
func absorbBlock(lines []string, start int) int {
	end := start
	for j := start + 1; j < len(lines) && j <= start+MaxStackTraceBody; j++ {
		if !isStackContinuation(lines[j]) {
			break
		}
		end = j
	}
	return end
}

func hasPatternType(patterns []CriticalPattern, kind PatternType) bool {
	for _, p := range patterns {
		if p.Type == kind {
			return true
		}
	}
	return false
}

func summarize(f *Findings) string {
	switch {
	case len(f.Errors) > 0:
		s := fmt.Sprintf("Found %d error(s)", len(f.Errors))
		if len(f.CriticalIssues) > 0 {
			s += fmt.Sprintf(" including %d critical issue(s)", len(f.CriticalIssues))
		}
		return s
	case len(f.Warnings) > 0:
		return fmt.Sprintf("Found %d warning(s), no errors detected", len(f.Warnings))
	default:
		return "No obvious errors or warnings found in the log"
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
