package crashlog

import "strings"

// DefaultMaxLines is the number of leading lines analyzed when no limit is configured.
const DefaultMaxLines = 200

// Preprocessor bounds raw log text to a fixed number of lines.
// Earliest lines are kept so startup context survives in oversized dumps.
type Preprocessor struct {
	maxLines int
}

// NewPreprocessor creates a preprocessor keeping at most maxLines lines.
// Values <= 0 select DefaultMaxLines.
func NewPreprocessor(maxLines int) *Preprocessor {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Preprocessor{maxLines: maxLines}
}

// MaxLines returns the configured line cap.
func (p *Preprocessor) MaxLines() int {
	return p.maxLines
}

// Lines splits content on "\n" and returns the first MaxLines lines.
// A trailing "\r" is removed from each line, empty content yields no lines and
// a single trailing newline does not produce an empty last line.
// Only the kept prefix of content is scanned.
func (p *Preprocessor) Lines(content string) []string {
	if content == "" {
		return nil
	}

	lines := make([]string, 0, min(p.maxLines, 64))
	rest := content
	for len(lines) < p.maxLines && rest != "" {
		idx := strings.IndexByte(rest, '\n')
		var line string
		if idx < 0 {
			line, rest = rest, ""
		} else {
			line, rest = rest[:idx], rest[idx+1:]
		}
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}
	return lines
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
