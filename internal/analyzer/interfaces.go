// Package analyzer describes where crash logs come from. Uploaded files and
// server-side paths are served by different readers with their own limits,
// registered under a LogSourceType.
package analyzer

import "strings"

// EstimateTokens approximates the token count of content as
// max(chars/4, words/0.75).
func EstimateTokens(content string) int {
	chars := len(content)
	words := len(strings.Fields(content))

	charsEstimate := chars / 4
	wordsEstimate := int(float64(words) / 0.75)

	if charsEstimate > wordsEstimate {
		return charsEstimate
	}
	return wordsEstimate
}

// Limits are the checks a reader applies before returning content.
type Limits struct {
	Extensions   []string `json:"extensions"` // empty accepts any name
	MaxBytes     int64    `json:"max_bytes"`
	BaseDir      string   `json:"-"`
	RejectBinary bool     `json:"reject_binary"`
}

// LogReader reads log text from one kind of source.
type LogReader interface {
	// Read returns the sanitized text of the log at sourcePath.
	Read(sourcePath string) (string, error)

	// CheckName reports whether a file name passes the extension allow-list.
	CheckName(name string) error

	// CheckSize reports whether size bytes fit the reader's limit.
	CheckSize(size int64) error

	Limits() Limits
}
