package ai

import (
	"regexp"
	"strings"
	"unicode"
)

// injectionPatterns match text in a log that tries to steer the model.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)(new\s+instructions?|system\s*prompt)\s*:`),
	// Transcript role markers.
	regexp.MustCompile(`(?i)\b(assistant|human|user|system)\s*:`),
}

var excessiveNewlines = regexp.MustCompile(`\n{4,}`)

const filtered = "[FILTERED]"

// SanitizeLogContent prepares log text for embedding in a prompt. Control
// characters other than tab, CR and LF are dropped, steering phrases become
// [FILTERED], and runs of blank lines are collapsed to two.
func SanitizeLogContent(content string) string {
	printable := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, content)

	for _, re := range injectionPatterns {
		printable = re.ReplaceAllLiteralString(printable, filtered)
	}
	return excessiveNewlines.ReplaceAllLiteralString(printable, "\n\n\n")
}

// chatTemplateTags are special tokens some local models echo back.
var chatTemplateTags = []string{"<|end|>", "<|user|>", "<|assistant|>", "<|system|>"}

const (
	sentenceEndings = `.!?:;"'`
	// completeEndings also accepts closing brackets left by lists and code.
	completeEndings = `.!?":;)'\]`
	// minWordsForTrim is the word count above which a dangling fragment is cut.
	minWordsForTrim = 10
)

// CleanResponse normalizes raw model output for display.
// Chat-template tags and role-play lines starting with '@' are removed. When the
// text stops mid-word it is cut back to the last complete sentence, otherwise a
// missing terminal period is added.
func CleanResponse(response string) string {
	if i := strings.LastIndex(response, "<|assistant|>"); i >= 0 {
		response = response[i+len("<|assistant|>"):]
	}
	for _, tag := range chatTemplateTags {
		if i := strings.Index(response, tag); i >= 0 {
			response = response[:i]
		}
	}

	if strings.Contains(response, "@") {
		lines := strings.Split(response, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if !strings.HasPrefix(strings.TrimSpace(line), "@") {
				kept = append(kept, line)
			}
		}
		response = strings.Join(kept, "\n")
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return ""
	}

	last := lastRune(response)
	if strings.ContainsRune(sentenceEndings, last) || len(strings.Fields(response)) <= minWordsForTrim {
		return response
	}
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		if end := lastSentenceEnd(response); end > 0 {
			return response[:end]
		}
		return response
	}
	return response + "."
}

// IsCompleteResponse reports whether response ends like a finished sentence.
func IsCompleteResponse(response string) bool {
	response = strings.TrimSpace(response)
	if response == "" {
		return false
	}
	return strings.ContainsRune(completeEndings, lastRune(response))
}

// lastSentenceEnd returns the byte offset just past the last '.', '!' or '?'
// that is followed by whitespace, or 0 when there is none.
func lastSentenceEnd(s string) int {
	for i := len(s) - 2; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if unicode.IsSpace(rune(s[i+1])) {
				return i + 1
			}
		}
	}
	return 0
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}
