// Package errors provides credential-safe error helpers and HTTP-facing status errors.
package errors

import (
	"fmt"
	"regexp"
)

const redactedPlaceholder = "[REDACTED]"

// redaction replaces every match of pattern with replace.
type redaction struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// Provider credentials come first so keyed rules see them already masked.
var redactions = []redaction{
	{"anthropic key", regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{10,}`), redactedPlaceholder},
	{"openai-style key", regexp.MustCompile(`sk-[a-zA-Z0-9_-]{32,}`), redactedPlaceholder},
	{"google key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`), redactedPlaceholder},
	{"telegram token", regexp.MustCompile(`\d{8,12}:[a-zA-Z0-9_-]{30,}`), redactedPlaceholder},
	{"bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]+`), redactedPlaceholder},
	{"authorization", regexp.MustCompile(`(?i)authorization[:\s]+[^\s]+`), redactedPlaceholder},
	{"api key param", regexp.MustCompile(`(?i)api[_-]?key[=:][^\s&"']+`), redactedPlaceholder},
	{"api key header", regexp.MustCompile(`(?i)x-(?:goog-)?api-key[:\s]+[^\s]+`), redactedPlaceholder},

	// Secrets that applications print into their own crash logs.
	{"aws access key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), redactedPlaceholder},
	{"private key", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`), redactedPlaceholder},
	{"url credentials", regexp.MustCompile(`(\w+://)[^\s/:@]+:[^\s/@]+@`), "${1}" + redactedPlaceholder + "@"},
	{"keyed secret", regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|client_secret|access_token)(\s*[=:]\s*["']?)[^\s&"',;]+`), "${1}${2}" + redactedPlaceholder},
}

// Redact masks credentials in s and reports how many were found.
func Redact(s string) (string, int) {
	count := 0
	for _, r := range redactions {
		matches := len(r.pattern.FindAllStringIndex(s, -1))
		if matches == 0 {
			continue
		}
		count += matches
		s = r.pattern.ReplaceAllString(s, r.replace)
	}
	return s, count
}

// SanitizeString masks credentials in s.
func SanitizeString(s string) string {
	out, _ := Redact(s)
	return out
}

// SanitizeError returns err with credentials masked from its message. The
// original stays reachable through errors.Unwrap.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	msg, n := Redact(err.Error())
	if n == 0 {
		return err
	}
	return &sanitizedError{original: err, sanitized: msg}
}

// Wrapf is fmt.Errorf("format: %w") for errors that may echo an API key.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), SanitizeError(err))
}

type sanitizedError struct {
	original  error
	sanitized string
}

func (e *sanitizedError) Error() string { return e.sanitized }
func (e *sanitizedError) Unwrap() error { return e.original }
