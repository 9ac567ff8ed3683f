package crashlog

import (
	"fmt"
	"strings"
)

// Severity is the ordinal risk classification of an analyzed log.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity converts a severity name (case-insensitive) to a Severity.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return Severity(i), nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q (must be low, medium, high or critical)", name)
}

// MarshalText encodes the severity as its lowercase name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a lowercase severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ClassifySeverity maps findings to a severity:
//
//	critical  any critical issue
//	high      more than 3 errors or any critical pattern
//	medium    any error or any memory issue
//	low       otherwise
func ClassifySeverity(f *Findings) Severity {
	switch {
	case f == nil:
		return SeverityLow
	case len(f.CriticalIssues) > 0:
		return SeverityCritical
	case len(f.Errors) > 3 || len(f.CriticalPatterns) > 0:
		return SeverityHigh
	case len(f.Errors) > 0 || f.MemoryIssues > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
