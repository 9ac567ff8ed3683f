// Package bugtracker is a small issue tracker backed by SQLite. Crash analyses
// can be filed into it as bugs.
package bugtracker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the workflow state of a bug.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusFixed      Status = "fixed"
	StatusClosed     Status = "closed"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusNew, StatusAssigned, StatusInProgress, StatusFixed, StatusClosed}

var workflow = map[Status][]Status{
	StatusNew:        {StatusAssigned},
	StatusAssigned:   {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusFixed, StatusAssigned},
	StatusFixed:      {StatusClosed, StatusInProgress},
	StatusClosed:     {StatusNew},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := workflow[s]
	return ok
}

// Next returns the statuses reachable from s in one step.
func (s Status) Next() []Status {
	return append([]Status(nil), workflow[s]...)
}

// CanTransition reports whether a bug in status s may move to next.
// Staying in the same status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range workflow[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Priorities accepted on a bug, lowest first.
var Priorities = []string{"low", "medium", "high", "critical"}

// Severity labels accepted on a bug, most severe first.
const (
	SeverityCritical = "S1-Critical"
	SeverityMajor    = "S2-Major"
	SeverityMinor    = "S3-Minor"
	SeverityTrivial  = "S4-Trivial"
)

// Tracker errors. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrNotFound   = errors.New("bug not found")
	ErrInvalid    = errors.New("invalid bug")
	ErrTransition = errors.New("status transition not allowed")
)

// Bug is a tracked issue. JSON field names follow the tracker's web API.
type Bug struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ReleaseVersion  string     `json:"releaseVersion"`
	Status          Status     `json:"status"`
	Priority        string     `json:"priority,omitempty"`
	Severity        string     `json:"severity,omitempty"`
	Category        string     `json:"category,omitempty"`
	AssignedTo      string     `json:"assignedTo,omitempty"`
	Reproducibility string     `json:"reproducibility,omitempty"`
	Platform        string     `json:"platform,omitempty"`
	Tags            []string   `json:"tags"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastUpdated     *time.Time `json:"lastUpdated,omitempty"`
}

// Normalize trims text fields, defaults the status to new and ensures Tags is non-nil.
func (b *Bug) Normalize() {
	b.Title = strings.TrimSpace(b.Title)
	b.Description = strings.TrimSpace(b.Description)
	b.ReleaseVersion = strings.TrimSpace(b.ReleaseVersion)
	b.Priority = strings.ToLower(strings.TrimSpace(b.Priority))
	if b.Status == "" {
		b.Status = StatusNew
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
}

// Validate checks required fields and enumerations.
func (b *Bug) Validate() error {
	if b.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if b.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, b.Status)
	}
	if b.Priority != "" && !validPriority(b.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, b.Priority)
	}
	return nil
}

// HasTag reports whether the bug carries tag.
func (b *Bug) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func validPriority(p string) bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title           *string   `json:"title,omitempty"`
	Description     *string   `json:"description,omitempty"`
	ReleaseVersion  *string   `json:"releaseVersion,omitempty"`
	Status          *Status   `json:"status,omitempty"`
	Priority        *string   `json:"priority,omitempty"`
	Severity        *string   `json:"severity,omitempty"`
	Category        *string   `json:"category,omitempty"`
	AssignedTo      *string   `json:"assignedTo,omitempty"`
	Reproducibility *string   `json:"reproducibility,omitempty"`
	Platform        *string   `json:"platform,omitempty"`
	Tags            *[]string `json:"tags,omitempty"`
}

// Apply merges p into b, enforcing the status workflow.
func (p *Patch) Apply(b *Bug) error {
	if p.Status != nil && !b.Status.CanTransition(*p.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrTransition, b.Status, *p.Status)
	}
	setString(&b.Title, p.Title)
	setString(&b.Description, p.Description)
	setString(&b.ReleaseVersion, p.ReleaseVersion)
	setString(&b.Priority, p.Priority)
	setString(&b.Severity, p.Severity)
	setString(&b.Category, p.Category)
	setString(&b.AssignedTo, p.AssignedTo)
	setString(&b.Reproducibility, p.Reproducibility)
	setString(&b.Platform, p.Platform)
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Tags != nil {
		b.Tags = append([]string{}, (*p.Tags)...)
	}
	b.Normalize()
	return b.Validate()
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Stats summarizes the tracker contents.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[Status]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
}
