// Package availability tracks per-instructor calendar entries. The calendar
// is the source of truth for whether an instructor can be assigned to a new
// course instance.
//
// Reserve, Release, and MarkCompleted are invoked only by the course
// lifecycle service so the calendar and the course status never diverge;
// handlers see only instructor self-service (Open) and listings.
package availability

import (
	"time"

	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// Status of a single instructor-date entry.
type Status string

const (
	StatusAvailable Status = "available"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusAvailable: true,
	StatusScheduled: true,
	StatusCompleted: true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown availability status %q", s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// Entry declares one instructor's capacity to teach on one date.
// Unique on (InstructorID, Date).
type Entry struct {
	InstructorID domain.ActorID
	Date         domain.CalendarDate
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
