// Package course implements the course instance lifecycle: creation,
// instructor assignment, and the status state machine that keeps the
// instructor calendar and the settlement ledger consistent with course
// status.
package course

import (
	"fmt"
	"time"

	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// Status of a course instance.
//
// Invariant: only these five values are ever observable, and transitions
// follow the allowedTransitions table below.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusBilled    Status = "billed"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusScheduled: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusBilled:    true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown course status %q", s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further transitions leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusBilled
}

// allowedTransitions is the single source of truth for the state machine.
// Guards beyond edge membership (payment paid, calendar state) live in the
// service.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusBilled},
	StatusCancelled: {},
	StatusBilled:    {},
}

// CanTransitionTo reports whether the edge from s to next is in the table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Instance is one scheduled occurrence of a course type, owned jointly by
// the requesting organization and the delivering instructor.
//
// Invariants:
//   - CourseNumber is globally unique and immutable after creation
//   - at most one non-terminal instance occupies an (instructor, date) pair;
//     enforced through the availability reservation
type Instance struct {
	ID             domain.CourseInstanceID
	CourseNumber   string
	RequestedDate  domain.CalendarDate
	OrganizationID domain.OrganizationID
	CourseTypeID   domain.CourseTypeID
	InstructorID   domain.ActorID
	Location       string
	MaxStudents    int
	Status         Status
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NumberPrefix derives the deterministic part of a course number:
// YYYYMMDD-ORG-TYP. A per-day sequence suffix keeps numbers unique when an
// organization runs the same course type twice on one date.
func NumberPrefix(date domain.CalendarDate, orgCode, typeCode domain.ShortCode) string {
	return fmt.Sprintf("%s-%s-%s", date.Compact(), orgCode, typeCode)
}

// FormatNumber appends the sequence suffix to a prefix.
func FormatNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s-%02d", prefix, seq)
}
