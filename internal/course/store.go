package course

import (
	"context"
	"errors"

	"courseflow/pkg/domain"
)

// ErrSlotTaken reports an insert that would give the instructor a second
// non-terminal instance on the same date.
var ErrSlotTaken = errors.New("instructor slot already taken")

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	OrganizationID domain.OrganizationID
	InstructorID   domain.ActorID
	Status         Status
}

// Store persists course instances. Implementations return sentinel errors:
// ErrConflict for course number collisions, ErrNotFound for missing
// instances, ErrVersionMismatch when a guarded update observes a different
// prior status.
type Store interface {
	// Insert stores a new instance. ErrSlotTaken when a non-terminal
	// instance already occupies the (instructor, date) pair.
	Insert(ctx context.Context, instance *Instance) error
	FindByID(ctx context.Context, id domain.CourseInstanceID) (*Instance, error)
	FindByNumber(ctx context.Context, courseNumber string) (*Instance, error)
	List(ctx context.Context, filter Filter) ([]*Instance, error)

	// CountByNumberPrefix returns how many instances already carry a course
	// number starting with prefix; feeds the per-day sequence suffix.
	CountByNumberPrefix(ctx context.Context, prefix string) (int, error)

	// ExistsActive reports whether a non-terminal instance already occupies
	// the (instructor, date) pair.
	ExistsActive(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) (bool, error)

	// UpdateStatusGuarded flips the instance status only when the stored
	// status still equals expected (compare-and-swap). This is the
	// serialization point for concurrent transitions.
	UpdateStatusGuarded(ctx context.Context, id domain.CourseInstanceID, expected, next Status) error
}
