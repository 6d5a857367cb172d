package availability

import (
	"context"

	"courseflow/pkg/domain"
)

// Store persists calendar entries. Implementations return sentinel errors:
// ErrConflict when an entry already exists for (instructor, date),
// ErrNotFound for missing entries, and ErrVersionMismatch when a guarded
// update observes a different prior status.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	Find(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) (Entry, error)
	ListFrom(ctx context.Context, instructorID domain.ActorID, from domain.CalendarDate) ([]Entry, error)

	// UpdateStatusGuarded flips the entry's status only when the stored
	// status still equals expected (compare-and-swap).
	UpdateStatusGuarded(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate, expected, next Status) error
}
