package settlement

import (
	"context"

	"courseflow/pkg/domain"
)

// Store persists payment records. Implementations return sentinel errors:
// ErrConflict when an active payment already exists for the course instance,
// ErrNotFound for missing records, ErrVersionMismatch when a guarded update
// observes a different prior status.
type Store interface {
	// Insert adds a payment, enforcing at most one active (non-Cancelled,
	// non-Refunded) record per course instance.
	Insert(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id domain.PaymentID) (*Payment, error)
	FindActiveByCourse(ctx context.Context, courseID domain.CourseInstanceID) (*Payment, error)

	// UpdateStatusGuarded flips the payment status only when the stored
	// status still equals expected (compare-and-swap).
	UpdateStatusGuarded(ctx context.Context, id domain.PaymentID, expected, next Status) error

	// Summarize aggregates amounts and counts by status for one
	// organization, RecordedAt within [from, to].
	Summarize(ctx context.Context, orgID domain.OrganizationID, from, to domain.CalendarDate) (Summary, error)
}
