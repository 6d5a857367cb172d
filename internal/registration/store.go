package registration

import (
	"context"
	"errors"

	"courseflow/pkg/domain"
)

// ErrCapacityReached reports a confirm that would push the confirmed count
// past the course capacity.
var ErrCapacityReached = errors.New("confirmed capacity reached")

// Store persists registrations and attendance records. Implementations
// return sentinel errors: ErrConflict on a duplicate (course, student) pair,
// ErrNotFound for missing records, ErrVersionMismatch when a guarded update
// observes a different prior state.
type Store interface {
	InsertRegistration(ctx context.Context, reg Registration) error
	FindRegistration(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) (Registration, error)
	ListRegistrations(ctx context.Context, courseID domain.CourseInstanceID) ([]Registration, error)

	// CountConfirmed returns the number of confirmed registrations for the
	// instance, the figure the registration-time capacity gate compares
	// against MaxStudents.
	CountConfirmed(ctx context.Context, courseID domain.CourseInstanceID) (int, error)

	// ConfirmRegistration flips Confirmed from false to true, holding the
	// capacity check and the flip in one guarded write. An already
	// confirmed registration yields ErrVersionMismatch; a course whose
	// confirmed count already reached maxStudents yields
	// ErrCapacityReached.
	ConfirmRegistration(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID, maxStudents int) error

	FindAttendance(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) (Attendance, error)

	// UpsertAttendance writes the attended flag, creating the record on
	// first mark. It never touches CertificationIssued; clearing Attended
	// on a certified record yields ErrInvalidState.
	UpsertAttendance(ctx context.Context, rec Attendance) error

	// MarkCertified sets CertificationIssued, guarded on Attended being
	// true (ErrInvalidState otherwise) and on the certification not having
	// been issued already (ErrConflict).
	MarkCertified(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) error
}
