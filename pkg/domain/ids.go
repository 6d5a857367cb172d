// Package domain holds shared domain primitives: typed identifiers, calendar
// dates, and the short codes that feed course number derivation.
//
// IDs are distinct uuid-backed types so an ActorID can never be passed where
// a CourseInstanceID is expected; the compiler enforces what code review
// would otherwise have to catch.
package domain

import (
	"github.com/google/uuid"

	dErrors "courseflow/pkg/domain-errors"
)

type (
	// ActorID identifies a user account: admins, instructors, students.
	ActorID uuid.UUID

	// OrganizationID identifies the organization that requests and pays
	// for courses.
	OrganizationID uuid.UUID

	// CourseInstanceID identifies one scheduled occurrence of a course.
	CourseInstanceID uuid.UUID

	// CourseTypeID identifies a course catalog entry (e.g. basic CPR).
	CourseTypeID uuid.UUID

	// PaymentID identifies a settlement record.
	PaymentID uuid.UUID
)

func (id ActorID) String() string          { return uuid.UUID(id).String() }
func (id OrganizationID) String() string   { return uuid.UUID(id).String() }
func (id CourseInstanceID) String() string { return uuid.UUID(id).String() }
func (id CourseTypeID) String() string     { return uuid.UUID(id).String() }
func (id PaymentID) String() string        { return uuid.UUID(id).String() }

func (id ActorID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CourseInstanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CourseTypeID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// NewActorID returns a fresh random actor ID.
func NewActorID() ActorID { return ActorID(uuid.New()) }

// NewOrganizationID returns a fresh random organization ID.
func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }

// NewCourseInstanceID returns a fresh random course instance ID.
func NewCourseInstanceID() CourseInstanceID { return CourseInstanceID(uuid.New()) }

// NewCourseTypeID returns a fresh random course type ID.
func NewCourseTypeID() CourseTypeID { return CourseTypeID(uuid.New()) }

// NewPaymentID returns a fresh random payment ID.
func NewPaymentID() PaymentID { return PaymentID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	return ActorID(u), err
}

// ParseOrganizationID constructs an OrganizationID from external input.
func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s)
	return OrganizationID(u), err
}

// ParseCourseInstanceID constructs a CourseInstanceID from external input.
func ParseCourseInstanceID(s string) (CourseInstanceID, error) {
	u, err := parseUUID(s)
	return CourseInstanceID(u), err
}

// ParseCourseTypeID constructs a CourseTypeID from external input.
func ParseCourseTypeID(s string) (CourseTypeID, error) {
	u, err := parseUUID(s)
	return CourseTypeID(u), err
}

// ParsePaymentID constructs a PaymentID from external input.
func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID(s)
	return PaymentID(u), err
}
