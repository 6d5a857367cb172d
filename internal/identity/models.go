// Package identity resolves who an actor is and what they may do.
//
// The Authorize function is the single authorization oracle for the whole
// core: every service calls it before mutating state, and no service
// performs its own role checks. Deny reasons are coded so the transport
// layer can map them to distinct responses.
package identity

import (
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// Role is the fixed role assigned to an actor at creation.
type Role string

const (
	RoleSysAdmin    Role = "sys_admin"
	RoleOrgAdmin    Role = "org_admin"
	RoleCourseAdmin Role = "course_admin"
	RoleInstructor  Role = "instructor"
	RoleStudent     Role = "student"
	RoleAccounting  Role = "accounting"
)

// validRoles is the single source of truth for role values.
var validRoles = map[Role]bool{
	RoleSysAdmin:    true,
	RoleOrgAdmin:    true,
	RoleCourseAdmin: true,
	RoleInstructor:  true,
	RoleStudent:     true,
	RoleAccounting:  true,
}

// ParseRole constructs a Role from external input (e.g. a JWT claim).
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", s)
	}
	return r, nil
}

// IsValid reports whether the role is one of the supported values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// Action is the closed enumeration of operations the oracle understands.
type Action string

const (
	ActionCreateCourse            Action = "create_course"
	ActionAssignInstructor        Action = "assign_instructor"
	ActionTransitionCourseStatus  Action = "transition_course_status"
	ActionRecordPayment           Action = "record_payment"
	ActionTransitionPaymentStatus Action = "transition_payment_status"
	ActionMarkAttendance          Action = "mark_attendance"
	ActionManageOwnAvailability   Action = "manage_own_availability"
	ActionManageOrganization      Action = "manage_organization"
	ActionManageUsers             Action = "manage_users"
)

// Actor is the authenticated identity attached to every incoming operation.
// OrganizationID is set for every role except SysAdmin.
type Actor struct {
	ID             domain.ActorID
	Role           Role
	OrganizationID domain.OrganizationID
}

// IsAuthenticated reports whether the actor carries a usable identity.
func (a Actor) IsAuthenticated() bool {
	return !a.ID.IsNil() && a.Role.IsValid()
}

// Resource carries the ownership facts Authorize needs about the target of
// an action. Services fill in what is relevant: every resource has an owning
// organization; instructor-owned resources also set OwnerInstructorID; course
// status transitions additionally set the from/to pair so instructor-driven
// transitions can be restricted.
type Resource struct {
	OwnerOrganizationID domain.OrganizationID
	OwnerInstructorID   domain.ActorID

	// CourseTransition is set only for ActionTransitionCourseStatus.
	CourseTransition *StatusChange
}

// StatusChange names a requested course status transition by its endpoints.
// Kept as plain strings so identity stays decoupled from the course package.
type StatusChange struct {
	From string
	To   string
}
