package identity

import (
	dErrors "courseflow/pkg/domain-errors"
)

// Course status names the oracle needs for the instructor rule. Values mirror
// course.Status; internal/course carries a test pinning them together.
const (
	statusScheduled = "scheduled"
	statusCompleted = "completed"
	statusCancelled = "cancelled"
)

// Authorize is the single authorization oracle. It returns nil when the
// actor may perform the action on the resource, or a coded deny error:
//
//	CodeNotAuthenticated:  no usable identity
//	CodeWrongRole:         the role never performs this action
//	CodeWrongOrganization: the resource belongs to another organization
//	CodeWrongOwner:        instructor acting on records that are not theirs
//
// Rule table (role x action):
//
//	SysAdmin:    everything, any scope.
//	OrgAdmin:    everything within own organization except payment actions.
//	CourseAdmin: course actions within own organization.
//	Instructor:  own availability; own courses, scheduled ones may only be
//	             completed or cancelled.
//	Accounting:  payment actions within own organization.
//	Student:     no mutating actions.
func Authorize(actor Actor, action Action, res Resource) error {
	if !actor.IsAuthenticated() {
		return dErrors.New(dErrors.CodeNotAuthenticated, "no authenticated actor")
	}
	if actor.Role == RoleSysAdmin {
		return nil
	}
	// Every role except SysAdmin is bound to an organization.
	if actor.OrganizationID.IsNil() {
		return dErrors.New(dErrors.CodeNotAuthenticated, "actor has no organization scope")
	}

	switch actor.Role {
	case RoleOrgAdmin:
		if action == ActionRecordPayment || action == ActionTransitionPaymentStatus {
			return dErrors.New(dErrors.CodeWrongRole, "payment actions require accounting")
		}
		if err := requireSameOrganization(actor, res); err != nil {
			return err
		}
		return requireAdminTransition(action, res)

	case RoleCourseAdmin:
		switch action {
		case ActionCreateCourse, ActionAssignInstructor, ActionTransitionCourseStatus:
			if err := requireSameOrganization(actor, res); err != nil {
				return err
			}
			return requireAdminTransition(action, res)
		default:
			return dErrors.Newf(dErrors.CodeWrongRole, "course admin cannot %s", action)
		}

	case RoleInstructor:
		switch action {
		case ActionManageOwnAvailability:
			return requireOwnRecords(actor, res)
		case ActionTransitionCourseStatus:
			if err := requireOwnRecords(actor, res); err != nil {
				return err
			}
			if !instructorMayDrive(res.CourseTransition) {
				return dErrors.New(dErrors.CodeWrongRole, "instructors may only complete or cancel scheduled courses")
			}
			return nil
		default:
			return dErrors.Newf(dErrors.CodeWrongRole, "instructor cannot %s", action)
		}

	case RoleAccounting:
		switch action {
		case ActionRecordPayment, ActionTransitionPaymentStatus:
			return requireSameOrganization(actor, res)
		default:
			return dErrors.Newf(dErrors.CodeWrongRole, "accounting cannot %s", action)
		}

	case RoleStudent:
		return dErrors.New(dErrors.CodeWrongRole, "students have no mutating actions")
	}

	return dErrors.Newf(dErrors.CodeWrongRole, "unknown role %q", actor.Role)
}

func requireSameOrganization(actor Actor, res Resource) error {
	if res.OwnerOrganizationID != actor.OrganizationID {
		return dErrors.New(dErrors.CodeWrongOrganization, "resource belongs to another organization")
	}
	return nil
}

func requireOwnRecords(actor Actor, res Resource) error {
	if res.OwnerInstructorID != actor.ID {
		return dErrors.New(dErrors.CodeWrongOwner, "instructors act only on their own records")
	}
	return nil
}

// requireAdminTransition blocks org and course admins from marking delivery:
// Scheduled -> Completed is reserved for the assigned instructor or SysAdmin.
func requireAdminTransition(action Action, res Resource) error {
	if action != ActionTransitionCourseStatus || res.CourseTransition == nil {
		return nil
	}
	if res.CourseTransition.To == statusCompleted {
		return dErrors.New(dErrors.CodeWrongRole, "only the assigned instructor or a sysadmin completes a course")
	}
	return nil
}

// instructorMayDrive limits instructor-driven transitions to delivering or
// cancelling their scheduled courses.
func instructorMayDrive(change *StatusChange) bool {
	if change == nil {
		return false
	}
	if change.From != statusScheduled {
		return false
	}
	return change.To == statusCompleted || change.To == statusCancelled
}
