// Package registration is the attendance ledger: who signed up for a course
// instance, who showed up, and who earned a certification.
package registration

import (
	"time"

	"courseflow/pkg/domain"
)

// Registration is one student's sign-up for a course instance. Registrations
// open unconfirmed; only confirmed ones count against the instance capacity.
type Registration struct {
	CourseInstanceID domain.CourseInstanceID
	StudentID        domain.ActorID
	RegistrationDate domain.CalendarDate
	Confirmed        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Attendance records whether a registered student attended the delivered
// course, and whether a certification was issued for it. Certification
// requires attendance.
type Attendance struct {
	CourseInstanceID    domain.CourseInstanceID
	StudentID           domain.ActorID
	Attended            bool
	CertificationIssued bool
	UpdatedAt           time.Time
}
