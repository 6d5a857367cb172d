// Package seed loads deterministic demo fixtures through the real services,
// so a fresh checkout has data to poke at without a database dump.
package seed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"courseflow/internal/availability"
	"courseflow/internal/course"
	"courseflow/internal/identity"
	"courseflow/internal/registration"
	"courseflow/pkg/domain"
)

// Fixed IDs so repeated runs against a persistent store are visibly the same
// data, and so curl examples in docs can hardcode them.
var (
	OrgID        = domain.OrganizationID(uuid.MustParse("11111111-1111-4111-8111-111111111111"))
	OrgAdminID   = domain.ActorID(uuid.MustParse("22222222-2222-4222-8222-222222222222"))
	InstructorID = domain.ActorID(uuid.MustParse("33333333-3333-4333-8333-333333333333"))
	StudentID    = domain.ActorID(uuid.MustParse("44444444-4444-4444-8444-444444444444"))
	CourseTypeID = domain.CourseTypeID(uuid.MustParse("55555555-5555-4555-8555-555555555555"))
)

// Run opens a demo calendar, schedules one course on it, and registers a
// confirmed student. Errors are logged and swallowed; seeding is best effort
// and a rerun against already-seeded data conflicts by design.
func Run(ctx context.Context, logger *slog.Logger, calendar *availability.Service, courses *course.Service, registrations *registration.Service) {
	orgAdmin := identity.Actor{ID: OrgAdminID, Role: identity.RoleOrgAdmin, OrganizationID: OrgID}
	instructor := identity.Actor{ID: InstructorID, Role: identity.RoleInstructor, OrganizationID: OrgID}

	firstDate := domain.NewCalendarDate(2026, time.September, 7)
	secondDate := domain.NewCalendarDate(2026, time.September, 14)
	for _, date := range []domain.CalendarDate{firstDate, secondDate} {
		if _, err := calendar.Open(ctx, instructor, InstructorID, date); err != nil {
			logger.WarnContext(ctx, "seed: open availability failed", "date", date, "error", err)
		}
	}

	instance, err := courses.Create(ctx, orgAdmin, course.CreateRequest{
		OrganizationID: OrgID,
		OrgCode:        "ACM",
		CourseTypeID:   CourseTypeID,
		TypeCode:       "FAK",
		InstructorID:   InstructorID,
		RequestedDate:  firstDate,
		Location:       "Main hall",
		MaxStudents:    12,
		Notes:          "seeded demo course",
	})
	if err != nil {
		logger.WarnContext(ctx, "seed: create course failed", "error", err)
		return
	}

	if _, err := courses.Transition(ctx, orgAdmin, instance.ID, course.StatusScheduled); err != nil {
		logger.WarnContext(ctx, "seed: schedule course failed", "error", err)
	}

	if _, err := registrations.Register(ctx, orgAdmin, instance.ID, StudentID); err != nil {
		logger.WarnContext(ctx, "seed: register student failed", "error", err)
		return
	}
	if err := registrations.Confirm(ctx, orgAdmin, instance.ID, StudentID); err != nil {
		logger.WarnContext(ctx, "seed: confirm registration failed", "error", err)
	}

	logger.InfoContext(ctx, "seeded demo data",
		"course_instance_id", instance.ID,
		"course_number", instance.CourseNumber,
	)
}
