package course_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"courseflow/internal/availability"
	"courseflow/internal/course"
	"courseflow/internal/identity"
	"courseflow/internal/settlement"
	settlementadapters "courseflow/internal/settlement/adapters"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// fixture wires the lifecycle against real in-memory calendar and
// settlement services, the same collaborators production uses.
type fixture struct {
	courses     *course.Service
	courseStore *course.InMemoryStore
	calendar    *availability.Service
	calStore    *availability.InMemoryStore
	payments    *settlement.Service

	orgID        domain.OrganizationID
	instructorID domain.ActorID
	date         domain.CalendarDate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		courseStore:  course.NewInMemoryStore(),
		calStore:     availability.NewInMemoryStore(),
		orgID:        domain.NewOrganizationID(),
		instructorID: domain.NewActorID(),
		date:         domain.NewCalendarDate(2025, time.June, 1),
	}
	f.calendar = availability.NewService(f.calStore)
	f.payments = settlement.NewService(settlement.NewInMemoryStore(), settlementadapters.NewCourseDirectory(f.courseStore))
	f.courses = course.NewService(f.courseStore, f.calendar, f.payments)
	return f
}

func (f *fixture) orgAdmin() identity.Actor {
	return identity.Actor{ID: domain.NewActorID(), Role: identity.RoleOrgAdmin, OrganizationID: f.orgID}
}

func (f *fixture) instructor() identity.Actor {
	return identity.Actor{ID: f.instructorID, Role: identity.RoleInstructor, OrganizationID: f.orgID}
}

func (f *fixture) accountant() identity.Actor {
	return identity.Actor{ID: domain.NewActorID(), Role: identity.RoleAccounting, OrganizationID: f.orgID}
}

func sysAdmin() identity.Actor {
	return identity.Actor{ID: domain.NewActorID(), Role: identity.RoleSysAdmin}
}

// openDate gives an instructor an Available calendar entry.
func (f *fixture) openDate(t *testing.T, instructor identity.Actor, date domain.CalendarDate) {
	t.Helper()
	_, err := f.calendar.Open(context.Background(), instructor, instructor.ID, date)
	require.NoError(t, err)
}

func (f *fixture) createRequest() course.CreateRequest {
	return course.CreateRequest{
		OrganizationID: f.orgID,
		OrgCode:        domain.ShortCode("ACM"),
		CourseTypeID:   domain.NewCourseTypeID(),
		TypeCode:       domain.ShortCode("FAK"),
		InstructorID:   f.instructorID,
		RequestedDate:  f.date,
		Location:       "Springfield",
		MaxStudents:    12,
	}
}

// create opens the instructor's calendar and creates a Pending instance.
func (f *fixture) create(t *testing.T) *course.Instance {
	t.Helper()
	f.openDate(t, f.instructor(), f.date)
	instance, err := f.courses.Create(context.Background(), f.orgAdmin(), f.createRequest())
	require.NoError(t, err)
	return instance
}

// advance walks the instance through the given statuses with appropriately
// privileged actors.
func (f *fixture) advance(t *testing.T, id domain.CourseInstanceID, statuses ...course.Status) *course.Instance {
	t.Helper()
	var instance *course.Instance
	for _, status := range statuses {
		actor := f.orgAdmin()
		if status == course.StatusCompleted {
			actor = f.instructor()
		}
		var err error
		instance, err = f.courses.Transition(context.Background(), actor, id, status)
		require.NoError(t, err)
	}
	return instance
}

func (f *fixture) calendarStatus(t *testing.T) availability.Status {
	t.Helper()
	entry, err := f.calStore.Find(context.Background(), f.instructorID, f.date)
	require.NoError(t, err)
	return entry.Status
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending with derived course number", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		assert.Equal(t, course.StatusPending, instance.Status)
		assert.Equal(t, "20250601-ACM-FAK-01", instance.CourseNumber)
		// Creation alone does not reserve the calendar.
		assert.Equal(t, availability.StatusAvailable, f.calendarStatus(t))
	})

	t.Run("same day same codes get sequential numbers", func(t *testing.T) {
		f := newFixture(t)
		f.create(t)

		other := identity.Actor{ID: domain.NewActorID(), Role: identity.RoleInstructor, OrganizationID: f.orgID}
		f.openDate(t, other, f.date)
		req := f.createRequest()
		req.InstructorID = other.ID
		instance, err := f.courses.Create(ctx, f.orgAdmin(), req)
		require.NoError(t, err)
		assert.Equal(t, "20250601-ACM-FAK-02", instance.CourseNumber)
	})

	t.Run("no available entry is SlotUnavailable", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.courses.Create(ctx, f.orgAdmin(), f.createRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSlotUnavailable))
	})

	t.Run("instructor with an active course that day is SlotUnavailable", func(t *testing.T) {
		f := newFixture(t)
		f.create(t)
		_, err := f.courses.Create(ctx, f.orgAdmin(), f.createRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSlotUnavailable))
	})

	t.Run("cancelled course frees the slot for a new one", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		f.advance(t, instance.ID, course.StatusCancelled)

		again, err := f.courses.Create(ctx, f.orgAdmin(), f.createRequest())
		require.NoError(t, err)
		assert.Equal(t, "20250601-ACM-FAK-02", again.CourseNumber)
	})

	t.Run("students cannot create courses", func(t *testing.T) {
		f := newFixture(t)
		f.openDate(t, f.instructor(), f.date)
		student := identity.Actor{ID: domain.NewActorID(), Role: identity.RoleStudent, OrganizationID: f.orgID}
		_, err := f.courses.Create(ctx, student, f.createRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongRole))
	})

	t.Run("admin of another organization is WrongOrganization", func(t *testing.T) {
		f := newFixture(t)
		f.openDate(t, f.instructor(), f.date)
		outsider := identity.Actor{ID: domain.NewActorID(), Role: identity.RoleOrgAdmin, OrganizationID: domain.NewOrganizationID()}
		_, err := f.courses.Create(ctx, outsider, f.createRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongOrganization))
	})

	t.Run("invalid capacity rejected", func(t *testing.T) {
		f := newFixture(t)
		f.openDate(t, f.instructor(), f.date)
		req := f.createRequest()
		req.MaxStudents = 0
		_, err := f.courses.Create(ctx, f.orgAdmin(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("scheduling reserves the calendar entry", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		got := f.advance(t, instance.ID, course.StatusScheduled)
		assert.Equal(t, course.StatusScheduled, got.Status)
		assert.Equal(t, availability.StatusScheduled, f.calendarStatus(t))
	})

	t.Run("cancelling a scheduled course restores the calendar entry", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		f.advance(t, instance.ID, course.StatusScheduled)

		got := f.advance(t, instance.ID, course.StatusCancelled)
		assert.Equal(t, course.StatusCancelled, got.Status)
		assert.Equal(t, availability.StatusAvailable, f.calendarStatus(t))
	})

	t.Run("cancelling a pending course leaves the calendar untouched", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		f.advance(t, instance.ID, course.StatusCancelled)
		assert.Equal(t, availability.StatusAvailable, f.calendarStatus(t))
	})

	t.Run("instructor completes their delivered course", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		got := f.advance(t, instance.ID, course.StatusScheduled, course.StatusCompleted)
		assert.Equal(t, course.StatusCompleted, got.Status)
		assert.Equal(t, availability.StatusCompleted, f.calendarStatus(t))
	})

	t.Run("org admin cannot mark delivery", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		f.advance(t, instance.ID, course.StatusScheduled)

		_, err := f.courses.Transition(ctx, f.orgAdmin(), instance.ID, course.StatusCompleted)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongRole))
	})

	t.Run("another instructor cannot complete the course", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		f.advance(t, instance.ID, course.StatusScheduled)

		other := identity.Actor{ID: domain.NewActorID(), Role: identity.RoleInstructor, OrganizationID: f.orgID}
		_, err := f.courses.Transition(ctx, other, instance.ID, course.StatusCompleted)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongOwner))
	})

	t.Run("admin of another organization is WrongOrganization", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		outsider := identity.Actor{ID: domain.NewActorID(), Role: identity.RoleOrgAdmin, OrganizationID: domain.NewOrganizationID()}
		_, err := f.courses.Transition(ctx, outsider, instance.ID, course.StatusScheduled)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongOrganization))
	})

	t.Run("off-table edges are InvalidTransition", func(t *testing.T) {
		edges := []struct {
			prepare []course.Status
			to      course.Status
		}{
			{nil, course.StatusBilled},
			{nil, course.StatusCompleted},
			{[]course.Status{course.StatusCancelled}, course.StatusScheduled},
			{[]course.Status{course.StatusScheduled, course.StatusCompleted}, course.StatusScheduled},
			{[]course.Status{course.StatusScheduled, course.StatusCompleted}, course.StatusPending},
		}
		for _, edge := range edges {
			f := newFixture(t)
			instance := f.create(t)
			if len(edge.prepare) > 0 {
				f.advance(t, instance.ID, edge.prepare...)
			}
			_, err := f.courses.Transition(ctx, sysAdmin(), instance.ID, edge.to)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "-> %s after %v", edge.to, edge.prepare)
		}
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		f := newFixture(t)
		instance := f.create(t)
		_, err := f.courses.Transition(ctx, sysAdmin(), instance.ID, course.Status("in_progress"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown instance is NotFound", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.courses.Transition(ctx, sysAdmin(), domain.NewCourseInstanceID(), course.StatusScheduled)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestBillingGate walks the whole settlement path: billing is refused until
// a payment exists and is Paid, and duplicate payments are rejected.
func TestBillingGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	instance := f.create(t)
	f.advance(t, instance.ID, course.StatusScheduled, course.StatusCompleted)

	_, err := f.courses.Transition(ctx, f.orgAdmin(), instance.ID, course.StatusBilled)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "no payment yet")

	payment, err := f.payments.RecordPayment(ctx, f.accountant(), settlement.RecordRequest{
		CourseInstanceID: instance.ID,
		AmountCents:      500_00,
		Method:           settlement.MethodCreditCard,
	})
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusPending, payment.Status)

	_, err = f.payments.RecordPayment(ctx, f.accountant(), settlement.RecordRequest{
		CourseInstanceID: instance.ID,
		AmountCents:      500_00,
		Method:           settlement.MethodCreditCard,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicatePayment))

	_, err = f.courses.Transition(ctx, f.orgAdmin(), instance.ID, course.StatusBilled)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "payment still pending")

	_, err = f.payments.Transition(ctx, f.accountant(), payment.ID, settlement.StatusPaid)
	require.NoError(t, err)

	got, err := f.courses.Transition(ctx, f.orgAdmin(), instance.ID, course.StatusBilled)
	require.NoError(t, err)
	assert.Equal(t, course.StatusBilled, got.Status)
}

// rendezvousStore holds every FindByID caller at a barrier until all
// participants have loaded the row, forcing the read-then-write race.
type rendezvousStore struct {
	course.Store
	barrier *sync.WaitGroup
}

func (s *rendezvousStore) FindByID(ctx context.Context, id domain.CourseInstanceID) (*course.Instance, error) {
	instance, err := s.Store.FindByID(ctx, id)
	s.barrier.Done()
	s.barrier.Wait()
	return instance, err
}

func TestConcurrentCompletionSerializes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	instance := f.create(t)
	f.advance(t, instance.ID, course.StatusScheduled)

	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	raced := course.NewService(&rendezvousStore{Store: f.courseStore, barrier: barrier}, f.calendar, f.payments)

	results := make([]error, 2)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			_, err := raced.Transition(ctx, f.instructor(), instance.ID, course.StatusCompleted)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var succeeded, aborted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeTransitionAborted):
			aborted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, aborted)

	// The winner's side effect applied exactly once.
	assert.Equal(t, availability.StatusCompleted, f.calendarStatus(t))
	final, err := f.courses.Get(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusCompleted, final.Status)
}

// slotRaceStore releases concurrent creators only after each has passed the
// occupancy pre-check, so the store's slot constraint has to decide.
type slotRaceStore struct {
	course.Store
	barrier *sync.WaitGroup
}

func (s *slotRaceStore) ExistsActive(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) (bool, error) {
	occupied, err := s.Store.ExistsActive(ctx, instructorID, date)
	s.barrier.Done()
	s.barrier.Wait()
	return occupied, err
}

func TestConcurrentCreateSameSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openDate(t, f.instructor(), f.date)

	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	raced := course.NewService(&slotRaceStore{Store: f.courseStore, barrier: barrier}, f.calendar, f.payments)

	// Distinct type codes keep the course numbers apart; only the slot
	// constraint is in play.
	requests := []course.CreateRequest{f.createRequest(), f.createRequest()}
	requests[1].TypeCode = domain.ShortCode("GAK")

	results := make([]error, 2)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			_, err := raced.Create(ctx, f.orgAdmin(), requests[i])
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var succeeded, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeSlotUnavailable):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	instances, err := f.courses.List(ctx, course.Filter{InstructorID: f.instructorID})
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

// failingCalendar rejects the reserve call, driving the compensation path.
type failingCalendar struct {
	course.Calendar
}

func (failingCalendar) Reserve(context.Context, domain.ActorID, domain.CalendarDate) error {
	return dErrors.New(dErrors.CodeSlotUnavailable, "no available entry")
}

func TestCalendarFailureRevertsCourseStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	instance := f.create(t)

	broken := course.NewService(f.courseStore, failingCalendar{Calendar: f.calendar}, f.payments)
	_, err := broken.Transition(ctx, f.orgAdmin(), instance.ID, course.StatusScheduled)
	require.Error(t, err)

	// The course row was compensated back to Pending, so a retry against a
	// healthy calendar succeeds.
	got, err := f.courses.Get(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusPending, got.Status)

	_, err = f.courses.Transition(ctx, f.orgAdmin(), instance.ID, course.StatusScheduled)
	require.NoError(t, err)
}
