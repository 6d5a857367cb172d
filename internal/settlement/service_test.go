package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courseflow/internal/identity"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
	"courseflow/pkg/requestcontext"
)

type stubDirectory struct {
	refs map[domain.CourseInstanceID]CourseRef
}

func (d *stubDirectory) Lookup(_ context.Context, id domain.CourseInstanceID) (CourseRef, error) {
	ref, ok := d.refs[id]
	if !ok {
		return CourseRef{}, dErrors.Newf(dErrors.CodeNotFound, "course instance %s not found", id)
	}
	return ref, nil
}

type fixture struct {
	svc      *Service
	store    *InMemoryStore
	orgID    domain.OrganizationID
	courseID domain.CourseInstanceID
}

// newFixture wires a service around one completed course instance.
func newFixture(t *testing.T, courseStatus string) *fixture {
	t.Helper()
	orgID := domain.NewOrganizationID()
	courseID := domain.NewCourseInstanceID()
	dir := &stubDirectory{refs: map[domain.CourseInstanceID]CourseRef{
		courseID: {OrganizationID: orgID, Status: courseStatus},
	}}
	store := NewInMemoryStore()
	return &fixture{
		svc:      NewService(store, dir),
		store:    store,
		orgID:    orgID,
		courseID: courseID,
	}
}

func (f *fixture) accountant() identity.Actor {
	return identity.Actor{
		ID:             domain.NewActorID(),
		Role:           identity.RoleAccounting,
		OrganizationID: f.orgID,
	}
}

func (f *fixture) record(t *testing.T) *Payment {
	t.Helper()
	return f.recordOn(t, domain.DateOf(time.Now()))
}

// recordOn pins the request clock so RecordedAt lands on the given day.
func (f *fixture) recordOn(t *testing.T, day domain.CalendarDate) *Payment {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), day.Time())
	payment, err := f.svc.RecordPayment(ctx, f.accountant(), RecordRequest{
		CourseInstanceID: f.courseID,
		AmountCents:      150_00,
		Method:           MethodBankTransfer,
	})
	require.NoError(t, err)
	return payment
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("opens pending payment against completed course", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		payment := f.record(t)
		assert.Equal(t, StatusPending, payment.Status)
		assert.Equal(t, f.orgID, payment.OrganizationID)
		assert.Equal(t, int64(150_00), payment.AmountCents)
	})

	t.Run("billed course still accepts a replacement payment", func(t *testing.T) {
		f := newFixture(t, courseStatusBilled)
		f.record(t)
	})

	t.Run("undelivered course is CourseNotCompleted", func(t *testing.T) {
		for _, status := range []string{"pending", "scheduled", "cancelled"} {
			f := newFixture(t, status)
			_, err := f.svc.RecordPayment(ctx, f.accountant(), RecordRequest{
				CourseInstanceID: f.courseID,
				AmountCents:      100_00,
				Method:           MethodCash,
			})
			assert.True(t, dErrors.HasCode(err, dErrors.CodeCourseNotCompleted), "status %s", status)
		}
	})

	t.Run("second active payment is DuplicatePayment", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		f.record(t)
		_, err := f.svc.RecordPayment(ctx, f.accountant(), RecordRequest{
			CourseInstanceID: f.courseID,
			AmountCents:      100_00,
			Method:           MethodCheck,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicatePayment))
	})

	t.Run("cancelled payment frees the course for a new record", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		payment := f.record(t)
		_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, StatusCancelled)
		require.NoError(t, err)
		f.record(t)
	})

	t.Run("unknown course is NotFound", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		_, err := f.svc.RecordPayment(ctx, f.accountant(), RecordRequest{
			CourseInstanceID: domain.NewCourseInstanceID(),
			AmountCents:      100_00,
			Method:           MethodCash,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("actor outside the organization is rejected", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		outsider := identity.Actor{
			ID:             domain.NewActorID(),
			Role:           identity.RoleAccounting,
			OrganizationID: domain.NewOrganizationID(),
		}
		_, err := f.svc.RecordPayment(ctx, outsider, RecordRequest{
			CourseInstanceID: f.courseID,
			AmountCents:      100_00,
			Method:           MethodCash,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongOrganization))
	})

	t.Run("instructor cannot record payments", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		instructor := identity.Actor{
			ID:             domain.NewActorID(),
			Role:           identity.RoleInstructor,
			OrganizationID: f.orgID,
		}
		_, err := f.svc.RecordPayment(ctx, instructor, RecordRequest{
			CourseInstanceID: f.courseID,
			AmountCents:      100_00,
			Method:           MethodCash,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongRole))
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		for _, amount := range []int64{0, -50} {
			_, err := f.svc.RecordPayment(ctx, f.accountant(), RecordRequest{
				CourseInstanceID: f.courseID,
				AmountCents:      amount,
				Method:           MethodCash,
			})
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "amount %d", amount)
		}
	})
}

func TestPaymentTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed edges", func(t *testing.T) {
		edges := []struct{ from, to Status }{
			{StatusPending, StatusPaid},
			{StatusPending, StatusOverdue},
			{StatusPending, StatusCancelled},
			{StatusPaid, StatusRefunded},
		}
		for _, edge := range edges {
			f := newFixture(t, courseStatusCompleted)
			payment := f.record(t)
			if edge.from != StatusPending {
				_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, edge.from)
				require.NoError(t, err)
			}
			got, err := f.svc.Transition(ctx, f.accountant(), payment.ID, edge.to)
			require.NoError(t, err, "%s -> %s", edge.from, edge.to)
			assert.Equal(t, edge.to, got.Status)
		}
	})

	t.Run("forbidden edges are InvalidTransition", func(t *testing.T) {
		// setup walks the payment to the from-state along allowed edges;
		// Refunded in particular is only reachable through Paid.
		edges := []struct {
			setup []Status
			to    Status
		}{
			{nil, StatusRefunded},
			{[]Status{StatusPaid}, StatusPaid},
			{[]Status{StatusPaid}, StatusOverdue},
			{[]Status{StatusOverdue}, StatusPaid},
			{[]Status{StatusCancelled}, StatusPaid},
			{[]Status{StatusPaid, StatusRefunded}, StatusPending},
		}
		for _, edge := range edges {
			f := newFixture(t, courseStatusCompleted)
			payment := f.record(t)
			from := StatusPending
			for _, step := range edge.setup {
				_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, step)
				require.NoError(t, err, "setup %s -> %s", from, step)
				from = step
			}
			_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, edge.to)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "%s -> %s", from, edge.to)
		}
	})

	t.Run("overdue to paid requires a fresh record", func(t *testing.T) {
		// Overdue is terminal; collecting an overdue invoice means
		// cancelling it out of band and recording payment anew.
		f := newFixture(t, courseStatusCompleted)
		payment := f.record(t)
		_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, StatusOverdue)
		require.NoError(t, err)
		_, err = f.svc.Transition(ctx, f.accountant(), payment.ID, StatusPaid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("repeated mark-paid is rejected not double-applied", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		payment := f.record(t)
		_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, StatusPaid)
		require.NoError(t, err)
		_, err = f.svc.Transition(ctx, f.accountant(), payment.ID, StatusPaid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		got, err := f.svc.Get(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, got.Status)
	})

	t.Run("unknown payment is NotFound", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		_, err := f.svc.Transition(ctx, f.accountant(), domain.NewPaymentID(), StatusPaid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestHasPaidPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("no payment", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		paid, err := f.svc.HasPaidPayment(ctx, f.courseID)
		require.NoError(t, err)
		assert.False(t, paid)
	})

	t.Run("pending payment does not count", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		f.record(t)
		paid, err := f.svc.HasPaidPayment(ctx, f.courseID)
		require.NoError(t, err)
		assert.False(t, paid)
	})

	t.Run("paid payment counts", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		payment := f.record(t)
		_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, StatusPaid)
		require.NoError(t, err)
		paid, err := f.svc.HasPaidPayment(ctx, f.courseID)
		require.NoError(t, err)
		assert.True(t, paid)
	})
}

type countingCache struct {
	stored map[string]Summary
	hits   int
}

func newCountingCache() *countingCache {
	return &countingCache{stored: make(map[string]Summary)}
}

func (c *countingCache) Get(_ context.Context, orgID domain.OrganizationID, from, to domain.CalendarDate) (Summary, bool) {
	summary, ok := c.stored[summaryKey(orgID, from, to)]
	if ok {
		c.hits++
	}
	return summary, ok
}

func (c *countingCache) Set(_ context.Context, summary Summary) {
	c.stored[summaryKey(summary.OrganizationID, summary.From, summary.To)] = summary
}

func (c *countingCache) Invalidate(_ context.Context, orgID domain.OrganizationID) {
	for key := range c.stored {
		delete(c.stored, key)
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	from := domain.NewCalendarDate(2025, time.January, 1)
	to := domain.NewCalendarDate(2025, time.December, 31)
	recordedOn := domain.NewCalendarDate(2025, time.June, 15)

	t.Run("aggregates by status", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		payment := f.recordOn(t, recordedOn)
		_, err := f.svc.Transition(ctx, f.accountant(), payment.ID, StatusPaid)
		require.NoError(t, err)

		summary, err := f.svc.Summarize(ctx, f.accountant(), f.orgID, from, to)
		require.NoError(t, err)
		assert.Equal(t, int64(150_00), summary.TotalsByStatus[StatusPaid])
		assert.Equal(t, 1, summary.CountsByStatus[StatusPaid])
		assert.Zero(t, summary.CountsByStatus[StatusPending])
	})

	t.Run("caches and invalidates on ledger writes", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		cache := newCountingCache()
		f.svc.cache = cache
		payment := f.recordOn(t, recordedOn)

		_, err := f.svc.Summarize(ctx, f.accountant(), f.orgID, from, to)
		require.NoError(t, err)
		_, err = f.svc.Summarize(ctx, f.accountant(), f.orgID, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, cache.hits)

		_, err = f.svc.Transition(ctx, f.accountant(), payment.ID, StatusPaid)
		require.NoError(t, err)

		summary, err := f.svc.Summarize(ctx, f.accountant(), f.orgID, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, cache.hits, "write must have evicted the cached range")
		assert.Equal(t, 1, summary.CountsByStatus[StatusPaid])
	})

	t.Run("other organizations are out of scope", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		_, err := f.svc.Summarize(ctx, f.accountant(), domain.NewOrganizationID(), from, to)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongOrganization))
	})

	t.Run("sys admin reads any organization", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		admin := identity.Actor{ID: domain.NewActorID(), Role: identity.RoleSysAdmin}
		_, err := f.svc.Summarize(ctx, admin, f.orgID, from, to)
		require.NoError(t, err)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		f := newFixture(t, courseStatusCompleted)
		_, err := f.svc.Summarize(ctx, f.accountant(), f.orgID, to, from)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "150.00", FormatAmount(150_00))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "-3.25", FormatAmount(-325))
}
