package settlement

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"courseflow/internal/audit"
	"courseflow/internal/identity"
	settlementmetrics "courseflow/internal/settlement/metrics"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
	"courseflow/pkg/platform/sentinel"
	"courseflow/pkg/requestcontext"
)

// Mirrors of the course statuses a payment may be recorded against.
// internal/course carries a test pinning these to its own values.
const (
	courseStatusCompleted = "completed"
	courseStatusBilled    = "billed"
)

// CourseRef is the slice of a course instance the ledger cares about.
type CourseRef struct {
	OrganizationID domain.OrganizationID
	Status         string
}

// CourseDirectory resolves the course instance a payment settles.
type CourseDirectory interface {
	Lookup(ctx context.Context, id domain.CourseInstanceID) (CourseRef, error)
}

// AuditPublisher records ledger mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the payment ledger. Payments attach to completed courses only,
// at most one active record per instance, and move through their own status
// machine under the same compare-and-swap discipline as course instances.
type Service struct {
	store   Store
	courses CourseDirectory
	cache   SummaryCache
	auditor AuditPublisher
	logger  *slog.Logger
	metrics *settlementmetrics.Metrics
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *settlementmetrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) ServiceOption {
	return func(s *Service) { s.auditor = p }
}

func WithSummaryCache(c SummaryCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

func NewService(store Store, courses CourseDirectory, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		courses: courses,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordRequest carries everything needed to open a Pending payment.
type RecordRequest struct {
	CourseInstanceID domain.CourseInstanceID
	AmountCents      int64
	Method           Method
}

func (r RecordRequest) validate() error {
	switch {
	case r.CourseInstanceID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "course instance id is required")
	case r.AmountCents <= 0:
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	case !validMethods[r.Method]:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment method %q", r.Method)
	}
	return nil
}

// RecordPayment opens a Pending payment against a delivered course. The
// course must already be Completed or Billed, and no other active payment
// may exist for it.
func (s *Service) RecordPayment(ctx context.Context, actor identity.Actor, req RecordRequest) (*Payment, error) {
	if err := req.validate(); err != nil {
		s.metrics.ObserveRecorded("invalid")
		return nil, err
	}

	ref, err := s.courses.Lookup(ctx, req.CourseInstanceID)
	if err != nil {
		s.metrics.ObserveRecorded("error")
		return nil, err
	}

	res := identity.Resource{OwnerOrganizationID: ref.OrganizationID}
	if err := identity.Authorize(actor, identity.ActionRecordPayment, res); err != nil {
		s.metrics.ObserveRecorded("denied")
		return nil, err
	}

	if ref.Status != courseStatusCompleted && ref.Status != courseStatusBilled {
		s.metrics.ObserveRecorded("course_not_completed")
		return nil, dErrors.Newf(dErrors.CodeCourseNotCompleted, "cannot record payment for %s course", ref.Status)
	}

	now := requestcontext.Now(ctx)
	payment := &Payment{
		ID:               domain.NewPaymentID(),
		CourseInstanceID: req.CourseInstanceID,
		OrganizationID:   ref.OrganizationID,
		AmountCents:      req.AmountCents,
		Method:           req.Method,
		Status:           StatusPending,
		RecordedBy:       actor.ID,
		RecordedAt:       now,
		UpdatedAt:        now,
	}

	// The store's uniqueness check is the authority; a pre-check here would
	// still race with a concurrent insert.
	if err := s.store.Insert(ctx, payment); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.ObserveRecorded("duplicate")
			return nil, dErrors.Newf(dErrors.CodeDuplicatePayment, "course instance %s already has an active payment", req.CourseInstanceID)
		}
		s.metrics.ObserveRecorded("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payment")
	}

	s.invalidate(ctx, ref.OrganizationID)
	s.metrics.ObserveRecorded("ok")
	s.emit(ctx, audit.Event{
		Kind:     audit.KindPaymentRecorded,
		ActorID:  actor.ID,
		Entity:   "payment",
		EntityID: payment.ID.String(),
		To:       string(StatusPending),
	})
	s.logger.InfoContext(ctx, "payment recorded",
		"payment_id", payment.ID,
		"course_instance_id", payment.CourseInstanceID,
		"amount_cents", payment.AmountCents,
		"method", payment.Method,
	)
	return payment, nil
}

// Get returns one payment by ID.
func (s *Service) Get(ctx context.Context, id domain.PaymentID) (*Payment, error) {
	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "payment %s not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}
	return payment, nil
}

// Transition moves the payment along one edge of its status machine. A
// repeat of an already-applied edge reloads the stored status first and
// fails the table check, so retries after success are rejected cleanly
// rather than double-applied.
func (s *Service) Transition(ctx context.Context, actor identity.Actor, id domain.PaymentID, to Status) (*Payment, error) {
	if !validStatuses[to] {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment status %q", to)
	}

	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := payment.Status

	res := identity.Resource{OwnerOrganizationID: payment.OrganizationID}
	if err := identity.Authorize(actor, identity.ActionTransitionPaymentStatus, res); err != nil {
		s.metrics.ObserveTransition(string(from), string(to), "denied")
		return nil, err
	}

	if !from.CanTransitionTo(to) {
		s.metrics.ObserveTransition(string(from), string(to), "invalid")
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot transition %s payment to %s", from, to)
	}

	if err := s.store.UpdateStatusGuarded(ctx, id, from, to); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Newf(dErrors.CodeNotFound, "payment %s not found", id)
		case errors.Is(err, sentinel.ErrVersionMismatch):
			s.metrics.ObserveTransition(string(from), string(to), "aborted")
			return nil, dErrors.New(dErrors.CodeTransitionAborted, "payment status changed concurrently, retry")
		default:
			s.metrics.ObserveTransition(string(from), string(to), "error")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment status update failed")
		}
	}

	payment.Status = to
	payment.UpdatedAt = requestcontext.Now(ctx)

	s.invalidate(ctx, payment.OrganizationID)
	s.metrics.ObserveTransition(string(from), string(to), "ok")
	s.emit(ctx, audit.Event{
		Kind:     audit.KindPaymentTransitioned,
		ActorID:  actor.ID,
		Entity:   "payment",
		EntityID: payment.ID.String(),
		From:     string(from),
		To:       string(to),
	})
	s.logger.InfoContext(ctx, "payment transitioned",
		"payment_id", payment.ID,
		"from", from,
		"to", to,
	)
	return payment, nil
}

// HasPaidPayment reports whether the course instance has an active payment
// in Paid. The course lifecycle asks this before allowing Billed.
func (s *Service) HasPaidPayment(ctx context.Context, courseID domain.CourseInstanceID) (bool, error) {
	payment, err := s.store.FindActiveByCourse(ctx, courseID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up payment for course")
	}
	return payment.Status == StatusPaid, nil
}

// Summarize aggregates an organization's payments by status over a date
// range. Read-only; the only guard is organization scope.
func (s *Service) Summarize(ctx context.Context, actor identity.Actor, orgID domain.OrganizationID, from, to domain.CalendarDate) (Summary, error) {
	if !actor.IsAuthenticated() {
		return Summary{}, dErrors.New(dErrors.CodeNotAuthenticated, "actor is not authenticated")
	}
	if actor.Role != identity.RoleSysAdmin && actor.OrganizationID != orgID {
		return Summary{}, dErrors.New(dErrors.CodeWrongOrganization, "summary is limited to the actor's own organization")
	}
	switch {
	case orgID.IsNil():
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	case from.IsZero() || to.IsZero():
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput, "date range is required")
	case to.Before(from):
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput, "range end precedes range start")
	}

	if s.cache != nil {
		if summary, ok := s.cache.Get(ctx, orgID, from, to); ok {
			return summary, nil
		}
	}

	summary, err := s.store.Summarize(ctx, orgID, from, to)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize payments")
	}
	if s.cache != nil {
		s.cache.Set(ctx, summary)
	}
	return summary, nil
}

func (s *Service) invalidate(ctx context.Context, orgID domain.OrganizationID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, orgID)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "kind", event.Kind, "error", err)
	}
}

// FormatAmount renders minor units as a decimal string for logs and
// transport payloads.
func FormatAmount(cents int64) string {
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}
	return strconv.FormatInt(whole, 10) + "." + pad2(frac)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
