package course

import (
	"context"
	"errors"
	"log/slog"

	"courseflow/internal/audit"
	coursemetrics "courseflow/internal/course/metrics"
	"courseflow/internal/identity"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
	"courseflow/pkg/platform/sentinel"
	"courseflow/pkg/requestcontext"
)

// numberAttempts bounds the retry loop when two creations race for the same
// per-day sequence number.
const numberAttempts = 3

// Calendar is the slice of the availability service the lifecycle needs.
// Authorization happened before these are called; the calendar trusts us.
type Calendar interface {
	HasAvailable(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error
	Reserve(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error
	Release(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error
	MarkCompleted(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error
}

// PaymentGate answers the one settlement question the lifecycle asks:
// is there a Paid payment record for this instance.
type PaymentGate interface {
	HasPaidPayment(ctx context.Context, id domain.CourseInstanceID) (bool, error)
}

// AuditPublisher records successful transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service drives the course instance state machine. Each transition is one
// compare-and-swap on the course row plus at most one guarded calendar
// update; the course row CAS is the serialization point for concurrent
// callers.
type Service struct {
	store    Store
	calendar Calendar
	payments PaymentGate
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *coursemetrics.Metrics
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *coursemetrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) ServiceOption {
	return func(s *Service) { s.auditor = p }
}

func NewService(store Store, calendar Calendar, payments PaymentGate, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		calendar: calendar,
		payments: payments,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries everything needed to open a Pending instance.
type CreateRequest struct {
	OrganizationID domain.OrganizationID
	OrgCode        domain.ShortCode
	CourseTypeID   domain.CourseTypeID
	TypeCode       domain.ShortCode
	InstructorID   domain.ActorID
	RequestedDate  domain.CalendarDate
	Location       string
	MaxStudents    int
	Notes          string
}

func (r CreateRequest) validate() error {
	switch {
	case r.OrganizationID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	case r.CourseTypeID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "course type id is required")
	case r.InstructorID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "instructor id is required")
	case !r.OrgCode.IsValid():
		return dErrors.New(dErrors.CodeInvalidInput, "organization code must be three uppercase letters")
	case !r.TypeCode.IsValid():
		return dErrors.New(dErrors.CodeInvalidInput, "course type code must be three uppercase letters")
	case r.RequestedDate.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "requested date is required")
	case r.MaxStudents <= 0:
		return dErrors.New(dErrors.CodeInvalidInput, "max students must be positive")
	}
	return nil
}

// Create opens a new instance in Pending. The instructor must hold an
// Available calendar entry on the requested date; the entry is not reserved
// yet, that happens on Pending -> Scheduled.
func (s *Service) Create(ctx context.Context, actor identity.Actor, req CreateRequest) (*Instance, error) {
	res := identity.Resource{
		OwnerOrganizationID: req.OrganizationID,
		OwnerInstructorID:   req.InstructorID,
	}
	if err := identity.Authorize(actor, identity.ActionCreateCourse, res); err != nil {
		s.metrics.ObserveCreated("denied")
		return nil, err
	}
	if err := req.validate(); err != nil {
		s.metrics.ObserveCreated("invalid")
		return nil, err
	}
	if err := s.calendar.HasAvailable(ctx, req.InstructorID, req.RequestedDate); err != nil {
		s.metrics.ObserveCreated("slot_unavailable")
		return nil, err
	}
	occupied, err := s.store.ExistsActive(ctx, req.InstructorID, req.RequestedDate)
	if err != nil {
		s.metrics.ObserveCreated("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check slot occupancy")
	}
	if occupied {
		s.metrics.ObserveCreated("slot_unavailable")
		return nil, dErrors.Newf(dErrors.CodeSlotUnavailable, "instructor already has an active course on %s", req.RequestedDate)
	}

	now := requestcontext.Now(ctx)
	prefix := NumberPrefix(req.RequestedDate, req.OrgCode, req.TypeCode)

	// Two creations can race for the same sequence suffix; the unique
	// constraint on course_number decides, and the loser re-derives.
	for attempt := 0; attempt < numberAttempts; attempt++ {
		seq, err := s.store.CountByNumberPrefix(ctx, prefix)
		if err != nil {
			s.metrics.ObserveCreated("error")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive course number")
		}

		instance := &Instance{
			ID:             domain.NewCourseInstanceID(),
			CourseNumber:   FormatNumber(prefix, seq+1),
			RequestedDate:  req.RequestedDate,
			OrganizationID: req.OrganizationID,
			CourseTypeID:   req.CourseTypeID,
			InstructorID:   req.InstructorID,
			Location:       req.Location,
			MaxStudents:    req.MaxStudents,
			Status:         StatusPending,
			Notes:          req.Notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err = s.store.Insert(ctx, instance)
		if errors.Is(err, ErrSlotTaken) {
			// A racing creation claimed the slot between the occupancy
			// check and the insert.
			s.metrics.ObserveCreated("slot_unavailable")
			return nil, dErrors.Newf(dErrors.CodeSlotUnavailable, "instructor already has an active course on %s", req.RequestedDate)
		}
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			s.metrics.ObserveCreated("error")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create course instance")
		}

		s.metrics.ObserveCreated("ok")
		s.emit(ctx, audit.Event{
			Kind:     audit.KindCourseCreated,
			ActorID:  actor.ID,
			Entity:   "course_instance",
			EntityID: instance.ID.String(),
			To:       string(StatusPending),
		})
		s.logger.InfoContext(ctx, "course instance created",
			"course_number", instance.CourseNumber,
			"organization_id", instance.OrganizationID,
			"instructor_id", instance.InstructorID,
		)
		return instance, nil
	}

	s.metrics.ObserveCreated("aborted")
	return nil, dErrors.New(dErrors.CodeTransitionAborted, "course number contention, retry")
}

// Get returns one instance by ID.
func (s *Service) Get(ctx context.Context, id domain.CourseInstanceID) (*Instance, error) {
	instance, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "course instance %s not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course instance")
	}
	return instance, nil
}

// List returns instances matching the filter. Read-only, weaker isolation
// is fine: listings never gate transitions.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Instance, error) {
	instances, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list course instances")
	}
	return instances, nil
}

// Transition moves the instance along one edge of the state machine.
//
// The order of operations is what makes concurrent callers safe: the course
// row CAS happens first, so exactly one of two racing callers wins; only the
// winner touches the calendar. If the calendar update then fails, the course
// CAS is reverted and the whole transition reports TransitionAborted, leaving
// prior state intact and the request safe to retry.
func (s *Service) Transition(ctx context.Context, actor identity.Actor, id domain.CourseInstanceID, to Status) (*Instance, error) {
	if !validStatuses[to] {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown course status %q", to)
	}

	instance, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := instance.Status

	res := identity.Resource{
		OwnerOrganizationID: instance.OrganizationID,
		OwnerInstructorID:   instance.InstructorID,
		CourseTransition:    &identity.StatusChange{From: string(from), To: string(to)},
	}
	if err := identity.Authorize(actor, identity.ActionTransitionCourseStatus, res); err != nil {
		s.metrics.ObserveTransition(string(from), string(to), "denied")
		return nil, err
	}

	if !from.CanTransitionTo(to) {
		s.metrics.ObserveTransition(string(from), string(to), "invalid")
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot transition %s course to %s", from, to)
	}

	if to == StatusBilled {
		paid, err := s.payments.HasPaidPayment(ctx, id)
		if err != nil {
			s.metrics.ObserveTransition(string(from), string(to), "error")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check payment status")
		}
		if !paid {
			s.metrics.ObserveTransition(string(from), string(to), "invalid")
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "course can only be billed once its payment is paid")
		}
	}

	// Serialization point: exactly one concurrent caller passes this CAS.
	if err := s.store.UpdateStatusGuarded(ctx, id, from, to); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Newf(dErrors.CodeNotFound, "course instance %s not found", id)
		case errors.Is(err, sentinel.ErrVersionMismatch):
			s.metrics.ObserveTransition(string(from), string(to), "aborted")
			return nil, dErrors.New(dErrors.CodeTransitionAborted, "course status changed concurrently, retry")
		default:
			s.metrics.ObserveTransition(string(from), string(to), "error")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "course status update failed")
		}
	}

	if err := s.applyCalendarEffect(ctx, instance, from, to); err != nil {
		// Put the course row back so calendar and course never diverge.
		// A failed revert leaves the CAS winner state in place, which a
		// retry of the same logical request will detect via its guards.
		if revertErr := s.store.UpdateStatusGuarded(ctx, id, to, from); revertErr != nil {
			s.logger.ErrorContext(ctx, "failed to revert course status after calendar error",
				"course_number", instance.CourseNumber,
				"from", from, "to", to,
				"error", revertErr,
			)
		}
		s.metrics.ObserveTransition(string(from), string(to), "aborted")
		return nil, err
	}

	instance.Status = to
	instance.UpdatedAt = requestcontext.Now(ctx)

	s.metrics.ObserveTransition(string(from), string(to), "ok")
	s.emit(ctx, audit.Event{
		Kind:     audit.KindCourseTransitioned,
		ActorID:  actor.ID,
		Entity:   "course_instance",
		EntityID: instance.ID.String(),
		From:     string(from),
		To:       string(to),
	})
	s.logger.InfoContext(ctx, "course instance transitioned",
		"course_number", instance.CourseNumber,
		"from", from,
		"to", to,
	)
	return instance, nil
}

// applyCalendarEffect performs the calendar side of a transition.
func (s *Service) applyCalendarEffect(ctx context.Context, instance *Instance, from, to Status) error {
	switch {
	case from == StatusPending && to == StatusScheduled:
		return s.calendar.Reserve(ctx, instance.InstructorID, instance.RequestedDate)
	case from == StatusScheduled && to == StatusCancelled:
		return s.calendar.Release(ctx, instance.InstructorID, instance.RequestedDate)
	case from == StatusScheduled && to == StatusCompleted:
		return s.calendar.MarkCompleted(ctx, instance.InstructorID, instance.RequestedDate)
	}
	// Pending -> Cancelled and Completed -> Billed touch no calendar entry.
	return nil
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
