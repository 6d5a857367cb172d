package availability

import (
	"context"
	"errors"
	"log/slog"

	"courseflow/internal/audit"
	"courseflow/internal/identity"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
	"courseflow/pkg/platform/sentinel"
	"courseflow/pkg/requestcontext"
)

// AuditPublisher records calendar mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns calendar mutations. Open and ListAvailable are the public
// surface; Reserve, Release, and MarkCompleted exist for the course
// lifecycle, which performs its own authorization before calling them.
type Service struct {
	store   Store
	auditor AuditPublisher
	logger  *slog.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) ServiceOption {
	return func(s *Service) { s.auditor = p }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates an Available entry: instructor self-service, or an admin
// opening dates on an instructor's behalf.
func (s *Service) Open(ctx context.Context, actor identity.Actor, instructorID domain.ActorID, date domain.CalendarDate) (Entry, error) {
	res := identity.Resource{
		OwnerOrganizationID: actor.OrganizationID,
		OwnerInstructorID:   instructorID,
	}
	if err := identity.Authorize(actor, identity.ActionManageOwnAvailability, res); err != nil {
		return Entry{}, err
	}
	if date.IsZero() {
		return Entry{}, dErrors.New(dErrors.CodeInvalidInput, "date is required")
	}

	now := requestcontext.Now(ctx)
	entry := Entry{
		InstructorID: instructorID,
		Date:         date,
		Status:       StatusAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Insert(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Entry{}, dErrors.Newf(dErrors.CodeSlotUnavailable, "entry already exists for %s on %s", instructorID, date)
		}
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open availability")
	}

	if s.auditor != nil {
		event := audit.Event{
			Kind:      audit.KindAvailabilityOpened,
			ActorID:   actor.ID,
			Entity:    "availability",
			EntityID:  instructorID.String() + ":" + date.String(),
			To:        string(StatusAvailable),
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := s.auditor.Emit(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "audit emit failed", "kind", event.Kind, "error", err)
		}
	}
	return entry, nil
}

// ListAvailable returns the instructor's open dates from the given day on.
func (s *Service) ListAvailable(ctx context.Context, instructorID domain.ActorID, from domain.CalendarDate) ([]Entry, error) {
	entries, err := s.store.ListFrom(ctx, instructorID, from)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list availability")
	}
	open := entries[:0]
	for _, entry := range entries {
		if entry.Status == StatusAvailable {
			open = append(open, entry)
		}
	}
	return open, nil
}

// HasAvailable reports whether the instructor has an open entry on the date.
// Course creation uses this as a precondition before any reservation happens.
func (s *Service) HasAvailable(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error {
	entry, err := s.store.Find(ctx, instructorID, date)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeSlotUnavailable, "instructor has no entry on %s", date)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check availability")
	}
	if entry.Status != StatusAvailable {
		return dErrors.Newf(dErrors.CodeSlotUnavailable, "entry on %s is %s", date, entry.Status)
	}
	return nil
}

// Reserve flips Available -> Scheduled. A missing entry or any other prior
// status surfaces as SlotUnavailable.
func (s *Service) Reserve(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error {
	err := s.store.UpdateStatusGuarded(ctx, instructorID, date, StatusAvailable, StatusScheduled)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrVersionMismatch):
		return dErrors.Newf(dErrors.CodeSlotUnavailable, "no available entry for instructor on %s", date)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve slot")
	}
}

// Release flips Scheduled -> Available; only reachable via cancellation.
func (s *Service) Release(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error {
	return s.guarded(ctx, instructorID, date, StatusScheduled, StatusAvailable, "release")
}

// MarkCompleted flips Scheduled -> Completed when the course is delivered.
func (s *Service) MarkCompleted(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) error {
	return s.guarded(ctx, instructorID, date, StatusScheduled, StatusCompleted, "complete")
}

func (s *Service) guarded(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate, expected, next Status, op string) error {
	err := s.store.UpdateStatusGuarded(ctx, instructorID, date, expected, next)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "no calendar entry for instructor on %s", date)
	case errors.Is(err, sentinel.ErrVersionMismatch):
		return dErrors.Newf(dErrors.CodeTransitionAborted, "calendar entry changed while trying to %s it", op)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "calendar update failed")
	}
}
