package registration

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

// Mirrors of the course statuses the ledger keys behavior on.
// internal/course carries a test pinning these to its own values.
const (
	courseStatusPending   = "pending"
	courseStatusScheduled = "scheduled"
	courseStatusCompleted = "completed"
	courseStatusBilled    = "billed"
)

// CourseRef is the slice of a course instance the ledger cares about.
type CourseRef struct {
	OrganizationID domain.OrganizationID
	Status         string
	MaxStudents    int
}

// CourseDirectory resolves the course instance a registration belongs to.
type CourseDirectory interface {
	Lookup(ctx context.Context, id domain.CourseInstanceID) (CourseRef, error)
}

// AuditPublisher records ledger mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the attendance ledger. Registrations fill while the course is
// upcoming; attendance and certification open once it has been delivered.
type Service struct {
	store   Store
	courses CourseDirectory
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

// Register signs a student up for an upcoming course instance. Capacity is
// counted over confirmed registrations only, so a full course rejects new
// sign-ups with CourseFull while unconfirmed ones may still queue below the
// cap.
func (s *Service) Register(ctx context.Context, actor identity.Actor, courseID domain.CourseInstanceID, studentID domain.ActorID) (Registration, error) {
	if studentID.IsNil() {
		return Registration{}, dErrors.New(dErrors.CodeInvalidInput, "student id is required")
	}

	ref, err := s.courses.Lookup(ctx, courseID)
	if err != nil {
		return Registration{}, err
	}

	res := identity.Resource{OwnerOrganizationID: ref.OrganizationID}
	if err := identity.Authorize(actor, identity.ActionManageOrganization, res); err != nil {
		return Registration{}, err
	}

	if ref.Status != courseStatusPending && ref.Status != courseStatusScheduled {
		return Registration{}, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot register students on a %s course", ref.Status)
	}

	confirmed, err := s.store.CountConfirmed(ctx, courseID)
	if err != nil {
		return Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
	}
	if confirmed >= ref.MaxStudents {
		return Registration{}, dErrors.Newf(dErrors.CodeCourseFull, "course is at its capacity of %d students", ref.MaxStudents)
	}

	now := requestcontext.Now(ctx)
	reg := Registration{
		CourseInstanceID: courseID,
		StudentID:        studentID,
		RegistrationDate: domain.DateOf(now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertRegistration(ctx, reg); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Registration{}, dErrors.Newf(dErrors.CodeDuplicateRegistration, "student %s is already registered", studentID)
		}
		return Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register student")
	}

	s.emit(ctx, actor, audit.KindRegistrationRecorded, courseID, studentID)
	s.logger.InfoContext(ctx, "student registered",
		"course_instance_id", courseID,
		"student_id", studentID,
	)
	return reg, nil
}

// Confirm turns a queued registration into one that counts against
// capacity. The store holds the capacity check and the flip in one guarded
// write, so concurrent confirmations cannot overshoot MaxStudents.
func (s *Service) Confirm(ctx context.Context, actor identity.Actor, courseID domain.CourseInstanceID, studentID domain.ActorID) error {
	ref, err := s.courses.Lookup(ctx, courseID)
	if err != nil {
		return err
	}

	res := identity.Resource{OwnerOrganizationID: ref.OrganizationID}
	if err := identity.Authorize(actor, identity.ActionManageOrganization, res); err != nil {
		return err
	}

	if err := s.store.ConfirmRegistration(ctx, courseID, studentID, ref.MaxStudents); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Newf(dErrors.CodeNotFound, "student %s is not registered", studentID)
		case errors.Is(err, sentinel.ErrVersionMismatch):
			return dErrors.New(dErrors.CodeInvalidTransition, "registration is already confirmed")
		case errors.Is(err, ErrCapacityReached):
			return dErrors.Newf(dErrors.CodeCourseFull, "course is at its capacity of %d students", ref.MaxStudents)
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to confirm registration")
		}
	}
	return nil
}

// List returns the registrations for one course instance.
func (s *Service) List(ctx context.Context, courseID domain.CourseInstanceID) ([]Registration, error) {
	regs, err := s.store.ListRegistrations(ctx, courseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, nil
}

// MarkAttendance records whether a registered student attended. Only valid
// once the course has been delivered; late corrections after billing are
// allowed, but a certified student cannot be marked absent.
func (s *Service) MarkAttendance(ctx context.Context, actor identity.Actor, courseID domain.CourseInstanceID, studentID domain.ActorID, attended bool) (Attendance, error) {
	ref, err := s.courses.Lookup(ctx, courseID)
	if err != nil {
		return Attendance{}, err
	}

	res := identity.Resource{OwnerOrganizationID: ref.OrganizationID}
	if err := identity.Authorize(actor, identity.ActionMarkAttendance, res); err != nil {
		return Attendance{}, err
	}

	if ref.Status != courseStatusCompleted && ref.Status != courseStatusBilled {
		return Attendance{}, dErrors.Newf(dErrors.CodeCourseNotCompleted, "cannot mark attendance on a %s course", ref.Status)
	}

	if _, err := s.store.FindRegistration(ctx, courseID, studentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Attendance{}, dErrors.Newf(dErrors.CodeNotFound, "student %s is not registered", studentID)
		}
		return Attendance{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}

	rec := Attendance{
		CourseInstanceID: courseID,
		StudentID:        studentID,
		Attended:         attended,
		UpdatedAt:        requestcontext.Now(ctx),
	}
	if err := s.store.UpsertAttendance(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return Attendance{}, dErrors.New(dErrors.CodeInvalidTransition, "cannot mark a certified student absent")
		}
		return Attendance{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attendance")
	}

	s.emit(ctx, actor, audit.KindAttendanceMarked, courseID, studentID)
	return rec, nil
}

// IssueCertification issues the certification for a student who attended a
// delivered course. One certification per (course, student).
func (s *Service) IssueCertification(ctx context.Context, actor identity.Actor, courseID domain.CourseInstanceID, studentID domain.ActorID) error {
	ref, err := s.courses.Lookup(ctx, courseID)
	if err != nil {
		return err
	}

	res := identity.Resource{OwnerOrganizationID: ref.OrganizationID}
	if err := identity.Authorize(actor, identity.ActionMarkAttendance, res); err != nil {
		return err
	}

	if ref.Status != courseStatusCompleted && ref.Status != courseStatusBilled {
		return dErrors.Newf(dErrors.CodeCourseNotCompleted, "cannot issue certification on a %s course", ref.Status)
	}

	if err := s.store.MarkCertified(ctx, courseID, studentID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Newf(dErrors.CodeNotFound, "no attendance record for student %s", studentID)
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeInvalidTransition, "certification requires the student to have attended")
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeInvalidTransition, "certification is already issued")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue certification")
		}
	}

	s.emit(ctx, actor, audit.KindCertificationIssued, courseID, studentID)
	s.logger.InfoContext(ctx, "certification issued",
		"course_instance_id", courseID,
		"student_id", studentID,
	)
	return nil
}

func (s *Service) emit(ctx context.Context, actor identity.Actor, kind audit.EventKind, courseID domain.CourseInstanceID, studentID domain.ActorID) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Kind:      kind,
		ActorID:   actor.ID,
		Entity:    "registration",
		EntityID:  courseID.String() + ":" + studentID.String(),
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "kind", kind, "error", err)
	}
}
