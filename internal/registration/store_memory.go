package registration

import (
	"context"
	"sort"
	"sync"
	"time"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

type ledgerKey struct {
	courseID  domain.CourseInstanceID
	studentID domain.ActorID
}

// InMemoryStore keeps the ledger in maps guarded by a mutex; uniqueness and
// guarded updates are atomic under the lock.
type InMemoryStore struct {
	mu            sync.RWMutex
	registrations map[ledgerKey]*Registration
	attendance    map[ledgerKey]*Attendance
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		registrations: make(map[ledgerKey]*Registration),
		attendance:    make(map[ledgerKey]*Attendance),
	}
}

func (s *InMemoryStore) InsertRegistration(_ context.Context, reg Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ledgerKey{reg.CourseInstanceID, reg.StudentID}
	if _, exists := s.registrations[key]; exists {
		return sentinel.ErrConflict
	}
	stored := reg
	s.registrations[key] = &stored
	return nil
}

func (s *InMemoryStore) FindRegistration(_ context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) (Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registrations[ledgerKey{courseID, studentID}]
	if !ok {
		return Registration{}, sentinel.ErrNotFound
	}
	return *reg, nil
}

func (s *InMemoryStore) ListRegistrations(_ context.Context, courseID domain.CourseInstanceID) ([]Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Registration
	for key, reg := range s.registrations {
		if key.courseID == courseID {
			out = append(out, *reg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountConfirmed(_ context.Context, courseID domain.CourseInstanceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key, reg := range s.registrations {
		if key.courseID == courseID && reg.Confirmed {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ConfirmRegistration(_ context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID, maxStudents int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[ledgerKey{courseID, studentID}]
	if !ok {
		return sentinel.ErrNotFound
	}
	if reg.Confirmed {
		return sentinel.ErrVersionMismatch
	}
	confirmed := 0
	for _, other := range s.registrations {
		if other.CourseInstanceID == courseID && other.Confirmed {
			confirmed++
		}
	}
	if confirmed >= maxStudents {
		return ErrCapacityReached
	}
	reg.Confirmed = true
	reg.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) FindAttendance(_ context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) (Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attendance[ledgerKey{courseID, studentID}]
	if !ok {
		return Attendance{}, sentinel.ErrNotFound
	}
	return *rec, nil
}

func (s *InMemoryStore) UpsertAttendance(_ context.Context, rec Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ledgerKey{rec.CourseInstanceID, rec.StudentID}
	if existing, ok := s.attendance[key]; ok {
		if existing.CertificationIssued && !rec.Attended {
			return sentinel.ErrInvalidState
		}
		existing.Attended = rec.Attended
		existing.UpdatedAt = rec.UpdatedAt
		return nil
	}
	stored := rec
	s.attendance[key] = &stored
	return nil
}

func (s *InMemoryStore) MarkCertified(_ context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attendance[ledgerKey{courseID, studentID}]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !rec.Attended {
		return sentinel.ErrInvalidState
	}
	if rec.CertificationIssued {
		return sentinel.ErrConflict
	}
	rec.CertificationIssued = true
	rec.UpdatedAt = time.Now()
	return nil
}
