package course

import (
	"context"
	"sort"
	"strings"
	"sync"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

// InMemoryStore keeps course instances in maps guarded by a mutex. The
// guarded update is atomic under the lock, matching the postgres store's
// conditional-update semantics.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[domain.CourseInstanceID]*Instance
	byNumber map[string]domain.CourseInstanceID
	inserted []domain.CourseInstanceID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[domain.CourseInstanceID]*Instance),
		byNumber: make(map[string]domain.CourseInstanceID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, instance *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[instance.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.InstructorID == instance.InstructorID && existing.RequestedDate == instance.RequestedDate && !existing.Status.IsTerminal() {
			return ErrSlotTaken
		}
	}
	if _, exists := s.byNumber[instance.CourseNumber]; exists {
		return sentinel.ErrConflict
	}
	stored := *instance
	s.byID[instance.ID] = &stored
	s.byNumber[instance.CourseNumber] = instance.ID
	s.inserted = append(s.inserted, instance.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.CourseInstanceID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *instance
	return &out, nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, courseNumber string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[courseNumber]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Instance
	for _, id := range s.inserted {
		instance := s.byID[id]
		if !filter.OrganizationID.IsNil() && instance.OrganizationID != filter.OrganizationID {
			continue
		}
		if !filter.InstructorID.IsNil() && instance.InstructorID != filter.InstructorID {
			continue
		}
		if filter.Status != "" && instance.Status != filter.Status {
			continue
		}
		copied := *instance
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CourseNumber < out[j].CourseNumber })
	return out, nil
}

func (s *InMemoryStore) CountByNumberPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for number := range s.byNumber {
		if strings.HasPrefix(number, prefix) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ExistsActive(_ context.Context, instructorID domain.ActorID, date domain.CalendarDate) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, instance := range s.byID {
		if instance.InstructorID == instructorID && instance.RequestedDate == date && !instance.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) UpdateStatusGuarded(_ context.Context, id domain.CourseInstanceID, expected, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if instance.Status != expected {
		return sentinel.ErrVersionMismatch
	}
	instance.Status = next
	return nil
}
