package settlement

import (
	"context"
	"sync"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

// InMemoryStore keeps payments in maps guarded by a mutex; the active-
// payment uniqueness rule and the guarded update are both atomic under the
// lock.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[domain.PaymentID]*Payment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[domain.PaymentID]*Payment)}
}

func (s *InMemoryStore) Insert(_ context.Context, payment *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[payment.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.CourseInstanceID == payment.CourseInstanceID && existing.Status.IsActive() {
			return sentinel.ErrConflict
		}
	}
	stored := *payment
	s.byID[payment.ID] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.PaymentID) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payment, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *payment
	return &out, nil
}

func (s *InMemoryStore) FindActiveByCourse(_ context.Context, courseID domain.CourseInstanceID) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, payment := range s.byID {
		if payment.CourseInstanceID == courseID && payment.Status.IsActive() {
			out := *payment
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateStatusGuarded(_ context.Context, id domain.PaymentID, expected, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if payment.Status != expected {
		return sentinel.ErrVersionMismatch
	}
	payment.Status = next
	return nil
}

func (s *InMemoryStore) Summarize(_ context.Context, orgID domain.OrganizationID, from, to domain.CalendarDate) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := Summary{
		OrganizationID: orgID,
		From:           from,
		To:             to,
		TotalsByStatus: make(map[Status]int64),
		CountsByStatus: make(map[Status]int),
	}
	for _, payment := range s.byID {
		if payment.OrganizationID != orgID {
			continue
		}
		day := domain.DateOf(payment.RecordedAt)
		if day.Before(from) || day.After(to) {
			continue
		}
		summary.TotalsByStatus[payment.Status] += payment.AmountCents
		summary.CountsByStatus[payment.Status]++
	}
	return summary, nil
}
