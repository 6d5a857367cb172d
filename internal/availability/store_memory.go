package availability

import (
	"context"
	"sort"
	"sync"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

type entryKey struct {
	instructorID domain.ActorID
	date         domain.CalendarDate
}

// InMemoryStore keeps calendar entries in a map guarded by a mutex. Guarded
// updates are atomic under the lock, which gives unit tests the same CAS
// semantics the postgres store provides.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[entryKey]Entry)}
}

func (s *InMemoryStore) Insert(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey{instructorID: entry.InstructorID, date: entry.Date}
	if _, exists := s.entries[key]; exists {
		return sentinel.ErrConflict
	}
	s.entries[key] = entry
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, instructorID domain.ActorID, date domain.CalendarDate) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryKey{instructorID: instructorID, date: date}]
	if !ok {
		return Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func (s *InMemoryStore) ListFrom(_ context.Context, instructorID domain.ActorID, from domain.CalendarDate) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for key, entry := range s.entries {
		if key.instructorID != instructorID {
			continue
		}
		if key.date.Before(from) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *InMemoryStore) UpdateStatusGuarded(_ context.Context, instructorID domain.ActorID, date domain.CalendarDate, expected, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey{instructorID: instructorID, date: date}
	entry, ok := s.entries[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if entry.Status != expected {
		return sentinel.ErrVersionMismatch
	}
	entry.Status = next
	s.entries[key] = entry
	return nil
}
