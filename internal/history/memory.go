package history

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jmerrifield20/incidentai/internal/incident"
)

// DefaultCapacity is the number of records a MemoryStore from NewMemory keeps.
const DefaultCapacity = 10000

// MemoryStore keeps the most recent records in process memory. Once full,
// saving a new record evicts the oldest one.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	byID     map[uuid.UUID]*incident.Record
	ordered  []*incident.Record
}

// NewMemory returns an empty MemoryStore holding up to DefaultCapacity records.
func NewMemory() *MemoryStore {
	return NewMemoryWithCapacity(DefaultCapacity)
}

// NewMemoryWithCapacity returns an empty MemoryStore holding up to capacity
// records. Capacities below MaxLimit are raised to MaxLimit so a full page is
// always listable.
func NewMemoryWithCapacity(capacity int) *MemoryStore {
	if capacity < MaxLimit {
		capacity = MaxLimit
	}
	return &MemoryStore{
		capacity: capacity,
		byID:     make(map[uuid.UUID]*incident.Record),
	}
}

// Save implements Store. Saving an existing ID replaces it in place.
func (s *MemoryStore) Save(_ context.Context, r *incident.Record) error {
	cp := *r
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[cp.ID]; ok {
		for i, old := range s.ordered {
			if old.ID == cp.ID {
				s.ordered[i] = &cp
			}
		}
		s.byID[cp.ID] = &cp
		return nil
	}
	if len(s.ordered) >= s.capacity {
		evicted := s.ordered[0]
		delete(s.byID, evicted.ID)
		s.ordered[0] = nil
		s.ordered = s.ordered[1:]
	}
	s.ordered = append(s.ordered, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

// Len reports the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*incident.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*incident.Record, error) {
	limit = ClampLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*incident.Record, 0, min(limit, len(s.ordered)))
	for i := len(s.ordered) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.ordered[i]
		out = append(out, &cp)
	}
	return out, nil
}
