package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
)

type staffKey struct {
	counterID uuid.UUID
	userID    uuid.UUID
}

type CounterStore struct {
	mu       sync.RWMutex
	counters map[uuid.UUID]domain.Counter
	staff    map[staffKey]domain.CounterStaff
}

func NewCounterStore() *CounterStore {
	return &CounterStore{
		counters: make(map[uuid.UUID]domain.Counter),
		staff:    make(map[staffKey]domain.CounterStaff),
	}
}

var _ repository.CounterRepository = (*CounterStore)(nil)

func (s *CounterStore) Create(_ context.Context, c *domain.Counter) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.counters {
		if existing.CounterCode == c.CounterCode {
			return domain.Conflict("counter code %s already exists", c.CounterCode)
		}
	}
	s.counters[c.ID] = *c
	return nil
}

func (s *CounterStore) GetActiveByID(_ context.Context, id uuid.UUID) (*domain.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.counters[id]
	if !ok || !c.IsActive {
		return nil, domain.NotFound("counter %s not found or inactive", id)
	}
	return &c, nil
}

func (s *CounterStore) ListActiveStaff(_ context.Context, counterID uuid.UUID) ([]domain.CounterStaff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CounterStaff
	for k, cs := range s.staff {
		if k.counterID == counterID && cs.IsActive {
			out = append(out, cs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *CounterStore) GetStaff(_ context.Context, counterID, userID uuid.UUID) (*domain.CounterStaff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.staff[staffKey{counterID, userID}]
	if !ok {
		return nil, domain.NotFound("staff %s is not a member of counter %s", userID, counterID)
	}
	return &cs, nil
}

func (s *CounterStore) SaveStaff(_ context.Context, cs *domain.CounterStaff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := staffKey{cs.CounterID, cs.UserID}
	now := time.Now().UTC()
	if existing, ok := s.staff[key]; ok {
		cs.ID, cs.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		if cs.ID == uuid.Nil {
			cs.ID = uuid.New()
		}
		cs.CreatedAt = now
	}
	cs.UpdatedAt = now
	s.staff[key] = *cs
	return nil
}
