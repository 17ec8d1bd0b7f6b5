package engine

import (
	"fmt"
	"sort"
	"sync"

	"GEFlip/internal/domain/models"
)

// PositionStore owns the open positions and their stop-loss orders. State
// is explicit and passed into each evaluation call; nothing here is
// package-global. Per-position locks let concurrent ticks touch different
// positions without interfering, while read-then-write on one position
// stays atomic.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]*models.Position
	orders    map[string]*models.StopLossOrder
	locks     map[string]*sync.Mutex
}

func NewPositionStore() *PositionStore {
	return &PositionStore{
		positions: make(map[string]*models.Position),
		orders:    make(map[string]*models.StopLossOrder),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Open registers a new position. The id must be unique.
func (s *PositionStore) Open(p models.Position) error {
	if p.ID == "" {
		return fmt.Errorf("position id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[p.ID]; ok {
		return fmt.Errorf("position %s already open", p.ID)
	}
	cp := p
	s.positions[p.ID] = &cp
	return nil
}

// Close removes a position and its stop-loss order.
func (s *PositionStore) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[id]
	delete(s.positions, id)
	delete(s.orders, id)
	delete(s.locks, id)
	return ok
}

// Get returns a copy of the position.
func (s *PositionStore) Get(id string) (models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return models.Position{}, false
	}
	return *p, true
}

// List returns copies of all open positions, ordered by id for stable
// iteration.
func (s *PositionStore) List() []models.Position {
	s.mu.RLock()
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Order returns a copy of the stop-loss order for a position, if any.
func (s *PositionStore) Order(id string) (models.StopLossOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.StopLossOrder{}, false
	}
	return *o, true
}

// WithLock runs fn holding the per-position lock. fn receives the live
// position and order pointers (order may be nil) and may mutate both; a
// returned order replaces the stored one. Concurrent WithLock calls on
// different ids proceed in parallel.
func (s *PositionStore) WithLock(id string, fn func(p *models.Position, o *models.StopLossOrder) *models.StopLossOrder) bool {
	lock := s.lockFor(id)
	if lock == nil {
		return false
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	p := s.positions[id]
	o := s.orders[id]
	s.mu.RUnlock()
	if p == nil {
		return false
	}

	if updated := fn(p, o); updated != nil {
		s.mu.Lock()
		s.orders[id] = updated
		s.mu.Unlock()
	}
	return true
}

func (s *PositionStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[id]; !ok {
		return nil
	}
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Len reports the number of open positions.
func (s *PositionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}
