package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
)

// MemoryStore is an in-process Store. Admissions are serialised by a one-slot
// semaphore so that waiting can be bounded; record access is guarded by an
// RWMutex held only for the duration of a single read or commit.
type MemoryStore struct {
	admission   chan struct{}
	lockTimeout time.Duration

	mu         sync.RWMutex
	items      map[uuid.UUID]model.Reservation
	byExternal map[string]uuid.UUID
}

// NewMemoryStore builds an empty store. A non-positive lockTimeout selects
// DefaultLockTimeout.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &MemoryStore{
		admission:   make(chan struct{}, 1),
		lockTimeout: lockTimeout,
		items:       make(map[uuid.UUID]model.Reservation),
		byExternal:  make(map[string]uuid.UUID),
	}
}

// Admit implements Store.
func (s *MemoryStore) Admit(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case s.admission <- struct{}{}:
	case <-timer.C:
		return model.ErrLockTimeout
	case <-ctx.Done():
		return fmt.Errorf("acquire admission lock: %w", ctx.Err())
	}
	defer func() { <-s.admission }()

	tx := &memoryTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

// ActiveOverlapping implements Store.
func (s *MemoryStore) ActiveOverlapping(ctx context.Context, start, end calendar.Date) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlappingLocked(start, end, nil), nil
}

// ActiveByExternalID implements Store.
func (s *MemoryStore) ActiveByExternalID(ctx context.Context, externalID string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, model.ErrNotFound
	}
	res := s.items[id]
	if !res.IsActive() {
		return nil, model.ErrNotFound
	}
	return &res, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0, len(s.items))
	for _, res := range s.items {
		out = append(out, res)
	}
	sortReservations(out)
	return out, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersionLocked(res); err != nil {
		return err
	}
	s.applyUpdateLocked(res)
	return nil
}

// overlappingLocked returns active reservations overlapping [start, end],
// reading staged through the overlay first. Callers hold s.mu.
func (s *MemoryStore) overlappingLocked(start, end calendar.Date, overlay map[uuid.UUID]model.Reservation) []model.Reservation {
	var out []model.Reservation
	for id, res := range s.items {
		if staged, ok := overlay[id]; ok {
			res = staged
		}
		if res.IsActive() && res.Occupies(start, end) {
			out = append(out, res)
		}
	}
	for id, res := range overlay {
		if _, stored := s.items[id]; stored {
			continue
		}
		if res.IsActive() && res.Occupies(start, end) {
			out = append(out, res)
		}
	}
	sortReservations(out)
	return out
}

func (s *MemoryStore) checkVersionLocked(res *model.Reservation) error {
	current, ok := s.items[res.ID]
	if !ok {
		return fmt.Errorf("update reservation %s: %w", res.ExternalID, model.ErrNotFound)
	}
	if !current.IsActive() || current.Version != res.Version {
		return fmt.Errorf("update reservation %s at version %d: %w", res.ExternalID, res.Version, model.ErrConflict)
	}
	return nil
}

func (s *MemoryStore) applyUpdateLocked(res *model.Reservation) {
	res.Version++
	stored := *res
	stored.ID = s.items[res.ID].ID
	stored.ExternalID = s.items[res.ID].ExternalID
	stored.CreatedAt = s.items[res.ID].CreatedAt
	s.items[res.ID] = stored
}

// memoryTx stages writes until the admission callback returns successfully.
type memoryTx struct {
	store   *MemoryStore
	inserts []*model.Reservation
	updates []*model.Reservation
}

func (t *memoryTx) ActiveOverlapping(ctx context.Context, start, end calendar.Date) ([]model.Reservation, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.overlappingLocked(start, end, t.overlay()), nil
}

func (t *memoryTx) Insert(ctx context.Context, res *model.Reservation) error {
	t.store.mu.RLock()
	_, taken := t.store.byExternal[res.ExternalID]
	t.store.mu.RUnlock()
	for _, staged := range t.inserts {
		taken = taken || staged.ExternalID == res.ExternalID
	}
	if taken {
		return fmt.Errorf("insert reservation: %w", model.ErrDuplicateExternalID)
	}
	t.inserts = append(t.inserts, res)
	return nil
}

func (t *memoryTx) Update(ctx context.Context, res *model.Reservation) error {
	t.updates = append(t.updates, res)
	return nil
}

func (t *memoryTx) overlay() map[uuid.UUID]model.Reservation {
	overlay := make(map[uuid.UUID]model.Reservation, len(t.inserts)+len(t.updates))
	for _, res := range t.inserts {
		overlay[res.ID] = *res
	}
	for _, res := range t.updates {
		overlay[res.ID] = *res
	}
	return overlay
}

// commit validates every staged write and applies them all or none.
func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range t.inserts {
		if _, taken := s.byExternal[res.ExternalID]; taken {
			return fmt.Errorf("insert reservation: %w", model.ErrDuplicateExternalID)
		}
	}
	for _, res := range t.updates {
		if err := s.checkVersionLocked(res); err != nil {
			return err
		}
	}

	for _, res := range t.inserts {
		s.items[res.ID] = *res
		s.byExternal[res.ExternalID] = res.ID
	}
	for _, res := range t.updates {
		s.applyUpdateLocked(res)
	}
	return nil
}

func sortReservations(rs []model.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CheckinDate.Equal(rs[j].CheckinDate) {
			return rs[i].CheckinDate.Before(rs[j].CheckinDate)
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
