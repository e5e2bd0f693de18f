// Package memory provides an in-process record store. It backs the unit
// tests and local development runs where no PostgreSQL is available.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// Store holds every record kind behind one RWMutex. A unit of work takes the
// write lock for its whole duration and journals undo steps so a failed unit
// leaves no trace.
type Store struct {
	mu sync.RWMutex

	markets   map[uuid.UUID]domain.Market
	items     map[uuid.UUID]domain.ReferenceItem
	offerings map[uuid.UUID]storedOffering
	records   map[uuid.UUID][]domain.PriceRecord // per offering, append order
	nextSeq   uint64
}

type storedOffering struct {
	seq      uint64
	offering domain.Offering
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		markets:   map[uuid.UUID]domain.Market{},
		items:     map[uuid.UUID]domain.ReferenceItem{},
		offerings: map[uuid.UUID]storedOffering{},
		records:   map[uuid.UUID][]domain.PriceRecord{},
	}
}

type unitKey struct{}

type unit struct {
	store *Store
	undo  []func()
}

func (u *unit) onRollback(fn func()) {
	if u != nil {
		u.undo = append(u.undo, fn)
	}
}

func (u *unit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

func (s *Store) unitFrom(ctx context.Context) *unit {
	u, ok := ctx.Value(unitKey{}).(*unit)
	if !ok || u.store != s {
		return nil
	}
	return u
}

// Do runs fn while holding the store's write lock. When fn fails (or panics)
// every write it made is undone. Calls made with a context that is already
// inside a unit of this store join that unit.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.unitFrom(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := &unit{store: s}
	defer func() {
		if r := recover(); r != nil {
			u.rollback()
			panic(r)
		}
		if err != nil {
			u.rollback()
		}
	}()
	return fn(context.WithValue(ctx, unitKey{}, u))
}

// lockRead takes the read lock unless ctx already runs inside a unit.
func (s *Store) lockRead(ctx context.Context) func() {
	if s.unitFrom(ctx) != nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// lockWrite takes the write lock unless ctx already runs inside a unit, in
// which case the unit is returned so the caller can journal an undo step.
func (s *Store) lockWrite(ctx context.Context) (*unit, func()) {
	if u := s.unitFrom(ctx); u != nil {
		return u, func() {}
	}
	s.mu.Lock()
	return nil, s.mu.Unlock
}

func cloneUUIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return nil
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
