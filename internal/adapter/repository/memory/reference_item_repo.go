package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// ReferenceItemRepository implements domain.ReferenceItemRepository
type ReferenceItemRepository struct {
	store *Store
}

func NewReferenceItemRepository(store *Store) *ReferenceItemRepository {
	return &ReferenceItemRepository{store: store}
}

func cloneItem(item domain.ReferenceItem) *domain.ReferenceItem {
	item.Images = cloneStrings(item.Images)
	item.RestrictedMarketIDs = cloneUUIDs(item.RestrictedMarketIDs)
	item.LinkedMarketIDs = cloneUUIDs(item.LinkedMarketIDs)
	return &item
}

func (r *ReferenceItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReferenceItem, error) {
	defer r.store.lockRead(ctx)()

	item, ok := r.store.items[id]
	if !ok {
		return nil, domain.NewNotFound(domain.KindReferenceItem, id)
	}
	return cloneItem(item), nil
}

func (r *ReferenceItemRepository) GetAllByID(ctx context.Context, ids []uuid.UUID) ([]*domain.ReferenceItem, error) {
	defer r.store.lockRead(ctx)()

	items := make([]*domain.ReferenceItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := r.store.items[id]; ok {
			items = append(items, cloneItem(item))
		}
	}
	return items, nil
}

func (r *ReferenceItemRepository) List(ctx context.Context) ([]*domain.ReferenceItem, error) {
	return r.filter(ctx, func(*domain.ReferenceItem) bool { return true })
}

func (r *ReferenceItemRepository) SearchByName(ctx context.Context, query string) ([]*domain.ReferenceItem, error) {
	q := strings.ToLower(query)
	return r.filter(ctx, func(item *domain.ReferenceItem) bool {
		return strings.Contains(strings.ToLower(item.Name), q)
	})
}

func (r *ReferenceItemRepository) filter(ctx context.Context, keep func(*domain.ReferenceItem) bool) ([]*domain.ReferenceItem, error) {
	defer r.store.lockRead(ctx)()

	var items []*domain.ReferenceItem
	for _, item := range r.store.items {
		c := cloneItem(item)
		if keep(c) {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items, nil
}

func (r *ReferenceItemRepository) Create(ctx context.Context, item *domain.ReferenceItem) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	if _, exists := r.store.items[item.ID]; exists {
		return fmt.Errorf("%w: reference item %s already exists", domain.ErrConflict, item.ID)
	}
	r.store.items[item.ID] = *cloneItem(*item)
	u.onRollback(func() { delete(r.store.items, item.ID) })
	return nil
}

// LockForUpdate only checks existence: a unit of work already holds the
// store-wide write lock.
func (r *ReferenceItemRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	defer r.store.lockRead(ctx)()

	if _, ok := r.store.items[id]; !ok {
		return domain.NewNotFound(domain.KindReferenceItem, id)
	}
	return nil
}

func (r *ReferenceItemRepository) UpdateLinkedMarkets(ctx context.Context, id uuid.UUID, marketIDs []uuid.UUID) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	item, ok := r.store.items[id]
	if !ok {
		return domain.NewNotFound(domain.KindReferenceItem, id)
	}
	prev := item
	item.LinkedMarketIDs = cloneUUIDs(marketIDs)
	r.store.items[id] = item
	u.onRollback(func() { r.store.items[id] = prev })
	return nil
}
