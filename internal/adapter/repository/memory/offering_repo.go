package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// OfferingRepository implements domain.OfferingRepository
type OfferingRepository struct {
	store *Store
}

func NewOfferingRepository(store *Store) *OfferingRepository {
	return &OfferingRepository{store: store}
}

func cloneOffering(o domain.Offering) *domain.Offering {
	o.Images = cloneStrings(o.Images)
	if o.LastPriceUpdate != nil {
		ts := *o.LastPriceUpdate
		o.LastPriceUpdate = &ts
	}
	return &o
}

func (r *OfferingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offering, error) {
	defer r.store.lockRead(ctx)()

	so, ok := r.store.offerings[id]
	if !ok {
		return nil, domain.NewNotFound(domain.KindOffering, id)
	}
	return cloneOffering(so.offering), nil
}

func (r *OfferingRepository) ListByReferenceItemID(ctx context.Context, referenceItemID uuid.UUID) ([]*domain.Offering, error) {
	return r.filter(ctx, func(o *domain.Offering) bool { return o.ReferenceItemID == referenceItemID })
}

func (r *OfferingRepository) ListByMarketID(ctx context.Context, marketID uuid.UUID) ([]*domain.Offering, error) {
	return r.filter(ctx, func(o *domain.Offering) bool { return o.MarketID == marketID })
}

func (r *OfferingRepository) filter(ctx context.Context, keep func(*domain.Offering) bool) ([]*domain.Offering, error) {
	defer r.store.lockRead(ctx)()

	matched := make([]storedOffering, 0)
	for _, so := range r.store.offerings {
		if keep(&so.offering) {
			matched = append(matched, so)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	offerings := make([]*domain.Offering, len(matched))
	for i, so := range matched {
		offerings[i] = cloneOffering(so.offering)
	}
	return offerings, nil
}

// LockForUpdate only checks existence: a unit of work already holds the
// store-wide write lock.
func (r *OfferingRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	defer r.store.lockRead(ctx)()

	if _, ok := r.store.offerings[id]; !ok {
		return domain.NewNotFound(domain.KindOffering, id)
	}
	return nil
}

func (r *OfferingRepository) Create(ctx context.Context, offering *domain.Offering) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	if _, exists := r.store.offerings[offering.ID]; exists {
		return fmt.Errorf("%w: offering %s already exists", domain.ErrConflict, offering.ID)
	}
	r.store.nextSeq++
	r.store.offerings[offering.ID] = storedOffering{seq: r.store.nextSeq, offering: *cloneOffering(*offering)}
	u.onRollback(func() { delete(r.store.offerings, offering.ID) })
	return nil
}

func (r *OfferingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	prev, ok := r.store.offerings[id]
	if !ok {
		return domain.NewNotFound(domain.KindOffering, id)
	}
	delete(r.store.offerings, id)
	u.onRollback(func() { r.store.offerings[id] = prev })
	return nil
}

func (r *OfferingRepository) UpdatePriceCache(ctx context.Context, id uuid.UUID, cache domain.PriceCache) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	so, ok := r.store.offerings[id]
	if !ok {
		return domain.NewNotFound(domain.KindOffering, id)
	}
	prev := so
	updated := *cloneOffering(so.offering)
	updated.ApplyPriceCache(cache)
	r.store.offerings[id] = storedOffering{seq: so.seq, offering: updated}
	u.onRollback(func() { r.store.offerings[id] = prev })
	return nil
}
