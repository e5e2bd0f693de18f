package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// PriceRecordRepository implements domain.PriceRecordRepository.
// Records are never updated or removed once appended.
type PriceRecordRepository struct {
	store *Store
}

func NewPriceRecordRepository(store *Store) *PriceRecordRepository {
	return &PriceRecordRepository{store: store}
}

func (r *PriceRecordRepository) Append(ctx context.Context, record *domain.PriceRecord) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	history := r.store.records[record.OfferingID]
	for _, existing := range history {
		if existing.ID == record.ID {
			return fmt.Errorf("%w: price record %s already exists", domain.ErrConflict, record.ID)
		}
	}
	n := len(history)
	r.store.records[record.OfferingID] = append(history, *record)
	u.onRollback(func() {
		if n == 0 {
			delete(r.store.records, record.OfferingID)
			return
		}
		r.store.records[record.OfferingID] = r.store.records[record.OfferingID][:n]
	})
	return nil
}

func (r *PriceRecordRepository) ListByOfferingID(ctx context.Context, offeringID uuid.UUID) ([]*domain.PriceRecord, error) {
	defer r.store.lockRead(ctx)()
	return r.newestFirst(offeringID), nil
}

func (r *PriceRecordRepository) GetLatest(ctx context.Context, offeringID uuid.UUID) (*domain.PriceRecord, error) {
	defer r.store.lockRead(ctx)()

	history := r.newestFirst(offeringID)
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: no price recorded for offering %s", domain.ErrNotFound, offeringID)
	}
	return history[0], nil
}

// newestFirst must be called with the store lock held.
func (r *PriceRecordRepository) newestFirst(offeringID uuid.UUID) []*domain.PriceRecord {
	history := r.store.records[offeringID]
	out := make([]*domain.PriceRecord, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		out = append(out, &rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}
