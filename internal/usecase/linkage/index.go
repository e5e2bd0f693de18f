// Package linkage maintains ReferenceItem.LinkedMarketIDs, the derived set of
// markets that carry at least one offering of a reference item.
package linkage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

// Index is the only writer of ReferenceItem.LinkedMarketIDs.
//
// Every operation locks the reference item for the rest of the surrounding
// unit of work, so concurrent offering mutations on the same item apply their
// read-then-write one after the other.
type Index struct {
	ReferenceItemRepo domain.ReferenceItemRepository
	OfferingRepo      domain.OfferingRepository
	UnitOfWork        domain.UnitOfWork
	log               *logger.Entry
}

// NewIndex creates a new linkage Index
func NewIndex(referenceItemRepo domain.ReferenceItemRepository, offeringRepo domain.OfferingRepository,
	uow domain.UnitOfWork, log *logger.Log) *Index {
	return &Index{
		ReferenceItemRepo: referenceItemRepo,
		OfferingRepo:      offeringRepo,
		UnitOfWork:        uow,
		log:               log.WithComponent("linkage"),
	}
}

// OnOfferingCreated adds marketID to the item's linkage set. Adding a market
// that is already present is a no-op.
func (x *Index) OnOfferingCreated(ctx context.Context, referenceItemID, marketID uuid.UUID) error {
	return x.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		item, err := x.lockItem(ctx, referenceItemID)
		if err != nil || item == nil {
			return err
		}
		if item.IsLinkedTo(marketID) {
			return nil
		}

		linked := append(append([]uuid.UUID{}, item.LinkedMarketIDs...), marketID)
		return x.ReferenceItemRepo.UpdateLinkedMarkets(ctx, referenceItemID, linked)
	})
}

// OnOfferingDeleted removes marketID from the item's linkage set unless
// another offering of the item in that market remains.
func (x *Index) OnOfferingDeleted(ctx context.Context, referenceItemID, marketID uuid.UUID) error {
	return x.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		item, err := x.lockItem(ctx, referenceItemID)
		if err != nil || item == nil {
			return err
		}

		offerings, err := x.OfferingRepo.ListByReferenceItemID(ctx, referenceItemID)
		if err != nil {
			return fmt.Errorf("failed to list offerings: %w", err)
		}
		for _, o := range offerings {
			if o.MarketID == marketID {
				return nil
			}
		}

		if !item.IsLinkedTo(marketID) {
			return nil
		}
		linked := make([]uuid.UUID, 0, len(item.LinkedMarketIDs))
		for _, id := range item.LinkedMarketIDs {
			if id != marketID {
				linked = append(linked, id)
			}
		}
		return x.ReferenceItemRepo.UpdateLinkedMarkets(ctx, referenceItemID, linked)
	})
}

// Rebuild recomputes the item's linkage set from its offerings and reports
// whether the stored set changed. Markets that stay linked keep their position.
func (x *Index) Rebuild(ctx context.Context, referenceItemID uuid.UUID) (bool, error) {
	changed := false
	err := x.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		item, err := x.lockItem(ctx, referenceItemID)
		if err != nil || item == nil {
			return err
		}

		offerings, err := x.OfferingRepo.ListByReferenceItemID(ctx, referenceItemID)
		if err != nil {
			return fmt.Errorf("failed to list offerings: %w", err)
		}
		linked := rebuildSet(item.LinkedMarketIDs, offerings)
		if sameSet(linked, item.LinkedMarketIDs) {
			return nil
		}

		changed = true
		x.log.WithFields(logger.Fields{
			"reference_item_id": referenceItemID,
			"stored":            len(item.LinkedMarketIDs),
			"actual":            len(linked),
		}).Warn("Linked markets drifted from offerings, rewriting")
		return x.ReferenceItemRepo.UpdateLinkedMarkets(ctx, referenceItemID, linked)
	})
	return changed, err
}

// RebuildAll rebuilds every reference item in its own unit of work and
// returns how many linkage sets changed.
func (x *Index) RebuildAll(ctx context.Context) (int, error) {
	items, err := x.ReferenceItemRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list reference items: %w", err)
	}

	changed := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ok, err := x.Rebuild(ctx, item.ID)
		if err != nil {
			return changed, fmt.Errorf("failed to rebuild linkage of %s: %w", item.ID, err)
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// LinkedMarkets returns the stored linkage set of a reference item
func (x *Index) LinkedMarkets(ctx context.Context, referenceItemID uuid.UUID) ([]uuid.UUID, error) {
	item, err := x.ReferenceItemRepo.GetByID(ctx, referenceItemID)
	if err != nil {
		return nil, err
	}
	return item.LinkedMarketIDs, nil
}

// lockItem locks and loads the reference item. A missing item yields
// (nil, nil): the link it would have carried no longer matters.
func (x *Index) lockItem(ctx context.Context, referenceItemID uuid.UUID) (*domain.ReferenceItem, error) {
	err := x.ReferenceItemRepo.LockForUpdate(ctx, referenceItemID)
	if err == nil {
		var item *domain.ReferenceItem
		item, err = x.ReferenceItemRepo.GetByID(ctx, referenceItemID)
		if err == nil {
			return item, nil
		}
	}
	if errors.Is(err, domain.ErrNotFound) {
		x.log.WithField("reference_item_id", referenceItemID).Debug("Reference item gone, skipping link update")
		return nil, nil
	}
	return nil, fmt.Errorf("failed to load reference item: %w", err)
}

func rebuildSet(stored []uuid.UUID, offerings []*domain.Offering) []uuid.UUID {
	carried := make(map[uuid.UUID]bool, len(offerings))
	for _, o := range offerings {
		carried[o.MarketID] = true
	}

	linked := make([]uuid.UUID, 0, len(carried))
	seen := make(map[uuid.UUID]bool, len(carried))
	for _, id := range stored {
		if carried[id] && !seen[id] {
			linked = append(linked, id)
			seen[id] = true
		}
	}
	for _, o := range offerings {
		if !seen[o.MarketID] {
			linked = append(linked, o.MarketID)
			seen[o.MarketID] = true
		}
	}
	return linked
}

// sameSet compares element-wise, so duplicates in stored count as drift
func sameSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
