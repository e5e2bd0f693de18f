// Package offering implements the offering lifecycle: creation, deletion and
// lookups, keeping the price ledger and the linkage index in step.
package offering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/pricing"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

// LinkageIndex is the part of the linkage index the offering lifecycle drives
type LinkageIndex interface {
	OnOfferingCreated(ctx context.Context, referenceItemID, marketID uuid.UUID) error
	OnOfferingDeleted(ctx context.Context, referenceItemID, marketID uuid.UUID) error
}

// PriceRecorder appends to the price ledger
type PriceRecorder interface {
	RecordPrice(ctx context.Context, in pricing.RecordPriceInput) (*domain.PriceRecord, error)
}

// CreateOfferingInput represents the input for listing a reference item at a market
type CreateOfferingInput struct {
	MarketID        uuid.UUID
	ReferenceItemID uuid.UUID
	Name            string
	Brand           string
	Barcode         string
	Images          []string
	InitialPrice    decimal.NullDecimal
	OriginalPrice   decimal.NullDecimal
	Currency        string
	IsPromotion     bool
}

// OfferingService handles the offering lifecycle
type OfferingService struct {
	MarketRepo        domain.MarketRepository
	ReferenceItemRepo domain.ReferenceItemRepository
	OfferingRepo      domain.OfferingRepository
	UnitOfWork        domain.UnitOfWork
	Linkage           LinkageIndex
	Prices            PriceRecorder
	// RejectDuplicates refuses a second offering for the same market and reference item.
	RejectDuplicates bool

	now func() time.Time
	log *logger.Entry
}

// NewOfferingService creates a new OfferingService instance
func NewOfferingService(
	marketRepo domain.MarketRepository,
	referenceItemRepo domain.ReferenceItemRepository,
	offeringRepo domain.OfferingRepository,
	uow domain.UnitOfWork,
	linkage LinkageIndex,
	prices PriceRecorder,
	rejectDuplicates bool,
	log *logger.Log,
) *OfferingService {
	return &OfferingService{
		MarketRepo:        marketRepo,
		ReferenceItemRepo: referenceItemRepo,
		OfferingRepo:      offeringRepo,
		UnitOfWork:        uow,
		Linkage:           linkage,
		Prices:            prices,
		RejectDuplicates:  rejectDuplicates,
		now:               time.Now,
		log:               log.WithComponent("offering"),
	}
}

// CreateOffering lists a reference item at a market
// Logic (one unit of work):
//  1. Verify the market and the reference item exist, locking the item
//  2. Optionally reject a duplicate (market, reference item) pair
//  3. Persist the offering
//  4. If an initial price is given, record it through the price ledger
//  5. Link the market to the reference item
func (s *OfferingService) CreateOffering(ctx context.Context, input CreateOfferingInput) (*domain.Offering, error) {
	offering := &domain.Offering{
		ID:              uuid.New(),
		MarketID:        input.MarketID,
		ReferenceItemID: input.ReferenceItemID,
		Name:            input.Name,
		Brand:           input.Brand,
		Barcode:         input.Barcode,
		Images:          input.Images,
		CreatedAt:       s.now().UTC(),
	}
	if err := offering.Validate(); err != nil {
		return nil, err
	}
	if input.InitialPrice.Valid && input.InitialPrice.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: initial price cannot be negative", domain.ErrValidation)
	}

	var created *domain.Offering
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		// 1. Referenced entities
		if _, err := s.MarketRepo.GetByID(ctx, input.MarketID); err != nil {
			return err
		}
		if err := s.ReferenceItemRepo.LockForUpdate(ctx, input.ReferenceItemID); err != nil {
			return err
		}

		// 2. Duplicates
		if err := s.checkDuplicate(ctx, input.ReferenceItemID, input.MarketID); err != nil {
			return err
		}

		// 3. Offering
		if err := s.OfferingRepo.Create(ctx, offering); err != nil {
			return fmt.Errorf("failed to create offering: %w", err)
		}

		// 4. Initial price
		if input.InitialPrice.Valid {
			_, err := s.Prices.RecordPrice(ctx, pricing.RecordPriceInput{
				OfferingID:    offering.ID,
				Price:         input.InitialPrice.Decimal,
				OriginalPrice: input.OriginalPrice,
				Currency:      input.Currency,
				IsPromotion:   input.IsPromotion,
			})
			if err != nil {
				return fmt.Errorf("failed to record initial price: %w", err)
			}
		}

		// 5. Linkage
		if err := s.Linkage.OnOfferingCreated(ctx, input.ReferenceItemID, input.MarketID); err != nil {
			return fmt.Errorf("failed to link market: %w", err)
		}

		var err error
		created, err = s.OfferingRepo.GetByID(ctx, offering.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logger.Fields{
		"offering_id":       created.ID,
		"market_id":         created.MarketID,
		"reference_item_id": created.ReferenceItemID,
	}).Info("Offering created")
	return created, nil
}

func (s *OfferingService) checkDuplicate(ctx context.Context, referenceItemID, marketID uuid.UUID) error {
	existing, err := s.OfferingRepo.ListByReferenceItemID(ctx, referenceItemID)
	if err != nil {
		return fmt.Errorf("failed to list offerings: %w", err)
	}
	for _, o := range existing {
		if o.MarketID != marketID {
			continue
		}
		if s.RejectDuplicates {
			return fmt.Errorf("%w: market %s already offers reference item %s (offering %s)",
				domain.ErrConflict, marketID, referenceItemID, o.ID)
		}
		s.log.WithFields(logger.Fields{
			"market_id":         marketID,
			"reference_item_id": referenceItemID,
			"existing_id":       o.ID,
		}).Warn("Creating a duplicate offering for market")
		return nil
	}
	return nil
}

// DeleteOffering removes an offering and unlinks its market when it was the
// last offering of the reference item there. Returns false when the offering
// does not exist. Price history is kept.
func (s *OfferingService) DeleteOffering(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted := false
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		offering, err := s.OfferingRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}

		// Lock before the delete so linkage writers of this item queue up here.
		if err := s.ReferenceItemRepo.LockForUpdate(ctx, offering.ReferenceItemID); err != nil &&
			!errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to lock reference item: %w", err)
		}

		if err := s.OfferingRepo.Delete(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to delete offering: %w", err)
		}
		deleted = true

		if err := s.Linkage.OnOfferingDeleted(ctx, offering.ReferenceItemID, offering.MarketID); err != nil {
			return fmt.Errorf("failed to unlink market: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.log.WithField("offering_id", id).Info("Offering deleted")
	}
	return deleted, nil
}

// GetOffering retrieves an offering by its ID
func (s *OfferingService) GetOffering(ctx context.Context, id uuid.UUID) (*domain.Offering, error) {
	return s.OfferingRepo.GetByID(ctx, id)
}

// ListByMarket retrieves a market's offerings, failing with ErrNotFound for an unknown market
func (s *OfferingService) ListByMarket(ctx context.Context, marketID uuid.UUID) ([]*domain.Offering, error) {
	if _, err := s.MarketRepo.GetByID(ctx, marketID); err != nil {
		return nil, err
	}
	return s.OfferingRepo.ListByMarketID(ctx, marketID)
}

// ListByReferenceItem retrieves a reference item's offerings, failing with ErrNotFound for an unknown item
func (s *OfferingService) ListByReferenceItem(ctx context.Context, referenceItemID uuid.UUID) ([]*domain.Offering, error) {
	if _, err := s.ReferenceItemRepo.GetByID(ctx, referenceItemID); err != nil {
		return nil, err
	}
	return s.OfferingRepo.ListByReferenceItemID(ctx, referenceItemID)
}
