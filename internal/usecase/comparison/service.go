// Package comparison prices a basket of reference items at every active
// market and ranks the markets.
package comparison

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/metrics"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

const defaultParallelLookups = 8

// ComparisonService computes basket comparisons. It keeps no state between
// calls; every comparison re-reads current offering prices.
type ComparisonService struct {
	MarketRepo         domain.MarketRepository
	ReferenceItemRepo  domain.ReferenceItemRepository
	OfferingRepo       domain.OfferingRepository
	DefaultCurrency    string
	MaxParallelLookups int
	log                *logger.Entry
}

// NewComparisonService creates a new ComparisonService instance
func NewComparisonService(
	marketRepo domain.MarketRepository,
	referenceItemRepo domain.ReferenceItemRepository,
	offeringRepo domain.OfferingRepository,
	defaultCurrency string,
	maxParallelLookups int,
	log *logger.Log,
) *ComparisonService {
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	if maxParallelLookups < 1 {
		maxParallelLookups = defaultParallelLookups
	}
	return &ComparisonService{
		MarketRepo:         marketRepo,
		ReferenceItemRepo:  referenceItemRepo,
		OfferingRepo:       offeringRepo,
		DefaultCurrency:    defaultCurrency,
		MaxParallelLookups: maxParallelLookups,
		log:                log.WithComponent("comparison"),
	}
}

// CompareBasket prices the basket at every active market.
// Logic:
//   - Unknown and inactive reference items are dropped before pricing
//   - An item is missing at a market when it has no offering there or the offering has no usable price
//   - Markets with every item available rank first, then by ascending total
//
// Data-quality problems never fail the call; only store errors are returned.
func (s *ComparisonService) CompareBasket(ctx context.Context, referenceItemIDs []uuid.UUID) (*domain.ComparisonResult, error) {
	start := time.Now()

	// 1. Resolve the basket to active reference items
	items, err := s.resolveBasket(ctx, referenceItemIDs)
	if err != nil {
		return nil, err
	}

	// 2. Active markets
	markets, err := s.MarketRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active markets: %w", err)
	}

	// 3. Offerings per basket item, indexed by market
	offers, err := s.prefetchOfferings(ctx, items)
	if err != nil {
		return nil, err
	}

	// 4. Price the basket at each market, then rank and summarize
	comparisons := make([]domain.MarketComparison, 0, len(markets))
	for _, market := range markets {
		comparisons = append(comparisons, priceMarket(market, items, offers, s.DefaultCurrency))
	}
	rankMarkets(comparisons)

	result := &domain.ComparisonResult{
		BasketItems:       basketItems(items),
		MarketComparisons: comparisons,
	}
	summarize(result)

	elapsed := time.Since(start)
	metrics.RecordComparison(elapsed)
	s.log.WithFields(logger.Fields{
		"requested_items": len(referenceItemIDs),
		"compared_items":  len(items),
		"markets":         len(comparisons),
	}).WithDuration(elapsed).Debug("Basket compared")

	return result, nil
}

// resolveBasket drops duplicate, unknown and inactive ids. The result keeps
// the order in which ids were first given.
func (s *ComparisonService) resolveBasket(ctx context.Context, ids []uuid.UUID) ([]*domain.ReferenceItem, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	found, err := s.ReferenceItemRepo.GetAllByID(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load basket items: %w", err)
	}

	items := make([]*domain.ReferenceItem, 0, len(found))
	for _, item := range found {
		if item.Active {
			items = append(items, item)
		}
	}
	return items, nil
}

// prefetchOfferings loads the offerings of every basket item concurrently.
// offers[i] maps market id to the first offering (in creation order) of items[i].
func (s *ComparisonService) prefetchOfferings(ctx context.Context, items []*domain.ReferenceItem) ([]map[uuid.UUID]*domain.Offering, error) {
	offers := make([]map[uuid.UUID]*domain.Offering, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.MaxParallelLookups)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			offerings, err := s.OfferingRepo.ListByReferenceItemID(gctx, item.ID)
			if err != nil {
				return fmt.Errorf("failed to list offerings of %s: %w", item.ID, err)
			}
			byMarket := make(map[uuid.UUID]*domain.Offering, len(offerings))
			for _, o := range offerings {
				if _, dup := byMarket[o.MarketID]; dup {
					s.log.WithFields(logger.Fields{
						"reference_item_id": item.ID,
						"market_id":         o.MarketID,
						"offering_id":       o.ID,
					}).Warn("Duplicate offering for market, using the first one")
					continue
				}
				byMarket[o.MarketID] = o
			}
			offers[i] = byMarket
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return offers, nil
}

func basketItems(items []*domain.ReferenceItem) []domain.BasketItem {
	out := make([]domain.BasketItem, len(items))
	for i, item := range items {
		out[i] = domain.BasketItem{
			ReferenceItemID: item.ID,
			Name:            item.Name,
			Category:        item.CategoryName,
		}
	}
	return out
}
