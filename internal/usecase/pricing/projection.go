package pricing

import (
	"context"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// Projection is a view derived from the price ledger. Apply runs inside the
// unit of work that appended rec, so a failing projection rolls back the record.
type Projection interface {
	Name() string
	Apply(ctx context.Context, offering *domain.Offering, rec *domain.PriceRecord) error
}

// CurrentPriceProjection keeps the offering's price cache equal to its newest record
type CurrentPriceProjection struct {
	OfferingRepo domain.OfferingRepository
}

func (p *CurrentPriceProjection) Name() string { return "current_price" }

func (p *CurrentPriceProjection) Apply(ctx context.Context, offering *domain.Offering, rec *domain.PriceRecord) error {
	cache := domain.CacheFromRecord(rec)
	if err := p.OfferingRepo.UpdatePriceCache(ctx, offering.ID, cache); err != nil {
		return err
	}
	offering.ApplyPriceCache(cache)
	return nil
}
