package comparison

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// priceMarket builds one market's result. offers[i] belongs to items[i].
func priceMarket(market *domain.Market, items []*domain.ReferenceItem, offers []map[uuid.UUID]*domain.Offering, currency string) domain.MarketComparison {
	mc := domain.MarketComparison{
		MarketID:       market.ID,
		MarketName:     market.Name,
		MarketLogoURL:  market.LogoURL,
		TotalPrice:     decimal.Zero,
		Currency:       currency,
		ItemPrices:     make([]domain.ItemPrice, 0, len(items)),
		MissingItems:   []string{},
		TotalItemCount: len(items),
	}

	for i, item := range items {
		line := domain.ItemPrice{
			ReferenceItemID:   item.ID,
			ReferenceItemName: item.Name,
			Price:             decimal.Zero,
			Currency:          currency,
		}

		offering := offers[i][market.ID]
		switch {
		case offering == nil:
			line.MissingReason = domain.MissingReasonNotCarried
		case !offering.HasUsablePrice():
			describeOffering(&line, offering)
			line.MissingReason = domain.MissingReasonNoPrice
		default:
			describeOffering(&line, offering)
			line.Price = offering.CurrentPrice.Decimal
			if offering.Currency != "" {
				line.Currency = offering.Currency
			}
			line.IsPromotion = offering.IsPromotion
			line.Available = true
		}

		if line.Available {
			mc.TotalPrice = mc.TotalPrice.Add(line.Price)
			mc.AvailableItemCount++
		} else {
			mc.MissingItems = append(mc.MissingItems, item.Name)
		}
		mc.ItemPrices = append(mc.ItemPrices, line)
	}

	mc.AllItemsAvailable = mc.AvailableItemCount == mc.TotalItemCount
	return mc
}

func describeOffering(line *domain.ItemPrice, o *domain.Offering) {
	id := o.ID
	line.OfferingID = &id
	line.OfferingName = o.Name
	line.Brand = o.Brand
}

// rankMarkets puts fully available markets first, each group by ascending
// total. Markets that tie keep their input order.
func rankMarkets(comparisons []domain.MarketComparison) {
	sort.SliceStable(comparisons, func(i, j int) bool {
		a, b := comparisons[i], comparisons[j]
		if a.AllItemsAvailable != b.AllItemsAvailable {
			return a.AllItemsAvailable
		}
		return a.TotalPrice.LessThan(b.TotalPrice)
	})
}

// summarize fills the summary fields from the fully available markets only.
// With none of them, the totals stay zero and no cheapest market is set.
func summarize(result *domain.ComparisonResult) {
	result.LowestTotal = decimal.Zero
	result.HighestTotal = decimal.Zero
	result.PotentialSavings = decimal.Zero

	var cheapest *domain.MarketComparison
	found := false
	for i := range result.MarketComparisons {
		mc := &result.MarketComparisons[i]
		if !mc.AllItemsAvailable {
			continue
		}
		if !found {
			result.LowestTotal = mc.TotalPrice
			result.HighestTotal = mc.TotalPrice
			cheapest = mc
			found = true
			continue
		}
		if mc.TotalPrice.LessThan(result.LowestTotal) {
			result.LowestTotal = mc.TotalPrice
			cheapest = mc
		}
		if mc.TotalPrice.GreaterThan(result.HighestTotal) {
			result.HighestTotal = mc.TotalPrice
		}
	}

	if cheapest != nil {
		id := cheapest.MarketID
		result.CheapestMarketID = &id
		result.CheapestMarketName = cheapest.MarketName
	}
	result.PotentialSavings = result.HighestTotal.Sub(result.LowestTotal)
}
