package comparison

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func marketResult(name, total string, complete bool) domain.MarketComparison {
	return domain.MarketComparison{
		MarketID:          uuid.New(),
		MarketName:        name,
		TotalPrice:        dec(total),
		AllItemsAvailable: complete,
	}
}

func names(comparisons []domain.MarketComparison) []string {
	out := make([]string, len(comparisons))
	for i, mc := range comparisons {
		out[i] = mc.MarketName
	}
	return out
}

func TestRankMarkets_CompletenessBeatsPrice(t *testing.T) {
	comparisons := []domain.MarketComparison{
		marketResult("A", "10", true),
		marketResult("B", "5", false),
		marketResult("C", "8", true),
	}

	rankMarkets(comparisons)

	assert.Equal(t, []string{"C", "A", "B"}, names(comparisons))
}

func TestRankMarkets_TiesKeepInputOrder(t *testing.T) {
	comparisons := []domain.MarketComparison{
		marketResult("first", "4", true),
		marketResult("second", "4", true),
		marketResult("partial-b", "1", false),
		marketResult("partial-a", "1", false),
	}

	rankMarkets(comparisons)

	assert.Equal(t, []string{"first", "second", "partial-b", "partial-a"}, names(comparisons))
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name         string
		markets      []domain.MarketComparison
		wantLowest   string
		wantHighest  string
		wantSavings  string
		wantCheapest string
	}{
		{
			name: "incomplete market excluded from extremes",
			markets: []domain.MarketComparison{
				marketResult("cheap", "7.5", true),
				marketResult("mid", "9.0", true),
				marketResult("dear", "12.0", true),
				marketResult("partial", "3.0", false),
			},
			wantLowest: "7.5", wantHighest: "12", wantSavings: "4.5", wantCheapest: "cheap",
		},
		{
			name:       "no complete market",
			markets:    []domain.MarketComparison{marketResult("partial", "3.0", false)},
			wantLowest: "0", wantHighest: "0", wantSavings: "0",
		},
		{
			name:       "no markets",
			wantLowest: "0", wantHighest: "0", wantSavings: "0",
		},
		{
			name:       "single complete market",
			markets:    []domain.MarketComparison{marketResult("only", "6.25", true)},
			wantLowest: "6.25", wantHighest: "6.25", wantSavings: "0", wantCheapest: "only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &domain.ComparisonResult{MarketComparisons: tt.markets}
			rankMarkets(result.MarketComparisons)
			summarize(result)

			assert.True(t, result.LowestTotal.Equal(dec(tt.wantLowest)), "lowest %s", result.LowestTotal)
			assert.True(t, result.HighestTotal.Equal(dec(tt.wantHighest)), "highest %s", result.HighestTotal)
			assert.True(t, result.PotentialSavings.Equal(dec(tt.wantSavings)), "savings %s", result.PotentialSavings)
			if tt.wantCheapest == "" {
				assert.Nil(t, result.CheapestMarketID)
				assert.Empty(t, result.CheapestMarketName)
				return
			}
			require.NotNil(t, result.CheapestMarketID)
			assert.Equal(t, tt.wantCheapest, result.CheapestMarketName)
		})
	}
}

func TestPriceMarket_UnusablePricesAreMissing(t *testing.T) {
	market := &domain.Market{ID: uuid.New(), Name: "Corner Shop"}
	items := []*domain.ReferenceItem{
		{ID: uuid.New(), Name: "Milk"},
		{ID: uuid.New(), Name: "Bread"},
		{ID: uuid.New(), Name: "Eggs"},
		{ID: uuid.New(), Name: "Rice"},
		{ID: uuid.New(), Name: "Tea"},
	}
	offering := func(price *string, currency string) *domain.Offering {
		o := &domain.Offering{ID: uuid.New(), MarketID: market.ID, Name: "listing", Brand: "Acme", Currency: currency}
		if price != nil {
			o.CurrentPrice = decimal.NewNullDecimal(dec(*price))
		}
		return o
	}
	p := func(s string) *string { return &s }

	offers := []map[uuid.UUID]*domain.Offering{
		{market.ID: offering(p("1.50"), "")},
		{market.ID: offering(p("0"), "JOD")},
		{market.ID: offering(p("-2"), "JOD")},
		{market.ID: offering(nil, "")},
		{},
	}

	mc := priceMarket(market, items, offers, "JOD")

	assert.True(t, mc.TotalPrice.Equal(dec("1.50")))
	assert.Equal(t, "JOD", mc.Currency)
	assert.False(t, mc.AllItemsAvailable)
	assert.Equal(t, 1, mc.AvailableItemCount)
	assert.Equal(t, 5, mc.TotalItemCount)
	assert.Equal(t, []string{"Bread", "Eggs", "Rice", "Tea"}, mc.MissingItems)

	require.Len(t, mc.ItemPrices, 5)
	assert.True(t, mc.ItemPrices[0].Available)
	assert.Equal(t, "JOD", mc.ItemPrices[0].Currency, "empty offering currency falls back to the default")
	for _, line := range mc.ItemPrices[1:4] {
		assert.False(t, line.Available)
		assert.Equal(t, domain.MissingReasonNoPrice, line.MissingReason)
		assert.NotNil(t, line.OfferingID)
		assert.True(t, line.Price.IsZero())
	}
	assert.Equal(t, domain.MissingReasonNotCarried, mc.ItemPrices[4].MissingReason)
	assert.Nil(t, mc.ItemPrices[4].OfferingID)
}

func TestPriceMarket_EmptyBasketIsFullyAvailable(t *testing.T) {
	mc := priceMarket(&domain.Market{ID: uuid.New(), Name: "M"}, nil, nil, "JOD")
	assert.True(t, mc.AllItemsAvailable)
	assert.True(t, mc.TotalPrice.IsZero())
	assert.Empty(t, mc.MissingItems)
}
