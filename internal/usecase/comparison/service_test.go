package comparison

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartbasket/smartbasket-backend/internal/adapter/repository/memory"
	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/domain/mocks"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

type catalog struct {
	service   *ComparisonService
	markets   *memory.MarketRepository
	items     *memory.ReferenceItemRepository
	offerings *memory.OfferingRepository
}

func newCatalog() *catalog {
	store := memory.NewStore()
	c := &catalog{
		markets:   memory.NewMarketRepository(store),
		items:     memory.NewReferenceItemRepository(store),
		offerings: memory.NewOfferingRepository(store),
	}
	c.service = NewComparisonService(c.markets, c.items, c.offerings, "JOD", 2, logger.Discard())
	return c
}

func (c *catalog) market(t *testing.T, name string, active bool) *domain.Market {
	t.Helper()
	m := &domain.Market{ID: uuid.New(), Name: name, Active: active}
	require.NoError(t, c.markets.Create(context.Background(), m))
	return m
}

func (c *catalog) item(t *testing.T, name string, active bool) *domain.ReferenceItem {
	t.Helper()
	item := &domain.ReferenceItem{ID: uuid.New(), Name: name, CategoryName: "Dairy", Active: active}
	require.NoError(t, c.items.Create(context.Background(), item))
	return item
}

// offer lists item at market with the given price; an empty price leaves it unset
func (c *catalog) offer(t *testing.T, m *domain.Market, item *domain.ReferenceItem, price string) *domain.Offering {
	t.Helper()
	o := &domain.Offering{ID: uuid.New(), MarketID: m.ID, ReferenceItemID: item.ID, Name: item.Name + " @ " + m.Name}
	require.NoError(t, c.offerings.Create(context.Background(), o))
	if price != "" {
		require.NoError(t, c.offerings.UpdatePriceCache(context.Background(), o.ID, domain.PriceCache{
			CurrentPrice:    decimal.NewNullDecimal(dec(price)),
			Currency:        "JOD",
			LastPriceUpdate: time.Now(),
		}))
	}
	return o
}

func TestCompareBasket_RanksAndSummarizes(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()
	milk, bread := c.item(t, "Milk", true), c.item(t, "Bread", true)
	a, b, cc := c.market(t, "A", true), c.market(t, "B", true), c.market(t, "C", true)

	c.offer(t, a, milk, "6")
	c.offer(t, a, bread, "4") // A: 10, complete
	c.offer(t, b, milk, "5")  // B: 5, bread missing
	c.offer(t, cc, milk, "3")
	c.offer(t, cc, bread, "5") // C: 8, complete

	result, err := c.service.CompareBasket(ctx, []uuid.UUID{milk.ID, bread.ID})
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A", "B"}, names(result.MarketComparisons))
	require.NotNil(t, result.CheapestMarketID)
	assert.Equal(t, cc.ID, *result.CheapestMarketID)
	assert.Equal(t, "C", result.CheapestMarketName)
	assert.True(t, result.LowestTotal.Equal(dec("8")))
	assert.True(t, result.HighestTotal.Equal(dec("10")))
	assert.True(t, result.PotentialSavings.Equal(dec("2")))

	partial := result.MarketComparisons[2]
	assert.Equal(t, []string{"Bread"}, partial.MissingItems)
	assert.Equal(t, 1, partial.AvailableItemCount)
	assert.Equal(t, 2, partial.TotalItemCount)

	require.Len(t, result.BasketItems, 2)
	assert.Equal(t, "Milk", result.BasketItems[0].Name)
	assert.Equal(t, "Dairy", result.BasketItems[0].Category)
}

func TestCompareBasket_InactiveItemIsExcluded(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()
	active, inactive := c.item(t, "Milk", true), c.item(t, "Discontinued", false)
	m := c.market(t, "M", true)
	c.offer(t, m, active, "1.25")

	result, err := c.service.CompareBasket(ctx, []uuid.UUID{inactive.ID, active.ID})
	require.NoError(t, err)

	require.Len(t, result.BasketItems, 1)
	assert.Equal(t, active.ID, result.BasketItems[0].ReferenceItemID)
	require.Len(t, result.MarketComparisons, 1)
	mc := result.MarketComparisons[0]
	assert.True(t, mc.AllItemsAvailable)
	assert.Empty(t, mc.MissingItems)
	assert.Equal(t, 1, mc.TotalItemCount)
	assert.True(t, mc.TotalPrice.Equal(dec("1.25")))
}

func TestCompareBasket_UnusablePriceIsMissing(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()
	milk, bread := c.item(t, "Milk", true), c.item(t, "Bread", true)
	zero, negative := c.market(t, "Zero", true), c.market(t, "Negative", true)

	c.offer(t, zero, milk, "2")
	c.offer(t, zero, bread, "0")
	c.offer(t, negative, milk, "2")
	c.offer(t, negative, bread, "-1")

	result, err := c.service.CompareBasket(ctx, []uuid.UUID{milk.ID, bread.ID})
	require.NoError(t, err)

	for _, mc := range result.MarketComparisons {
		assert.False(t, mc.AllItemsAvailable, mc.MarketName)
		assert.Equal(t, []string{"Bread"}, mc.MissingItems, mc.MarketName)
		assert.True(t, mc.TotalPrice.Equal(dec("2")), mc.MarketName)
	}
	assert.Nil(t, result.CheapestMarketID)
}

func TestCompareBasket_EmptyBasket(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()
	c.market(t, "B", true)
	c.market(t, "A", true)
	inactive := c.item(t, "Gone", false)

	for _, basket := range [][]uuid.UUID{nil, {uuid.New(), uuid.Nil}, {inactive.ID}} {
		result, err := c.service.CompareBasket(ctx, basket)
		require.NoError(t, err)
		assert.Empty(t, result.BasketItems)
		require.Len(t, result.MarketComparisons, 2)
		for _, mc := range result.MarketComparisons {
			assert.True(t, mc.AllItemsAvailable)
			assert.True(t, mc.TotalPrice.IsZero())
		}
		assert.Equal(t, []string{"A", "B"}, names(result.MarketComparisons))
		require.NotNil(t, result.CheapestMarketID)
		assert.True(t, result.PotentialSavings.IsZero())
	}
}

func TestCompareBasket_NoActiveMarkets(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()
	milk := c.item(t, "Milk", true)
	closed := c.market(t, "Closed", false)
	c.offer(t, closed, milk, "1")

	result, err := c.service.CompareBasket(ctx, []uuid.UUID{milk.ID})
	require.NoError(t, err)

	assert.NotNil(t, result.MarketComparisons)
	assert.Empty(t, result.MarketComparisons)
	assert.Nil(t, result.CheapestMarketID)
	assert.True(t, result.LowestTotal.IsZero())
	assert.True(t, result.HighestTotal.IsZero())
	assert.True(t, result.PotentialSavings.IsZero())
}

func TestCompareBasket_DuplicatesAreHandled(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()
	milk := c.item(t, "Milk", true)
	m := c.market(t, "M", true)
	first := c.offer(t, m, milk, "1.10")
	c.offer(t, m, milk, "0.90")

	result, err := c.service.CompareBasket(ctx, []uuid.UUID{milk.ID, milk.ID})
	require.NoError(t, err)

	require.Len(t, result.BasketItems, 1, "repeated basket ids count once")
	mc := result.MarketComparisons[0]
	require.Len(t, mc.ItemPrices, 1)
	require.NotNil(t, mc.ItemPrices[0].OfferingID)
	assert.Equal(t, first.ID, *mc.ItemPrices[0].OfferingID, "the first offering created wins")
	assert.True(t, mc.TotalPrice.Equal(dec("1.10")))
}

func TestCompareBasket_StoreFailure(t *testing.T) {
	ctx := context.Background()
	marketRepo := new(mocks.MockMarketRepository)
	itemRepo := new(mocks.MockReferenceItemRepository)
	offeringRepo := new(mocks.MockOfferingRepository)
	service := NewComparisonService(marketRepo, itemRepo, offeringRepo, "", 0, logger.Discard())

	item := &domain.ReferenceItem{ID: uuid.New(), Name: "Milk", Active: true}
	itemRepo.On("GetAllByID", ctx, []uuid.UUID{item.ID}).Return([]*domain.ReferenceItem{item}, nil)
	marketRepo.On("ListActive", ctx).Return([]*domain.Market{{ID: uuid.New(), Name: "M", Active: true}}, nil)
	offeringRepo.On("ListByReferenceItemID", mock.Anything, item.ID).Return(nil, errors.New("connection refused"))

	result, err := service.CompareBasket(ctx, []uuid.UUID{item.ID})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, domain.DefaultCurrency, service.DefaultCurrency)
	assert.Equal(t, defaultParallelLookups, service.MaxParallelLookups)
}
