package reconcile

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
	"github.com/smartbasket/smartbasket-backend/internal/usecase/linkage"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

type fixture struct {
	reconciler *Reconciler
	items      *memory.ReferenceItemRepository
	offerings  *memory.OfferingRepository
	prices     *memory.PriceRecordRepository
	itemID     uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	f := fixture{
		items:     memory.NewReferenceItemRepository(store),
		offerings: memory.NewOfferingRepository(store),
		prices:    memory.NewPriceRecordRepository(store),
		itemID:    uuid.New(),
	}
	log := logger.Discard()
	index := linkage.NewIndex(f.items, f.offerings, store, log)
	f.reconciler = NewReconciler(index, f.items, f.offerings, f.prices, store, "@every 1h", log)
	require.NoError(t, f.items.Create(context.Background(), &domain.ReferenceItem{ID: f.itemID, Name: "Milk"}))
	return f
}

func TestRun_RepairsDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	marketID := uuid.New()

	o := &domain.Offering{ID: uuid.New(), MarketID: marketID, ReferenceItemID: f.itemID, Name: "milk"}
	require.NoError(t, f.offerings.Create(ctx, o))

	// a record appended without its cache update
	ts := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	rec := &domain.PriceRecord{ID: uuid.New(), OfferingID: o.ID, Price: decimal.RequireFromString("1.75"),
		Currency: "JOD", Timestamp: ts}
	require.NoError(t, f.prices.Append(ctx, rec))

	report, err := f.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.LinkageRepairs)
	assert.Equal(t, 1, report.PriceCacheRepairs)
	assert.Equal(t, 1, report.OfferingsChecked)

	item, err := f.items.GetByID(ctx, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{marketID}, item.LinkedMarketIDs)

	repaired, err := f.offerings.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, repaired.MatchesRecord(rec))

	// a second pass finds nothing to do
	report, err = f.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.LinkageRepairs)
	assert.Equal(t, 0, report.PriceCacheRepairs)
}

func TestRun_RepairsStaleOriginalPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ts := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	offeringID := uuid.New()
	rec := &domain.PriceRecord{ID: uuid.New(), OfferingID: offeringID, Price: decimal.RequireFromString("1.50"),
		OriginalPrice: decimal.NewNullDecimal(decimal.RequireFromString("2.00")), Currency: "JOD", Timestamp: ts}

	// cache agrees with the ledger on everything but the original price
	o := &domain.Offering{ID: offeringID, MarketID: uuid.New(), ReferenceItemID: f.itemID, Name: "milk"}
	o.ApplyPriceCache(domain.CacheFromRecord(rec))
	o.OriginalPrice = decimal.NewNullDecimal(decimal.RequireFromString("9.99"))
	require.NoError(t, f.offerings.Create(ctx, o))
	require.NoError(t, f.prices.Append(ctx, rec))

	report, err := f.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PriceCacheRepairs)

	repaired, err := f.offerings.GetByID(ctx, offeringID)
	require.NoError(t, err)
	require.True(t, repaired.OriginalPrice.Valid)
	assert.True(t, repaired.OriginalPrice.Decimal.Equal(decimal.RequireFromString("2.00")))
}

func TestRun_UnpricedOfferingIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := &domain.Offering{ID: uuid.New(), MarketID: uuid.New(), ReferenceItemID: f.itemID, Name: "milk"}
	require.NoError(t, f.offerings.Create(ctx, o))

	report, err := f.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.PriceCacheRepairs)

	got, err := f.offerings.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.CurrentPrice.Valid)
}

type stubRebuilder struct{ mock.Mock }

func (s *stubRebuilder) RebuildAll(ctx context.Context) (int, error) {
	args := s.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestRun_LinkageFailureStopsPass(t *testing.T) {
	ctx := context.Background()
	rebuilder := new(stubRebuilder)
	itemRepo := new(mocks.MockReferenceItemRepository)
	rebuilder.On("RebuildAll", ctx).Return(2, errors.New("db down"))

	r := NewReconciler(rebuilder, itemRepo, new(mocks.MockOfferingRepository), new(mocks.MockPriceRecordRepository),
		mocks.PassThroughUnitOfWork{}, "@every 1h", logger.Discard())

	report, err := r.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 2, report.LinkageRepairs)
	itemRepo.AssertNotCalled(t, "List", mock.Anything)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	f.reconciler.schedule = "not a schedule"
	assert.Error(t, f.reconciler.Start())
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reconciler.Start())
	f.reconciler.Stop()
	assert.Len(t, f.reconciler.Cron.Entries(), 1)
}
