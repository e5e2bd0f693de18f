// Package mocks holds testify mocks of the domain repositories, shared by the
// use case tests.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// MockMarketRepository is a mock implementation of MarketRepository for testing
type MockMarketRepository struct {
	mock.Mock
}

func (m *MockMarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Market), args.Error(1)
}

func (m *MockMarketRepository) List(ctx context.Context) ([]*domain.Market, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Market), args.Error(1)
}

func (m *MockMarketRepository) ListActive(ctx context.Context) ([]*domain.Market, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Market), args.Error(1)
}

func (m *MockMarketRepository) Create(ctx context.Context, market *domain.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

// MockReferenceItemRepository is a mock implementation of ReferenceItemRepository for testing
type MockReferenceItemRepository struct {
	mock.Mock
}

func (m *MockReferenceItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReferenceItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReferenceItem), args.Error(1)
}

func (m *MockReferenceItemRepository) GetAllByID(ctx context.Context, ids []uuid.UUID) ([]*domain.ReferenceItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ReferenceItem), args.Error(1)
}

func (m *MockReferenceItemRepository) List(ctx context.Context) ([]*domain.ReferenceItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ReferenceItem), args.Error(1)
}

func (m *MockReferenceItemRepository) SearchByName(ctx context.Context, query string) ([]*domain.ReferenceItem, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ReferenceItem), args.Error(1)
}

func (m *MockReferenceItemRepository) Create(ctx context.Context, item *domain.ReferenceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockReferenceItemRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockReferenceItemRepository) UpdateLinkedMarkets(ctx context.Context, id uuid.UUID, marketIDs []uuid.UUID) error {
	args := m.Called(ctx, id, marketIDs)
	return args.Error(0)
}

// MockOfferingRepository is a mock implementation of OfferingRepository for testing
type MockOfferingRepository struct {
	mock.Mock
}

func (m *MockOfferingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offering, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offering), args.Error(1)
}

func (m *MockOfferingRepository) ListByReferenceItemID(ctx context.Context, referenceItemID uuid.UUID) ([]*domain.Offering, error) {
	args := m.Called(ctx, referenceItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Offering), args.Error(1)
}

func (m *MockOfferingRepository) ListByMarketID(ctx context.Context, marketID uuid.UUID) ([]*domain.Offering, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Offering), args.Error(1)
}

func (m *MockOfferingRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOfferingRepository) Create(ctx context.Context, offering *domain.Offering) error {
	args := m.Called(ctx, offering)
	return args.Error(0)
}

func (m *MockOfferingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOfferingRepository) UpdatePriceCache(ctx context.Context, id uuid.UUID, cache domain.PriceCache) error {
	args := m.Called(ctx, id, cache)
	return args.Error(0)
}

// MockPriceRecordRepository is a mock implementation of PriceRecordRepository for testing
type MockPriceRecordRepository struct {
	mock.Mock
}

func (m *MockPriceRecordRepository) Append(ctx context.Context, record *domain.PriceRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPriceRecordRepository) ListByOfferingID(ctx context.Context, offeringID uuid.UUID) ([]*domain.PriceRecord, error) {
	args := m.Called(ctx, offeringID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PriceRecord), args.Error(1)
}

func (m *MockPriceRecordRepository) GetLatest(ctx context.Context, offeringID uuid.UUID) (*domain.PriceRecord, error) {
	args := m.Called(ctx, offeringID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PriceRecord), args.Error(1)
}

// PassThroughUnitOfWork runs fn directly with the caller's context
type PassThroughUnitOfWork struct{}

func (PassThroughUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
