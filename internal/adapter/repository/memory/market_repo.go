package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// MarketRepository implements domain.MarketRepository
type MarketRepository struct {
	store *Store
}

func NewMarketRepository(store *Store) *MarketRepository {
	return &MarketRepository{store: store}
}

func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	defer r.store.lockRead(ctx)()

	m, ok := r.store.markets[id]
	if !ok {
		return nil, domain.NewNotFound(domain.KindMarket, id)
	}
	return &m, nil
}

func (r *MarketRepository) List(ctx context.Context) ([]*domain.Market, error) {
	return r.list(ctx, false)
}

func (r *MarketRepository) ListActive(ctx context.Context) ([]*domain.Market, error) {
	return r.list(ctx, true)
}

func (r *MarketRepository) list(ctx context.Context, activeOnly bool) ([]*domain.Market, error) {
	defer r.store.lockRead(ctx)()

	markets := make([]*domain.Market, 0, len(r.store.markets))
	for _, m := range r.store.markets {
		m := m
		if activeOnly && !m.Active {
			continue
		}
		markets = append(markets, &m)
	}
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].Name != markets[j].Name {
			return markets[i].Name < markets[j].Name
		}
		return markets[i].ID.String() < markets[j].ID.String()
	})
	return markets, nil
}

func (r *MarketRepository) Create(ctx context.Context, market *domain.Market) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	if _, exists := r.store.markets[market.ID]; exists {
		return fmt.Errorf("%w: market %s already exists", domain.ErrConflict, market.ID)
	}
	r.store.markets[market.ID] = *market
	u.onRollback(func() { delete(r.store.markets, market.ID) })
	return nil
}

func (r *MarketRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	u, unlock := r.store.lockWrite(ctx)
	defer unlock()

	m, ok := r.store.markets[id]
	if !ok {
		return domain.NewNotFound(domain.KindMarket, id)
	}
	prev := m
	m.Active = active
	r.store.markets[id] = m
	u.onRollback(func() { r.store.markets[id] = prev })
	return nil
}
