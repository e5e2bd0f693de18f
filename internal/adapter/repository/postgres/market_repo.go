package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// marketRepository implements domain.MarketRepository
type marketRepository struct {
	db *DB
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *DB) domain.MarketRepository {
	return &marketRepository{db: db}
}

const marketColumns = `id, name, location, logo_url, active`

func scanMarket(row scanner) (*domain.Market, error) {
	var m domain.Market
	if err := row.Scan(&m.ID, &m.Name, &m.Location, &m.LogoURL, &m.Active); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID retrieves a market by its ID
func (r *marketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`

	m, err := scanMarket(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound(domain.KindMarket, id)
		}
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return m, nil
}

// List retrieves all markets
func (r *marketRepository) List(ctx context.Context) ([]*domain.Market, error) {
	return r.query(ctx, `SELECT `+marketColumns+` FROM markets ORDER BY name, id`)
}

// ListActive retrieves the markets that take part in comparisons
func (r *marketRepository) ListActive(ctx context.Context) ([]*domain.Market, error) {
	return r.query(ctx, `SELECT `+marketColumns+` FROM markets WHERE active = TRUE ORDER BY name, id`)
}

func (r *marketRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Market, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	var markets []*domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating markets: %w", err)
	}
	return markets, nil
}

// Create creates a new market
func (r *marketRepository) Create(ctx context.Context, market *domain.Market) error {
	query := `
		INSERT INTO markets (id, name, location, logo_url, active)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		market.ID,
		market.Name,
		market.Location,
		market.LogoURL,
		market.Active,
	)
	if err != nil {
		return insertError(err, "market", market.ID)
	}
	return nil
}

// SetActive toggles the active flag
func (r *marketRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.conn(ctx).ExecContext(ctx, `UPDATE markets SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update market: %w", err)
	}
	return expectOneRow(res, domain.KindMarket, id)
}

func expectOneRow(res sql.Result, kind domain.EntityKind, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NewNotFound(kind, id)
	}
	return nil
}
