package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// offeringRepository implements domain.OfferingRepository
type offeringRepository struct {
	db *DB
}

// NewOfferingRepository creates a new offering repository
func NewOfferingRepository(db *DB) domain.OfferingRepository {
	return &offeringRepository{db: db}
}

const offeringColumns = `id, market_id, reference_item_id, name, brand, barcode, images, current_price,
	original_price, currency, is_promotion, last_price_update, created_at`

func scanOffering(row scanner) (*domain.Offering, error) {
	var (
		o             domain.Offering
		images        pq.StringArray
		currentPrice  sql.NullString
		originalPrice sql.NullString
		lastUpdate    sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.MarketID,
		&o.ReferenceItemID,
		&o.Name,
		&o.Brand,
		&o.Barcode,
		&images,
		&currentPrice,
		&originalPrice,
		&o.Currency,
		&o.IsPromotion,
		&lastUpdate,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Images = []string(images)
	if o.CurrentPrice, err = parseNullDecimal(currentPrice); err != nil {
		return nil, fmt.Errorf("failed to parse current_price: %w", err)
	}
	if o.OriginalPrice, err = parseNullDecimal(originalPrice); err != nil {
		return nil, fmt.Errorf("failed to parse original_price: %w", err)
	}
	if lastUpdate.Valid {
		ts := lastUpdate.Time.UTC()
		o.LastPriceUpdate = &ts
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

// GetByID retrieves an offering by its ID
func (r *offeringRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offering, error) {
	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE id = $1`

	o, err := scanOffering(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound(domain.KindOffering, id)
		}
		return nil, fmt.Errorf("failed to get offering: %w", err)
	}
	return o, nil
}

// ListByReferenceItemID retrieves the offerings of a reference item in creation order
func (r *offeringRepository) ListByReferenceItemID(ctx context.Context, referenceItemID uuid.UUID) ([]*domain.Offering, error) {
	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE reference_item_id = $1 ORDER BY seq`
	return r.query(ctx, query, referenceItemID)
}

// ListByMarketID retrieves the offerings of a market in creation order
func (r *offeringRepository) ListByMarketID(ctx context.Context, marketID uuid.UUID) ([]*domain.Offering, error) {
	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE market_id = $1 ORDER BY seq`
	return r.query(ctx, query, marketID)
}

func (r *offeringRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Offering, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query offerings: %w", err)
	}
	defer rows.Close()

	var offerings []*domain.Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offerings: %w", err)
	}
	return offerings, nil
}

// LockForUpdate takes a row lock held until the surrounding transaction ends
func (r *offeringRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id FROM offerings WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound(domain.KindOffering, id)
		}
		return fmt.Errorf("failed to lock offering: %w", err)
	}
	return nil
}

// Create creates a new offering. Price fields are written as given, normally empty.
func (r *offeringRepository) Create(ctx context.Context, o *domain.Offering) error {
	query := `
		INSERT INTO offerings (id, market_id, reference_item_id, name, brand, barcode, images,
			current_price, original_price, currency, is_promotion, last_price_update, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	var lastUpdate sql.NullTime
	if o.LastPriceUpdate != nil {
		lastUpdate = sql.NullTime{Time: *o.LastPriceUpdate, Valid: true}
	}

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		o.ID,
		o.MarketID,
		o.ReferenceItemID,
		o.Name,
		o.Brand,
		o.Barcode,
		textArray(o.Images),
		nullDecimalArg(o.CurrentPrice),
		nullDecimalArg(o.OriginalPrice),
		o.Currency,
		o.IsPromotion,
		lastUpdate,
		o.CreatedAt,
	)
	if err != nil {
		return insertError(err, "offering", o.ID)
	}
	return nil
}

// Delete removes an offering. Its price history is left in place.
func (r *offeringRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM offerings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete offering: %w", err)
	}
	return expectOneRow(res, domain.KindOffering, id)
}

// UpdatePriceCache overwrites the cached price fields
func (r *offeringRepository) UpdatePriceCache(ctx context.Context, id uuid.UUID, cache domain.PriceCache) error {
	query := `
		UPDATE offerings
		SET current_price = $2, original_price = $3, currency = $4, is_promotion = $5, last_price_update = $6
		WHERE id = $1
	`

	res, err := r.db.conn(ctx).ExecContext(ctx, query,
		id,
		nullDecimalArg(cache.CurrentPrice),
		nullDecimalArg(cache.OriginalPrice),
		cache.Currency,
		cache.IsPromotion,
		cache.LastPriceUpdate,
	)
	if err != nil {
		return fmt.Errorf("failed to update price cache: %w", err)
	}
	return expectOneRow(res, domain.KindOffering, id)
}
