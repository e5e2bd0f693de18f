package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// priceRecordRepository implements domain.PriceRecordRepository
type priceRecordRepository struct {
	db *DB
}

// NewPriceRecordRepository creates a new price record repository
func NewPriceRecordRepository(db *DB) domain.PriceRecordRepository {
	return &priceRecordRepository{db: db}
}

const priceRecordColumns = `id, offering_id, price, original_price, currency, is_promotion, recorded_at`

func scanPriceRecord(row scanner) (*domain.PriceRecord, error) {
	var (
		rec           domain.PriceRecord
		priceStr      string
		originalPrice sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.OfferingID,
		&priceStr,
		&originalPrice,
		&rec.Currency,
		&rec.IsPromotion,
		&rec.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	// Parse price (NUMERIC)
	if rec.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	if rec.OriginalPrice, err = parseNullDecimal(originalPrice); err != nil {
		return nil, fmt.Errorf("failed to parse original_price: %w", err)
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

// Append stores a new price record
func (r *priceRecordRepository) Append(ctx context.Context, rec *domain.PriceRecord) error {
	query := `
		INSERT INTO price_records (id, offering_id, price, original_price, currency, is_promotion, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.OfferingID,
		rec.Price.String(),
		nullDecimalArg(rec.OriginalPrice),
		rec.Currency,
		rec.IsPromotion,
		rec.Timestamp,
	)
	if err != nil {
		return insertError(err, "price record", rec.ID)
	}
	return nil
}

// ListByOfferingID retrieves an offering's history, newest first
func (r *priceRecordRepository) ListByOfferingID(ctx context.Context, offeringID uuid.UUID) ([]*domain.PriceRecord, error) {
	query := `
		SELECT ` + priceRecordColumns + `
		FROM price_records
		WHERE offering_id = $1
		ORDER BY recorded_at DESC, seq DESC
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price records: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.PriceRecord, 0)
	for rows.Next() {
		rec, err := scanPriceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price records: %w", err)
	}
	return records, nil
}

// GetLatest retrieves the most recent price record of an offering
func (r *priceRecordRepository) GetLatest(ctx context.Context, offeringID uuid.UUID) (*domain.PriceRecord, error) {
	query := `
		SELECT ` + priceRecordColumns + `
		FROM price_records
		WHERE offering_id = $1
		ORDER BY recorded_at DESC, seq DESC
		LIMIT 1
	`

	rec, err := scanPriceRecord(r.db.conn(ctx).QueryRowContext(ctx, query, offeringID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no price recorded for offering %s", domain.ErrNotFound, offeringID)
		}
		return nil, fmt.Errorf("failed to get latest price record: %w", err)
	}
	return rec, nil
}
