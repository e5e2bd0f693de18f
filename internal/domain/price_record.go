package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used whenever a price is recorded without a currency
const DefaultCurrency = "JOD"

// PriceRecord is one immutable entry of an offering's price history.
// Records are only ever appended; history reads return them newest first.
type PriceRecord struct {
	ID            uuid.UUID
	OfferingID    uuid.UUID
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal // price before discount, if any
	Currency      string
	IsPromotion   bool
	Timestamp     time.Time
}

// Validate ensures the price record adheres to domain rules
func (p *PriceRecord) Validate() error {
	if p.OfferingID == uuid.Nil {
		return validationError("price record must reference an offering")
	}
	if p.Price.IsNegative() {
		return validationError("price cannot be negative")
	}
	if p.OriginalPrice.Valid && p.OriginalPrice.Decimal.IsNegative() {
		return validationError("original price cannot be negative")
	}
	if p.Currency == "" {
		return validationError("currency cannot be empty")
	}
	return nil
}
