package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Offering is a market's own listing of a reference item.
//
// The price fields are a write-through cache of the newest PriceRecord for the
// offering. They stay invalid (CurrentPrice.Valid == false) until the first
// price is recorded.
type Offering struct {
	ID              uuid.UUID
	MarketID        uuid.UUID
	ReferenceItemID uuid.UUID
	Name            string
	Brand           string
	Barcode         string
	Images          []string
	CurrentPrice    decimal.NullDecimal
	OriginalPrice   decimal.NullDecimal
	Currency        string
	IsPromotion     bool
	LastPriceUpdate *time.Time
	CreatedAt       time.Time
}

// PriceCache is the slice of an offering that mirrors its latest price record
type PriceCache struct {
	CurrentPrice    decimal.NullDecimal
	OriginalPrice   decimal.NullDecimal
	Currency        string
	IsPromotion     bool
	LastPriceUpdate time.Time
}

// Validate ensures the offering adheres to domain rules
func (o *Offering) Validate() error {
	if o.ID == uuid.Nil {
		return validationError("offering ID cannot be empty")
	}
	if o.MarketID == uuid.Nil {
		return validationError("offering must reference a market")
	}
	if o.ReferenceItemID == uuid.Nil {
		return validationError("offering must reference a reference item")
	}
	if o.Name == "" {
		return validationError("offering name cannot be empty")
	}
	return nil
}

// HasUsablePrice reports whether the cached price can be used in a basket total.
// Undefined, zero and negative prices are all unusable.
func (o *Offering) HasUsablePrice() bool {
	return o.CurrentPrice.Valid && o.CurrentPrice.Decimal.IsPositive()
}

// DiscountPercentage returns (original - current) / original * 100 when both
// prices are known and the original price is positive.
func (o *Offering) DiscountPercentage() decimal.NullDecimal {
	if !o.CurrentPrice.Valid || !o.OriginalPrice.Valid || !o.OriginalPrice.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	original := o.OriginalPrice.Decimal
	pct := original.Sub(o.CurrentPrice.Decimal).Div(original).Mul(decimal.NewFromInt(100))
	return decimal.NewNullDecimal(pct)
}

// ApplyPriceCache overwrites the cached price fields
func (o *Offering) ApplyPriceCache(c PriceCache) {
	o.CurrentPrice = c.CurrentPrice
	o.OriginalPrice = c.OriginalPrice
	o.Currency = c.Currency
	o.IsPromotion = c.IsPromotion
	ts := c.LastPriceUpdate
	o.LastPriceUpdate = &ts
}

// MatchesRecord reports whether the cache already reflects rec
func (o *Offering) MatchesRecord(rec *PriceRecord) bool {
	if !o.CurrentPrice.Valid || !o.CurrentPrice.Decimal.Equal(rec.Price) {
		return false
	}
	if o.LastPriceUpdate == nil || !o.LastPriceUpdate.Equal(rec.Timestamp) {
		return false
	}
	if o.OriginalPrice.Valid != rec.OriginalPrice.Valid {
		return false
	}
	if o.OriginalPrice.Valid && !o.OriginalPrice.Decimal.Equal(rec.OriginalPrice.Decimal) {
		return false
	}
	return o.Currency == rec.Currency && o.IsPromotion == rec.IsPromotion
}

// CacheFromRecord builds the cache projection of a price record
func CacheFromRecord(rec *PriceRecord) PriceCache {
	return PriceCache{
		CurrentPrice:    decimal.NewNullDecimal(rec.Price),
		OriginalPrice:   rec.OriginalPrice,
		Currency:        rec.Currency,
		IsPromotion:     rec.IsPromotion,
		LastPriceUpdate: rec.Timestamp,
	}
}
