package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MissingReason explains why a basket item did not count towards a market total
type MissingReason string

const (
	MissingReasonNone       MissingReason = ""
	MissingReasonNotCarried MissingReason = "NOT_CARRIED" // no offering at this market
	MissingReasonNoPrice    MissingReason = "NO_PRICE"    // offering exists, price undefined or not positive
)

// BasketItem describes one active reference item that took part in a comparison
type BasketItem struct {
	ReferenceItemID uuid.UUID
	Name            string
	Category        string
}

// ItemPrice is one line of a market's per-item breakdown
type ItemPrice struct {
	ReferenceItemID   uuid.UUID
	ReferenceItemName string
	OfferingID        *uuid.UUID // nil when the market does not carry the item
	OfferingName      string
	Brand             string
	Price             decimal.Decimal
	Currency          string
	IsPromotion       bool
	Available         bool
	MissingReason     MissingReason
}

// MarketComparison is the basket total at a single market
type MarketComparison struct {
	MarketID           uuid.UUID
	MarketName         string
	MarketLogoURL      string
	TotalPrice         decimal.Decimal
	Currency           string
	AllItemsAvailable  bool
	ItemPrices         []ItemPrice
	MissingItems       []string
	AvailableItemCount int
	TotalItemCount     int
}

// ComparisonResult is the ranked answer to a basket comparison.
// The summary fields only consider markets where every item is available.
type ComparisonResult struct {
	BasketItems        []BasketItem
	MarketComparisons  []MarketComparison
	CheapestMarketID   *uuid.UUID
	CheapestMarketName string
	LowestTotal        decimal.Decimal
	HighestTotal       decimal.Decimal
	PotentialSavings   decimal.Decimal
}
