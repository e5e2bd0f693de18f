package domain

import (
	"context"

	"github.com/google/uuid"
)

// Every repository method is atomic on its own. Multi-step mutations that must
// be observed as one unit go through UnitOfWork.

// MarketRepository defines the interface for market persistence operations
type MarketRepository interface {
	// GetByID retrieves a market by its ID, failing with ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*Market, error)

	// List retrieves all markets ordered by name
	List(ctx context.Context) ([]*Market, error)

	// ListActive retrieves the markets flagged active, ordered by name
	ListActive(ctx context.Context) ([]*Market, error)

	// Create creates a new market
	Create(ctx context.Context, market *Market) error

	// SetActive toggles whether a market takes part in comparisons
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// ReferenceItemRepository defines the interface for reference item persistence operations
type ReferenceItemRepository interface {
	// GetByID retrieves a reference item by its ID, failing with ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*ReferenceItem, error)

	// GetAllByID retrieves the reference items with the given IDs.
	// Unknown IDs are skipped; the result follows the order of ids.
	GetAllByID(ctx context.Context, ids []uuid.UUID) ([]*ReferenceItem, error)

	// List retrieves all reference items ordered by name
	List(ctx context.Context) ([]*ReferenceItem, error)

	// SearchByName retrieves reference items whose name contains query, ignoring case
	SearchByName(ctx context.Context, query string) ([]*ReferenceItem, error)

	// Create creates a new reference item
	Create(ctx context.Context, item *ReferenceItem) error

	// LockForUpdate serializes writers of the item's linkage set until the
	// surrounding unit of work ends. Fails with ErrNotFound.
	LockForUpdate(ctx context.Context, id uuid.UUID) error

	// UpdateLinkedMarkets replaces the item's linkage set. Fails with ErrNotFound.
	UpdateLinkedMarkets(ctx context.Context, id uuid.UUID, marketIDs []uuid.UUID) error
}

// OfferingRepository defines the interface for offering persistence operations
type OfferingRepository interface {
	// GetByID retrieves an offering by its ID, failing with ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*Offering, error)

	// ListByReferenceItemID retrieves the offerings of a reference item in creation order
	ListByReferenceItemID(ctx context.Context, referenceItemID uuid.UUID) ([]*Offering, error)

	// ListByMarketID retrieves the offerings of a market in creation order
	ListByMarketID(ctx context.Context, marketID uuid.UUID) ([]*Offering, error)

	// LockForUpdate serializes writers of the offering's price cache until the
	// surrounding unit of work ends. Fails with ErrNotFound.
	LockForUpdate(ctx context.Context, id uuid.UUID) error

	// Create creates a new offering
	Create(ctx context.Context, offering *Offering) error

	// Delete removes an offering, failing with ErrNotFound
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdatePriceCache overwrites the cached price fields, failing with ErrNotFound
	UpdatePriceCache(ctx context.Context, id uuid.UUID, cache PriceCache) error
}

// PriceRecordRepository defines the interface for the append-only price history
type PriceRecordRepository interface {
	// Append stores a new price record
	Append(ctx context.Context, record *PriceRecord) error

	// ListByOfferingID retrieves an offering's history, newest first.
	// Records with equal timestamps come back in reverse append order.
	ListByOfferingID(ctx context.Context, offeringID uuid.UUID) ([]*PriceRecord, error)

	// GetLatest retrieves the newest record of an offering, failing with ErrNotFound
	GetLatest(ctx context.Context, offeringID uuid.UUID) (*PriceRecord, error)
}

// UnitOfWork runs a function as one atomic unit against the record store.
// The context handed to fn must be used for every repository call inside it;
// nested Do calls with that context join the outer unit.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
