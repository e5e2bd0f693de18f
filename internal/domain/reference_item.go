package domain

import (
	"github.com/google/uuid"
)

// ReferenceItem is the canonical, market-independent product (e.g. "1L milk").
//
// LinkedMarketIDs is a denormalized cache of the markets that carry at least one
// offering of this item. It is owned by the linkage index and must never be set
// from client input; the authoritative fact lives in the offerings themselves.
type ReferenceItem struct {
	ID                  uuid.UUID
	Name                string
	CategoryID          string
	CategoryName        string // snapshot of the category name at write time
	Description         string
	Images              []string
	Active              bool
	AvailableEverywhere bool
	RestrictedMarketIDs []uuid.UUID // only meaningful when AvailableEverywhere is false
	LinkedMarketIDs     []uuid.UUID
}

// Validate ensures the reference item adheres to domain rules
func (r *ReferenceItem) Validate() error {
	if r.ID == uuid.Nil {
		return validationError("reference item ID cannot be empty")
	}
	if r.Name == "" {
		return validationError("reference item name cannot be empty")
	}
	return nil
}

// IsLinkedTo reports whether marketID is present in the linkage cache
func (r *ReferenceItem) IsLinkedTo(marketID uuid.UUID) bool {
	for _, id := range r.LinkedMarketIDs {
		if id == marketID {
			return true
		}
	}
	return false
}
