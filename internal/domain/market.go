package domain

import (
	"github.com/google/uuid"
)

// Market represents a store whose offerings take part in basket comparisons.
// Only markets flagged Active are compared.
type Market struct {
	ID       uuid.UUID
	Name     string
	Location string
	LogoURL  string
	Active   bool
}

// Validate ensures the market adheres to domain rules
func (m *Market) Validate() error {
	if m.ID == uuid.Nil {
		return validationError("market ID cannot be empty")
	}
	if m.Name == "" {
		return validationError("market name cannot be empty")
	}
	return nil
}
