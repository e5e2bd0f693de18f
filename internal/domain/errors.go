package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors shared by the use cases and the record stores.
// Callers test with errors.Is; messages carry the details.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// EntityKind names a record kind in error messages
type EntityKind string

const (
	KindMarket        EntityKind = "market"
	KindReferenceItem EntityKind = "reference item"
	KindOffering      EntityKind = "offering"
)

// NotFoundError reports a missing record of a given kind.
// It matches ErrNotFound under errors.Is.
type NotFoundError struct {
	Kind EntityKind
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is reports whether target is ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFound builds a NotFoundError for the given kind and id
func NewNotFound(kind EntityKind, id uuid.UUID) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err (or anything it wraps) is a not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
