package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// referenceItemRepository implements domain.ReferenceItemRepository
type referenceItemRepository struct {
	db *DB
}

// NewReferenceItemRepository creates a new reference item repository
func NewReferenceItemRepository(db *DB) domain.ReferenceItemRepository {
	return &referenceItemRepository{db: db}
}

const referenceItemColumns = `id, name, category_id, category_name, description, images, active,
	available_everywhere, restricted_market_ids, linked_market_ids`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanReferenceItem(row scanner) (*domain.ReferenceItem, error) {
	var (
		item       domain.ReferenceItem
		images     pq.StringArray
		restricted pq.StringArray
		linked     pq.StringArray
	)
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.CategoryID,
		&item.CategoryName,
		&item.Description,
		&images,
		&item.Active,
		&item.AvailableEverywhere,
		&restricted,
		&linked,
	)
	if err != nil {
		return nil, err
	}

	item.Images = []string(images)
	if item.RestrictedMarketIDs, err = parseUUIDArray(restricted); err != nil {
		return nil, err
	}
	if item.LinkedMarketIDs, err = parseUUIDArray(linked); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetByID retrieves a reference item by its ID
func (r *referenceItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReferenceItem, error) {
	query := `SELECT ` + referenceItemColumns + ` FROM reference_items WHERE id = $1`

	item, err := scanReferenceItem(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound(domain.KindReferenceItem, id)
		}
		return nil, fmt.Errorf("failed to get reference item: %w", err)
	}
	return item, nil
}

// GetAllByID retrieves the items with the given IDs in the order of ids
func (r *referenceItemRepository) GetAllByID(ctx context.Context, ids []uuid.UUID) ([]*domain.ReferenceItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + referenceItemColumns + ` FROM reference_items WHERE id = ANY($1::uuid[])`

	found, err := r.query(ctx, query, uuidArray(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.ReferenceItem, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}
	items := make([]*domain.ReferenceItem, 0, len(found))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
			delete(byID, id)
		}
	}
	return items, nil
}

// List retrieves all reference items ordered by name
func (r *referenceItemRepository) List(ctx context.Context) ([]*domain.ReferenceItem, error) {
	return r.query(ctx, `SELECT `+referenceItemColumns+` FROM reference_items ORDER BY name, id`)
}

// SearchByName retrieves items whose name contains query, ignoring case
func (r *referenceItemRepository) SearchByName(ctx context.Context, query string) ([]*domain.ReferenceItem, error) {
	sqlQuery := `SELECT ` + referenceItemColumns + ` FROM reference_items
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY name, id`
	return r.query(ctx, sqlQuery, likeEscaper.Replace(query))
}

func (r *referenceItemRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.ReferenceItem, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference items: %w", err)
	}
	defer rows.Close()

	var items []*domain.ReferenceItem
	for rows.Next() {
		item, err := scanReferenceItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reference items: %w", err)
	}
	return items, nil
}

// Create creates a new reference item
func (r *referenceItemRepository) Create(ctx context.Context, item *domain.ReferenceItem) error {
	query := `
		INSERT INTO reference_items (id, name, category_id, category_name, description, images, active,
			available_everywhere, restricted_market_ids, linked_market_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid[], $10::uuid[])
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		item.ID,
		item.Name,
		item.CategoryID,
		item.CategoryName,
		item.Description,
		textArray(item.Images),
		item.Active,
		item.AvailableEverywhere,
		uuidArray(item.RestrictedMarketIDs),
		uuidArray(item.LinkedMarketIDs),
	)
	if err != nil {
		return insertError(err, "reference item", item.ID)
	}
	return nil
}

// LockForUpdate takes a row lock held until the surrounding transaction ends
func (r *referenceItemRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id FROM reference_items WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound(domain.KindReferenceItem, id)
		}
		return fmt.Errorf("failed to lock reference item: %w", err)
	}
	return nil
}

// UpdateLinkedMarkets replaces the linkage set
func (r *referenceItemRepository) UpdateLinkedMarkets(ctx context.Context, id uuid.UUID, marketIDs []uuid.UUID) error {
	res, err := r.db.conn(ctx).ExecContext(ctx,
		`UPDATE reference_items SET linked_market_ids = $2::uuid[] WHERE id = $1`, id, uuidArray(marketIDs))
	if err != nil {
		return fmt.Errorf("failed to update linked markets: %w", err)
	}
	return expectOneRow(res, domain.KindReferenceItem, id)
}
