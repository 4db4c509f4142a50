package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rental-application-engine/internal/models"
)

// PropertyRepository reads listings.
type PropertyRepository struct {
	db *DB
}

// NewPropertyRepository creates a new property repository.
func NewPropertyRepository(db *DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// GetSummary returns the title, price and location of a property.
func (r *PropertyRepository) GetSummary(ctx context.Context, id string) (*models.PropertySummary, error) {
	query := `
		SELECT id::text, title, price, COALESCE(location, ''), COALESCE(type, '')
		FROM properties
		WHERE id = $1`

	var p models.PropertySummary
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Title, &p.Price, &p.Location, &p.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &p, nil
}
