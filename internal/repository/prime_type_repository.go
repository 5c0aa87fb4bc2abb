package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/primes-api/internal/models"
)

// PrimeTypeRepository persists the prime catalog.
type PrimeTypeRepository struct {
	db *sqlx.DB
}

// NewPrimeTypeRepository constructs the repository.
func NewPrimeTypeRepository(db *sqlx.DB) *PrimeTypeRepository {
	return &PrimeTypeRepository{db: db}
}

// List returns catalog entries ordered by code.
func (r *PrimeTypeRepository) List(ctx context.Context, activeOnly bool) ([]models.PrimeType, error) {
	query := `SELECT code, label, amount, icon, active, updated_at FROM prime_types`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY code ASC`

	var items []models.PrimeType
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list prime types: %w", err)
	}
	return items, nil
}

// Upsert inserts or replaces a catalog entry keyed by code.
func (r *PrimeTypeRepository) Upsert(ctx context.Context, item *models.PrimeType) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO prime_types (code, label, amount, icon, active, updated_at)
VALUES (:code, :label, :amount, :icon, :active, :updated_at)
ON CONFLICT (code) DO UPDATE SET label = EXCLUDED.label, amount = EXCLUDED.amount, icon = EXCLUDED.icon, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("upsert prime type: %w", err)
	}
	return nil
}

// SetActive toggles a catalog entry. sql.ErrNoRows is returned when the code is unknown.
func (r *PrimeTypeRepository) SetActive(ctx context.Context, code string, active bool) error {
	const query = `UPDATE prime_types SET active = $2, updated_at = $3 WHERE code = $1`
	res, err := r.db.ExecContext(ctx, query, code, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set prime type active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set prime type active: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
