package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/pkg/database"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

// WarehouseRepository implements repository.WarehouseRepository using PostgreSQL.
type WarehouseRepository struct {
	db database.DBTX
}

// NewWarehouseRepository creates a new PostgreSQL-backed warehouse repository.
func NewWarehouseRepository(db database.DBTX) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// List returns all warehouses ordered by number.
func (r *WarehouseRepository) List(ctx context.Context) ([]domain.Warehouse, error) {
	return r.list(ctx, `SELECT id, quantity, active FROM warehouses ORDER BY id`)
}

// ListActive returns active warehouses ordered by number.
func (r *WarehouseRepository) ListActive(ctx context.Context) ([]domain.Warehouse, error) {
	return r.list(ctx, `SELECT id, quantity, active FROM warehouses WHERE active ORDER BY id`)
}

func (r *WarehouseRepository) list(ctx context.Context, query string) ([]domain.Warehouse, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	defer rows.Close()

	warehouses := make([]domain.Warehouse, 0)
	for rows.Next() {
		var w domain.Warehouse
		if err := rows.Scan(&w.ID, &w.Quantity, &w.Active); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warehouses: %w", err)
	}
	return warehouses, nil
}

// GetByID retrieves a warehouse by number.
func (r *WarehouseRepository) GetByID(ctx context.Context, id int) (*domain.Warehouse, error) {
	var w domain.Warehouse
	err := r.db.QueryRow(ctx, `SELECT id, quantity, active FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.Quantity, &w.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get warehouse by id: %w", err)
	}
	return &w, nil
}

// UpdateTotal overwrites the denormalized quantity of a warehouse.
func (r *WarehouseRepository) UpdateTotal(ctx context.Context, id, total int) (err error) {
	query := `UPDATE warehouses SET quantity = $2 WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateWarehouseTotal", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, id, total)
	if err != nil {
		return fmt.Errorf("update warehouse total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
