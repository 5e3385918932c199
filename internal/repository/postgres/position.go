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

// PositionRepository implements repository.PositionRepository using PostgreSQL.
type PositionRepository struct {
	db database.DBTX
}

// NewPositionRepository creates a new PostgreSQL-backed position repository.
func NewPositionRepository(db database.DBTX) *PositionRepository {
	return &PositionRepository{db: db}
}

// ListByOrder returns the positions of one order ordered by product.
func (r *PositionRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Position, error) {
	query := `
		SELECT id, order_id, product_id, quantity
		FROM order_positions
		WHERE order_id = $1
		ORDER BY product_id, id`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ID, &p.OrderID, &p.ProductID, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

// GetByID retrieves a position by its unique identifier.
func (r *PositionRepository) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT id, order_id, product_id, quantity FROM order_positions WHERE id = $1`

	var p domain.Position
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.OrderID, &p.ProductID, &p.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return &p, nil
}

// Create inserts a new position. A dangling order or product reference
// reports ErrNotFound.
func (r *PositionRepository) Create(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO order_positions (id, order_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, p.ID, p.OrderID, p.ProductID, p.Quantity); err != nil {
		if hasCode(err, pgForeignKeyViolation) {
			return fmt.Errorf("insert position: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Delete removes one position.
func (r *PositionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM order_positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteByOrder removes every position of an order.
func (r *PositionRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM order_positions WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete positions by order: %w", err)
	}
	return nil
}

// ExistsForProduct reports whether any position references the product.
func (r *PositionRepository) ExistsForProduct(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM order_positions WHERE product_id = $1)`, productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check positions for product: %w", err)
	}
	return exists, nil
}

// SumByProduct groups an order's positions by product, ascending product id.
func (r *PositionRepository) SumByProduct(ctx context.Context, orderID string) (_ []domain.RequiredQuantity, err error) {
	query := `
		SELECT product_id, SUM(quantity)
		FROM order_positions
		WHERE order_id = $1
		GROUP BY product_id
		ORDER BY product_id`

	ctx, end := database.TraceQuery(ctx, "SumPositionsByProduct", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("sum positions by product: %w", err)
	}
	defer rows.Close()

	required := make([]domain.RequiredQuantity, 0)
	for rows.Next() {
		var rq domain.RequiredQuantity
		if err := rows.Scan(&rq.ProductID, &rq.Quantity); err != nil {
			return nil, fmt.Errorf("scan required quantity: %w", err)
		}
		required = append(required, rq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate required quantities: %w", err)
	}
	return required, nil
}
