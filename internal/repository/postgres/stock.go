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

// StockRepository implements repository.StockRepository using PostgreSQL.
type StockRepository struct {
	db database.DBTX
}

// NewStockRepository creates a new PostgreSQL-backed stock ledger.
func NewStockRepository(db database.DBTX) *StockRepository {
	return &StockRepository{db: db}
}

// Add increments the allocation in one upsert statement and returns the new
// quantity. An unknown product or warehouse reports ErrNotFound.
func (r *StockRepository) Add(ctx context.Context, productID string, warehouseID, amount int) (qty int, err error) {
	query := `
		INSERT INTO product_warehouse_stock (product_id, warehouse_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, warehouse_id) DO UPDATE SET
			quantity = product_warehouse_stock.quantity + EXCLUDED.quantity
		RETURNING quantity`

	ctx, end := database.TraceQuery(ctx, "AddStock", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, productID, warehouseID, amount).Scan(&qty); err != nil {
		if hasCode(err, pgForeignKeyViolation) {
			return 0, fmt.Errorf("add stock: %w", apperrors.ErrNotFound)
		}
		return 0, fmt.Errorf("add stock: %w", err)
	}
	return qty, nil
}

// QuantityForUpdate locks one allocation row. A missing row reports 0.
func (r *StockRepository) QuantityForUpdate(ctx context.Context, productID string, warehouseID int) (qty int, err error) {
	query := `
		SELECT quantity
		FROM product_warehouse_stock
		WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockStock", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, productID, warehouseID).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("lock stock: %w", err)
	}
	return qty, nil
}

// Reduce decrements the allocation, flooring at zero. A missing allocation
// is left missing and reports 0.
func (r *StockRepository) Reduce(ctx context.Context, productID string, warehouseID, amount int) (qty int, err error) {
	query := `
		UPDATE product_warehouse_stock
		SET quantity = GREATEST(quantity - $3, 0)
		WHERE product_id = $1 AND warehouse_id = $2
		RETURNING quantity`

	ctx, end := database.TraceQuery(ctx, "ReduceStock", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, productID, warehouseID, amount).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reduce stock: %w", err)
	}
	return qty, nil
}

// SumByProduct totals a product across warehouses.
func (r *StockRepository) SumByProduct(ctx context.Context, productID string) (total int, err error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM product_warehouse_stock WHERE product_id = $1`

	ctx, end := database.TraceQuery(ctx, "SumStockByProduct", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, productID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum stock by product: %w", err)
	}
	return total, nil
}

// SumByWarehouse totals a warehouse across products.
func (r *StockRepository) SumByWarehouse(ctx context.Context, warehouseID int) (total int, err error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM product_warehouse_stock WHERE warehouse_id = $1`

	ctx, end := database.TraceQuery(ctx, "SumStockByWarehouse", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, warehouseID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum stock by warehouse: %w", err)
	}
	return total, nil
}

// ListByProductForUpdate locks a product's allocations in ascending
// warehouse order so concurrent closers acquire them in the same order.
func (r *StockRepository) ListByProductForUpdate(ctx context.Context, productID string) (_ []domain.StockAllocation, err error) {
	query := `
		SELECT product_id, warehouse_id, quantity
		FROM product_warehouse_stock
		WHERE product_id = $1
		ORDER BY warehouse_id
		FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockStockByProduct", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("lock stock by product: %w", err)
	}
	defer rows.Close()

	allocations := make([]domain.StockAllocation, 0)
	for rows.Next() {
		var a domain.StockAllocation
		if err := rows.Scan(&a.ProductID, &a.WarehouseID, &a.Quantity); err != nil {
			return nil, fmt.Errorf("scan stock allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock allocations: %w", err)
	}
	return allocations, nil
}

// DeleteByProduct removes every allocation of a product.
func (r *StockRepository) DeleteByProduct(ctx context.Context, productID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM product_warehouse_stock WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("delete stock by product: %w", err)
	}
	return nil
}
