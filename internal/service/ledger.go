package service

import (
	"context"
	"fmt"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/repository"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

// StockLedger mutates and sums per-(product, warehouse) stock. Bind it to a
// transaction's StockRepository to make its writes part of that transaction.
type StockLedger struct {
	stock repository.StockRepository
}

// NewStockLedger creates a ledger over stock.
func NewStockLedger(stock repository.StockRepository) *StockLedger {
	return &StockLedger{stock: stock}
}

// AddQuantity increments the allocation, creating it when missing, and
// returns the new quantity.
func (l *StockLedger) AddQuantity(ctx context.Context, productID string, warehouseID, amount int) (int, error) {
	if amount <= 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("quantity must be greater than 0, got %d", amount))
	}
	qty, err := l.stock.Add(ctx, productID, warehouseID, amount)
	if err != nil {
		return 0, fmt.Errorf("add quantity: %w", err)
	}
	return qty, nil
}

// ReduceQuantity sets the allocation to max(0, quantity-amount) and returns
// the result. A missing allocation is a no-op that reports 0.
func (l *StockLedger) ReduceQuantity(ctx context.Context, productID string, warehouseID, amount int) (int, error) {
	if amount <= 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("quantity must be greater than 0, got %d", amount))
	}
	qty, err := l.stock.Reduce(ctx, productID, warehouseID, amount)
	if err != nil {
		return 0, fmt.Errorf("reduce quantity: %w", err)
	}
	return qty, nil
}

// ReduceQuantityDelta locks the allocation, reduces it like ReduceQuantity
// and also returns the signed amount actually removed. A clamped reduce
// reports only what was there; a missing allocation reports 0.
func (l *StockLedger) ReduceQuantityDelta(ctx context.Context, productID string, warehouseID, amount int) (delta, qty int, err error) {
	if amount <= 0 {
		return 0, 0, apperrors.InvalidInput(fmt.Sprintf("quantity must be greater than 0, got %d", amount))
	}
	before, err := l.stock.QuantityForUpdate(ctx, productID, warehouseID)
	if err != nil {
		return 0, 0, fmt.Errorf("lock quantity: %w", err)
	}
	qty, err = l.ReduceQuantity(ctx, productID, warehouseID, amount)
	if err != nil {
		return 0, 0, err
	}
	return qty - before, qty, nil
}

// SumByProduct returns a product's stock across all warehouses.
func (l *StockLedger) SumByProduct(ctx context.Context, productID string) (int, error) {
	total, err := l.stock.SumByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("sum by product: %w", err)
	}
	return total, nil
}

// SumByWarehouse returns a warehouse's stock across all products.
func (l *StockLedger) SumByWarehouse(ctx context.Context, warehouseID int) (int, error) {
	total, err := l.stock.SumByWarehouse(ctx, warehouseID)
	if err != nil {
		return 0, fmt.Errorf("sum by warehouse: %w", err)
	}
	return total, nil
}

// DeductAcrossWarehouses removes quantity of a product by draining its
// allocations in ascending warehouse order. The rows stay locked until the
// surrounding transaction ends. If the allocations cannot cover quantity it
// fails with InsufficientStock and the caller must roll back.
func (l *StockLedger) DeductAcrossWarehouses(ctx context.Context, productID string, quantity int) ([]domain.StockDeduction, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be greater than 0, got %d", quantity))
	}

	rows, err := l.stock.ListByProductForUpdate(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lock allocations for %s: %w", productID, err)
	}

	deductions := make([]domain.StockDeduction, 0, len(rows))
	remaining := quantity
	for _, row := range rows {
		if remaining == 0 {
			break
		}
		take := min(remaining, row.Quantity)
		if take == 0 {
			continue
		}
		if _, err := l.ReduceQuantity(ctx, productID, row.WarehouseID, take); err != nil {
			return nil, err
		}
		deductions = append(deductions, domain.StockDeduction{
			ProductID:   productID,
			WarehouseID: row.WarehouseID,
			Quantity:    take,
		})
		remaining -= take
	}

	if remaining > 0 {
		return nil, apperrors.InsufficientStock(productID, quantity, quantity-remaining)
	}
	return deductions, nil
}
