package service

import (
	"context"
	"fmt"

	"github.com/dpedwards/webstore/internal/repository"
)

// WarehouseAggregator keeps the denormalized warehouse totals in line with
// the ledger. It is the only writer of those totals.
type WarehouseAggregator struct {
	warehouses repository.WarehouseRepository
	ledger     *StockLedger
}

// NewWarehouseAggregator creates an aggregator over the given repositories.
func NewWarehouseAggregator(warehouses repository.WarehouseRepository, stock repository.StockRepository) *WarehouseAggregator {
	return &WarehouseAggregator{warehouses: warehouses, ledger: NewStockLedger(stock)}
}

// RecomputeActiveWarehouseTotals sets every active warehouse's total to the
// sum of its allocations. Inactive warehouses are left untouched.
func (a *WarehouseAggregator) RecomputeActiveWarehouseTotals(ctx context.Context) error {
	active, err := a.warehouses.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active warehouses: %w", err)
	}

	for _, w := range active {
		total, err := a.ledger.SumByWarehouse(ctx, w.ID)
		if err != nil {
			return err
		}
		if total == w.Quantity {
			continue
		}
		if err := a.warehouses.UpdateTotal(ctx, w.ID, total); err != nil {
			return fmt.Errorf("update total of warehouse %d: %w", w.ID, err)
		}
	}
	return nil
}
