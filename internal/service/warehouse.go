package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/repository"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

// WarehouseService implements warehouse reads and stock mutations.
type WarehouseService struct {
	store  repository.Store
	events EventPublisher
	logger *slog.Logger
}

// NewWarehouseService creates a new warehouse service. events may be nil.
func NewWarehouseService(store repository.Store, events EventPublisher, logger *slog.Logger) *WarehouseService {
	return &WarehouseService{store: store, events: events, logger: logger}
}

// ListWarehouses refreshes the totals and returns every warehouse.
func (s *WarehouseService) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	var warehouses []domain.Warehouse
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := NewWarehouseAggregator(tx.Warehouses(), tx.Stock()).RecomputeActiveWarehouseTotals(ctx); err != nil {
			return err
		}
		var err error
		if warehouses, err = tx.Warehouses().List(ctx); err != nil {
			return fmt.Errorf("list warehouses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warehouses, nil
}

// GetWarehouse refreshes the totals and returns one warehouse.
func (s *WarehouseService) GetWarehouse(ctx context.Context, id int) (*domain.Warehouse, error) {
	var warehouse *domain.Warehouse
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := NewWarehouseAggregator(tx.Warehouses(), tx.Stock()).RecomputeActiveWarehouseTotals(ctx); err != nil {
			return err
		}
		var err error
		if warehouse, err = tx.Warehouses().GetByID(ctx, id); err != nil {
			return lookupErr(err, "warehouse", strconv.Itoa(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warehouse, nil
}

type stockOp string

const (
	stockOpAdd     stockOp = "add"
	stockOpReduce  stockOp = "reduce"
	stockOpReceive stockOp = "receive"
)

// AddProductQuantity adds quantity of a product to a warehouse.
func (s *WarehouseService) AddProductQuantity(ctx context.Context, productID string, warehouseID, quantity int) (*domain.StockChange, error) {
	return s.mutate(ctx, stockOpAdd, productID, warehouseID, quantity)
}

// ReduceProductQuantity removes up to quantity of a product from a
// warehouse, flooring the allocation at zero.
func (s *WarehouseService) ReduceProductQuantity(ctx context.Context, productID string, warehouseID, quantity int) (*domain.StockChange, error) {
	return s.mutate(ctx, stockOpReduce, productID, warehouseID, quantity)
}

// ReceiveStock books an inbound delivery. It behaves like AddProductQuantity.
func (s *WarehouseService) ReceiveStock(ctx context.Context, in domain.StockReceived) error {
	if err := in.Validate(); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	_, err := s.mutate(ctx, stockOpReceive, in.ProductID, in.WarehouseID, in.Quantity)
	return err
}

func (s *WarehouseService) mutate(ctx context.Context, op stockOp, productID string, warehouseID, quantity int) (*domain.StockChange, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be greater than 0, got %d", quantity))
	}

	change := &domain.StockChange{ProductID: productID, WarehouseID: warehouseID}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Warehouses().GetByID(ctx, warehouseID); err != nil {
			return lookupErr(err, "warehouse", strconv.Itoa(warehouseID))
		}
		if _, err := tx.Products().GetByID(ctx, productID); err != nil {
			return lookupErr(err, "product", productID)
		}

		ledger := NewStockLedger(tx.Stock())
		var err error
		if op == stockOpReduce {
			change.Delta, change.Quantity, err = ledger.ReduceQuantityDelta(ctx, productID, warehouseID, quantity)
		} else {
			change.Quantity, err = ledger.AddQuantity(ctx, productID, warehouseID, quantity)
			change.Delta = quantity
		}
		if err != nil {
			return err
		}

		return NewWarehouseAggregator(tx.Warehouses(), tx.Stock()).RecomputeActiveWarehouseTotals(ctx)
	})
	if err != nil {
		return nil, err
	}
	stockMutationsTotal.WithLabelValues(string(op)).Inc()

	if s.events != nil {
		if err := s.events.PublishStockChanged(ctx, change); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish warehouse.stock_changed event",
				slog.String("product_id", productID),
				slog.Int("warehouse_id", warehouseID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "stock changed",
		slog.String("operation", string(op)),
		slog.String("product_id", productID),
		slog.Int("warehouse_id", warehouseID),
		slog.Int("delta", change.Delta),
		slog.Int("quantity", change.Quantity),
	)
	return change, nil
}

// TotalProductQuantity returns a product's stock across all warehouses.
func (s *WarehouseService) TotalProductQuantity(ctx context.Context, productID string) (*domain.ProductTotal, error) {
	if _, err := s.store.Products().GetByID(ctx, productID); err != nil {
		return nil, lookupErr(err, "product", productID)
	}
	total, err := NewStockLedger(s.store.Stock()).SumByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &domain.ProductTotal{ProductID: productID, TotalQuantity: total}, nil
}
