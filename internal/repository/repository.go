package repository

import (
	"context"

	"github.com/dpedwards/webstore/internal/domain"
)

// OrderRepository persists orders. Positions are not loaded by these methods.
type OrderRepository interface {
	// List returns all orders, newest order date first.
	List(ctx context.Context) ([]domain.Order, error)

	// GetByID retrieves an order by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetForUpdate retrieves an order and locks its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)

	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// UpdateStatus sets the status of an order.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error

	// Delete removes an order. Its positions cascade.
	Delete(ctx context.Context, id string) error
}

// PositionRepository persists order positions.
type PositionRepository interface {
	// ListByOrder returns the positions of one order.
	ListByOrder(ctx context.Context, orderID string) ([]domain.Position, error)

	// GetByID retrieves a position by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// Create inserts a new position.
	Create(ctx context.Context, position *domain.Position) error

	// Delete removes one position.
	Delete(ctx context.Context, id string) error

	// DeleteByOrder removes every position of an order.
	DeleteByOrder(ctx context.Context, orderID string) error

	// ExistsForProduct reports whether any position references the product.
	ExistsForProduct(ctx context.Context, productID string) (bool, error)

	// SumByProduct groups an order's positions by product and sums their
	// quantities, ordered by ascending product id.
	SumByProduct(ctx context.Context, orderID string) ([]domain.RequiredQuantity, error)
}

// ProductRepository persists catalogue products.
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
}

// WarehouseRepository reads warehouses and writes their denormalized totals.
type WarehouseRepository interface {
	// List returns all warehouses ordered by number.
	List(ctx context.Context) ([]domain.Warehouse, error)

	// ListActive returns active warehouses ordered by number.
	ListActive(ctx context.Context) ([]domain.Warehouse, error)

	// GetByID retrieves a warehouse by number.
	GetByID(ctx context.Context, id int) (*domain.Warehouse, error)

	// UpdateTotal overwrites the denormalized quantity of a warehouse.
	UpdateTotal(ctx context.Context, id, total int) error
}

// StockRepository is the per-(product, warehouse) ledger.
type StockRepository interface {
	// Add increments the allocation, creating it when missing, and returns
	// the new quantity.
	Add(ctx context.Context, productID string, warehouseID, amount int) (int, error)

	// QuantityForUpdate returns and locks one allocation; 0 when missing.
	QuantityForUpdate(ctx context.Context, productID string, warehouseID int) (int, error)

	// Reduce decrements the allocation, flooring at zero, and returns the
	// new quantity. A missing allocation is left missing and reports 0.
	Reduce(ctx context.Context, productID string, warehouseID, amount int) (int, error)

	// SumByProduct totals a product across warehouses; 0 when none.
	SumByProduct(ctx context.Context, productID string) (int, error)

	// SumByWarehouse totals a warehouse across products; 0 when none.
	SumByWarehouse(ctx context.Context, warehouseID int) (int, error)

	// ListByProductForUpdate returns and locks a product's allocations in
	// ascending warehouse order.
	ListByProductForUpdate(ctx context.Context, productID string) ([]domain.StockAllocation, error)

	// DeleteByProduct removes every allocation of a product.
	DeleteByProduct(ctx context.Context, productID string) error
}

// Store groups the repositories over one connection or transaction.
type Store interface {
	Orders() OrderRepository
	Positions() PositionRepository
	Products() ProductRepository
	Warehouses() WarehouseRepository
	Stock() StockRepository

	// WithTx runs fn with a Store bound to a new transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a transaction-bound Store nests.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
