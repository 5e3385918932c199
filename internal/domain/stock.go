package domain

import "fmt"

// StockAllocation is the quantity of one product held in one warehouse.
type StockAllocation struct {
	ProductID   string `json:"product_id"`
	WarehouseID int    `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
}

// RequiredQuantity is the summed quantity an order needs of one product.
type RequiredQuantity struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// StockDeduction is one ledger reduction applied while closing an order.
type StockDeduction struct {
	ProductID   string `json:"product_id"`
	WarehouseID int    `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
}

// ProductTotal is a product's stock summed across warehouses.
type ProductTotal struct {
	ProductID     string `json:"product_id"`
	TotalQuantity int    `json:"total_quantity"`
}

// StockChange describes a ledger mutation on one (product, warehouse) pair.
// Delta is the amount actually applied, so a clamped reduce reports less
// than was requested.
type StockChange struct {
	ProductID   string `json:"product_id"`
	WarehouseID int    `json:"warehouse_id"`
	Delta       int    `json:"delta"`
	Quantity    int    `json:"quantity"`
}

// StockReceived is an inbound delivery of stock into a warehouse.
type StockReceived struct {
	ProductID   string `json:"product_id"`
	WarehouseID int    `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
}

// Validate checks that the delivery names a product and warehouse and has a
// positive quantity.
func (s *StockReceived) Validate() error {
	if s.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if s.WarehouseID < 1 {
		return fmt.Errorf("warehouse_id must be >= 1, got %d", s.WarehouseID)
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than 0, got %d", s.Quantity)
	}
	return nil
}
