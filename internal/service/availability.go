package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/repository"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

// AvailabilityChecker compares what an order needs with what the ledger holds.
type AvailabilityChecker struct {
	positions repository.PositionRepository
	ledger    *StockLedger
}

// NewAvailabilityChecker creates a checker over the given repositories.
func NewAvailabilityChecker(positions repository.PositionRepository, stock repository.StockRepository) *AvailabilityChecker {
	return &AvailabilityChecker{positions: positions, ledger: NewStockLedger(stock)}
}

// ComputeRequiredDeductions sums an order's positions per product, in
// ascending product id order. An order without positions needs nothing.
func (c *AvailabilityChecker) ComputeRequiredDeductions(ctx context.Context, orderID string) ([]domain.RequiredQuantity, error) {
	required, err := c.positions.SumByProduct(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("compute required deductions: %w", err)
	}
	slices.SortFunc(required, func(a, b domain.RequiredQuantity) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return required, nil
}

// VerifyAvailability fails with InsufficientStock for the first product, in
// ascending id order, whose total stock is below what the order needs.
func (c *AvailabilityChecker) VerifyAvailability(ctx context.Context, orderID string) ([]domain.RequiredQuantity, error) {
	required, err := c.ComputeRequiredDeductions(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for _, rq := range required {
		available, err := c.ledger.SumByProduct(ctx, rq.ProductID)
		if err != nil {
			return nil, err
		}
		if available < rq.Quantity {
			return nil, apperrors.InsufficientStock(rq.ProductID, rq.Quantity, available)
		}
	}
	return required, nil
}
