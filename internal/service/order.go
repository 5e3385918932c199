package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/repository"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
	"github.com/dpedwards/webstore/pkg/tracing"
)

// OrderService implements the business logic for orders, including closing
// them against the stock ledger.
type OrderService struct {
	store  repository.Store
	events EventPublisher
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewOrderService creates a new order service. events may be nil, in which
// case no domain events are published.
func NewOrderService(store repository.Store, events EventPublisher, logger *slog.Logger) *OrderService {
	return &OrderService{
		store:  store,
		events: events,
		logger: logger,
		tracer: tracing.Tracer(tracerName),
		now:    time.Now,
	}
}

// ListOrders returns all orders, newest first, without positions.
func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.store.Orders().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns an order with its positions.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "order", id)
	}
	positions, err := s.store.Positions().ListByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list positions of order %s: %w", id, err)
	}
	order.Positions = positions
	return order, nil
}

// CreateOrder creates an open order dated date, or today when date is nil.
func (s *OrderService) CreateOrder(ctx context.Context, date *domain.Date) (*domain.Order, error) {
	now := s.now().UTC()
	order := &domain.Order{
		ID:        uuid.New().String(),
		Date:      domain.NewDate(now),
		Status:    domain.OrderStatusOpen,
		Positions: []domain.Position{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if date != nil && !date.IsZero() {
		order.Date = domain.NewDate(date.Time)
	}

	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.created event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_date", order.Date.String()),
	)
	return order, nil
}

// lockOpenOrder locks an order inside tx and fails unless it is open.
func lockOpenOrder(ctx context.Context, tx repository.Store, orderID string) (*domain.Order, error) {
	order, err := tx.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, lookupErr(err, "order", orderID)
	}
	if !order.CanModify() {
		return nil, apperrors.OrderClosed(orderID)
	}
	return order, nil
}

// AddPosition adds a product line to an open order. A quantity above the
// product's current stock is accepted with a warning; stock is only enforced
// when the order is closed.
func (s *OrderService) AddPosition(ctx context.Context, orderID, productID string, quantity int) (*domain.Position, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be greater than 0, got %d", quantity))
	}

	position := &domain.Position{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
	}

	var available int
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := lockOpenOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if _, err := tx.Products().GetByID(ctx, productID); err != nil {
			return lookupErr(err, "product", productID)
		}

		var err error
		if available, err = NewStockLedger(tx.Stock()).SumByProduct(ctx, productID); err != nil {
			return err
		}

		if err := tx.Positions().Create(ctx, position); err != nil {
			return fmt.Errorf("create position: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if quantity > available {
		s.logger.WarnContext(ctx, "position exceeds current stock",
			slog.String("order_id", orderID),
			slog.String("product_id", productID),
			slog.Int("quantity", quantity),
			slog.Int("available", available),
		)
	}

	s.logger.InfoContext(ctx, "position added",
		slog.String("order_id", orderID),
		slog.String("position_id", position.ID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return position, nil
}

// DeletePosition removes a position from an open order.
func (s *OrderService) DeletePosition(ctx context.Context, orderID, positionID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := lockOpenOrder(ctx, tx, orderID); err != nil {
			return err
		}

		position, err := tx.Positions().GetByID(ctx, positionID)
		if err != nil {
			return lookupErr(err, "position", positionID)
		}
		if position.OrderID != orderID {
			return apperrors.NotFound("position", positionID)
		}

		if err := tx.Positions().Delete(ctx, positionID); err != nil {
			return lookupErr(err, "position", positionID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "position deleted",
		slog.String("order_id", orderID),
		slog.String("position_id", positionID),
	)
	return nil
}

// DeleteOrder removes an open order and its positions.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := lockOpenOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if err := tx.Positions().DeleteByOrder(ctx, orderID); err != nil {
			return fmt.Errorf("delete positions: %w", err)
		}
		if err := tx.Orders().Delete(ctx, orderID); err != nil {
			return lookupErr(err, "order", orderID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", orderID))
	return nil
}

// CloseOrder verifies stock for every product the order needs, deducts it
// across warehouses, refreshes the warehouse totals and marks the order
// closed, all in one transaction. Either every step lands or none does.
func (s *OrderService) CloseOrder(ctx context.Context, orderID string) (*domain.CloseResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CloseOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	start := time.Now()
	var result *domain.CloseResult
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		order, err := lockOpenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		required, err := NewAvailabilityChecker(tx.Positions(), tx.Stock()).VerifyAvailability(ctx, orderID)
		if err != nil {
			return err
		}

		ledger := NewStockLedger(tx.Stock())
		deductions := make([]domain.StockDeduction, 0, len(required))
		for _, rq := range required {
			d, err := ledger.DeductAcrossWarehouses(ctx, rq.ProductID, rq.Quantity)
			if err != nil {
				return err
			}
			deductions = append(deductions, d...)
		}

		if err := NewWarehouseAggregator(tx.Warehouses(), tx.Stock()).RecomputeActiveWarehouseTotals(ctx); err != nil {
			return err
		}

		if err := tx.Orders().UpdateStatus(ctx, orderID, domain.OrderStatusClosed); err != nil {
			return fmt.Errorf("mark order %s closed: %w", orderID, err)
		}

		positions, err := tx.Positions().ListByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list positions of order %s: %w", orderID, err)
		}
		order.Status = domain.OrderStatusClosed
		order.UpdatedAt = s.now().UTC()
		order.Positions = positions
		result = &domain.CloseResult{Order: order, Deductions: deductions}
		return nil
	})

	orderCloseDuration.Observe(time.Since(start).Seconds())
	outcome := closeResult(err)
	orderCloseTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("order.close_result", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			s.logger.WarnContext(ctx, "order close rejected",
				slog.String("order_id", orderID),
				slog.String("reason", appErr.Code),
				slog.String("detail", appErr.Message),
			)
			return nil, err
		}
		s.logger.ErrorContext(ctx, "order close failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("close order %s: %w", orderID, err)
	}

	if s.events != nil {
		if err := s.events.PublishOrderClosed(ctx, result); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.closed event",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order closed",
		slog.String("order_id", orderID),
		slog.Int("deductions", len(result.Deductions)),
	)
	return result, nil
}
