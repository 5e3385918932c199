package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dpedwards/webstore/internal/domain"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
	pkgkafka "github.com/dpedwards/webstore/pkg/kafka"
)

// TopicWarehouseStockReceived carries inbound deliveries to apply to the ledger.
var TopicWarehouseStockReceived = pkgkafka.Topic("warehouse", "stock_received")

// StockService defines what the consumer needs from the warehouse service.
type StockService interface {
	ReceiveStock(ctx context.Context, in domain.StockReceived) error
}

// Consumer processes incoming Kafka events for the webstore.
type Consumer struct {
	service StockService
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer.
func NewConsumer(service StockService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleStockReceived books a warehouse.stock_received delivery. Transient
// failures are retried by the consumer. A malformed payload, invalid quantity
// or unknown product or warehouse is dead-lettered without retrying.
func (c *Consumer) HandleStockReceived(ctx context.Context, event *pkgkafka.Event) error {
	var data domain.StockReceived
	if err := event.UnmarshalData(&data); err != nil {
		return pkgkafka.Permanent(err)
	}

	c.logger.InfoContext(ctx, "processing warehouse.stock_received event",
		slog.String("event_id", event.EventID),
		slog.String("product_id", data.ProductID),
		slog.Int("warehouse_id", data.WarehouseID),
		slog.Int("quantity", data.Quantity),
	)

	if err := c.service.ReceiveStock(ctx, data); err != nil {
		err = fmt.Errorf("receive stock for product %s in warehouse %d: %w", data.ProductID, data.WarehouseID, err)
		if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrNotFound) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}
