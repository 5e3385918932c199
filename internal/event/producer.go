package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dpedwards/webstore/internal/domain"
	pkgkafka "github.com/dpedwards/webstore/pkg/kafka"
	"github.com/dpedwards/webstore/pkg/logger"
)

// Kafka topics produced by the webstore.
var (
	TopicOrderCreated          = pkgkafka.Topic("order", "created")
	TopicOrderClosed           = pkgkafka.Topic("order", "closed")
	TopicWarehouseStockChanged = pkgkafka.Topic("warehouse", "stock_changed")
)

// Aggregate types.
const (
	AggregateTypeOrder     = "order"
	AggregateTypeWarehouse = "warehouse"
)

// SourceWebstore identifies events originating from this service.
const SourceWebstore = "webstore"

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	OrderID   string `json:"order_id"`
	OrderDate string `json:"order_date"`
	Status    string `json:"status"`
}

// OrderClosedData is the payload for an order.closed event.
type OrderClosedData struct {
	OrderID    string                  `json:"order_id"`
	OrderDate  string                  `json:"order_date"`
	Positions  []domain.Position       `json:"positions"`
	Deductions []domain.StockDeduction `json:"deductions"`
}

// StockChangedData is the payload for a warehouse.stock_changed event.
type StockChangedData struct {
	ProductID   string `json:"product_id"`
	WarehouseID int    `json:"warehouse_id"`
	Delta       int    `json:"delta"`
	Quantity    int    `json:"quantity"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes webstore domain events to Kafka. It satisfies
// service.EventPublisher.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka is usually a
// *pkgkafka.Producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	data := OrderCreatedData{
		OrderID:   order.ID,
		OrderDate: order.Date.String(),
		Status:    string(order.Status),
	}
	return p.publish(ctx, TopicOrderCreated, order.ID, AggregateTypeOrder, data)
}

// PublishOrderClosed publishes an order.closed event carrying the applied
// deductions.
func (p *Producer) PublishOrderClosed(ctx context.Context, result *domain.CloseResult) error {
	data := OrderClosedData{
		OrderID:    result.Order.ID,
		OrderDate:  result.Order.Date.String(),
		Positions:  result.Order.Positions,
		Deductions: result.Deductions,
	}
	return p.publish(ctx, TopicOrderClosed, result.Order.ID, AggregateTypeOrder, data)
}

// PublishStockChanged publishes a warehouse.stock_changed event keyed by the
// warehouse number.
func (p *Producer) PublishStockChanged(ctx context.Context, change *domain.StockChange) error {
	data := StockChangedData{
		ProductID:   change.ProductID,
		WarehouseID: change.WarehouseID,
		Delta:       change.Delta,
		Quantity:    change.Quantity,
	}
	return p.publish(ctx, TopicWarehouseStockChanged, strconv.Itoa(change.WarehouseID), AggregateTypeWarehouse, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceWebstore, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("event_id", event.EventID),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
