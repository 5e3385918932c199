package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpedwards/webstore/internal/domain"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

const tracerName = "github.com/dpedwards/webstore/internal/service"

// EventPublisher emits domain events after a transaction commits. Publish
// failures never undo the committed work.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderClosed(ctx context.Context, result *domain.CloseResult) error
	PublishStockChanged(ctx context.Context, change *domain.StockChange) error
}

// lookupErr turns a repository ErrNotFound into a NotFound AppError naming
// the resource and wraps anything else.
func lookupErr(err error, resource, id string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound(resource, id)
	}
	return fmt.Errorf("get %s %s: %w", resource, id, err)
}
