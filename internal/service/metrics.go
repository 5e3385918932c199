package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

// Close attempt results.
const (
	closeResultClosed            = "closed"
	closeResultNotFound          = "not_found"
	closeResultAlreadyClosed     = "already_closed"
	closeResultInsufficientStock = "insufficient_stock"
	closeResultError             = "error"
)

var (
	orderCloseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webstore_order_close_total",
			Help: "Order close attempts by result",
		},
		[]string{"result"},
	)

	orderCloseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webstore_order_close_duration_seconds",
			Help:    "Duration of the order close transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	stockMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webstore_stock_mutations_total",
			Help: "Committed ledger mutations by operation",
		},
		[]string{"operation"},
	)
)

func closeResult(err error) string {
	switch {
	case err == nil:
		return closeResultClosed
	case errors.Is(err, apperrors.ErrNotFound):
		return closeResultNotFound
	case errors.Is(err, apperrors.ErrOrderClosed):
		return closeResultAlreadyClosed
	case errors.Is(err, apperrors.ErrInsufficientStock):
		return closeResultInsufficientStock
	default:
		return closeResultError
	}
}
