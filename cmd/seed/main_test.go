package main

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/dpedwards/webstore/internal/handler/http"
	"github.com/dpedwards/webstore/internal/repository/memstore"
	"github.com/dpedwards/webstore/internal/service"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
	"github.com/dpedwards/webstore/pkg/health"
	"github.com/dpedwards/webstore/pkg/httpclient"
)

func newWebstore(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New(memstore.DefaultWarehouses()...)
	router := handler.NewRouter(handler.Services{
		Orders:     service.NewOrderService(store, nil, logger),
		Products:   service.NewProductService(store, logger),
		Warehouses: service.NewWarehouseService(store, nil, logger),
	}, health.NewHandler(), logger, handler.RouterConfig{})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func newSeeder(url string, cfg seedConfig) *seeder {
	cfg.BaseURL = url
	return &seeder{
		cfg:    cfg,
		client: httpclient.New(httpclient.DefaultConfig()),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSeed_PopulatesStore(t *testing.T) {
	srv, store := newWebstore(t)
	s := newSeeder(srv.URL, seedConfig{Products: 6, Orders: 4, MaxStock: 10, Warehouses: []int{1, 2, 3}, Seed: 7})

	sum, err := s.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, sum.Products)
	assert.Equal(t, 4, sum.Orders)
	assert.Equal(t, 2, sum.ClosedOrders+sum.RejectedClose)

	products, err := store.Products().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 6)

	orders, err := store.Orders().List(context.Background())
	require.NoError(t, err)
	closed := 0
	for _, o := range orders {
		if o.IsClosed() {
			closed++
		}
	}
	assert.Equal(t, sum.ClosedOrders, closed)
}

func TestSeed_NoProductsSkipsOrders(t *testing.T) {
	srv, store := newWebstore(t)
	s := newSeeder(srv.URL, seedConfig{Products: 0, Orders: 3, MaxStock: 10, Seed: 1})

	sum, err := s.run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Orders)

	orders, err := store.Orders().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCall_DecodesErrorEnvelope(t *testing.T) {
	srv, _ := newWebstore(t)
	s := newSeeder(srv.URL, seedConfig{})

	err := s.call(context.Background(), http.MethodPut, "/api/v1/order/close/550e8400-e29b-41d4-a716-446655440001", nil, nil)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
