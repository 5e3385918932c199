package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/repository"
	"github.com/dpedwards/webstore/internal/repository/memstore"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockPublisher) PublishOrderClosed(ctx context.Context, result *domain.CloseResult) error {
	return m.Called(ctx, result).Error(0)
}

func (m *mockPublisher) PublishStockChanged(ctx context.Context, change *domain.StockChange) error {
	return m.Called(ctx, change).Error(0)
}

// --- Failing store ---

// failingTotalsStore wraps a Store so every warehouse total update fails,
// including inside transactions.
type failingTotalsStore struct {
	repository.Store
	err error
}

func (s failingTotalsStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(failingTotalsStore{Store: tx, err: s.err})
	})
}

func (s failingTotalsStore) Warehouses() repository.WarehouseRepository {
	return failingTotals{WarehouseRepository: s.Store.Warehouses(), err: s.err}
}

type failingTotals struct {
	repository.WarehouseRepository
	err error
}

func (w failingTotals) UpdateTotal(context.Context, int, int) error {
	return w.err
}

// --- Fixture ---

const (
	prodA = "aaaaaaaa-0000-4000-8000-000000000001"
	prodB = "bbbbbbbb-0000-4000-8000-000000000002"
	prodC = "cccccccc-0000-4000-8000-000000000003"
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	store      *memstore.Store
	pub        *mockPublisher
	orders     *OrderService
	products   *ProductService
	warehouses *WarehouseService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, warehouses ...domain.Warehouse) *fixture {
	t.Helper()
	if len(warehouses) == 0 {
		warehouses = memstore.DefaultWarehouses()
	}
	store := memstore.New(warehouses...)
	pub := new(mockPublisher)
	logger := newTestLogger()
	t.Cleanup(func() { pub.AssertExpectations(t) })

	return &fixture{
		t:          t,
		ctx:        context.Background(),
		store:      store,
		pub:        pub,
		orders:     NewOrderService(store, pub, logger),
		products:   NewProductService(store, logger),
		warehouses: NewWarehouseService(store, pub, logger),
	}
}

func (f *fixture) product(id string) {
	f.t.Helper()
	require.NoError(f.t, f.store.Products().Create(f.ctx, &domain.Product{
		ID: id, Name: "product " + id[:4], Unit: "pcs", Price: decimal.RequireFromString("2.50"),
	}))
}

func (f *fixture) stock(productID string, warehouseID, qty int) {
	f.t.Helper()
	_, err := f.store.Stock().Add(f.ctx, productID, warehouseID, qty)
	require.NoError(f.t, err)
}

// order stores an open order with one position per entry of lines, bypassing
// the service so no events are published.
func (f *fixture) order(id string, lines ...domain.RequiredQuantity) {
	f.t.Helper()
	require.NoError(f.t, f.store.Orders().Create(f.ctx, &domain.Order{
		ID: id, Date: domain.NewDate(time.Now()), Status: domain.OrderStatusOpen,
	}))
	for i, l := range lines {
		require.NoError(f.t, f.store.Positions().Create(f.ctx, &domain.Position{
			ID: id + "-pos-" + string(rune('a'+i)), OrderID: id, ProductID: l.ProductID, Quantity: l.Quantity,
		}))
	}
}

func (f *fixture) allocation(productID string, warehouseID int) int {
	f.t.Helper()
	rows, err := f.store.Stock().ListByProductForUpdate(f.ctx, productID)
	require.NoError(f.t, err)
	for _, r := range rows {
		if r.WarehouseID == warehouseID {
			return r.Quantity
		}
	}
	return 0
}

func (f *fixture) status(orderID string) domain.OrderStatus {
	f.t.Helper()
	o, err := f.store.Orders().GetByID(f.ctx, orderID)
	require.NoError(f.t, err)
	return o.Status
}

func (f *fixture) warehouseTotal(id int) int {
	f.t.Helper()
	w, err := f.store.Warehouses().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return w.Quantity
}
