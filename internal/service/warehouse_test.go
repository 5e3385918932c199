package service

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpedwards/webstore/internal/domain"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

func TestAddAndReduceProductQuantity(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.pub.On("PublishStockChanged", mock.Anything, mock.AnythingOfType("*domain.StockChange")).Return(nil).Times(3)

	change, err := f.warehouses.AddProductQuantity(f.ctx, prodA, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, domain.StockChange{ProductID: prodA, WarehouseID: 2, Delta: 6, Quantity: 6}, *change)

	change, err = f.warehouses.ReduceProductQuantity(f.ctx, prodA, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, -2, change.Delta)
	assert.Equal(t, 4, change.Quantity)

	change, err = f.warehouses.ReduceProductQuantity(f.ctx, prodA, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, change.Quantity)

	w, err := f.warehouses.GetWarehouse(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Quantity)
}

func TestReduceProductQuantity_DeltaIsAmountRemoved(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.stock(prodA, 1, 2)

	var published []domain.StockChange
	f.pub.On("PublishStockChanged", mock.Anything, mock.AnythingOfType("*domain.StockChange")).
		Run(func(args mock.Arguments) {
			published = append(published, *args.Get(1).(*domain.StockChange))
		}).Return(nil).Twice()

	change, err := f.warehouses.ReduceProductQuantity(f.ctx, prodA, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.StockChange{ProductID: prodA, WarehouseID: 1, Delta: -2, Quantity: 0}, *change)

	change, err = f.warehouses.ReduceProductQuantity(f.ctx, prodA, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.StockChange{ProductID: prodA, WarehouseID: 3, Delta: 0, Quantity: 0}, *change)

	require.Len(t, published, 2)
	assert.Equal(t, -2, published[0].Delta)
	assert.Equal(t, 0, published[1].Delta)

	total, err := f.warehouses.TotalProductQuantity(f.ctx, prodA)
	require.NoError(t, err)
	assert.Equal(t, 0, total.TotalQuantity)
}

func TestProductQuantity_Errors(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)

	_, err := f.warehouses.AddProductQuantity(f.ctx, prodA, 1, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.warehouses.ReduceProductQuantity(f.ctx, prodA, 1, -3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.warehouses.AddProductQuantity(f.ctx, prodA, 9, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.warehouses.AddProductQuantity(f.ctx, prodC, 1, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddProductQuantity_PublishFailureKeepsCommit(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.pub.On("PublishStockChanged", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	before := testutil.ToFloat64(stockMutationsTotal.WithLabelValues(string(stockOpAdd)))
	_, err := f.warehouses.AddProductQuantity(f.ctx, prodA, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, f.allocation(prodA, 1))
	assert.Equal(t, before+1, testutil.ToFloat64(stockMutationsTotal.WithLabelValues(string(stockOpAdd))))
}

func TestReceiveStock(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.pub.On("PublishStockChanged", mock.Anything, mock.Anything).Return(nil).Once()

	err := f.warehouses.ReceiveStock(f.ctx, domain.StockReceived{ProductID: prodA, WarehouseID: 3, Quantity: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, f.allocation(prodA, 3))

	err = f.warehouses.ReceiveStock(f.ctx, domain.StockReceived{ProductID: "", WarehouseID: 3, Quantity: 8})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListWarehouses_RefreshesTotals(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.stock(prodA, 1, 3)
	f.stock(prodA, 3, 9)

	warehouses, err := f.warehouses.ListWarehouses(f.ctx)
	require.NoError(t, err)
	require.Len(t, warehouses, 3)
	assert.Equal(t, []int{3, 0, 9}, []int{warehouses[0].Quantity, warehouses[1].Quantity, warehouses[2].Quantity})

	_, err = f.warehouses.GetWarehouse(f.ctx, 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTotalProductQuantity(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.stock(prodA, 1, 3)
	f.stock(prodA, 2, 4)

	total, err := f.warehouses.TotalProductQuantity(f.ctx, prodA)
	require.NoError(t, err)
	assert.Equal(t, &domain.ProductTotal{ProductID: prodA, TotalQuantity: 7}, total)

	_, err = f.warehouses.TotalProductQuantity(f.ctx, prodC)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
