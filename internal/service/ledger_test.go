package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpedwards/webstore/internal/domain"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

func TestStockLedger_RejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	ledger := NewStockLedger(f.store.Stock())

	for _, amount := range []int{0, -1} {
		_, err := ledger.AddQuantity(f.ctx, prodA, 1, amount)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		_, err = ledger.ReduceQuantity(f.ctx, prodA, 1, amount)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		_, err = ledger.DeductAcrossWarehouses(f.ctx, prodA, amount)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestStockLedger_ReduceFloorsAtZero(t *testing.T) {
	tests := []struct {
		before, reduce, want int
	}{
		{10, 3, 7},
		{10, 10, 0},
		{2, 5, 0},
	}

	for _, tt := range tests {
		f := newFixture(t)
		f.product(prodA)
		f.stock(prodA, 1, tt.before)

		got, err := NewStockLedger(f.store.Stock()).ReduceQuantity(f.ctx, prodA, 1, tt.reduce)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "before=%d reduce=%d", tt.before, tt.reduce)
		assert.Equal(t, tt.want, f.allocation(prodA, 1))
	}
}

func TestStockLedger_ReduceQuantityDelta_ReportsRemovedAmount(t *testing.T) {
	tests := []struct {
		name          string
		before        int
		reduce        int
		wantDelta     int
		wantQuantity  int
		hasAllocation bool
	}{
		{"partial", 10, 3, -3, 7, true},
		{"clamped", 2, 5, -2, 0, true},
		{"already empty", 0, 4, 0, 0, true},
		{"missing allocation", 0, 4, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.product(prodA)
			if tt.hasAllocation {
				f.stock(prodA, 1, tt.before+1)
				_, err := f.store.Stock().Reduce(f.ctx, prodA, 1, 1)
				require.NoError(t, err)
			}

			delta, qty, err := NewStockLedger(f.store.Stock()).ReduceQuantityDelta(f.ctx, prodA, 1, tt.reduce)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDelta, delta)
			assert.Equal(t, tt.wantQuantity, qty)
		})
	}
}

func TestStockLedger_SumByProductTracksMutations(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	ledger := NewStockLedger(f.store.Stock())

	total, err := ledger.SumByProduct(f.ctx, prodA)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, _ = ledger.AddQuantity(f.ctx, prodA, 1, 4)
	_, _ = ledger.AddQuantity(f.ctx, prodA, 2, 6)
	_, _ = ledger.ReduceQuantity(f.ctx, prodA, 2, 10)
	_, _ = ledger.AddQuantity(f.ctx, prodA, 3, 1)

	total, err = ledger.SumByProduct(f.ctx, prodA)
	require.NoError(t, err)
	assert.Equal(t, f.allocation(prodA, 1)+f.allocation(prodA, 2)+f.allocation(prodA, 3), total)
	assert.Equal(t, 5, total)
}

func TestStockLedger_DeductAcrossWarehouses_SplitsInWarehouseOrder(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.stock(prodA, 2, 10)
	f.stock(prodA, 1, 4)

	deductions, err := NewStockLedger(f.store.Stock()).DeductAcrossWarehouses(f.ctx, prodA, 7)
	require.NoError(t, err)

	assert.Equal(t, []domain.StockDeduction{
		{ProductID: prodA, WarehouseID: 1, Quantity: 4},
		{ProductID: prodA, WarehouseID: 2, Quantity: 3},
	}, deductions)
	assert.Equal(t, 0, f.allocation(prodA, 1))
	assert.Equal(t, 7, f.allocation(prodA, 2))
}

func TestStockLedger_DeductAcrossWarehouses_SkipsEmptyRows(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.stock(prodA, 1, 3)
	_, _ = NewStockLedger(f.store.Stock()).ReduceQuantity(f.ctx, prodA, 1, 3)
	f.stock(prodA, 3, 5)

	deductions, err := NewStockLedger(f.store.Stock()).DeductAcrossWarehouses(f.ctx, prodA, 5)
	require.NoError(t, err)
	require.Len(t, deductions, 1)
	assert.Equal(t, 3, deductions[0].WarehouseID)
}

func TestStockLedger_DeductAcrossWarehouses_Insufficient(t *testing.T) {
	f := newFixture(t)
	f.product(prodA)
	f.stock(prodA, 1, 2)

	_, err := NewStockLedger(f.store.Stock()).DeductAcrossWarehouses(f.ctx, prodA, 3)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
}
