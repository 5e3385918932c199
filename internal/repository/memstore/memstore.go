// Package memstore is an in-memory repository.Store. Transactions are fully
// serialized and roll back by restoring a snapshot, which makes it suitable
// for tests and for running the service without PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/repository"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

type stockKey struct {
	productID   string
	warehouseID int
}

type data struct {
	orders     map[string]domain.Order
	positions  map[string]domain.Position
	products   map[string]domain.Product
	warehouses map[int]domain.Warehouse
	stock      map[stockKey]int
}

func newData() *data {
	return &data{
		orders:     make(map[string]domain.Order),
		positions:  make(map[string]domain.Position),
		products:   make(map[string]domain.Product),
		warehouses: make(map[int]domain.Warehouse),
		stock:      make(map[stockKey]int),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.positions {
		c.positions[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range d.stock {
		c.stock[k] = v
	}
	return c
}

type db struct {
	mu   sync.Mutex
	data *data
}

// Store implements repository.Store in memory.
type Store struct {
	db   *db
	inTx bool
}

// DefaultWarehouses matches the seeded warehouses of the SQL schema.
func DefaultWarehouses() []domain.Warehouse {
	return []domain.Warehouse{
		{ID: 1, Active: true},
		{ID: 2, Active: true},
		{ID: 3, Active: true},
	}
}

// New creates an empty store holding the given warehouses.
func New(warehouses ...domain.Warehouse) *Store {
	d := newData()
	for _, w := range warehouses {
		d.warehouses[w.ID] = w
	}
	return &Store{db: &db{data: d}}
}

// run executes fn against the live data, taking the store lock unless the
// caller already holds it through a transaction.
func (s *Store) run(fn func(d *data) error) error {
	if s.inTx {
		return fn(s.db.data)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.data)
}

// WithTx implements repository.Store. Nested calls behave like savepoints.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}

	snapshot := s.db.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.db.data = snapshot
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.db.data = snapshot
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Orders() repository.OrderRepository         { return orderRepo{s} }
func (s *Store) Positions() repository.PositionRepository   { return positionRepo{s} }
func (s *Store) Products() repository.ProductRepository     { return productRepo{s} }
func (s *Store) Warehouses() repository.WarehouseRepository { return warehouseRepo{s} }
func (s *Store) Stock() repository.StockRepository          { return stockRepo{s} }

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type orderRepo struct{ s *Store }

func (r orderRepo) List(_ context.Context) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	_ = r.s.run(func(d *data) error {
		for _, o := range d.orders {
			orders = append(orders, o)
		}
		return nil
	})
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].Date.Equal(orders[j].Date.Time) {
			return orders[i].Date.After(orders[j].Date.Time)
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.run(func(d *data) error {
		o, ok := d.orders[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: every transaction already holds the
// store lock.
func (r orderRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r orderRepo) Create(_ context.Context, o *domain.Order) error {
	return r.s.run(func(d *data) error {
		if _, ok := d.orders[o.ID]; ok {
			return fmt.Errorf("insert order: %w", apperrors.ErrAlreadyExists)
		}
		stored := *o
		stored.Positions = nil
		d.orders[o.ID] = stored
		return nil
	})
}

func (r orderRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	return r.s.run(func(d *data) error {
		o, ok := d.orders[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		o.Status = status
		d.orders[id] = o
		return nil
	})
}

func (r orderRepo) Delete(_ context.Context, id string) error {
	return r.s.run(func(d *data) error {
		if _, ok := d.orders[id]; !ok {
			return apperrors.ErrNotFound
		}
		delete(d.orders, id)
		for pid, p := range d.positions {
			if p.OrderID == id {
				delete(d.positions, pid)
			}
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

type positionRepo struct{ s *Store }

func (r positionRepo) ListByOrder(_ context.Context, orderID string) ([]domain.Position, error) {
	positions := make([]domain.Position, 0)
	_ = r.s.run(func(d *data) error {
		for _, p := range d.positions {
			if p.OrderID == orderID {
				positions = append(positions, p)
			}
		}
		return nil
	})
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].ProductID != positions[j].ProductID {
			return positions[i].ProductID < positions[j].ProductID
		}
		return positions[i].ID < positions[j].ID
	})
	return positions, nil
}

func (r positionRepo) GetByID(_ context.Context, id string) (*domain.Position, error) {
	var out *domain.Position
	err := r.s.run(func(d *data) error {
		p, ok := d.positions[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r positionRepo) Create(_ context.Context, p *domain.Position) error {
	return r.s.run(func(d *data) error {
		if _, ok := d.orders[p.OrderID]; !ok {
			return fmt.Errorf("insert position: %w", apperrors.ErrNotFound)
		}
		if _, ok := d.products[p.ProductID]; !ok {
			return fmt.Errorf("insert position: %w", apperrors.ErrNotFound)
		}
		d.positions[p.ID] = *p
		return nil
	})
}

func (r positionRepo) Delete(_ context.Context, id string) error {
	return r.s.run(func(d *data) error {
		if _, ok := d.positions[id]; !ok {
			return apperrors.ErrNotFound
		}
		delete(d.positions, id)
		return nil
	})
}

func (r positionRepo) DeleteByOrder(_ context.Context, orderID string) error {
	return r.s.run(func(d *data) error {
		for id, p := range d.positions {
			if p.OrderID == orderID {
				delete(d.positions, id)
			}
		}
		return nil
	})
}

func (r positionRepo) ExistsForProduct(_ context.Context, productID string) (bool, error) {
	var exists bool
	_ = r.s.run(func(d *data) error {
		for _, p := range d.positions {
			if p.ProductID == productID {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, nil
}

func (r positionRepo) SumByProduct(_ context.Context, orderID string) ([]domain.RequiredQuantity, error) {
	sums := make(map[string]int)
	_ = r.s.run(func(d *data) error {
		for _, p := range d.positions {
			if p.OrderID == orderID {
				sums[p.ProductID] += p.Quantity
			}
		}
		return nil
	})

	required := make([]domain.RequiredQuantity, 0, len(sums))
	for productID, qty := range sums {
		required = append(required, domain.RequiredQuantity{ProductID: productID, Quantity: qty})
	}
	sort.Slice(required, func(i, j int) bool { return required[i].ProductID < required[j].ProductID })
	return required, nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

type productRepo struct{ s *Store }

func (r productRepo) List(_ context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	_ = r.s.run(func(d *data) error {
		for _, p := range d.products {
			products = append(products, p)
		}
		return nil
	})
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (r productRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	var out *domain.Product
	err := r.s.run(func(d *data) error {
		p, ok := d.products[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r productRepo) Create(_ context.Context, p *domain.Product) error {
	return r.s.run(func(d *data) error {
		if _, ok := d.products[p.ID]; ok {
			return fmt.Errorf("insert product: %w", apperrors.ErrAlreadyExists)
		}
		d.products[p.ID] = *p
		return nil
	})
}

func (r productRepo) Update(_ context.Context, p *domain.Product) error {
	return r.s.run(func(d *data) error {
		existing, ok := d.products[p.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		p.CreatedAt = existing.CreatedAt
		d.products[p.ID] = *p
		return nil
	})
}

func (r productRepo) Delete(_ context.Context, id string) error {
	return r.s.run(func(d *data) error {
		if _, ok := d.products[id]; !ok {
			return apperrors.ErrNotFound
		}
		for _, p := range d.positions {
			if p.ProductID == id {
				return fmt.Errorf("delete product: %w", apperrors.ErrProductInOrder)
			}
		}
		delete(d.products, id)
		for k := range d.stock {
			if k.productID == id {
				delete(d.stock, k)
			}
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Warehouses
// ---------------------------------------------------------------------------

type warehouseRepo struct{ s *Store }

func (r warehouseRepo) list(activeOnly bool) []domain.Warehouse {
	warehouses := make([]domain.Warehouse, 0)
	_ = r.s.run(func(d *data) error {
		for _, w := range d.warehouses {
			if activeOnly && !w.Active {
				continue
			}
			warehouses = append(warehouses, w)
		}
		return nil
	})
	sort.Slice(warehouses, func(i, j int) bool { return warehouses[i].ID < warehouses[j].ID })
	return warehouses
}

func (r warehouseRepo) List(_ context.Context) ([]domain.Warehouse, error) {
	return r.list(false), nil
}

func (r warehouseRepo) ListActive(_ context.Context) ([]domain.Warehouse, error) {
	return r.list(true), nil
}

func (r warehouseRepo) GetByID(_ context.Context, id int) (*domain.Warehouse, error) {
	var out *domain.Warehouse
	err := r.s.run(func(d *data) error {
		w, ok := d.warehouses[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (r warehouseRepo) UpdateTotal(_ context.Context, id, total int) error {
	return r.s.run(func(d *data) error {
		w, ok := d.warehouses[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		w.Quantity = total
		d.warehouses[id] = w
		return nil
	})
}

// ---------------------------------------------------------------------------
// Stock ledger
// ---------------------------------------------------------------------------

type stockRepo struct{ s *Store }

func (r stockRepo) Add(_ context.Context, productID string, warehouseID, amount int) (int, error) {
	var qty int
	err := r.s.run(func(d *data) error {
		if _, ok := d.products[productID]; !ok {
			return fmt.Errorf("add stock: %w", apperrors.ErrNotFound)
		}
		if _, ok := d.warehouses[warehouseID]; !ok {
			return fmt.Errorf("add stock: %w", apperrors.ErrNotFound)
		}
		k := stockKey{productID, warehouseID}
		d.stock[k] += amount
		qty = d.stock[k]
		return nil
	})
	return qty, err
}

func (r stockRepo) QuantityForUpdate(_ context.Context, productID string, warehouseID int) (int, error) {
	var qty int
	_ = r.s.run(func(d *data) error {
		qty = d.stock[stockKey{productID, warehouseID}]
		return nil
	})
	return qty, nil
}

func (r stockRepo) Reduce(_ context.Context, productID string, warehouseID, amount int) (int, error) {
	var qty int
	_ = r.s.run(func(d *data) error {
		k := stockKey{productID, warehouseID}
		current, ok := d.stock[k]
		if !ok {
			return nil
		}
		qty = max(current-amount, 0)
		d.stock[k] = qty
		return nil
	})
	return qty, nil
}

func (r stockRepo) SumByProduct(_ context.Context, productID string) (int, error) {
	var total int
	_ = r.s.run(func(d *data) error {
		for k, q := range d.stock {
			if k.productID == productID {
				total += q
			}
		}
		return nil
	})
	return total, nil
}

func (r stockRepo) SumByWarehouse(_ context.Context, warehouseID int) (int, error) {
	var total int
	_ = r.s.run(func(d *data) error {
		for k, q := range d.stock {
			if k.warehouseID == warehouseID {
				total += q
			}
		}
		return nil
	})
	return total, nil
}

func (r stockRepo) ListByProductForUpdate(_ context.Context, productID string) ([]domain.StockAllocation, error) {
	allocations := make([]domain.StockAllocation, 0)
	_ = r.s.run(func(d *data) error {
		for k, q := range d.stock {
			if k.productID == productID {
				allocations = append(allocations, domain.StockAllocation{
					ProductID: productID, WarehouseID: k.warehouseID, Quantity: q,
				})
			}
		}
		return nil
	})
	sort.Slice(allocations, func(i, j int) bool { return allocations[i].WarehouseID < allocations[j].WarehouseID })
	return allocations, nil
}

func (r stockRepo) DeleteByProduct(_ context.Context, productID string) error {
	return r.s.run(func(d *data) error {
		for k := range d.stock {
			if k.productID == productID {
				delete(d.stock, k)
			}
		}
		return nil
	})
}
