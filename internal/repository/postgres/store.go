package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dpedwards/webstore/internal/repository"
	"github.com/dpedwards/webstore/pkg/database"
)

// SQLSTATE codes the repositories translate.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Store implements repository.Store over a pool or a transaction.
type Store struct {
	db         database.DBTX
	orders     *OrderRepository
	positions  *PositionRepository
	products   *ProductRepository
	warehouses *WarehouseRepository
	stock      *StockRepository
}

// NewStore creates a Store whose repositories all run on db.
func NewStore(db database.DBTX) *Store {
	return &Store{
		db:         db,
		orders:     NewOrderRepository(db),
		positions:  NewPositionRepository(db),
		products:   NewProductRepository(db),
		warehouses: NewWarehouseRepository(db),
		stock:      NewStockRepository(db),
	}
}

func (s *Store) Orders() repository.OrderRepository         { return s.orders }
func (s *Store) Positions() repository.PositionRepository   { return s.positions }
func (s *Store) Products() repository.ProductRepository     { return s.products }
func (s *Store) Warehouses() repository.WarehouseRepository { return s.warehouses }
func (s *Store) Stock() repository.StockRepository          { return s.stock }

// WithTx runs fn in a READ COMMITTED transaction. Row locks taken with
// FOR UPDATE inside fn are what serialize concurrent writers.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return database.WithTx(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
