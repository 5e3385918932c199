package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/repository"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

// ProductService implements the business logic for the product catalogue.
type ProductService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewProductService creates a new product service.
func NewProductService(store repository.Store, logger *slog.Logger) *ProductService {
	return &ProductService{store: store, logger: logger, now: time.Now}
}

// ProductInput carries the writable product fields.
type ProductInput struct {
	Name  string
	Unit  string
	Price decimal.Decimal
}

// ListProducts returns every product.
func (s *ProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.store.Products().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "product", id)
	}
	return p, nil
}

// CreateProduct validates in and stores it under a new id.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	now := s.now().UTC()
	p := &domain.Product{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Unit:      in.Unit,
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	if err := s.store.Products().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("name", p.Name),
	)
	return p, nil
}

// UpdateProduct overwrites name, unit and price of an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	p := &domain.Product{
		ID:        id,
		Name:      in.Name,
		Unit:      in.Unit,
		Price:     in.Price,
		UpdatedAt: s.now().UTC(),
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	if err := s.store.Products().Update(ctx, p); err != nil {
		return nil, lookupErr(err, "product", id)
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", id))
	return p, nil
}

// DeleteProduct removes a product and its stock, then refreshes warehouse
// totals. A product referenced by any order position cannot be deleted.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		referenced, err := tx.Positions().ExistsForProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("check positions: %w", err)
		}
		if referenced {
			return apperrors.ProductInOrder(id)
		}

		if err := tx.Stock().DeleteByProduct(ctx, id); err != nil {
			return fmt.Errorf("delete stock: %w", err)
		}
		if err := tx.Products().Delete(ctx, id); err != nil {
			if errors.Is(err, apperrors.ErrProductInOrder) {
				return apperrors.ProductInOrder(id)
			}
			return lookupErr(err, "product", id)
		}

		return NewWarehouseAggregator(tx.Warehouses(), tx.Stock()).RecomputeActiveWarehouseTotals(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}
