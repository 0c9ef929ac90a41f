package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/galleria/storefront/internal/catalog/domain"
)

type StockReader interface {
	GetMany(ctx context.Context, productIDs []string) (map[string]bool, error)
}

// Listing is a catalog product with its live stock flag.
type Listing struct {
	domain.Product
	InStock bool `json:"inStock"`
}

type Service struct {
	log     *slog.Logger
	catalog domain.Catalog
	stock   StockReader
}

func NewService(log *slog.Logger, catalog domain.Catalog, stock StockReader) *Service {
	return &Service{log: log, catalog: catalog, stock: stock}
}

func (s *Service) Get(ctx context.Context, id string) (Listing, error) {
	p, err := s.catalog.Get(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	out, err := s.withStock(ctx, []domain.Product{p})
	if err != nil {
		return Listing{}, err
	}
	return out[0], nil
}

// List returns every product, or those in category when it is non-empty.
func (s *Service) List(ctx context.Context, category string) ([]Listing, error) {
	var products []domain.Product
	var err error
	if category != "" {
		products, err = s.catalog.ByCategory(ctx, category)
	} else {
		products, err = s.catalog.All(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s.withStock(ctx, products)
}

// Known keeps the ids the catalog has a product for, in input order.
func (s *Service) Known(ctx context.Context, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		_, err := s.catalog.Get(ctx, id)
		switch {
		case err == nil:
			out = append(out, id)
		case !errors.Is(err, domain.ErrNotFound):
			s.log.Warn("catalog lookup failed", "product_id", id, "err", err)
		}
	}
	return out
}

func (s *Service) withStock(ctx context.Context, products []domain.Product) ([]Listing, error) {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	flags, err := s.stock.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(products))
	for _, p := range products {
		inStock, ok := flags[p.ID]
		out = append(out, Listing{Product: p, InStock: !ok || inStock})
	}
	return out, nil
}
