package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/galleria/storefront/internal/stock/domain"
	"github.com/galleria/storefront/pkg/metrics"
)

type Service struct {
	log  *slog.Logger
	repo Repository
	now  func() time.Time
}

func NewService(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

type UpdateResult struct {
	Updated int           `json:"updatedProducts"`
	Skipped []domain.Skip `json:"skipped"`
}

// Update sets the flag for every valid id. Calling it again with the same
// arguments is a no-op.
func (s *Service) Update(ctx context.Context, productIDs []string, inStock bool) (UpdateResult, error) {
	b := domain.NewBatch(productIDs)
	res := UpdateResult{Skipped: b.Skipped}
	if res.Skipped == nil {
		res.Skipped = []domain.Skip{}
	}
	if len(b.Skipped) > 0 {
		s.log.Warn("skipped invalid product ids", "count", len(b.Skipped))
	}
	if len(b.IDs) == 0 {
		return res, nil
	}

	n, err := s.repo.SetMany(ctx, b.IDs, inStock, s.now())
	if err != nil {
		return res, fmt.Errorf("set stock for %d products: %w", len(b.IDs), err)
	}
	res.Updated = n
	metrics.RecordStockUpdate(inStock, n)
	s.log.Info("stock updated", "products", n, "in_stock", inStock)
	return res, nil
}

// SetStock is Update without the skip report.
func (s *Service) SetStock(ctx context.Context, productIDs []string, inStock bool) (int, error) {
	res, err := s.Update(ctx, productIDs, inStock)
	return res.Updated, err
}

func (s *Service) GetStock(ctx context.Context, productID string) (bool, error) {
	if err := domain.Validate(productID); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidProductID, err)
	}
	m, err := s.repo.GetMany(ctx, []string{productID})
	if err != nil {
		return false, err
	}
	return m[productID], nil
}

// GetMany returns a flag for every valid id asked for; ids without a row
// report true.
func (s *Service) GetMany(ctx context.Context, productIDs []string) (map[string]bool, error) {
	b := domain.NewBatch(productIDs)
	if len(b.IDs) == 0 {
		return map[string]bool{}, nil
	}
	return s.repo.GetMany(ctx, b.IDs)
}

// Seed makes sure every id has a row without touching existing flags, so a
// re-seed never brings a sold product back.
func (s *Service) Seed(ctx context.Context, productIDs []string) (int, error) {
	b := domain.NewBatch(productIDs)
	if len(b.IDs) == 0 {
		return 0, nil
	}
	n, err := s.repo.Seed(ctx, b.IDs, s.now())
	if err != nil {
		return 0, fmt.Errorf("seed stock: %w", err)
	}
	s.log.Info("stock seeded", "requested", len(b.IDs), "inserted", n)
	return n, nil
}
