package domain

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Artist      string `json:"artist"`
	Medium      string `json:"medium"`
	Year        int    `json:"year"`
}

// Catalog is the read-only product lookup surface. Implementations hold no
// mutable state that callers can observe.
type Catalog interface {
	Get(ctx context.Context, id string) (Product, error)
	ByCategory(ctx context.Context, category string) ([]Product, error)
	All(ctx context.Context) ([]Product, error)
}
