// Package static serves the product catalog compiled into the binary.
package static

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/galleria/storefront/internal/catalog/domain"
)

//go:embed products.json
var productsJSON []byte

type Catalog struct {
	products []domain.Product
	byID     map[string]int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(productsJSON)
}

func Parse(data []byte) (*Catalog, error) {
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{products: products, byID: make(map[string]int, len(products))}
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		c.byID[p.ID] = i
	}
	return c, nil
}

func (c *Catalog) Get(_ context.Context, id string) (domain.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return c.products[i], nil
}

func (c *Catalog) ByCategory(_ context.Context, category string) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range c.products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Catalog) All(context.Context) ([]domain.Product, error) {
	return slices.Clone(c.products), nil
}

// IDs lists every product id, for seeding stock rows.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.products))
	for _, p := range c.products {
		ids = append(ids, p.ID)
	}
	return ids
}
