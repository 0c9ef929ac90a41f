package application

import (
	"context"
	"time"
)

type Repository interface {
	// SetMany writes the flag for every id in one statement: either all rows
	// are written or none are.
	SetMany(ctx context.Context, ids []string, inStock bool, at time.Time) (int, error)
	GetMany(ctx context.Context, ids []string) (map[string]bool, error)
	// Seed inserts in-stock rows for ids that have none.
	Seed(ctx context.Context, ids []string, at time.Time) (int, error)
}
