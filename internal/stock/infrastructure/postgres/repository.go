package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// SetMany is a single statement, so the batch is all-or-nothing.
func (r *Repository) SetMany(ctx context.Context, ids []string, inStock bool, at time.Time) (int, error) {
	ct, err := r.pool.Exec(ctx, `INSERT INTO product_stock (product_id, in_stock, updated_at)
		SELECT id, $2, $3 FROM unnest($1::text[]) AS t(id)
		ON CONFLICT (product_id) DO UPDATE SET in_stock = EXCLUDED.in_stock, updated_at = EXCLUDED.updated_at`,
		ids, inStock, at)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (r *Repository) GetMany(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	rows, err := r.pool.Query(ctx, `SELECT product_id, in_stock FROM product_stock WHERE product_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var inStock bool
		if err := rows.Scan(&id, &inStock); err != nil {
			return nil, err
		}
		out[id] = inStock
	}
	return out, rows.Err()
}

func (r *Repository) Seed(ctx context.Context, ids []string, at time.Time) (int, error) {
	ct, err := r.pool.Exec(ctx, `INSERT INTO product_stock (product_id, in_stock, updated_at)
		SELECT id, TRUE, $2 FROM unnest($1::text[]) AS t(id)
		ON CONFLICT (product_id) DO NOTHING`, ids, at)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}
