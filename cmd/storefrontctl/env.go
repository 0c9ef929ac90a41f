package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galleria/storefront/internal/platform"
	"github.com/galleria/storefront/pkg/config"
	"github.com/galleria/storefront/pkg/logging"
)

// env is what every subcommand needs: config, a logger on stderr and, on
// demand, a Postgres pool.
type env struct {
	cfg  *config.Config
	log  *slog.Logger
	pool *pgxpool.Pool
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logging.NewTo(os.Stderr, cfg.LogLevel)}, nil
}

func (e *env) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if e.pool != nil {
		return e.pool, nil
	}
	pool, err := platform.OpenPostgres(ctx, e.cfg.PGURL)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return pool, nil
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
