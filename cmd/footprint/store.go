package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/footprint/internal/config"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/persistence/postgres"
	"example.com/footprint/internal/persistence/sqlite"
)

// backend is an opened store plus the Postgres pool when that driver is selected.
type backend struct {
	store domain.Store
	pool  *pgxpool.Pool
}

// openBackend connects to the configured store and applies its schema.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		repo := postgres.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &backend{store: repo, pool: pool}, nil
	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return &backend{store: repo}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func (b *backend) Close() error {
	return b.store.Close()
}
