package postgres

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"time"
)

// Connect opens the pool. Every stock decrement is a single statement, so a small
// pool is enough; MaxConns bounds how many checkouts hit Postgres at once.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 8
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnIdleTime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	zap.L().Info("postgres connected",
		zap.String("host", cfg.ConnConfig.Host), zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", maxConns))
	return pool, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		publisher TEXT NOT NULL DEFAULT '',
		edition TEXT NOT NULL DEFAULT '',
		isbn TEXT NOT NULL DEFAULT '',
		price_original NUMERIC(12,2) NOT NULL CHECK (price_original >= 0),
		price_discounted NUMERIC(12,2) CHECK (price_discounted >= 0),
		currency VARCHAR(3) NOT NULL DEFAULT 'INR',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id UUID PRIMARY KEY,
		items JSONB NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'RESERVED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		settled_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_open ON reservations(created_at) WHERE status = 'RESERVED'`,

	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL,
		customer JSONB NOT NULL,
		items JSONB NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(16) NOT NULL,
		payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
		tracking_number TEXT,
		notes TEXT,
		reservation_id UUID REFERENCES reservations(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT orders_order_number_key UNIQUE (order_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_email ON orders((customer->>'email'))`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)`,
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	zap.L().Info("postgres schema ready", zap.Int("statements", len(migrations)))
	return nil
}
