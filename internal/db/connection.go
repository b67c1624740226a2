package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS price_observations (
	id          BIGSERIAL PRIMARY KEY,
	ticker      TEXT             NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ      NOT NULL,
	source      TEXT             NOT NULL,
	created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
	UNIQUE (ticker, observed_at)
);
CREATE INDEX IF NOT EXISTS price_observations_observed_at_idx ON price_observations (observed_at);
`

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return p, nil
}

// EnsureSchema creates the archive table and its indexes if missing.
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	fmt.Println("[DB] Schema ready (price_observations)")
	return nil
}
