package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing assumes request handlers hold a connection only for short
// ledger and profile queries; streaming responses talk to upstream providers,
// not Postgres, so a small pool covers the whole API.
const (
	dbMaxConns       = 8
	dbMinConns       = 2
	dbConnLifetime   = time.Hour
	dbConnIdleTime   = 15 * time.Minute
	dbHealthInterval = time.Minute
	dbConnectTimeout = 10 * time.Second
)

// NewDBPool parses cfg.DatabaseURL and opens a pgx pool against it. The pool
// is pinged before returning so a bad DSN or unreachable host fails startup
// instead of surfacing on the first request.
func NewDBPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = dbMaxConns
	poolCfg.MinConns = dbMinConns
	poolCfg.MaxConnLifetime = dbConnLifetime
	poolCfg.MaxConnIdleTime = dbConnIdleTime
	poolCfg.HealthCheckPeriod = dbHealthInterval

	ctx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
