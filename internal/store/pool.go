// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package store holds the PostgreSQL plumbing shared by the repositories:
// connection pooling, schema migrations and transient error classification.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	URL         string
	MaxConns    int32
	PingTimeout time.Duration
}

// OpenPool creates a pgx pool and verifies connectivity.
func OpenPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, oops.Code("DATABASE_URL_MISSING").Errorf("database URL is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DATABASE_URL_INVALID").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, oops.Code("DATABASE_CONNECT_FAILED").Wrap(Classify(err))
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, oops.Code("DATABASE_PING_FAILED").
			With("host", pcfg.ConnConfig.Host).
			Wrap(Classify(err))
	}
	return pool, nil
}
