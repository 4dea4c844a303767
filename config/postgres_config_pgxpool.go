package config

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5

	// spareConnections is added to the worker count for schema setup and cache preloading.
	spareConnections = 2
)

// PostgresPGXPoolConfig creates a pgxpool.Config sized for the given number of workers.
// Every worker holds one connection for the lifetime of its session.
func PostgresPGXPoolConfig(dsn string, workers int) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = int32(max(workers, 1) + spareConnections) //nolint:gosec // worker counts are small
	dbConfig.MinConns = 0
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig, nil
}

// PostgresPGXPool creates a pgx pool without connecting.
func PostgresPGXPool(ctx context.Context, dsn string, workers int) (*pgxpool.Pool, error) {
	dbConfig, err := PostgresPGXPoolConfig(dsn, workers)
	if err != nil {
		return nil, err
	}

	return pgxpool.NewWithConfig(ctx, dbConfig)
}
