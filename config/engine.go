package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonStoeckl/movr-workload-go/postgresengine"
)

// Adapter names the database driver stack the Postgres engine runs on.
type Adapter string

const (
	// AdapterPGX uses a pgx pool.
	AdapterPGX Adapter = "pgx"

	// AdapterSQL uses database/sql with lib/pq.
	AdapterSQL Adapter = "sql"

	// AdapterSQLX uses sqlx with lib/pq.
	AdapterSQLX Adapter = "sqlx"
)

// ErrUnsupportedAdapter is returned for adapter names other than pgx, sql and sqlx.
var ErrUnsupportedAdapter = errors.New("unsupported adapter")

// ParseAdapter validates an adapter name.
func ParseAdapter(name string) (Adapter, error) {
	switch adapter := Adapter(name); adapter {
	case AdapterPGX, AdapterSQL, AdapterSQLX:
		return adapter, nil
	default:
		return "", errors.Join(ErrUnsupportedAdapter, fmt.Errorf("%q", name))
	}
}

// OpenEngine creates the database handle for the adapter and the Postgres engine on top of it.
// The returned close function releases the database handle.
func OpenEngine(
	ctx context.Context,
	adapter Adapter,
	dsn string,
	workers int,
	options ...postgresengine.Option,
) (*postgresengine.Engine, func() error, error) {
	switch adapter {
	case AdapterPGX:
		pool, err := PostgresPGXPool(ctx, dsn, workers)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgresengine.NewEngineFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return engine, func() error { pool.Close(); return nil }, nil

	case AdapterSQL:
		db, err := PostgresSQLDB(dsn, workers)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
		if err != nil {
			return nil, nil, errors.Join(err, db.Close())
		}

		return engine, db.Close, nil

	case AdapterSQLX:
		db, err := PostgresSQLX(dsn, workers)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLX(db, options...)
		if err != nil {
			return nil, nil, errors.Join(err, db.Close())
		}

		return engine, db.Close, nil

	default:
		return nil, nil, errors.Join(ErrUnsupportedAdapter, fmt.Errorf("%q", adapter))
	}
}
