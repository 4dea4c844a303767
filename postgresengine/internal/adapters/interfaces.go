package adapters

import "context"

// DBAdapter hands out dedicated connections from a pool.
type DBAdapter interface {
	Acquire(ctx context.Context) (DBConn, error)
	Ping(ctx context.Context) error
}

// DBQuerier executes already interpolated SQL.
type DBQuerier interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBConn is a connection taken out of the pool.
// Release(true) closes the connection instead of returning it to the pool.
type DBConn interface {
	DBQuerier
	Begin(ctx context.Context) (DBTx, error)
	Release(discard bool) error
}

// DBTx is an open transaction on a DBConn.
type DBTx interface {
	DBQuerier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
