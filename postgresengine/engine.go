package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/movr-workload-go/postgresengine/internal/adapters"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

// Engine is the PostgreSQL / CockroachDB backend of the MovR workload.
// It is a workload.Connector: every Connect takes a dedicated connection out of the pool.
type Engine struct {
	db               adapters.DBAdapter
	queries          queryBuilder
	seed             int64
	sessions         atomic.Uint64
	logger           workload.Logger
	contextualLogger workload.ContextualLogger
	metricsCollector workload.MetricsCollector
	tracingCollector workload.TracingCollector
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options...)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB (lib/pq driver) with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options...)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options...)
}

func newEngine(db adapters.DBAdapter, options ...Option) (*Engine, error) {
	e := &Engine{
		db:      db,
		queries: newQueryBuilder(DefaultTableNames()),
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Connect implements workload.Connector.
func (e *Engine) Connect(ctx context.Context) (workload.Session, error) {
	conn, err := e.db.Acquire(ctx)
	if err != nil {
		e.logError(ctx, logMsgAcquireFailed, err)
		e.recordErrorMetrics(ctx, operationConnect, err)

		return nil, errors.Join(ErrAcquiringConnectionFailed, err)
	}

	n := e.sessions.Add(1)
	gen := workload.NewGenerator(workload.DeriveSeed(e.seed, fmt.Sprintf("session-%d", n)))

	return &Session{engine: e, conn: conn, gen: gen}, nil
}

// Ping checks that the database is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.Ping(ctx)
}

// Classify implements workload.ErrorClassifier.
func (e *Engine) Classify(err error) workload.ErrorClass {
	return Classify(err)
}
