// Package postgresengine provides the PostgreSQL / CockroachDB data store of the MovR workload.
//
// The Engine is a workload.Connector: every Connect takes a dedicated connection out of the pool
// and wraps it in a Session, which implements workload.DataStore. Closing a Session with discard set
// destroys the connection, so the next Connect may be balanced onto another node.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Ride start and end as single transactions that also flip the vehicle status
//   - Error classification of SQLSTATEs and driver errors for the retrying executor
//   - Configurable table names, schema creation and SQL echo at debug level
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := postgresengine.NewEngineFromPGXPool(
//		db,
//		postgresengine.WithLogger(logger),
//		postgresengine.WithSeed(42),
//	)
//
//	_ = engine.CreateSchema(ctx, false)
//	coordinator, _ := workload.NewCoordinator(engine, cfg, workload.WithClassifier(engine))
package postgresengine
