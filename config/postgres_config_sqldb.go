package config

import (
	"database/sql"

	_ "github.com/lib/pq" // postgres driver
)

const driverPostgres = "postgres"

// PostgresSQLDB creates a *sql.DB on the lib/pq driver sized for the given number of workers.
// The pool connects lazily.
func PostgresSQLDB(dsn string, workers int) (*sql.DB, error) {
	db, err := sql.Open(driverPostgres, dsn)
	if err != nil {
		return nil, err
	}

	configureSQLPool(db, workers)

	return db, nil
}

func configureSQLPool(db *sql.DB, workers int) {
	maxConns := max(workers, 1) + spareConnections

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}
