package config

import (
	"github.com/jmoiron/sqlx"
)

// PostgresSQLX creates a *sqlx.DB on the lib/pq driver sized for the given number of workers.
// The pool connects lazily.
func PostgresSQLX(dsn string, workers int) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverPostgres, dsn)
	if err != nil {
		return nil, err
	}

	configureSQLPool(db.DB, workers)

	return db, nil
}
