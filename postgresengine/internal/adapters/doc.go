// Package adapters provide database adapter implementations for the PostgreSQL data store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters hand out dedicated connections through
// a common DBAdapter interface, so a simulated client keeps its own connection until it
// releases or discards it, and can run multi-statement transactions on it.
package adapters
