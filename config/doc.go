// Package config provides the connection and telemetry setup of the movr command.
//
// It contains factory functions for the database handles of the supported PostgreSQL adapters
// (pgx.Pool, sql.DB with lib/pq, sqlx.DB), a constructor for the Postgres engine on top of them,
// and the bootstrap of the OpenTelemetry trace and metric providers with OTLP gRPC exporters.
package config
