package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	createUsersTable = `CREATE TABLE IF NOT EXISTS %s (
    id UUID PRIMARY KEY,
    city TEXT NOT NULL,
    name TEXT,
    address TEXT,
    credit_card TEXT
)`

	createVehiclesTable = `CREATE TABLE IF NOT EXISTS %s (
    id UUID PRIMARY KEY,
    city TEXT NOT NULL,
    type TEXT,
    owner_id UUID REFERENCES %s (id),
    creation_time TIMESTAMP,
    status TEXT,
    current_location TEXT,
    ext JSONB
)`

	createVehiclesCityIndex = `CREATE INDEX IF NOT EXISTS %s_city_idx ON %s (city, status)`

	createRidesTable = `CREATE TABLE IF NOT EXISTS %s (
    id UUID PRIMARY KEY,
    city TEXT NOT NULL,
    rider_id UUID REFERENCES %s (id),
    vehicle_id UUID REFERENCES %s (id),
    start_address TEXT,
    end_address TEXT,
    start_time TIMESTAMP,
    end_time TIMESTAMP,
    revenue DECIMAL(10,2)
)`

	createRidesCityIndex = `CREATE INDEX IF NOT EXISTS %s_city_idx ON %s (city, end_time)`

	createLocationHistoryTable = `CREATE TABLE IF NOT EXISTS %s (
    city TEXT NOT NULL,
    ride_id UUID,
    timestamp TIMESTAMP,
    lat FLOAT8,
    long FLOAT8,
    PRIMARY KEY (ride_id, timestamp)
)`

	dropTable = `DROP TABLE IF EXISTS %s CASCADE`
)

// schemaStatements returns the DDL of the MovR schema in dependency order.
func (t TableNames) schemaStatements() []string {
	return []string{
		fmt.Sprintf(createUsersTable, t.Users),
		fmt.Sprintf(createVehiclesTable, t.Vehicles, t.Users),
		fmt.Sprintf(createVehiclesCityIndex, t.Vehicles, t.Vehicles),
		fmt.Sprintf(createRidesTable, t.Rides, t.Users, t.Vehicles),
		fmt.Sprintf(createRidesCityIndex, t.Rides, t.Rides),
		fmt.Sprintf(createLocationHistoryTable, t.LocationHistory),
	}
}

// dropStatements returns the statements that drop the MovR schema, dependents first.
func (t TableNames) dropStatements() []string {
	return []string{
		fmt.Sprintf(dropTable, t.LocationHistory),
		fmt.Sprintf(dropTable, t.Rides),
		fmt.Sprintf(dropTable, t.Vehicles),
		fmt.Sprintf(dropTable, t.Users),
	}
}

// CreateSchema creates the MovR tables if they do not exist.
// With drop set, existing tables are dropped first (movr load --init).
func (e *Engine) CreateSchema(ctx context.Context, drop bool) error {
	statements := e.queries.tables.schemaStatements()
	operation := operationCreateSchema

	if drop {
		statements = append(e.queries.tables.dropStatements(), statements...)
		operation = operationDropSchema
	}

	conn, err := e.db.Acquire(ctx)
	if err != nil {
		return errors.Join(ErrAcquiringConnectionFailed, err)
	}
	defer func() { _ = conn.Release(false) }()

	for _, statement := range statements {
		start := time.Now()
		_, execErr := conn.Exec(ctx, statement)
		e.logQueryWithDuration(ctx, statement, operation, time.Since(start))

		if execErr != nil {
			e.logError(ctx, logMsgStmtFailed, execErr, logAttrOperation, operation)
			return errors.Join(ErrExecFailed, execErr)
		}
	}

	e.logOperation(ctx, operation, logAttrStatements, len(statements))

	return nil
}
