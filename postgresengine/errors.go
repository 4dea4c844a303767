package postgresengine

import (
	"errors"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

var (
	// ErrNilDatabaseConnection is returned when a nil pool is supplied to a constructor.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned when an empty table name is configured.
	ErrEmptyTableName = errors.New("table name must not be empty")

	// ErrAcquiringConnectionFailed wraps errors from taking a connection out of the pool.
	ErrAcquiringConnectionFailed = errors.New("acquiring database connection failed")

	// ErrBuildingQueryFailed wraps errors from building SQL statements.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrEncodingMetadataFailed wraps errors from encoding vehicle metadata as JSON.
	ErrEncodingMetadataFailed = errors.New("encoding vehicle metadata failed")

	// ErrQueryFailed wraps errors from executing a query.
	ErrQueryFailed = errors.New("query failed")

	// ErrExecFailed wraps errors from executing a statement.
	ErrExecFailed = errors.New("statement execution failed")

	// ErrScanningRowFailed wraps errors from scanning a result row.
	ErrScanningRowFailed = errors.New("scanning database row failed")

	// ErrTransactionFailed wraps errors from beginning or committing a transaction.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrRideNotActive is returned when ending a ride that does not exist or has already ended.
	ErrRideNotActive = errors.New("ride does not exist or has already ended")

	// ErrVehicleUnavailable is returned when starting a ride on a vehicle that is unknown, in use or lost.
	ErrVehicleUnavailable = workload.ErrVehicleUnavailable

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session closed")
)
