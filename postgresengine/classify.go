package postgresengine

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

// codeRestartTransaction is CockroachDB's "restart transaction" SQLSTATE.
const codeRestartTransaction = "CR000"

// Classify maps errors of pgx, lib/pq and database/sql onto the workload retry taxonomy.
//
// Serialization failures, deadlocks and restart requests are transient.
// Connection exceptions, server shutdowns, timeouts and broken or unreachable connections are connectivity errors.
// Everything else, e.g. constraint violations and syntax errors, is fatal.
func Classify(err error) workload.ErrorClass {
	if err == nil {
		return workload.ClassFatal
	}

	if code, ok := sqlState(err); ok {
		return classifySQLState(code)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error

	switch {
	case errors.Is(err, workload.ErrTransient):
		return workload.ClassTransient
	case errors.Is(err, workload.ErrConnectivity),
		errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, puddle.ErrClosedPool),
		pgconn.SafeToRetry(err):
		return workload.ClassConnectivity
	default:
		return workload.ClassFatal
	}
}

// Classifier is Classify as a workload.ErrorClassifier.
var Classifier workload.ErrorClassifier = workload.ErrorClassifierFunc(Classify)

func classifySQLState(code string) workload.ErrorClass {
	switch {
	case code == pgerrcode.SerializationFailure,
		code == pgerrcode.DeadlockDetected,
		code == codeRestartTransaction:
		return workload.ClassTransient
	case pgerrcode.IsConnectionException(code),
		code == pgerrcode.AdminShutdown,
		code == pgerrcode.CrashShutdown,
		code == pgerrcode.CannotConnectNow:
		return workload.ClassConnectivity
	default:
		return workload.ClassFatal
	}
}

// sqlState extracts the SQLSTATE of a pgx or lib/pq server error.
func sqlState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}

	return "", false
}
