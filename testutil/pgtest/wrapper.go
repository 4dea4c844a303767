// Package pgtest opens a Postgres engine for integration tests against a live database.
//
// Tests are skipped unless MOVR_TEST_URL holds a connection URL. ADAPTER_TYPE selects the
// driver stack: pgx.pool (default), sql.db or sqlx.db.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/movr-workload-go/config"
	"github.com/AntonStoeckl/movr-workload-go/postgresengine"
)

const (
	envURL         = "MOVR_TEST_URL"
	envAdapterType = "ADAPTER_TYPE"

	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"

	testWorkers = 4
)

// Wrapper holds an engine and the database handle beneath it.
type Wrapper struct {
	engine *postgresengine.Engine
	close  func() error
}

// Engine returns the wrapped engine.
func (w *Wrapper) Engine() *postgresengine.Engine {
	return w.engine
}

// Close releases the database handle.
func (w *Wrapper) Close() {
	_ = w.close() // nothing to do about it in a test
}

// Adapter maps ADAPTER_TYPE to a config.Adapter.
func Adapter() (config.Adapter, error) {
	switch adapterType := strings.ToLower(os.Getenv(envAdapterType)); adapterType {
	case typePGXPool, "":
		return config.AdapterPGX, nil
	case typeSQLDB:
		return config.AdapterSQL, nil
	case typeSQLXDB:
		return config.AdapterSQLX, nil
	default:
		return "", fmt.Errorf("unsupported wrapper type from env: %s", adapterType)
	}
}

// New opens an engine on MOVR_TEST_URL or skips the test.
// The wrapper is closed when the test finishes.
func New(t testing.TB, options ...postgresengine.Option) *Wrapper {
	t.Helper()

	rawURL := os.Getenv(envURL)
	if rawURL == "" {
		t.Skipf("%s not set, skipping integration test", envURL)
	}

	adapter, err := Adapter()
	require.NoError(t, err)

	dsn, err := config.PostgresDSN(rawURL)
	require.NoError(t, err, "invalid %s", envURL)

	engine, closeDB, err := config.OpenEngine(context.Background(), adapter, dsn, testWorkers, options...)
	require.NoError(t, err, "error creating engine in test setup")

	w := &Wrapper{engine: engine, close: closeDB}
	t.Cleanup(w.Close)

	return w
}
