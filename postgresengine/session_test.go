package postgresengine

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/movr-workload-go/postgresengine/internal/adapters"
	"github.com/AntonStoeckl/movr-workload-go/testutil/spies"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

// fakeDB records statements and answers them from canned results.
type fakeDB struct {
	mu           sync.Mutex
	statements   []string
	commits      int
	rollbacks    int
	releases     []bool
	acquireErr   error
	rowsAffected func(sqlQuery string) int64
	execErr      func(sqlQuery string) error
	queryRows    [][]any
}

func (f *fakeDB) Acquire(_ context.Context) (adapters.DBConn, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}

	return &fakeConn{db: f}, nil
}

func (f *fakeDB) Ping(_ context.Context) error {
	return f.acquireErr
}

func (f *fakeDB) record(sqlQuery string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, sqlQuery)
}

func (f *fakeDB) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.statements...)
}

type fakeConn struct {
	db *fakeDB
}

func (c *fakeConn) Query(_ context.Context, sqlQuery string) (adapters.DBRows, error) {
	c.db.record(sqlQuery)
	return &fakeRows{rows: c.db.queryRows, pos: -1}, nil
}

func (c *fakeConn) Exec(_ context.Context, sqlQuery string) (adapters.DBResult, error) {
	c.db.record(sqlQuery)

	if c.db.execErr != nil {
		if err := c.db.execErr(sqlQuery); err != nil {
			return nil, err
		}
	}

	affected := int64(1)
	if c.db.rowsAffected != nil {
		affected = c.db.rowsAffected(sqlQuery)
	}

	return fakeResult(affected), nil
}

func (c *fakeConn) Begin(_ context.Context) (adapters.DBTx, error) {
	return &fakeTx{fakeConn: c}, nil
}

func (c *fakeConn) Release(discard bool) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.releases = append(c.db.releases, discard)

	return nil
}

type fakeTx struct {
	*fakeConn
}

func (tx *fakeTx) Commit(_ context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.commits++

	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.rollbacks++

	return nil
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(row) != len(dest) {
		return errors.New("column count mismatch")
	}

	for i, value := range row {
		target, ok := dest[i].(*string)
		if !ok {
			return errors.New("unsupported scan target")
		}
		*target = value.(string)
	}

	return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

func newTestSession(t *testing.T, db *fakeDB, options ...Option) (*Engine, workload.Session) {
	t.Helper()

	engine, err := newEngine(db, options...)
	require.NoError(t, err)

	session, err := engine.Connect(context.Background())
	require.NoError(t, err)

	return engine, session
}

func Test_Session_StartRide_ShouldFlipVehicleAndInsertRide_InOneTransaction(t *testing.T) {
	// arrange
	db := &fakeDB{}
	_, session := newTestSession(t, db)
	rider := workload.UserHandle{City: "boston", ID: testUserID}
	vehicle := workload.VehicleHandle{City: "boston", ID: testVehicleID}

	// act
	ride, err := session.StartRide(context.Background(), "boston", rider, vehicle)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "boston", ride.City)
	assert.Equal(t, testVehicleID, ride.VehicleID)

	statements := db.recorded()
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], `UPDATE "vehicles" SET "status"='in_use'`)
	assert.Contains(t, statements[0], `"status" = 'available'`)
	assert.Contains(t, statements[1], `INSERT INTO "rides"`)
	assert.Contains(t, statements[1], ride.ID.String())
	assert.Equal(t, 1, db.commits)
	assert.Zero(t, db.rollbacks)
}

func Test_Session_StartRide_ShouldRollBack_WhenVehicleIsNotAvailable(t *testing.T) {
	// arrange
	db := &fakeDB{rowsAffected: func(string) int64 { return 0 }}
	_, session := newTestSession(t, db)

	// act
	_, err := session.StartRide(
		context.Background(),
		"boston",
		workload.UserHandle{City: "boston", ID: testUserID},
		workload.VehicleHandle{City: "boston", ID: testVehicleID},
	)

	// assert
	assert.ErrorIs(t, err, ErrVehicleUnavailable)
	assert.ErrorIs(t, err, workload.ErrVehicleUnavailable)
	assert.Len(t, db.recorded(), 1, "the ride must not be inserted")
	assert.Zero(t, db.commits)
	assert.Equal(t, 1, db.rollbacks)
}

func Test_Session_StartRide_ShouldNotClaimTheSameVehicleTwice(t *testing.T) {
	// arrange
	var claimed sync.Map
	db := &fakeDB{rowsAffected: func(sqlQuery string) int64 {
		if strings.HasPrefix(sqlQuery, `UPDATE "vehicles"`) {
			if _, taken := claimed.LoadOrStore(testVehicleID, true); taken {
				return 0
			}
		}
		return 1
	}}
	_, session := newTestSession(t, db)
	rider := workload.UserHandle{City: "boston", ID: testUserID}
	vehicle := workload.VehicleHandle{City: "boston", ID: testVehicleID}

	// act
	first, firstErr := session.StartRide(context.Background(), "boston", rider, vehicle)
	_, secondErr := session.StartRide(context.Background(), "boston", rider, vehicle)

	// assert
	require.NoError(t, firstErr)
	assert.Equal(t, testVehicleID, first.VehicleID)
	assert.ErrorIs(t, secondErr, workload.ErrVehicleUnavailable)
	assert.Equal(t, 1, db.commits)
	assert.Equal(t, 1, db.rollbacks)
}

func Test_Session_EndRide_ShouldCompleteRideAndReleaseVehicle(t *testing.T) {
	// arrange
	db := &fakeDB{}
	_, session := newTestSession(t, db)
	ride := workload.RideHandle{City: "boston", ID: testRideID, VehicleID: testVehicleID}

	// act
	err := session.EndRide(context.Background(), "boston", ride)

	// assert
	require.NoError(t, err)

	statements := db.recorded()
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], `UPDATE "rides"`)
	assert.Contains(t, statements[1], `SET "status"='available'`)
	assert.Equal(t, 1, db.commits)
}

func Test_Session_EndRide_ShouldFail_WhenRideAlreadyEnded(t *testing.T) {
	// arrange
	db := &fakeDB{rowsAffected: func(string) int64 { return 0 }}
	_, session := newTestSession(t, db)
	ride := workload.RideHandle{City: "boston", ID: testRideID, VehicleID: testVehicleID}

	// act
	err := session.EndRide(context.Background(), "boston", ride)

	// assert
	assert.ErrorIs(t, err, ErrRideNotActive)
	assert.Equal(t, workload.ClassFatal, Classify(err))
	assert.Equal(t, 1, db.rollbacks)
}

func Test_Session_ShouldKeepDriverError_ForClassification(t *testing.T) {
	// arrange
	db := &fakeDB{execErr: func(sqlQuery string) error {
		if strings.HasPrefix(sqlQuery, `INSERT INTO "rides"`) {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	}}
	_, session := newTestSession(t, db)

	// act
	_, err := session.StartRide(
		context.Background(),
		"boston",
		workload.UserHandle{City: "boston", ID: testUserID},
		workload.VehicleHandle{City: "boston", ID: testVehicleID},
	)

	// assert
	assert.ErrorIs(t, err, ErrExecFailed)
	assert.Equal(t, workload.ClassTransient, Classify(err))
	assert.Equal(t, 1, db.rollbacks)
}

func Test_Session_ListActiveRides_ShouldScanHandles(t *testing.T) {
	// arrange
	db := &fakeDB{queryRows: [][]any{
		{"rome", testRideID.String(), testVehicleID.String()},
	}}
	_, session := newTestSession(t, db)

	// act
	rides, err := session.ListActiveRides(context.Background(), "rome", 10)

	// assert
	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.Equal(t, workload.RideHandle{City: "rome", ID: testRideID, VehicleID: testVehicleID}, rides[0])
}

func Test_Session_ListUsers_ShouldFail_OnMalformedID(t *testing.T) {
	// arrange
	db := &fakeDB{queryRows: [][]any{{"rome", "not-a-uuid"}}}
	_, session := newTestSession(t, db)

	// act
	_, err := session.ListUsers(context.Background(), "rome", 10)

	// assert
	assert.ErrorIs(t, err, ErrScanningRowFailed)
}

func Test_Session_Close_ShouldReleaseOnce_AndRejectFurtherCalls(t *testing.T) {
	// arrange
	db := &fakeDB{}
	_, session := newTestSession(t, db)

	// act
	require.NoError(t, session.Close(true))
	require.NoError(t, session.Close(false))
	_, err := session.CreateUser(context.Background(), "rome")

	// assert
	assert.Equal(t, []bool{true}, db.releases)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func Test_Engine_Connect_ShouldWrapAcquireErrors(t *testing.T) {
	// arrange
	engine, err := newEngine(&fakeDB{acquireErr: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}})
	require.NoError(t, err)

	// act
	_, err = engine.Connect(context.Background())

	// assert
	assert.ErrorIs(t, err, ErrAcquiringConnectionFailed)
	assert.Equal(t, workload.ClassConnectivity, engine.Classify(err))
}

func Test_Engine_ShouldEchoSQL_AndRecordObservability(t *testing.T) {
	// arrange
	logHandler := spies.NewLogHandlerSpy(false)
	metrics := spies.NewMetricsCollectorSpy()
	tracing := spies.NewTracingCollectorSpy()
	db := &fakeDB{rowsAffected: func(sqlQuery string) int64 {
		if strings.HasPrefix(sqlQuery, `UPDATE "rides"`) {
			return 0
		}
		return 1
	}}
	_, session := newTestSession(t, db,
		WithLogger(slog.New(logHandler)),
		WithMetrics(metrics),
		WithTracing(tracing),
	)

	// act
	_, createErr := session.CreateUser(context.Background(), "rome")
	endErr := session.EndRide(context.Background(), "rome", workload.RideHandle{City: "rome", ID: testRideID})

	// assert
	require.NoError(t, createErr)
	require.Error(t, endErr)
	assert.True(t, logHandler.HasLog(slog.LevelDebug, logMsgSQLExecuted+operationCreateUser).
		WithAttr(logAttrDurationMS).
		WithAttr(logAttrQuery).
		Assert())
	assert.True(t, logHandler.HasLog(slog.LevelError, logMsgStmtFailed).
		WithStringAttr(logAttrOperation, operationEndRide).
		WithStringAttr(labelErrorClass, "fatal").
		Assert())
	assert.Equal(t, 1, metrics.CountDurationRecords(metricStatementDuration, map[string]string{
		labelOperation: operationCreateUser,
	}))
	assert.Equal(t, 1, metrics.CountCounterRecords(metricDatabaseErrors, map[string]string{
		labelOperation:  operationEndRide,
		labelErrorClass: "fatal",
	}))
	assert.Equal(t, 1, tracing.CountSpans(spanNamePrefix+operationCreateUser, statusSuccess))
	assert.Equal(t, 1, tracing.CountSpans(spanNamePrefix+operationEndRide, statusError))
}

func Test_Engine_CreateSchema_ShouldDropFirst_WhenRequested(t *testing.T) {
	// arrange
	db := &fakeDB{}
	engine, err := newEngine(db)
	require.NoError(t, err)

	// act
	err = engine.CreateSchema(context.Background(), true)

	// assert
	require.NoError(t, err)
	statements := db.recorded()
	require.Len(t, statements, 10)
	assert.True(t, strings.HasPrefix(statements[0], "DROP TABLE"))
	assert.True(t, strings.HasPrefix(statements[4], "CREATE TABLE"))
	assert.Equal(t, []bool{false}, db.releases)
}

func Test_Engine_Options_ShouldRejectEmptyTableNames(t *testing.T) {
	// act
	_, err := newEngine(&fakeDB{}, WithTableNames(TableNames{Users: "u"}))

	// assert
	assert.ErrorIs(t, err, ErrEmptyTableName)
}
