package postgresengine

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

var (
	testUserID    = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	testVehicleID = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	testRideID    = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")
	testTime      = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
)

func Test_QueryBuilder_InsertUser_ShouldRenderAllColumns(t *testing.T) {
	// arrange
	q := newQueryBuilder(DefaultTableNames())
	person := workload.Person{Name: "Ada O'Brien", Address: "1 Main St", CreditCard: "4111"}

	// act
	sqlQuery, err := q.insertUser("boston", testUserID, person)

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sqlQuery, `INSERT INTO "users"`))
	assert.Contains(t, sqlQuery, `"address", "city", "credit_card", "id", "name"`)
	assert.Contains(t, sqlQuery, "'boston'")
	assert.Contains(t, sqlQuery, "'"+testUserID.String()+"'")
	assert.Contains(t, sqlQuery, "'Ada O''Brien'", "quotes must be escaped")
}

func Test_QueryBuilder_InsertVehicle_ShouldEncodeMetadata_AsJsonb(t *testing.T) {
	// arrange
	q := newQueryBuilder(DefaultTableNames())
	owner := workload.UserHandle{City: "boston", ID: testUserID}
	metadata := map[string]string{"color": "red", "brand": "Merida"}

	// act
	sqlQuery, err := q.insertVehicle(
		"boston", testVehicleID, owner, "bike", metadata, workload.VehicleAvailable, "2 Main St", testTime,
	)

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sqlQuery, `INSERT INTO "vehicles"`))
	assert.Contains(t, sqlQuery, `'{"brand":"Merida","color":"red"}'::jsonb`)
	assert.Contains(t, sqlQuery, "'"+testUserID.String()+"'")
	assert.Contains(t, sqlQuery, "'available'")
}

func Test_QueryBuilder_InsertRide_ShouldLeaveRideActive_WithZeroEndTime(t *testing.T) {
	// arrange
	q := newQueryBuilder(DefaultTableNames())
	rider := workload.UserHandle{City: "boston", ID: testUserID}
	vehicle := workload.VehicleHandle{City: "boston", ID: testVehicleID}

	// act
	active, err := q.insertRide("boston", testRideID, rider, vehicle, "start", "", testTime, time.Time{}, 0)
	require.NoError(t, err)

	completed, err := q.insertRide("boston", testRideID, rider, vehicle, "start", "end", testTime, testTime.Add(time.Hour), 12.5)
	require.NoError(t, err)

	// assert
	assert.NotContains(t, active, `"end_time"`)
	assert.NotContains(t, active, `"revenue"`)
	assert.Contains(t, completed, `"end_time"`)
	assert.Contains(t, completed, `"revenue"`)
	assert.Contains(t, completed, "12.5")
}

func Test_QueryBuilder_Selects_ShouldFilterByCity_AndLimit(t *testing.T) {
	// arrange
	q := newQueryBuilder(DefaultTableNames())

	// act
	users, err := q.selectUsers("rome", 25)
	require.NoError(t, err)

	vehicles, err := q.selectAvailableVehicles("rome", 10)
	require.NoError(t, err)

	rides, err := q.selectActiveRides("rome", 5)
	require.NoError(t, err)

	// assert
	assert.Equal(t, `SELECT "city", "id" FROM "users" WHERE ("city" = 'rome') LIMIT 25`, users)
	assert.Contains(t, vehicles, `"status" = 'available'`)
	assert.Contains(t, vehicles, "LIMIT 10")
	assert.Contains(t, rides, `SELECT "city", "id", "vehicle_id" FROM "rides"`)
	assert.Contains(t, rides, `"end_time" IS NULL`)
	assert.Contains(t, rides, "LIMIT 5")
}

func Test_QueryBuilder_CompleteRide_ShouldOnlyMatchActiveRides(t *testing.T) {
	// arrange
	q := newQueryBuilder(DefaultTableNames())
	ride := workload.RideHandle{City: "paris", ID: testRideID, VehicleID: testVehicleID}

	// act
	sqlQuery, err := q.completeRide(ride, "end", testTime, 42)

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sqlQuery, `UPDATE "rides" SET`))
	assert.Contains(t, sqlQuery, `"end_time" IS NULL`)
	assert.Contains(t, sqlQuery, `"id" = '`+testRideID.String()+`'`)
	assert.Contains(t, sqlQuery, `"city" = 'paris'`)
}

func Test_QueryBuilder_UpdateVehicleStatus_ShouldTargetOneVehicle(t *testing.T) {
	// arrange
	q := newQueryBuilder(DefaultTableNames())

	// act
	sqlQuery, err := q.updateVehicleStatus("paris", testVehicleID, workload.VehicleAvailable)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `SET "status"='available'`)
	assert.Contains(t, sqlQuery, `"id" = '`+testVehicleID.String()+`'`)
}

func Test_QueryBuilder_ClaimVehicle_ShouldOnlyMatchAvailableVehicles(t *testing.T) {
	// arrange
	q := newQueryBuilder(DefaultTableNames())

	// act
	sqlQuery, err := q.claimVehicle("paris", testVehicleID)

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sqlQuery, `UPDATE "vehicles" SET "status"='in_use' WHERE`))
	assert.Contains(t, sqlQuery, `"city" = 'paris'`)
	assert.Contains(t, sqlQuery, `"id" = '`+testVehicleID.String()+`'`)
	assert.Contains(t, sqlQuery, `"status" = 'available'`)
}

func Test_QueryBuilder_ShouldUseConfiguredTableNames(t *testing.T) {
	// arrange
	q := newQueryBuilder(TableNames{
		Users:           "movr_users",
		Vehicles:        "movr_vehicles",
		Rides:           "movr_rides",
		LocationHistory: "movr_pings",
	})
	ride := workload.RideHandle{City: "paris", ID: testRideID, VehicleID: testVehicleID}

	// act
	ping, err := q.insertLocationPing("paris", ride, testTime, 48.85, 2.35)

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ping, `INSERT INTO "movr_pings"`))
	assert.Contains(t, ping, `"lat", "long", "ride_id", "timestamp"`)
}

func Test_TableNames_ShouldRejectEmptyNames(t *testing.T) {
	// arrange
	tables := DefaultTableNames()
	tables.Rides = ""

	// act
	err := tables.validate()

	// assert
	assert.ErrorIs(t, err, ErrEmptyTableName)
}

func Test_TableNames_SchemaStatements_ShouldCreateReferencedTablesFirst(t *testing.T) {
	// act
	statements := DefaultTableNames().schemaStatements()
	drops := DefaultTableNames().dropStatements()

	// assert
	require.Len(t, statements, 6)
	assert.Contains(t, statements[0], "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, statements[1], "REFERENCES users (id)")
	assert.Contains(t, statements[3], "REFERENCES vehicles (id)")
	assert.Equal(t, "DROP TABLE IF EXISTS vehicle_location_histories CASCADE", drops[0])
	assert.Equal(t, "DROP TABLE IF EXISTS users CASCADE", drops[3])
}
