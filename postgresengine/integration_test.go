package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/movr-workload-go/postgresengine"
	"github.com/AntonStoeckl/movr-workload-go/testutil/pgtest"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

const integrationCity = "amsterdam"

func integrationTables() postgresengine.TableNames {
	return postgresengine.TableNames{
		Users:           "it_users",
		Vehicles:        "it_vehicles",
		Rides:           "it_rides",
		LocationHistory: "it_vehicle_location_histories",
	}
}

func Test_Integration_Session_ShouldRunARideLifecycle(t *testing.T) {
	// arrange
	w := pgtest.New(t, postgresengine.WithTableNames(integrationTables()), postgresengine.WithSeed(42))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, w.Engine().CreateSchema(ctx, true))

	session, err := w.Engine().Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(false) }()

	owner, err := session.CreateUser(ctx, integrationCity)
	require.NoError(t, err)
	vehicle, err := session.CreateVehicle(ctx, integrationCity, owner, "bike",
		map[string]string{"brand": "Merida", "color": "red"}, "available")
	require.NoError(t, err)

	// act
	ride, err := session.StartRide(ctx, integrationCity, owner, vehicle)
	require.NoError(t, err)
	require.NoError(t, session.RecordLocationPing(ctx, integrationCity, ride, 52.37, 4.89))
	active, err := session.ListActiveRides(ctx, integrationCity, 10)
	require.NoError(t, err)
	require.NoError(t, session.EndRide(ctx, integrationCity, ride))
	endAgainErr := session.EndRide(ctx, integrationCity, ride)

	// assert
	assert.Contains(t, active, ride)
	assert.ErrorIs(t, endAgainErr, postgresengine.ErrRideNotActive)
	assert.Equal(t, workload.ClassFatal, w.Engine().Classify(endAgainErr))

	vehicles, err := session.ListVehicles(ctx, integrationCity, 10)
	require.NoError(t, err)
	assert.Contains(t, vehicles, vehicle, "vehicle is available again")
}

func Test_Integration_Loader_ShouldPopulateEveryCity(t *testing.T) {
	// arrange
	w := pgtest.New(t, postgresengine.WithTableNames(integrationTables()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, w.Engine().CreateSchema(ctx, true))

	executor, err := workload.NewRetryingExecutor(w.Engine())
	require.NoError(t, err)
	loader, err := workload.NewLoader(w.Engine(), executor)
	require.NoError(t, err)

	cities := []string{"amsterdam", "paris", "rome"}

	// act
	result, err := loader.Load(ctx, workload.LoadConfig{Cities: cities, Users: 9, Vehicles: 6, Rides: 12, Threads: 2, Seed: 7})

	// assert
	require.NoError(t, err)
	assert.Equal(t, workload.LoadResult{Users: 9, Vehicles: 6, Rides: 12}, result)

	session, err := w.Engine().Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(false) }()

	for _, city := range cities {
		users, err := session.ListUsers(ctx, city, 25)
		require.NoError(t, err)
		assert.Len(t, users, 3, city)
	}
}
