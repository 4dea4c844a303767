package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/movr-workload-go/testutil/memstore"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

func newVehicle(t *testing.T, session workload.Session, status string) (workload.UserHandle, workload.VehicleHandle) {
	t.Helper()

	owner, err := session.CreateUser(context.Background(), "rome")
	require.NoError(t, err)

	vehicle, err := session.CreateVehicle(context.Background(), "rome", owner, "scooter", nil, status)
	require.NoError(t, err)

	return owner, vehicle
}

func Test_StartRide_ShouldRejectAVehicleThatIsAlreadyInUse(t *testing.T) {
	// arrange
	ctx := context.Background()
	session, err := memstore.New().Connect(ctx)
	require.NoError(t, err)
	rider, vehicle := newVehicle(t, session, workload.VehicleAvailable)

	// act
	first, firstErr := session.StartRide(ctx, "rome", rider, vehicle)
	_, secondErr := session.StartRide(ctx, "rome", rider, vehicle)

	// assert
	require.NoError(t, firstErr)
	assert.Equal(t, vehicle.ID, first.VehicleID)
	assert.ErrorIs(t, secondErr, workload.ErrVehicleUnavailable)
}

func Test_StartRide_ShouldRejectAVehicleThatIsNotAvailable(t *testing.T) {
	for _, status := range []string{workload.VehicleInUse, workload.VehicleLost} {
		t.Run(status, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			store := memstore.New()
			session, err := store.Connect(ctx)
			require.NoError(t, err)
			rider, vehicle := newVehicle(t, session, status)

			// act
			_, err = session.StartRide(ctx, "rome", rider, vehicle)

			// assert
			assert.ErrorIs(t, err, workload.ErrVehicleUnavailable)
			assert.Empty(t, store.Rides("rome"))
		})
	}
}

func Test_StartRide_ShouldAcceptTheVehicleAgain_AfterTheRideEnded(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memstore.New()
	session, err := store.Connect(ctx)
	require.NoError(t, err)
	rider, vehicle := newVehicle(t, session, workload.VehicleAvailable)

	first, err := session.StartRide(ctx, "rome", rider, vehicle)
	require.NoError(t, err)
	require.NoError(t, session.EndRide(ctx, "rome", first))

	// act
	second, err := session.StartRide(ctx, "rome", rider, vehicle)

	// assert
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active := 0
	for _, ride := range store.Rides("rome") {
		if ride.Active {
			active++
		}
	}
	assert.Equal(t, 1, active)
	assert.ErrorIs(t, session.EndRide(ctx, "rome", first), memstore.ErrRideEnded)
}
