package workload_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/movr-workload-go/testutil/memstore"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

func Test_Loader_Load_ShouldPopulateEveryCity(t *testing.T) {
	// setup
	store := memstore.New()
	loader, err := workload.NewLoader(store, nil)
	require.NoError(t, err)
	cities := []string{"new york", "boston", "washington dc"}

	// act
	result, err := loader.Load(context.Background(), workload.LoadConfig{
		Cities:   cities,
		Users:    30,
		Vehicles: 9,
		Rides:    60,
		Threads:  2,
		Seed:     11,
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, workload.LoadResult{Users: 30, Vehicles: 9, Rides: 60}, result)

	for _, city := range cities {
		assert.Equal(t, 10, store.UserCount(city))
		assert.Len(t, store.Vehicles(city), 3)
		assert.Len(t, store.Rides(city), 20)
	}
	assert.Equal(t, int64(2), store.Connects(), "one session per goroutine")
}

func Test_Loader_Load_ShouldCreateAtLeastOneOfEach_PerCity(t *testing.T) {
	store := memstore.New()
	loader, err := workload.NewLoader(store, nil)
	require.NoError(t, err)

	result, err := loader.Load(context.Background(), workload.LoadConfig{
		Cities: []string{"rome", "paris"}, Users: 1, Vehicles: 0, Rides: 0, Threads: 4,
	})

	require.NoError(t, err)
	assert.Equal(t, workload.LoadResult{Users: 2, Vehicles: 2, Rides: 2}, result)
}

func Test_Loader_Load_ShouldStop_OnTheFirstFatalError(t *testing.T) {
	// setup
	boom := errors.New("relation \"vehicles\" does not exist")
	store := memstore.New(memstore.WithFailureInjector(func(op string) error {
		if op == memstore.OpCreateVehicle {
			return boom
		}
		return nil
	}))
	loader, err := workload.NewLoader(store, nil)
	require.NoError(t, err)

	// act
	_, err = loader.Load(context.Background(), workload.LoadConfig{
		Cities: []string{"seattle"}, Users: 5, Vehicles: 5, Rides: 5, Threads: 1,
	})

	// assert
	assert.ErrorIs(t, err, workload.ErrFatal)
	assert.ErrorIs(t, err, boom)
}

func Test_Loader_Load_ShouldRejectInvalidConfigs(t *testing.T) {
	loader, err := workload.NewLoader(memstore.New(), nil)
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), workload.LoadConfig{})
	assert.ErrorIs(t, err, workload.ErrNoCities)

	_, err = loader.Load(context.Background(), workload.LoadConfig{Cities: []string{"rome"}, Users: -1})
	assert.ErrorIs(t, err, workload.ErrNegativeCount)
}

func Test_PreloadCache_ShouldRequireUsersAndVehicles(t *testing.T) {
	// setup
	store := memstore.New()
	cache := workload.NewHandleCache()

	// act
	err := workload.PreloadCache(context.Background(), store, cache, []string{"los angeles"}, 10, nil)

	// assert
	assert.ErrorIs(t, err, workload.ErrMissingFixtures)
}

func Test_PreloadCache_ShouldFillTheCache(t *testing.T) {
	// setup
	store := memstore.New()
	loader, err := workload.NewLoader(store, nil)
	require.NoError(t, err)
	_, err = loader.Load(context.Background(), workload.LoadConfig{
		Cities: []string{"los angeles"}, Users: 4, Vehicles: 3, Rides: 1, Threads: 1,
	})
	require.NoError(t, err)
	cache := workload.NewHandleCache()

	// act
	err = workload.PreloadCache(context.Background(), store, cache, []string{"los angeles"}, 10, nil)

	// assert
	require.NoError(t, err)
	users, vehicles, rides := cache.Counts("los angeles")
	assert.Equal(t, 4, users)
	assert.Equal(t, 3, vehicles)
	assert.Zero(t, rides, "historical rides are not active")
}
