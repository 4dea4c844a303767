package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

const (
	flagNumUsers    = "num-users"
	flagNumVehicles = "num-vehicles"
	flagNumRides    = "num-rides"
	flagCity        = "city"
	flagInit        = "init"
	flagDryRun      = "dry-run"

	defaultNumUsers    = 50
	defaultNumVehicles = 10
	defaultNumRides    = 500
)

// errInvalidCounts is returned when a load size is not positive.
var errInvalidCounts = errors.New("number of users, vehicles and rides must be > 0")

type loadSettings struct {
	Users    int
	Vehicles int
	Rides    int
	Cities   []string
	Init     bool
	DryRun   bool
}

func newLoadCommand(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Create the MovR tables and populate them with users, vehicles and rides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := readGlobalSettings(v)
			if err != nil {
				return err
			}

			load, err := readLoadSettings(v)
			if err != nil {
				return err
			}

			return runLoad(cmd, settings, load, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.Int(flagNumUsers, defaultNumUsers, "number of users to create")
	flags.Int(flagNumVehicles, defaultNumVehicles, "number of vehicles to create")
	flags.Int(flagNumRides, defaultNumRides, "number of historical rides to create")
	flags.StringSlice(flagCity, nil, "region:city pair to load, repeatable; defaults to the built-in cities")
	flags.Bool(flagInit, false, "drop and recreate the MovR tables first")
	flags.Bool(flagDryRun, false, "load into an in-memory data store instead of the database")

	return cmd
}

func readLoadSettings(v *viper.Viper) (loadSettings, error) {
	settings := loadSettings{
		Users:    v.GetInt(flagNumUsers),
		Vehicles: v.GetInt(flagNumVehicles),
		Rides:    v.GetInt(flagNumRides),
		Cities:   workload.CitiesOf(workload.ParsePartitionPairs(v.GetStringSlice(flagCity))),
		Init:     v.GetBool(flagInit),
		DryRun:   v.GetBool(flagDryRun),
	}

	if settings.Users <= 0 || settings.Vehicles <= 0 || settings.Rides <= 0 {
		return loadSettings{}, errInvalidCounts
	}

	return settings, nil
}

func runLoad(cmd *cobra.Command, settings globalSettings, load loadSettings, stdout, stderr io.Writer) (err error) {
	ctx := cmd.Context()

	t, err := newTelemetry(ctx, settings, stderr)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, t.shutdown(context.WithoutCancel(ctx))) }()

	b, err := openBackend(ctx, settings, t, load.DryRun)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, b.close()) }()

	if err := b.createSchema(ctx, load.Init); err != nil {
		return err
	}

	started := time.Now()

	result, err := populate(cmd, b, t, workload.LoadConfig{
		Cities:   load.Cities,
		Users:    load.Users,
		Vehicles: load.Vehicles,
		Rides:    load.Rides,
		Threads:  settings.Threads,
		Seed:     settings.Seed,
	})
	if err != nil {
		return err
	}

	return writeLoadSummary(stdout, len(load.Cities), result, time.Since(started))
}

func populate(cmd *cobra.Command, b *backend, t *telemetry, cfg workload.LoadConfig) (workload.LoadResult, error) {
	executor, err := workload.NewRetryingExecutor(b.classifier, t.retryOptions()...)
	if err != nil {
		return workload.LoadResult{}, err
	}

	loader, err := workload.NewLoader(b.connector, executor, t.loaderOptions()...)
	if err != nil {
		return workload.LoadResult{}, err
	}

	return loader.Load(cmd.Context(), cfg)
}

func writeLoadSummary(out io.Writer, cities int, result workload.LoadResult, elapsed time.Duration) error {
	seconds := max(elapsed.Seconds(), 1e-9)

	_, err := fmt.Fprintf(out,
		"populated %d cities in %.2f seconds\n"+
			"  - %s users/second\n"+
			"  - %s vehicles/second\n"+
			"  - %s rides/second\n",
		cities, elapsed.Seconds(),
		humanize.CommafWithDigits(float64(result.Users)/seconds, 1),
		humanize.CommafWithDigits(float64(result.Vehicles)/seconds, 1),
		humanize.CommafWithDigits(float64(result.Rides)/seconds, 1),
	)

	return err
}
