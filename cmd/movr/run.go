package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

const (
	flagReadOnlyPercentage = "read-only-percentage"
	flagDuration           = "duration"
	flagMaxIterations      = "max-iterations"
	flagRateLimit          = "rate-limit"
	flagMinLiveWorkers     = "min-live-workers"

	defaultReadOnlyPercentage = 0.9

	// fixture sizes per city of a --dry-run
	dryRunUsersPerCity    = 10
	dryRunVehiclesPerCity = 10
)

var (
	// errAllWorkersDead is returned when every worker gave up reconnecting.
	errAllWorkersDead = errors.New("all workers died")

	errLoadFirst = errors.New("try running the load command first")
)

type runSettings struct {
	Cities             []string
	ReadOnlyPercentage float64
	Duration           time.Duration
	MaxIterations      uint64
	RateLimit          float64
	MinLiveWorkers     int
	DryRun             bool
}

func newRunCommand(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate riders, vehicle owners and rides against a loaded MovR database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := readGlobalSettings(v)
			if err != nil {
				return err
			}

			return runWorkload(cmd.Context(), settings, readRunSettings(v), stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice(flagCity, nil, "city to simulate, repeatable; defaults to the built-in cities")
	flags.Float64(flagReadOnlyPercentage, defaultReadOnlyPercentage, "share of read-only actions, between 0 and 1")
	flags.Duration(flagDuration, 0, "stop after this long, 0 runs until interrupted")
	flags.Uint64(flagMaxIterations, 0, "stop each worker after this many actions, 0 means unlimited")
	flags.Float64(flagRateLimit, 0, "maximum actions per second of all workers together, 0 means unlimited")
	flags.Int(flagMinLiveWorkers, 0, "warn when fewer workers are alive, 0 means all of them")
	flags.Bool(flagDryRun, false, "simulate against an in-memory data store with generated fixtures")

	return cmd
}

func readRunSettings(v *viper.Viper) runSettings {
	return runSettings{
		Cities:             cityNames(v.GetStringSlice(flagCity)),
		ReadOnlyPercentage: v.GetFloat64(flagReadOnlyPercentage),
		Duration:           v.GetDuration(flagDuration),
		MaxIterations:      v.GetUint64(flagMaxIterations),
		RateLimit:          v.GetFloat64(flagRateLimit),
		MinLiveWorkers:     v.GetInt(flagMinLiveWorkers),
		DryRun:             v.GetBool(flagDryRun),
	}
}

// cityNames accepts plain city names as well as the region:city pairs of the load command.
func cityNames(values []string) []string {
	if len(values) == 0 {
		return workload.DefaultCities()
	}

	return workload.CitiesOf(workload.ParsePartitionPairs(values))
}

func runWorkload(ctx context.Context, settings globalSettings, run runSettings, stdout, stderr io.Writer) (err error) {
	weights, err := workload.WeightsFromReadPercentage(run.ReadOnlyPercentage)
	if err != nil {
		return err
	}

	cfg := workload.DefaultConfig()
	cfg.Cities = run.Cities
	cfg.Workers = settings.Threads
	cfg.Weights = weights
	cfg.ReportInterval = settings.ReportInterval
	cfg.MaxIterations = run.MaxIterations
	cfg.RateLimit = run.RateLimit
	cfg.MinLiveWorkers = run.MinLiveWorkers
	cfg.Seed = settings.Seed
	if err := cfg.Validate(); err != nil {
		return err
	}

	t, err := newTelemetry(ctx, settings, stderr)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, t.shutdown(context.WithoutCancel(ctx))) }()

	b, err := openBackend(ctx, settings, t, run.DryRun)
	if err != nil {
		return err
	}
	forced := false
	defer func() { err = errors.Join(err, b.release(forced)) }()

	if run.DryRun {
		if err := seedDryRun(ctx, b, t, cfg); err != nil {
			return err
		}
	}

	cache := workload.NewHandleCache()
	if err := workload.PreloadCache(ctx, b.connector, cache, cfg.Cities, cfg.ListLimit, t.logger); err != nil {
		if errors.Is(err, workload.ErrMissingFixtures) {
			return errors.Join(err, errLoadFirst)
		}

		return err
	}

	options := append(t.coordinatorOptions(),
		workload.WithClassifier(b.classifier),
		workload.WithCache(cache),
		workload.WithReportWriter(stdout),
	)

	coordinator, err := workload.NewCoordinator(b.connector, cfg, options...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if run.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, run.Duration)
		defer cancel()
	}

	if err := coordinator.Start(runCtx); err != nil {
		return err
	}

	select {
	case <-runCtx.Done():
	case <-coordinator.Done():
	}

	stopErr := coordinator.Stop(settings.GracePeriod)
	forced = errors.Is(stopErr, workload.ErrForcedTermination)

	if _, err := fmt.Fprintln(stdout, "final report:"); err != nil {
		return errors.Join(stopErr, err)
	}
	if err := coordinator.Report().Render(stdout); err != nil {
		return errors.Join(stopErr, err)
	}

	if stopErr != nil {
		return stopErr
	}

	if coordinator.LiveWorkers() == 0 && allDead(coordinator.WorkerStates()) {
		return errors.Join(errAllWorkersDead, workload.ErrWorkerDead)
	}

	return nil
}

func seedDryRun(ctx context.Context, b *backend, t *telemetry, cfg workload.Config) error {
	executor, err := workload.NewRetryingExecutor(b.classifier, t.retryOptions()...)
	if err != nil {
		return err
	}

	loader, err := workload.NewLoader(b.connector, executor, t.loaderOptions()...)
	if err != nil {
		return err
	}

	_, err = loader.Load(ctx, workload.LoadConfig{
		Cities:   cfg.Cities,
		Users:    dryRunUsersPerCity * len(cfg.Cities),
		Vehicles: dryRunVehiclesPerCity * len(cfg.Cities),
		Threads:  cfg.Workers,
		Seed:     cfg.Seed,
	})

	return err
}

func allDead(states []workload.WorkerState) bool {
	for _, state := range states {
		if state != workload.WorkerDead {
			return false
		}
	}

	return len(states) > 0
}
