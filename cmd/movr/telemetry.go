package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/AntonStoeckl/movr-workload-go/config"
	"github.com/AntonStoeckl/movr-workload-go/postgresengine"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

const version = "dev"

// telemetry bundles the console logger with the optional OpenTelemetry adapters.
type telemetry struct {
	logger     *slog.Logger
	sqlLogger  *slog.Logger
	contextual workload.ContextualLogger
	sqlExport  workload.ContextualLogger
	metrics    workload.MetricsCollector
	tracing    workload.TracingCollector
	shutdown   func(ctx context.Context) error
}

func newTelemetry(ctx context.Context, settings globalSettings, stderr io.Writer) (*telemetry, error) {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: settings.LogLevel}))

	t := &telemetry{
		logger:    logger,
		sqlLogger: logger,
		shutdown:  func(context.Context) error { return nil },
	}

	if settings.EchoSQL {
		t.sqlLogger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if !settings.ObservabilityEnabled {
		return t, nil
	}

	providers, err := config.NewObservabilityProviders(ctx, config.ObservabilitySettings{
		Endpoint:       settings.OTLPEndpoint,
		ServiceVersion: version,
		LogLevel:       settings.LogLevel,
	})
	if err != nil {
		return nil, err
	}

	t.contextual = providers.ContextualLogger
	t.sqlExport = providers.SQLLogger
	t.metrics = providers.MetricsCollector
	t.tracing = providers.TracingCollector
	t.shutdown = providers.Shutdown

	return t, nil
}

func (t *telemetry) engineOptions(settings globalSettings) []postgresengine.Option {
	options := []postgresengine.Option{
		postgresengine.WithLogger(t.sqlLogger),
		postgresengine.WithSeed(settings.Seed),
	}

	// echoed statements go to the console, not to the exporter
	if t.sqlExport != nil && !settings.EchoSQL {
		options = append(options, postgresengine.WithContextualLogger(t.sqlExport))
	}

	if t.metrics != nil {
		options = append(options, postgresengine.WithMetrics(t.metrics))
	}

	if t.tracing != nil {
		options = append(options, postgresengine.WithTracing(t.tracing))
	}

	return options
}

func (t *telemetry) coordinatorOptions() []workload.CoordinatorOption {
	options := []workload.CoordinatorOption{workload.WithLogger(t.logger)}

	if t.contextual != nil {
		options = append(options, workload.WithContextualLogger(t.contextual))
	}

	if t.metrics != nil {
		options = append(options, workload.WithMetrics(t.metrics))
	}

	if t.tracing != nil {
		options = append(options, workload.WithTracing(t.tracing))
	}

	return options
}

func (t *telemetry) retryOptions() []workload.RetryOption {
	options := []workload.RetryOption{workload.WithRetryLogger(t.logger)}

	if t.contextual != nil {
		options = append(options, workload.WithRetryContextualLogger(t.contextual))
	}

	if t.metrics != nil {
		options = append(options, workload.WithRetryMetrics(t.metrics))
	}

	return options
}

func (t *telemetry) loaderOptions() []workload.LoaderOption {
	options := []workload.LoaderOption{workload.WithLoaderLogger(t.logger)}

	if t.contextual != nil {
		options = append(options, workload.WithLoaderContextualLogger(t.contextual))
	}

	return options
}
