package main

import (
	"context"

	"github.com/AntonStoeckl/movr-workload-go/config"
	"github.com/AntonStoeckl/movr-workload-go/testutil/memstore"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

// backend is the data store the commands work against: Postgres, or memory for --dry-run.
type backend struct {
	connector    workload.Connector
	classifier   workload.ErrorClassifier
	createSchema func(ctx context.Context, drop bool) error
	close        func() error
}

// release closes the backend. After a forced stop abandoned workers may still hold
// connections, so the close runs in the background and release returns at once.
func (b *backend) release(forced bool) error {
	if !forced {
		return b.close()
	}

	go func() { _ = b.close() }()

	return nil
}

func openBackend(ctx context.Context, settings globalSettings, t *telemetry, dryRun bool) (*backend, error) {
	if dryRun {
		t.logger.Info("dry run, using an in-memory data store")

		return &backend{
			connector:    memstore.New(),
			classifier:   workload.SentinelClassifier,
			createSchema: func(context.Context, bool) error { return nil },
			close:        func() error { return nil },
		}, nil
	}

	dsn, err := config.PostgresDSN(settings.URL)
	if err != nil {
		return nil, err
	}

	engine, closeDB, err := config.OpenEngine(ctx, settings.Adapter, dsn, settings.Threads, t.engineOptions(settings)...)
	if err != nil {
		return nil, err
	}

	return &backend{
		connector:    engine,
		classifier:   engine,
		createSchema: engine.CreateSchema,
		close:        closeDB,
	}, nil
}
