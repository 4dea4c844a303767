package postgresengine

import (
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithTableNames sets the table names of the MovR schema.
func WithTableNames(tables TableNames) Option {
	return func(e *Engine) error {
		if err := tables.validate(); err != nil {
			return err
		}

		e.queries = newQueryBuilder(tables)

		return nil
	}
}

// WithSeed sets the master seed for the fake attributes (names, addresses, locations) each session generates.
// Every session derives its own generator from it.
func WithSeed(seed int64) Option {
	return func(e *Engine) error {
		e.seed = seed
		return nil
	}
}

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (--echo-sql)
// Info level: schema changes
// Warn level: Non-critical issues like cleanup failures
// Error level: Failed statements.
func WithLogger(logger workload.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// It is preferred over the logger set with WithLogger and correlates log records with traces.
func WithContextualLogger(logger workload.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for statement durations and database errors.
func WithMetrics(collector workload.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector. Every data store operation gets its own span.
func WithTracing(collector workload.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}
