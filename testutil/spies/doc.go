// Package spies provides thread-safe test doubles for the observability interfaces of the
// workload and postgresengine packages: slog.Handler, ContextualLogger, metrics and tracing spies.
package spies
