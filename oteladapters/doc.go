// Package oteladapters connects the workload observability interfaces to OpenTelemetry.
//
// The workload, the retrying executor and the Postgres engine only know the dependency-free
// Logger, MetricsCollector and TracingCollector interfaces. The adapters here map them onto
// the otel metric, trace and log APIs, so a movr run can be watched in any OTLP backend.
package oteladapters
