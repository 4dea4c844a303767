package config

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AntonStoeckl/movr-workload-go/oteladapters"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

const (
	// DefaultOTLPEndpoint is the gRPC endpoint of a local OpenTelemetry Collector.
	DefaultOTLPEndpoint = "localhost:4317"

	// ServiceName identifies the workload in telemetry backends.
	ServiceName = "movr-workload"

	// SQLScopeName is the instrumentation scope of statement logs.
	SQLScopeName = ServiceName + "/postgres"

	defaultMetricInterval = 5 * time.Second
)

// ObservabilitySettings configures the OpenTelemetry exporters.
// LogLevel is the minimum level of exported statement logs.
type ObservabilitySettings struct {
	Endpoint       string
	ServiceVersion string
	MetricInterval time.Duration
	LogLevel       slog.Level
}

// ObservabilityProviders holds the OpenTelemetry providers and the workload adapters built on them.
type ObservabilityProviders struct {
	TracerProvider   *trace.TracerProvider
	MeterProvider    *metric.MeterProvider
	Resource         *resource.Resource
	ContextualLogger workload.ContextualLogger
	SQLLogger        workload.ContextualLogger
	MetricsCollector workload.ContextualMetricsCollector
	TracingCollector workload.TracingCollector
}

// NewObservabilityProviders creates OpenTelemetry providers exporting to an OTLP gRPC endpoint
// and installs them globally. Workload logs go through the otelslog bridge of the global LoggerProvider,
// statement logs through an OTelLogger that drops records below settings.LogLevel.
func NewObservabilityProviders(ctx context.Context, settings ObservabilitySettings) (*ObservabilityProviders, error) {
	if settings.Endpoint == "" {
		settings.Endpoint = DefaultOTLPEndpoint
	}
	if settings.MetricInterval <= 0 {
		settings.MetricInterval = defaultMetricInterval
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(settings.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(settings.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(settings.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, errors.Join(err, traceExporter.Shutdown(ctx))
	}

	reader := metric.NewPeriodicReader(metricExporter, metric.WithInterval(settings.MetricInterval))
	sqlLogger := oteladapters.NewOTelLogger(
		global.GetLoggerProvider().Logger(SQLScopeName),
		oteladapters.SeverityOf(settings.LogLevel),
	)

	return newProviders(res, trace.WithBatcher(traceExporter), reader, sqlLogger), nil
}

func newProviders(
	res *resource.Resource,
	spanProcessor trace.TracerProviderOption,
	reader metric.Reader,
	sqlLogger workload.ContextualLogger,
) *ObservabilityProviders {
	tracerProvider := trace.NewTracerProvider(spanProcessor, trace.WithResource(res))
	meterProvider := metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(res))

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &ObservabilityProviders{
		TracerProvider:   tracerProvider,
		MeterProvider:    meterProvider,
		Resource:         res,
		ContextualLogger: oteladapters.NewSlogBridgeLogger(ServiceName),
		SQLLogger:        sqlLogger,
		MetricsCollector: oteladapters.NewMetricsCollector(meterProvider.Meter(ServiceName)),
		TracingCollector: oteladapters.NewTracingCollector(tracerProvider.Tracer(ServiceName)),
	}
}

// Shutdown flushes and stops both providers.
func (p *ObservabilityProviders) Shutdown(ctx context.Context) error {
	return errors.Join(p.TracerProvider.Shutdown(ctx), p.MeterProvider.Shutdown(ctx))
}
