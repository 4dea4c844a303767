package workload

import (
	"context"
	"time"
)

// Logger interface for operational logging of workers, the coordinator and the retrying executor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// It is preferred over Logger when both are configured.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for exporting workload metrics to an external backend.
// LatencyStats is the in-process aggregator; a MetricsCollector receives the same samples
// plus retry and worker lifecycle counters.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for trace correlation.
// It is optional: callers type-assert and fall back to the base MetricsCollector.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for tracing simulated actions.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	// ActionDurationMetric is the latency of one successful simulated action.
	ActionDurationMetric = "movr_action_duration_seconds"

	// ActionErrorsMetric counts failed actions by error class.
	ActionErrorsMetric = "movr_action_errors_total"

	// RetryAttemptsMetric counts retries caused by transient errors.
	RetryAttemptsMetric = "movr_retry_attempts_total"

	// RetryDelayMetric is the backoff slept before a retry.
	RetryDelayMetric = "movr_retry_delay_seconds"

	// RetriesExhaustedMetric counts operations that kept failing transiently until MaxAttempts.
	RetriesExhaustedMetric = "movr_retries_exhausted_total"

	// ReconnectsMetric counts worker reconnect attempts by outcome.
	ReconnectsMetric = "movr_worker_reconnects_total"

	// LiveWorkersMetric is the number of workers that are neither stopped nor dead.
	LiveWorkersMetric = "movr_live_workers"

	// WindowThroughputMetric is the per-action throughput of the last reporting window.
	WindowThroughputMetric = "movr_window_ops_per_second"
)

const (
	logAttrAction      = "action"
	logAttrAttempt     = "attempt"
	logAttrCity        = "city"
	logAttrDelayMS     = "delay_ms"
	logAttrError       = "error"
	logAttrErrorClass  = "error_class"
	logAttrFailures    = "consecutive_failures"
	logAttrWorker      = "worker"
	logAttrWorkers     = "workers"
	logAttrDead        = "dead_workers"
	logAttrLive        = "live_workers"
	logAttrIterations  = "iterations"
	logAttrGracePeriod = "grace_period"
	labelAction        = "action"
	labelErrorClass    = "error_class"
	labelAttempt       = "attempt_number"
	labelOutcome       = "outcome"
	statusSuccess      = "success"
	statusError        = "error"
	statusSkipped      = "skipped"
)

// observer bundles the optional observability collaborators and hides nil checks,
// the same way the event store engine wraps its logger and collectors.
type observer struct {
	logger           Logger
	contextualLogger ContextualLogger
	metrics          MetricsCollector
	tracing          TracingCollector
}

func (o observer) debug(ctx context.Context, msg string, args ...any) {
	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o observer) info(ctx context.Context, msg string, args ...any) {
	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o observer) warn(ctx context.Context, msg string, args ...any) {
	if o.contextualLogger != nil {
		o.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}

func (o observer) error(ctx context.Context, msg string, args ...any) {
	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}
	if o.logger != nil {
		o.logger.Error(msg, args...)
	}
}

func (o observer) recordDuration(ctx context.Context, metric string, d time.Duration, labels map[string]string) {
	if o.metrics == nil {
		return
	}
	if contextual, ok := o.metrics.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, d, labels)
		return
	}
	o.metrics.RecordDuration(metric, d, labels)
}

func (o observer) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.metrics == nil {
		return
	}
	if contextual, ok := o.metrics.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}
	o.metrics.IncrementCounter(metric, labels)
}

func (o observer) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.metrics == nil {
		return
	}
	if contextual, ok := o.metrics.(ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}
	o.metrics.RecordValue(metric, value, labels)
}

func (o observer) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if o.tracing == nil {
		return ctx, nil
	}
	return o.tracing.StartSpan(ctx, name, attrs)
}

func (o observer) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if o.tracing != nil && span != nil {
		o.tracing.FinishSpan(span, status, attrs)
	}
}
