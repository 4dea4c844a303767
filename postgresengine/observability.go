package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

const (
	metricStatementDuration = "movr_db_statement_duration_seconds"
	metricDatabaseErrors    = "movr_db_errors_total"

	operationConnect         = "connect"
	operationCreateUser      = "create_user"
	operationCreateVehicle   = "create_vehicle"
	operationCreateRide      = "create_ride"
	operationListUsers       = "list_users"
	operationListVehicles    = "list_vehicles"
	operationListActiveRides = "list_active_rides"
	operationStartRide       = "start_ride"
	operationEndRide         = "end_ride"
	operationLocationPing    = "record_location_ping"
	operationCreateSchema    = "create_schema"
	operationDropSchema      = "drop_schema"

	spanNamePrefix = "movr.db."

	logMsgSQLExecuted   = "sql executed: "
	logMsgOperation     = "operation: "
	logMsgStmtFailed    = "statement failed"
	logMsgAcquireFailed = "acquiring connection failed"
	logMsgRollback      = "rollback failed"
	logMsgReleaseFailed = "releasing connection failed"

	logAttrDurationMS   = "duration_ms"
	logAttrQuery        = "query"
	logAttrError        = "error"
	logAttrOperation    = "operation"
	logAttrRowsAffected = "rows_affected"
	logAttrStatements   = "statements"

	labelOperation  = "operation"
	labelStatus     = "status"
	labelErrorClass = "error_class"

	statusSuccess = "success"
	statusError   = "error"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (e *Engine) logQueryWithDuration(ctx context.Context, sqlQuery, operation string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+operation, args...)
	case e.logger != nil:
		e.logger.Debug(logMsgSQLExecuted+operation, args...)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (e *Engine) logOperation(ctx context.Context, operation string, args ...any) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.InfoContext(ctx, logMsgOperation+operation, args...)
	case e.logger != nil:
		e.logger.Info(logMsgOperation+operation, args...)
	}
}

func (e *Engine) logWarn(ctx context.Context, message string, err error) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.WarnContext(ctx, message, logAttrError, err.Error())
	case e.logger != nil:
		e.logger.Warn(message, logAttrError, err.Error())
	}
}

// logError logs error information at the error level if a logger is configured.
func (e *Engine) logError(ctx context.Context, message string, err error, args ...any) {
	if e.contextualLogger == nil && e.logger == nil {
		return
	}

	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)
	case e.logger != nil:
		e.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (e *Engine) recordDurationMetrics(ctx context.Context, operation string, duration time.Duration) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelStatus: statusSuccess}

	if contextual, ok := e.metricsCollector.(workload.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricStatementDuration, duration, labels)
		return
	}

	e.metricsCollector.RecordDuration(metricStatementDuration, duration, labels)
}

func (e *Engine) recordErrorMetrics(ctx context.Context, operation string, err error) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:  operation,
		labelStatus:     statusError,
		labelErrorClass: Classify(err).String(),
	}

	if contextual, ok := e.metricsCollector.(workload.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		return
	}

	e.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
}

// operationObserver wraps one data store operation in a span, a duration metric and error logging.
type operationObserver struct {
	engine    *Engine
	ctx       context.Context
	span      workload.SpanContext
	operation string
	started   time.Time
}

func (e *Engine) startOperation(ctx context.Context, operation, city string) (*operationObserver, context.Context) {
	o := &operationObserver{engine: e, operation: operation, started: time.Now()}

	if e.tracingCollector != nil {
		ctx, o.span = e.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
			labelOperation: operation,
			"city":         city,
		})
	}

	o.ctx = ctx

	return o, ctx
}

func (o *operationObserver) finish(err error) {
	duration := time.Since(o.started)

	if err != nil {
		class := Classify(err).String()
		o.engine.recordErrorMetrics(o.ctx, o.operation, err)
		o.engine.logError(o.ctx, logMsgStmtFailed, err, logAttrOperation, o.operation, labelErrorClass, class)
		o.finishSpan(statusError, map[string]string{labelErrorClass: class})

		return
	}

	o.engine.recordDurationMetrics(o.ctx, o.operation, duration)
	o.finishSpan(statusSuccess, nil)
}

func (o *operationObserver) finishSpan(status string, attrs map[string]string) {
	if o.engine.tracingCollector == nil || o.span == nil {
		return
	}

	o.span.SetStatus(status)
	o.engine.tracingCollector.FinishSpan(o.span, status, attrs)
}
