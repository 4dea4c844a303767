package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	logMsgRetrying         = "transient error, retrying"
	logMsgRetriesExhausted = "giving up after transient errors"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNilSleeper is returned when a nil Sleeper is provided to WithSleeper.
	ErrNilSleeper = errors.New("sleeper must not be nil")

	// ErrUnknownBackoffPolicy is returned for a BackoffPolicy value that is not defined.
	ErrUnknownBackoffPolicy = errors.New("unknown backoff policy")
)

// BackoffPolicy decides how long to wait between attempts.
type BackoffPolicy uint8

const (
	// BackoffExponential sleeps baseDelay * 2^(retry-1) plus jitter before each retry.
	BackoffExponential BackoffPolicy = iota

	// BackoffNone retries immediately.
	BackoffNone
)

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleeper is the default Sleeper.
func ContextSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryingExecutor runs a unit of work as one attempted transaction and retries it
// while the classifier reports transient conflicts.
//
// Retry schedule (defaults): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms (with 30% jitter).
// Fatal and connectivity errors fail fast.
type RetryingExecutor struct {
	classifier   ErrorClassifier
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	policy       BackoffPolicy
	sleep        Sleeper
	obs          observer
}

// RetryOption configures a RetryingExecutor using the functional options pattern.
type RetryOption func(*RetryingExecutor) error

// NewRetryingExecutor creates a RetryingExecutor that classifies errors with classifier.
func NewRetryingExecutor(classifier ErrorClassifier, options ...RetryOption) (*RetryingExecutor, error) {
	if classifier == nil {
		return nil, ErrNilClassifier
	}

	e := &RetryingExecutor{
		classifier:   classifier,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		policy:       BackoffExponential,
		sleep:        ContextSleeper,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// MaxAttempts returns the configured attempt bound.
func (e *RetryingExecutor) MaxAttempts() int {
	return e.maxAttempts
}

// Run executes work until it succeeds, fails with a non-transient error,
// or has failed transiently MaxAttempts times.
//
// The returned error is nil, ctx.Err() when cancelled during a backoff,
// errors.Join(ErrFatal, cause), errors.Join(ErrConnectivity, cause), or a *RetriesExhaustedError.
func (e *RetryingExecutor) Run(ctx context.Context, work func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	})

	return err
}

// Execute is Run for work that produces a result.
func Execute[T any](ctx context.Context, e *RetryingExecutor, work func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.backoff(attempt - 1)
			e.recordRetryDelay(ctx, attempt, delay)

			if err := e.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		result, err := work(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		switch e.classifier.Classify(err) {
		case ClassTransient:
			if attempt < e.maxAttempts {
				e.recordRetryAttempt(ctx, attempt, err)
			}
		case ClassConnectivity:
			return zero, errors.Join(ErrConnectivity, err)
		default:
			return zero, errors.Join(ErrFatal, err)
		}
	}

	e.recordRetriesExhausted(ctx, lastErr)

	return zero, &RetriesExhaustedError{Attempts: e.maxAttempts, LastErr: lastErr}
}

// backoff returns the delay before the given retry (1-based).
func (e *RetryingExecutor) backoff(retry int) time.Duration {
	if e.policy == BackoffNone {
		return 0
	}

	// Exponential backoff: baseDelay * 2^(retry-1)
	delay := e.baseDelay * time.Duration(1<<(retry-1))

	// Add jitter to prevent thundering herd
	jitter := rand.Float64() * float64(delay) * e.jitterFactor //nolint:gosec // math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

// recordRetryDelay records the actual backoff delay before a retry attempt.
func (e *RetryingExecutor) recordRetryDelay(ctx context.Context, attempt int, delay time.Duration) {
	e.obs.recordDuration(ctx, RetryDelayMetric, delay, map[string]string{
		labelAttempt: fmt.Sprintf("%d", attempt),
	})
}

// recordRetryAttempt tracks retries that will be followed by another attempt.
func (e *RetryingExecutor) recordRetryAttempt(ctx context.Context, attempt int, err error) {
	e.obs.incrementCounter(ctx, RetryAttemptsMetric, map[string]string{
		labelAttempt: fmt.Sprintf("%d", attempt+1),
	})
	e.obs.debug(ctx, logMsgRetrying, logAttrAttempt, attempt, logAttrError, err.Error())
}

// recordRetriesExhausted tracks when retry exhaustion occurs.
func (e *RetryingExecutor) recordRetriesExhausted(ctx context.Context, lastErr error) {
	e.obs.incrementCounter(ctx, RetriesExhaustedMetric, map[string]string{})
	if lastErr != nil {
		e.obs.warn(ctx, logMsgRetriesExhausted, logAttrAttempt, e.maxAttempts, logAttrError, lastErr.Error())
	}
}

// WithMaxAttempts sets the maximum number of attempts, the first one included.
func WithMaxAttempts(attempts int) RetryOption {
	return func(e *RetryingExecutor) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		e.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(e *RetryingExecutor) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		e.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter added as a fraction of the calculated backoff delay.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(e *RetryingExecutor) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		e.jitterFactor = factor

		return nil
	}
}

// WithBackoffPolicy selects between exponential backoff and immediate retries.
func WithBackoffPolicy(policy BackoffPolicy) RetryOption {
	return func(e *RetryingExecutor) error {
		if policy != BackoffExponential && policy != BackoffNone {
			return ErrUnknownBackoffPolicy
		}

		e.policy = policy

		return nil
	}
}

// WithSleeper replaces the function used to wait between attempts.
func WithSleeper(sleeper Sleeper) RetryOption {
	return func(e *RetryingExecutor) error {
		if sleeper == nil {
			return ErrNilSleeper
		}

		e.sleep = sleeper

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation.
func WithRetryMetrics(collector MetricsCollector) RetryOption {
	return func(e *RetryingExecutor) error {
		e.obs.metrics = collector
		return nil
	}
}

// WithRetryLogger sets the logger for retry and exhaustion messages.
func WithRetryLogger(logger Logger) RetryOption {
	return func(e *RetryingExecutor) error {
		e.obs.logger = logger
		return nil
	}
}

// WithRetryContextualLogger sets a context-aware logger for retry and exhaustion messages.
func WithRetryContextualLogger(logger ContextualLogger) RetryOption {
	return func(e *RetryingExecutor) error {
		e.obs.contextualLogger = logger
		return nil
	}
}
