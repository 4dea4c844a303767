package workload

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrFatal marks a data store failure that must not be retried.
	ErrFatal = errors.New("fatal data store error")

	// ErrTransient marks a data store failure that may succeed when retried, e.g. a serialization conflict.
	ErrTransient = errors.New("transient data store error")

	// ErrConnectivity marks a data store that could not be reached.
	ErrConnectivity = errors.New("data store unreachable")

	// ErrRetriesExhausted is matched by RetriesExhaustedError.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrForcedTermination is returned by Coordinator.Stop when workers did not stop within the grace period.
	ErrForcedTermination = errors.New("workers did not stop within the grace period")

	// ErrWorkerDead is reported when a worker gave up after too many consecutive reconnect failures.
	ErrWorkerDead = errors.New("worker gave up reconnecting")

	// ErrNilConnector is returned when a nil Connector is supplied.
	ErrNilConnector = errors.New("connector must not be nil")

	// ErrNilClassifier is returned when a nil ErrorClassifier is supplied.
	ErrNilClassifier = errors.New("error classifier must not be nil")

	// ErrNoCities is returned when a workload or load run has no cities configured.
	ErrNoCities = errors.New("at least one city is required")

	// ErrVehicleUnavailable is returned by StartRide when the vehicle is unknown or not available.
	// Workers treat it as a skipped action.
	ErrVehicleUnavailable = errors.New("vehicle is not available")

	// ErrMissingFixtures is returned when a city has no users or vehicles to simulate rides with.
	ErrMissingFixtures = errors.New("must have users and vehicles to generate load")
)

// ErrorClass is the retry classification of a data store error.
type ErrorClass uint8

const (
	// ClassFatal errors are logic errors or constraint violations. They are never retried.
	ClassFatal ErrorClass = iota

	// ClassTransient errors are contention conflicts. They are retried with backoff up to a bound.
	ClassTransient

	// ClassConnectivity errors mean the data store is unreachable. Workers pause and reconnect.
	ClassConnectivity
)

// String returns the label used in logs and metrics.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassConnectivity:
		return "connectivity"
	default:
		return "fatal"
	}
}

// ErrorClassifier translates data store errors into the retry taxonomy.
type ErrorClassifier interface {
	Classify(err error) ErrorClass
}

// ErrorClassifierFunc adapts a plain function to the ErrorClassifier interface.
type ErrorClassifierFunc func(err error) ErrorClass

// Classify calls f(err).
func (f ErrorClassifierFunc) Classify(err error) ErrorClass {
	return f(err)
}

// SentinelClassifier classifies errors that wrap ErrTransient or ErrConnectivity.
// Everything else is fatal.
var SentinelClassifier ErrorClassifier = ErrorClassifierFunc(func(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrTransient):
		return ClassTransient
	case errors.Is(err, ErrConnectivity):
		return ClassConnectivity
	default:
		return ClassFatal
	}
})

// RetriesExhaustedError is the terminal failure after MaxAttempts transient errors.
// It wraps the last underlying error.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted.Error(), e.Attempts, e.LastErr)
}

// Unwrap returns the last underlying error.
func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastErr
}

// Is reports whether target is ErrRetriesExhausted.
func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// classOf maps an executor result onto the taxonomy the worker acts on.
func classOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	case errors.Is(err, ErrRetriesExhausted):
		return "retries_exhausted"
	case errors.Is(err, ErrFatal):
		return ClassFatal.String()
	case errors.Is(err, ErrConnectivity):
		return ClassConnectivity.String()
	case errors.Is(err, ErrTransient):
		return ClassTransient.String()
	default:
		return ClassFatal.String()
	}
}
