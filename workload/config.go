package workload

import (
	"errors"
	"time"
)

const (
	defaultWorkers              = 5
	defaultReportInterval       = 5 * time.Second
	defaultRefreshInterval      = 10 * time.Minute
	defaultOperationTimeout     = 10 * time.Second
	defaultReconnectCooldown    = time.Second
	defaultMaxReconnectFailures = 5
	defaultListLimit            = 25
	defaultReadPercentage       = 0.95
)

var (
	// ErrInvalidWorkerCount is returned when fewer than one worker is configured.
	ErrInvalidWorkerCount = errors.New("at least one worker is required")

	// ErrInvalidOperationTimeout is returned when the per-operation timeout is not positive.
	ErrInvalidOperationTimeout = errors.New("operation timeout must be positive")

	// ErrInvalidReconnectFailures is returned when MaxReconnectFailures is not positive.
	ErrInvalidReconnectFailures = errors.New("max reconnect failures must be positive")

	// ErrInvalidListLimit is returned when the list limit is not positive.
	ErrInvalidListLimit = errors.New("list limit must be positive")

	// ErrNegativeDuration is returned when an interval or cool-down is negative.
	ErrNegativeDuration = errors.New("intervals must not be negative")

	// ErrNegativeRateLimit is returned when the global rate limit is negative.
	ErrNegativeRateLimit = errors.New("rate limit must not be negative")
)

// Config describes one workload run.
type Config struct {
	// Cities the workers pick from uniformly.
	Cities []string

	// Workers is the number of concurrent simulated clients.
	Workers int

	// Weights is the action distribution of every worker.
	Weights []ActionWeight

	// ReportInterval between periodic reports. Zero disables periodic reporting.
	ReportInterval time.Duration

	// RefreshInterval after which a worker replaces its session to rebalance connections. Zero disables it.
	RefreshInterval time.Duration

	// OperationTimeout bounds every data store call, including its retries.
	OperationTimeout time.Duration

	// ReconnectCooldown is slept after a connectivity failure before reconnecting.
	ReconnectCooldown time.Duration

	// MaxReconnectFailures consecutive failed reconnects mark a worker dead.
	MaxReconnectFailures int

	// MinLiveWorkers below which reports carry a warning. Zero means Workers.
	MinLiveWorkers int

	// MaxIterations per worker. Zero runs until stopped.
	MaxIterations uint64

	// RateLimit caps the operations per second of all workers together. Zero means unlimited.
	RateLimit float64

	// ListLimit is the page size of list actions.
	ListLimit int

	// Seed derives the per-worker random sources. Zero picks a random seed.
	Seed int64
}

// DefaultConfig returns a Config for the default cities with a 95% read share.
func DefaultConfig() Config {
	weights, _ := WeightsFromReadPercentage(defaultReadPercentage)

	return Config{
		Cities:               DefaultCities(),
		Workers:              defaultWorkers,
		Weights:              weights,
		ReportInterval:       defaultReportInterval,
		RefreshInterval:      defaultRefreshInterval,
		OperationTimeout:     defaultOperationTimeout,
		ReconnectCooldown:    defaultReconnectCooldown,
		MaxReconnectFailures: defaultMaxReconnectFailures,
		ListLimit:            defaultListLimit,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if len(c.Cities) == 0 {
		return ErrNoCities
	}

	if c.Workers < 1 {
		return ErrInvalidWorkerCount
	}

	if err := validateWeights(c.Weights); err != nil {
		return err
	}

	if c.OperationTimeout <= 0 {
		return ErrInvalidOperationTimeout
	}

	if c.ReportInterval < 0 || c.RefreshInterval < 0 || c.ReconnectCooldown < 0 {
		return ErrNegativeDuration
	}

	if c.MaxReconnectFailures < 1 {
		return ErrInvalidReconnectFailures
	}

	if c.ListLimit < 1 {
		return ErrInvalidListLimit
	}

	if !(c.RateLimit >= 0) {
		return ErrNegativeRateLimit
	}

	return nil
}

// minLiveWorkers returns the live worker threshold for report warnings.
func (c Config) minLiveWorkers() int {
	if c.MinLiveWorkers <= 0 || c.MinLiveWorkers > c.Workers {
		return c.Workers
	}

	return c.MinLiveWorkers
}

// reportedActions returns the labels of all actions with a positive weight, in weight order.
func (c Config) reportedActions() []string {
	labels := make([]string, 0, len(c.Weights))
	seen := make(map[Action]bool, len(c.Weights))
	for _, w := range c.Weights {
		if w.Weight <= 0 || seen[w.Action] {
			continue
		}
		seen[w.Action] = true
		labels = append(labels, w.Action.String())
	}

	return labels
}
