package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	logMsgCoordinatorStarted = "workload started"
	logMsgCoordinatorStopped = "workload stopped"
	logMsgForcedTermination  = "workers did not stop within the grace period"
	logMsgLiveWorkersLow     = "live workers below minimum"
	logMsgReportFailed       = "rendering report failed"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("coordinator already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("coordinator not started")

	// ErrNilStats is returned when a nil LatencyStats is supplied.
	ErrNilStats = errors.New("latency stats must not be nil")

	// ErrNilCache is returned when a nil HandleCache is supplied.
	ErrNilCache = errors.New("handle cache must not be nil")

	// ErrNilClock is returned when a nil Clock is supplied.
	ErrNilClock = errors.New("clock must not be nil")
)

// Coordinator launches N workers that share one LatencyStats, one HandleCache and one stop signal,
// reports periodically and stops them within a grace period.
type Coordinator struct {
	connector  Connector
	cfg        Config
	classifier ErrorClassifier
	retryOpts  []RetryOption
	stats      *LatencyStats
	cache      *HandleCache
	clock      Clock
	out        io.Writer
	obs        observer

	mu       sync.Mutex
	workers  []*Worker
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
	deadOnce sync.Map
}

// CoordinatorOption configures a Coordinator using the functional options pattern.
type CoordinatorOption func(*Coordinator) error

// NewCoordinator validates cfg and creates a Coordinator that connects workers through connector.
func NewCoordinator(connector Connector, cfg Config, options ...CoordinatorOption) (*Coordinator, error) {
	if connector == nil {
		return nil, ErrNilConnector
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		connector:  connector,
		cfg:        cfg,
		classifier: SentinelClassifier,
		clock:      RealClock{},
		done:       make(chan struct{}),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	if c.stats == nil {
		c.stats = NewLatencyStats(WithStatsClock(c.clock))
	}

	if c.cache == nil {
		c.cache = NewHandleCache()
	}

	return c, nil
}

// Start launches the workers and, if configured, the periodic reporter. It does not block.
// Cancelling ctx stops the workers like Stop, without waiting for them.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	executor, err := NewRetryingExecutor(c.classifier, c.executorOptions()...)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if c.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.RateLimit), max(1, int(c.cfg.RateLimit)))
	}

	seed := c.cfg.Seed
	if seed == 0 {
		seed = rand.Int63() //nolint:gosec // workload randomness
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.workers = make([]*Worker, 0, c.cfg.Workers)
	for i := 0; i < c.cfg.Workers; i++ {
		workerSeed := DeriveSeed(seed, fmt.Sprintf("worker-%d", i))
		rng := rand.New(rand.NewSource(workerSeed)) //nolint:gosec // workload randomness

		scheduler, err := NewActionScheduler(c.cfg.Weights, rand.New(rand.NewSource(rng.Int63()))) //nolint:gosec
		if err != nil {
			c.mu.Unlock()
			cancel()
			return err
		}

		c.workers = append(c.workers, &Worker{
			id:        i,
			cfg:       c.cfg,
			connector: c.connector,
			executor:  executor,
			stats:     c.stats,
			cache:     c.cache,
			scheduler: scheduler,
			gen:       NewGenerator(rng.Int63()),
			rng:       rng,
			limiter:   limiter,
			clock:     c.clock,
			obs:       c.obs,
			onDead:    c.workerDied,
		})
	}
	workers := c.workers
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.run(runCtx)
		}(w)
	}

	go func() {
		wg.Wait()
		close(c.done)
	}()

	if c.cfg.ReportInterval > 0 && c.out != nil {
		go c.reportPeriodically(runCtx)
	}

	c.obs.info(ctx, logMsgCoordinatorStarted,
		logAttrWorkers, c.cfg.Workers, logAttrCity, fmt.Sprintf("%v", c.cfg.Cities))

	return nil
}

// Done is closed when all workers have returned.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Stop signals all workers to stop and waits up to grace for them.
// Workers still busy after grace are abandoned and ErrForcedTermination is returned.
func (c *Coordinator) Stop(grace time.Duration) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return ErrNotStarted
	}
	cancel()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-c.done:
		c.obs.info(context.Background(), logMsgCoordinatorStopped, logAttrIterations, c.Iterations())
		return nil
	case <-timer.C:
		stuck := c.Workers() - c.stoppedWorkers()
		c.obs.error(context.Background(), logMsgForcedTermination,
			logAttrGracePeriod, grace.String(), logAttrWorkers, stuck)

		return errors.Join(ErrForcedTermination, fmt.Errorf("%d of %d workers still running", stuck, c.Workers()))
	}
}

// Report snapshots and rotates the statistics window.
func (c *Coordinator) Report() Report {
	live := c.LiveWorkers()
	report := Report{
		Stats:          c.stats.SnapshotAndRotate(c.cfg.reportedActions()...),
		LiveWorkers:    live,
		DeadWorkers:    c.DeadWorkers(),
		TotalWorkers:   c.cfg.Workers,
		MinLiveWorkers: c.cfg.minLiveWorkers(),
	}

	c.obs.recordValue(context.Background(), LiveWorkersMetric, float64(live), map[string]string{})
	for _, s := range report.Stats {
		c.obs.recordValue(context.Background(), WindowThroughputMetric, s.Throughput, map[string]string{labelAction: s.Action})
	}

	if report.Degraded() {
		c.obs.warn(context.Background(), logMsgLiveWorkersLow,
			logAttrLive, report.SurvivingWorkers(), logAttrDead, report.DeadWorkers, logAttrWorkers, c.cfg.Workers)
	}

	return report
}

// Stats returns the shared latency statistics.
func (c *Coordinator) Stats() *LatencyStats {
	return c.stats
}

// Cache returns the shared handle cache.
func (c *Coordinator) Cache() *HandleCache {
	return c.cache
}

// Iterations returns the iterations completed by all workers.
func (c *Coordinator) Iterations() uint64 {
	var total uint64
	for _, w := range c.snapshotWorkers() {
		total += w.Iterations()
	}

	return total
}

// Workers returns the number of launched workers.
func (c *Coordinator) Workers() int {
	return len(c.snapshotWorkers())
}

// LiveWorkers returns the number of workers that have neither stopped nor died.
func (c *Coordinator) LiveWorkers() int {
	live := 0
	for _, w := range c.snapshotWorkers() {
		if w.live() {
			live++
		}
	}

	return live
}

// DeadWorkers returns the number of workers that gave up reconnecting.
func (c *Coordinator) DeadWorkers() int {
	dead := 0
	for _, w := range c.snapshotWorkers() {
		if w.State() == WorkerDead {
			dead++
		}
	}

	return dead
}

// WorkerStates returns the state of every worker by index.
func (c *Coordinator) WorkerStates() []WorkerState {
	workers := c.snapshotWorkers()
	states := make([]WorkerState, len(workers))
	for i, w := range workers {
		states[i] = w.State()
	}

	return states
}

func (c *Coordinator) stoppedWorkers() int {
	stopped := 0
	for _, w := range c.snapshotWorkers() {
		if !w.live() {
			stopped++
		}
	}

	return stopped
}

func (c *Coordinator) snapshotWorkers() []*Worker {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.workers
}

func (c *Coordinator) workerDied(id int) {
	if _, loaded := c.deadOnce.LoadOrStore(id, true); loaded {
		return
	}

	// The dying worker has already set its state.
	dead := c.DeadWorkers()
	if surviving := c.cfg.Workers - dead; surviving < c.cfg.minLiveWorkers() {
		c.obs.warn(context.Background(), logMsgLiveWorkersLow,
			logAttrLive, surviving, logAttrDead, dead, logAttrWorkers, c.cfg.Workers)
	}
}

func (c *Coordinator) reportPeriodically(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Report().Render(c.out); err != nil {
				c.obs.warn(ctx, logMsgReportFailed, logAttrError, err.Error())
			}
		}
	}
}

func (c *Coordinator) executorOptions() []RetryOption {
	options := make([]RetryOption, 0, len(c.retryOpts)+3)
	if c.obs.metrics != nil {
		options = append(options, WithRetryMetrics(c.obs.metrics))
	}
	if c.obs.logger != nil {
		options = append(options, WithRetryLogger(c.obs.logger))
	}
	if c.obs.contextualLogger != nil {
		options = append(options, WithRetryContextualLogger(c.obs.contextualLogger))
	}

	return append(options, c.retryOpts...)
}

// WithClassifier sets the classifier the retrying executor uses. Default: SentinelClassifier.
func WithClassifier(classifier ErrorClassifier) CoordinatorOption {
	return func(c *Coordinator) error {
		if classifier == nil {
			return ErrNilClassifier
		}

		c.classifier = classifier

		return nil
	}
}

// WithRetryOptions passes options to the shared retrying executor.
func WithRetryOptions(options ...RetryOption) CoordinatorOption {
	return func(c *Coordinator) error {
		c.retryOpts = append(c.retryOpts, options...)
		return nil
	}
}

// WithStats shares an existing LatencyStats with the workers.
func WithStats(stats *LatencyStats) CoordinatorOption {
	return func(c *Coordinator) error {
		if stats == nil {
			return ErrNilStats
		}

		c.stats = stats

		return nil
	}
}

// WithCache shares a preloaded HandleCache with the workers.
func WithCache(cache *HandleCache) CoordinatorOption {
	return func(c *Coordinator) error {
		if cache == nil {
			return ErrNilCache
		}

		c.cache = cache

		return nil
	}
}

// WithClock sets the clock used for latency measurement and session refreshes.
func WithClock(clock Clock) CoordinatorOption {
	return func(c *Coordinator) error {
		if clock == nil {
			return ErrNilClock
		}

		c.clock = clock

		return nil
	}
}

// WithReportWriter enables periodic reports every ReportInterval, rendered to out.
func WithReportWriter(out io.Writer) CoordinatorOption {
	return func(c *Coordinator) error {
		c.out = out
		return nil
	}
}

// WithLogger sets the logger for workers, the coordinator and the retrying executor.
func WithLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) error {
		c.obs.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger. It is preferred over WithLogger.
func WithContextualLogger(logger ContextualLogger) CoordinatorOption {
	return func(c *Coordinator) error {
		c.obs.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for action, retry and worker metrics.
func WithMetrics(collector MetricsCollector) CoordinatorOption {
	return func(c *Coordinator) error {
		c.obs.metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector. Every action runs in its own span.
func WithTracing(collector TracingCollector) CoordinatorOption {
	return func(c *Coordinator) error {
		c.obs.tracing = collector
		return nil
	}
}
