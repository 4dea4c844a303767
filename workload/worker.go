package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	logMsgWorkerStarted      = "worker started"
	logMsgWorkerStopped      = "worker stopped"
	logMsgWorkerDead         = "worker gave up reconnecting"
	logMsgActionFailed       = "action failed"
	logMsgActionSkipped      = "action skipped, no candidates"
	logMsgConnectivityLost   = "data store unreachable, reconnecting after cool-down"
	logMsgConnectFailed      = "connect failed"
	logMsgSessionRefreshed   = "session refreshed"
	logMsgSessionCloseFailed = "closing session failed"

	outcomeConnected = "connected"
	outcomeFailed    = "failed"
)

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	// WorkerIdle means the worker has not been started yet.
	WorkerIdle WorkerState = iota

	// WorkerRunning means the worker executes actions.
	WorkerRunning

	// WorkerReconnecting means the worker lost its session and waits to reconnect.
	WorkerReconnecting

	// WorkerStopping means the stop signal was observed and the worker is winding down.
	WorkerStopping

	// WorkerStopped means the worker returned.
	WorkerStopped

	// WorkerDead means the worker returned after too many consecutive reconnect failures.
	WorkerDead
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerReconnecting:
		return "reconnecting"
	case WorkerStopping:
		return "stopping"
	case WorkerStopped:
		return "stopped"
	case WorkerDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Worker is one simulated client. It owns its session, scheduler and random source;
// the stats, handle cache, executor and rate limiter are shared.
type Worker struct {
	id        int
	cfg       Config
	connector Connector
	executor  *RetryingExecutor
	stats     *LatencyStats
	cache     *HandleCache
	scheduler *ActionScheduler
	gen       *Generator
	rng       *rand.Rand
	limiter   *rate.Limiter
	clock     Clock
	obs       observer
	onDead    func(id int)

	session        Session
	sessionStarted time.Time
	reconnectFails int

	state      atomic.Int32
	iterations atomic.Uint64
}

// ID returns the worker's index within its coordinator.
func (w *Worker) ID() int {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Iterations returns the number of completed loop iterations, failed and skipped ones included.
func (w *Worker) Iterations() uint64 {
	return w.iterations.Load()
}

func (w *Worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// live reports whether the worker has neither stopped nor died.
func (w *Worker) live() bool {
	s := w.State()
	return s != WorkerStopped && s != WorkerDead
}

// run is the worker loop. It returns when stop is cancelled, MaxIterations are done,
// or the worker died.
func (w *Worker) run(stop context.Context) {
	w.setState(WorkerRunning)
	w.obs.debug(stop, logMsgWorkerStarted, logAttrWorker, w.id)

	defer func() {
		w.closeSession(false)
		if w.State() != WorkerDead {
			w.setState(WorkerStopped)
		}
		w.obs.debug(stop, logMsgWorkerStopped, logAttrWorker, w.id, logAttrIterations, w.Iterations())
	}()

	for {
		if stop.Err() != nil {
			w.setState(WorkerStopping)
			return
		}

		if w.cfg.MaxIterations > 0 && w.Iterations() >= w.cfg.MaxIterations {
			return
		}

		if err := w.ensureSession(stop); err != nil {
			if errors.Is(err, ErrWorkerDead) {
				return
			}
			continue
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(stop); err != nil {
				continue
			}
		}

		w.step(stop)
	}
}

// step performs one action and records its latency when it succeeded.
func (w *Worker) step(stop context.Context) {
	action := w.scheduler.Choose()
	city := w.cfg.Cities[w.rng.Intn(len(w.cfg.Cities))]

	spanCtx, span := w.obs.startSpan(stop, action.String(), map[string]string{
		labelAction: action.String(),
	})

	started := w.clock.Now()
	err := actionHandlers[action](w, spanCtx, city)
	elapsed := w.clock.Since(started)

	w.iterations.Add(1)

	if err == nil {
		w.stats.Record(action.String(), elapsed)
		w.obs.recordDuration(spanCtx, ActionDurationMetric, elapsed, map[string]string{labelAction: action.String()})
		w.obs.finishSpan(span, statusSuccess, nil)
		return
	}

	status := statusError
	if errors.Is(err, errNothingToDo) {
		status = statusSkipped
	}

	w.obs.finishSpan(span, status, map[string]string{labelErrorClass: classOf(err)})
	w.handleFailure(stop, action, city, err)
}

// handleFailure logs every failed action and reacts to its error class.
func (w *Worker) handleFailure(stop context.Context, action Action, city string, err error) {
	switch {
	case errors.Is(err, errNothingToDo):
		w.obs.debug(stop, logMsgActionSkipped, logAttrWorker, w.id, logAttrAction, action.String(), logAttrCity, city)
		return

	case stop.Err() != nil && errors.Is(err, stop.Err()):
		return
	}

	class := classOf(err)
	w.obs.incrementCounter(stop, ActionErrorsMetric, map[string]string{
		labelAction:     action.String(),
		labelErrorClass: class,
	})

	if errors.Is(err, ErrConnectivity) {
		w.obs.warn(stop, logMsgConnectivityLost,
			logAttrWorker, w.id, logAttrAction, action.String(), logAttrError, err.Error())
		w.setState(WorkerReconnecting)
		w.closeSession(true)
		w.cooldown(stop)
		return
	}

	w.obs.error(stop, logMsgActionFailed,
		logAttrWorker, w.id,
		logAttrAction, action.String(),
		logAttrCity, city,
		logAttrErrorClass, class,
		logAttrError, err.Error())
}

// ensureSession connects when there is no session and replaces a session older than RefreshInterval.
func (w *Worker) ensureSession(stop context.Context) error {
	if w.session != nil && w.cfg.RefreshInterval > 0 && w.clock.Since(w.sessionStarted) >= w.cfg.RefreshInterval {
		w.closeSession(true)
		w.obs.debug(stop, logMsgSessionRefreshed, logAttrWorker, w.id)
	}

	if w.session != nil {
		return nil
	}

	ctx, cancel := w.operationContext(stop)
	defer cancel()

	session, err := w.connector.Connect(ctx)
	if err != nil {
		w.reconnectFails++
		w.obs.incrementCounter(stop, ReconnectsMetric, map[string]string{labelOutcome: outcomeFailed})
		w.obs.warn(stop, logMsgConnectFailed,
			logAttrWorker, w.id, logAttrFailures, w.reconnectFails, logAttrError, err.Error())

		if w.reconnectFails >= w.cfg.MaxReconnectFailures {
			w.setState(WorkerDead)
			w.obs.error(stop, logMsgWorkerDead, logAttrWorker, w.id, logAttrFailures, w.reconnectFails)
			if w.onDead != nil {
				w.onDead(w.id)
			}

			return errors.Join(ErrWorkerDead, fmt.Errorf("worker %d", w.id), err)
		}

		w.setState(WorkerReconnecting)
		w.cooldown(stop)

		return err
	}

	if w.State() == WorkerReconnecting {
		w.obs.incrementCounter(stop, ReconnectsMetric, map[string]string{labelOutcome: outcomeConnected})
	}

	w.session = session
	w.sessionStarted = w.clock.Now()
	w.reconnectFails = 0
	w.setState(WorkerRunning)

	return nil
}

func (w *Worker) closeSession(discard bool) {
	if w.session == nil {
		return
	}

	if err := w.session.Close(discard); err != nil {
		w.obs.debug(context.Background(), logMsgSessionCloseFailed, logAttrWorker, w.id, logAttrError, err.Error())
	}
	w.session = nil
}

// cooldown sleeps ReconnectCooldown unless the worker is stopped first.
func (w *Worker) cooldown(stop context.Context) {
	if w.cfg.ReconnectCooldown <= 0 {
		return
	}

	_ = ContextSleeper(stop, w.cfg.ReconnectCooldown)
}

// operationContext detaches a data store call from the stop signal.
// Stopping never aborts a call in flight; OperationTimeout bounds it instead.
func (w *Worker) operationContext(stop context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(stop), w.cfg.OperationTimeout)
}
