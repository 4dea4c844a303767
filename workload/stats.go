package workload

import (
	"sort"
	"sync"
	"time"
)

// ActionStats is one row of a statistics snapshot. Latencies are in milliseconds.
type ActionStats struct {
	Action          string
	Elapsed         time.Duration // since the LatencyStats was created
	CumulativeCount uint64
	WindowCount     int
	Throughput      float64 // window samples per second since the previous rotation
	P50             float64
	P90             float64
	P95             float64
	P99             float64
	Max             float64
}

// LatencyStats collects per-action latency samples from any number of goroutines into
// a window that is reported and cleared by SnapshotAndRotate.
// Cumulative counts survive rotations.
type LatencyStats struct {
	mu          sync.Mutex
	clock       Clock
	createdAt   time.Time
	windowStart time.Time
	window      map[string][]time.Duration
	cumulative  map[string]uint64
}

// StatsOption configures a LatencyStats.
type StatsOption func(*LatencyStats)

// WithStatsClock replaces the wall clock, mainly for tests.
func WithStatsClock(clock Clock) StatsOption {
	return func(s *LatencyStats) {
		s.clock = clock
	}
}

// NewLatencyStats creates an empty LatencyStats whose first window starts now.
func NewLatencyStats(options ...StatsOption) *LatencyStats {
	s := &LatencyStats{
		clock:      RealClock{},
		window:     make(map[string][]time.Duration),
		cumulative: make(map[string]uint64),
	}

	for _, option := range options {
		option(s)
	}

	s.createdAt = s.clock.Now()
	s.windowStart = s.createdAt

	return s
}

// Record adds one latency sample for action.
func (s *LatencyStats) Record(action string, d time.Duration) {
	s.mu.Lock()
	s.window[action] = append(s.window[action], d)
	s.cumulative[action]++
	s.mu.Unlock()
}

// CumulativeCount returns the number of samples ever recorded for action.
func (s *LatencyStats) CumulativeCount(action string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cumulative[action]
}

// WindowCount returns the number of samples recorded for action since the last rotation.
func (s *LatencyStats) WindowCount(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.window[action])
}

// SnapshotAndRotate reports the current window and starts a new one.
// With no arguments every action seen in the window is reported, sorted by name;
// otherwise exactly the given actions are reported, in the given order, even when
// they have no samples.
func (s *LatencyStats) SnapshotAndRotate(actions ...string) []ActionStats {
	s.mu.Lock()
	now := s.clock.Now()
	window := s.window
	windowLength := now.Sub(s.windowStart)
	elapsed := now.Sub(s.createdAt)

	s.window = make(map[string][]time.Duration, len(window))
	s.windowStart = now

	if len(actions) == 0 {
		actions = make([]string, 0, len(window))
		for action := range window {
			actions = append(actions, action)
		}
		sort.Strings(actions)
	}

	cumulative := make([]uint64, len(actions))
	for i, action := range actions {
		cumulative[i] = s.cumulative[action]
	}
	s.mu.Unlock()

	// The old window is no longer reachable by producers, so sorting happens outside the lock.
	rows := make([]ActionStats, 0, len(actions))
	for i, action := range actions {
		samples := sortedMilliseconds(window[action])

		row := ActionStats{
			Action:          action,
			Elapsed:         elapsed,
			CumulativeCount: cumulative[i],
			WindowCount:     len(samples),
			P50:             Percentile(samples, 50),
			P90:             Percentile(samples, 90),
			P95:             Percentile(samples, 95),
			P99:             Percentile(samples, 99),
			Max:             Percentile(samples, 100),
		}

		if seconds := windowLength.Seconds(); seconds > 0 {
			row.Throughput = float64(len(samples)) / seconds
		}

		rows = append(rows, row)
	}

	return rows
}
