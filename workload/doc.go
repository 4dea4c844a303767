// Package workload simulates MovR ride-sharing clients against a DataStore and
// aggregates per-action latency statistics.
//
// A Coordinator runs N Workers. Every Worker draws actions from its own ActionScheduler,
// executes them through a shared RetryingExecutor and records the latency of each successful
// action into a shared LatencyStats, which is periodically snapshotted and rotated into a Report.
//
// Errors returned by a DataStore are classified by an ErrorClassifier:
//   - transient errors (contention conflicts) are retried with exponential backoff up to a bound,
//   - connectivity errors make the worker drop its session and reconnect after a cool-down,
//   - everything else is fatal and logged without retrying.
package workload
