// Package monitoring defines the IMonitoring contract (spec §6): an
// external sink for system/pool/worker metrics, independent of how those
// metrics are exported (see package metrics for the Prometheus/JSON
// exporters).
package monitoring

import "time"

// SystemMetrics is a coarse, point-in-time system resource sample.
type SystemMetrics struct {
	Goroutines int
	Timestamp  time.Time
}

// PoolMetrics is a coarse, point-in-time pool-level sample.
type PoolMetrics struct {
	ActiveWorkers int
	IdleWorkers   int
	QueueDepth    int
	Timestamp     time.Time
}

// WorkerMetrics is a coarse, point-in-time single-worker sample.
type WorkerMetrics struct {
	WorkerID      int
	JobsProcessed uint64
	BusyNs        int64
	IdleNs        int64
	Timestamp     time.Time
}

// Snapshot is whatever the monitoring backend considers its current frozen
// view; opaque to callers other than for logging/debugging.
type Snapshot map[string]any

// Monitoring is the IMonitoring contract.
type Monitoring interface {
	UpdateSystemMetrics(SystemMetrics)
	UpdatePoolMetrics(PoolMetrics)
	UpdateWorkerMetrics(WorkerMetrics)
	Snapshot() Snapshot
}

// noop is the default Monitoring used when the builder is never given one.
type noop struct{}

// Noop returns a Monitoring that discards every update.
func Noop() Monitoring { return noop{} }

func (noop) UpdateSystemMetrics(SystemMetrics) {}
func (noop) UpdatePoolMetrics(PoolMetrics)     {}
func (noop) UpdateWorkerMetrics(WorkerMetrics) {}
func (noop) Snapshot() Snapshot                { return nil }
