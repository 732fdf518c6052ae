// Package diagnostics implements health checks, bottleneck detection, and
// event tracing over a running pool, grounded on
// original_source/integration_tests/integration/diagnostics_integration_test.cpp
// and tests/unit/thread_pool_test/bottleneck_detection_test.cpp, with the
// health-check aggregation style borrowed from
// therealutkarshpriyadarshi-log/internal/health/health.go.
package diagnostics

import "time"

// JobStatus is the lifecycle state of a single unit of work as observed by
// diagnostics, distinct from the scheduler's own internal job bookkeeping.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobRunning
	JobCompleted
	JobFailed
	JobCancelled
)

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// JobInfo describes one job for reporting purposes (thread dumps,
// recent-jobs history).
type JobInfo struct {
	JobID     uint64
	Status    JobStatus
	StartTime time.Time
	EndTime   time.Time
}

// IsFinished reports whether the job reached a terminal state.
func (j JobInfo) IsFinished() bool {
	return j.Status == JobCompleted || j.Status == JobFailed || j.Status == JobCancelled
}

// IsActive reports whether the job is still pending or running.
func (j JobInfo) IsActive() bool { return !j.IsFinished() }

// WorkerState is a worker's coarse lifecycle state for reporting.
type WorkerState int

const (
	WorkerIdle WorkerState = iota
	WorkerActive
	WorkerStopping
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "IDLE"
	case WorkerActive:
		return "ACTIVE"
	case WorkerStopping:
		return "STOPPING"
	case WorkerStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ThreadInfo is one worker's point-in-time snapshot, as returned by
// DumpThreadStates.
type ThreadInfo struct {
	WorkerID      int
	ThreadName    string
	State         WorkerState
	CurrentJob    *JobInfo
	TotalBusyTime time.Duration
	TotalIdleTime time.Duration
	JobsCompleted uint64
	Utilization   float64
}

// UpdateUtilization recomputes Utilization from the accumulated busy/idle
// durations.
func (t *ThreadInfo) UpdateUtilization() {
	total := t.TotalBusyTime + t.TotalIdleTime
	if total <= 0 {
		t.Utilization = 0
		return
	}
	t.Utilization = float64(t.TotalBusyTime) / float64(total)
}

// HealthState is a component's or the pool's overall operational state.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ComponentHealth is a single subsystem's contribution to overall health.
type ComponentHealth struct {
	Name    string
	State   HealthState
	Message string
}

// HealthStatus aggregates every component's health into one overall state,
// worst-state-wins: any unhealthy component makes the pool unhealthy, any
// degraded component (with no unhealthy ones) makes it degraded.
type HealthStatus struct {
	Components        []ComponentHealth
	OverallStatus      HealthState
	TotalWorkers       int
	TotalJobsProcessed uint64
}

// CalculateOverallStatus recomputes OverallStatus from Components.
func (h *HealthStatus) CalculateOverallStatus() {
	if len(h.Components) == 0 {
		h.OverallStatus = HealthHealthy
		return
	}
	worst := HealthHealthy
	for _, c := range h.Components {
		if c.State == HealthUnhealthy {
			worst = HealthUnhealthy
			break
		}
		if c.State == HealthDegraded && worst != HealthUnhealthy {
			worst = HealthDegraded
		}
	}
	h.OverallStatus = worst
}

// IsOperational reports whether the pool is healthy or merely degraded,
// as opposed to unhealthy or unknown.
func (h HealthStatus) IsOperational() bool {
	return h.OverallStatus == HealthHealthy || h.OverallStatus == HealthDegraded
}

// BottleneckType classifies the dominant cause of a detected bottleneck.
type BottleneckType int

const (
	BottleneckNone BottleneckType = iota
	BottleneckQueueFull
	BottleneckSlowConsumer
	BottleneckWorkerStarvation
	BottleneckLockContention
	BottleneckUnevenDistribution
	BottleneckMemoryPressure
)

func (t BottleneckType) String() string {
	switch t {
	case BottleneckNone:
		return "none"
	case BottleneckQueueFull:
		return "queue_full"
	case BottleneckSlowConsumer:
		return "slow_consumer"
	case BottleneckWorkerStarvation:
		return "worker_starvation"
	case BottleneckLockContention:
		return "lock_contention"
	case BottleneckUnevenDistribution:
		return "uneven_distribution"
	case BottleneckMemoryPressure:
		return "memory_pressure"
	default:
		return "unknown"
	}
}

// BottleneckReport is the outcome of one DetectBottlenecks call.
type BottleneckReport struct {
	HasBottleneck       bool
	Type                BottleneckType
	TotalWorkers        int
	IdleWorkers         int
	QueueDepth          int
	QueueSaturation     float64
	WorkerUtilization   float64
	AvgWaitTimeMs       float64
	UtilizationVariance float64
	Recommendations     []string
}

// Severity maps the report onto a 0-3 scale: 0 none, 1 low, 2 medium,
// 3 critical, driven by queue saturation per
// bottleneck_detection_test.cpp's BottleneckReportHasSeverityLevels.
func (r BottleneckReport) Severity() int {
	if !r.HasBottleneck {
		return 0
	}
	switch {
	case r.QueueSaturation >= 0.95:
		return 3
	case r.QueueSaturation >= 0.8:
		return 2
	default:
		return 1
	}
}

// SeverityString renders Severity as the report's canonical label.
func (r BottleneckReport) SeverityString() string {
	switch r.Severity() {
	case 3:
		return "critical"
	case 2:
		return "medium"
	case 1:
		return "low"
	default:
		return "none"
	}
}

// RequiresImmediateAction reports whether the bottleneck is severe enough
// to page an operator rather than just log.
func (r BottleneckReport) RequiresImmediateAction() bool {
	return r.Severity() >= 3
}

// Config tunes the thresholds DetectBottlenecks compares samples against,
// and the tracer's retained history.
type Config struct {
	QueueSaturationHigh      float64
	UtilizationHighThreshold float64
	WaitTimeThresholdMs      float64
	EnableTracing            bool
	EventHistorySize         int
}

// DefaultConfig matches the thresholds asserted by
// BottleneckDetectionTest.DiagnosticsConfigThresholds.
func DefaultConfig() Config {
	return Config{
		QueueSaturationHigh:      0.8,
		UtilizationHighThreshold: 0.9,
		WaitTimeThresholdMs:      100.0,
		EnableTracing:            false,
		EventHistorySize:         200,
	}
}
