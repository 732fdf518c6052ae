package diagnostics

import (
	"fmt"
	"math"
	"sync"
)

// PoolSnapshot is the narrow view of a running pool diagnostics needs. It
// mirrors autoscale's PoolController/MetricsSource split: diagnostics
// depends on this interface rather than the pool package directly, since
// pool in turn depends on diagnostics for health reporting.
type PoolSnapshot interface {
	Name() string
	ThreadInfos() []ThreadInfo
	QueueDepth() int
	QueueCapacity() int // 0 means unbounded
	AvgWaitTimeMs() float64
	TotalJobsProcessed() uint64
	IsRunning() bool
}

// Diagnostics runs health checks, bottleneck detection, and thread dumps
// against a PoolSnapshot.
type Diagnostics struct {
	source PoolSnapshot

	configMu sync.RWMutex
	config   Config

	tracer *Tracer
}

// New creates a Diagnostics over source with the default Config.
func New(source PoolSnapshot) *Diagnostics {
	cfg := DefaultConfig()
	return &Diagnostics{
		source: source,
		config: cfg,
		tracer: NewTracer(cfg.EventHistorySize, cfg.EnableTracing),
	}
}

// GetConfig returns the current configuration.
func (d *Diagnostics) GetConfig() Config {
	d.configMu.RLock()
	defer d.configMu.RUnlock()
	return d.config
}

// SetConfig replaces the configuration and resizes the tracer's history
// buffer if EventHistorySize changed.
func (d *Diagnostics) SetConfig(cfg Config) {
	d.configMu.Lock()
	d.config = cfg
	d.configMu.Unlock()
	d.tracer.Resize(cfg.EventHistorySize)
	d.tracer.SetEnabled(cfg.EnableTracing)
}

// DumpThreadStates returns a point-in-time snapshot of every worker.
func (d *Diagnostics) DumpThreadStates() []ThreadInfo {
	return d.source.ThreadInfos()
}

// FormatThreadDump renders DumpThreadStates as a human-readable report,
// grounded on the "TestPool" / "Workers:" markers asserted by
// DiagnosticsIntegrationTest.FormatThreadDumpProducesOutput.
func (d *Diagnostics) FormatThreadDump() string {
	threads := d.DumpThreadStates()
	out := fmt.Sprintf("Thread dump for pool %q\nWorkers: %d\n", d.source.Name(), len(threads))
	for _, t := range threads {
		out += fmt.Sprintf(
			"  worker[%d] %s state=%s jobs_completed=%d utilization=%.2f\n",
			t.WorkerID, t.ThreadName, t.State, t.JobsCompleted, t.Utilization,
		)
	}
	return out
}

// HealthCheck aggregates worker and queue state into a HealthStatus.
func (d *Diagnostics) HealthCheck() HealthStatus {
	threads := d.source.ThreadInfos()

	status := HealthStatus{
		TotalWorkers:       len(threads),
		TotalJobsProcessed: d.source.TotalJobsProcessed(),
	}

	workerState := HealthHealthy
	if !d.source.IsRunning() {
		workerState = HealthUnhealthy
	} else if len(threads) == 0 {
		workerState = HealthDegraded
	}
	status.Components = append(status.Components, ComponentHealth{
		Name:  "workers",
		State: workerState,
	})

	cfg := d.GetConfig()
	queueState := HealthHealthy
	if capacity := d.source.QueueCapacity(); capacity > 0 {
		saturation := float64(d.source.QueueDepth()) / float64(capacity)
		if saturation >= 0.95 {
			queueState = HealthUnhealthy
		} else if saturation >= cfg.QueueSaturationHigh {
			queueState = HealthDegraded
		}
	}
	status.Components = append(status.Components, ComponentHealth{
		Name:  "queue",
		State: queueState,
	})

	status.CalculateOverallStatus()
	return status
}

// IsHealthy reports whether HealthCheck would return an operational
// status.
func (d *Diagnostics) IsHealthy() bool {
	return d.HealthCheck().IsOperational()
}

// DetectBottlenecks samples the pool and classifies the dominant
// bottleneck, if any, per bottleneck_detection_test.cpp's thresholds.
func (d *Diagnostics) DetectBottlenecks() BottleneckReport {
	threads := d.source.ThreadInfos()
	cfg := d.GetConfig()

	report := BottleneckReport{
		TotalWorkers: len(threads),
		QueueDepth:   d.source.QueueDepth(),
	}

	for _, t := range threads {
		if t.State == WorkerIdle {
			report.IdleWorkers++
		}
	}

	if capacity := d.source.QueueCapacity(); capacity > 0 {
		report.QueueSaturation = float64(report.QueueDepth) / float64(capacity)
	}

	report.WorkerUtilization = averageUtilization(threads)
	report.UtilizationVariance = utilizationVariance(threads, report.WorkerUtilization)
	report.AvgWaitTimeMs = d.source.AvgWaitTimeMs()

	switch {
	case report.QueueSaturation >= cfg.QueueSaturationHigh:
		report.HasBottleneck = true
		report.Type = BottleneckQueueFull
		report.Recommendations = append(report.Recommendations,
			"increase queue capacity or add workers to drain the backlog")
	case report.TotalWorkers > 0 && report.IdleWorkers == 0 &&
		report.WorkerUtilization >= cfg.UtilizationHighThreshold && report.QueueDepth > 0:
		report.HasBottleneck = true
		report.Type = BottleneckSlowConsumer
		report.Recommendations = append(report.Recommendations,
			"workers are saturated; profile job execution time or scale out")
	case report.AvgWaitTimeMs >= cfg.WaitTimeThresholdMs && report.QueueDepth > 0:
		report.HasBottleneck = true
		report.Type = BottleneckWorkerStarvation
		report.Recommendations = append(report.Recommendations,
			"jobs are waiting longer than the configured threshold; add workers")
	case report.TotalWorkers > 1 && report.UtilizationVariance >= 0.15:
		report.HasBottleneck = true
		report.Type = BottleneckUnevenDistribution
		report.Recommendations = append(report.Recommendations,
			"work is unevenly distributed across workers; check victim-selection policy")
	default:
		report.Type = BottleneckNone
	}

	return report
}

func averageUtilization(threads []ThreadInfo) float64 {
	if len(threads) == 0 {
		return 0
	}
	var sum float64
	for _, t := range threads {
		sum += t.Utilization
	}
	return sum / float64(len(threads))
}

func utilizationVariance(threads []ThreadInfo, mean float64) float64 {
	if len(threads) == 0 {
		return 0
	}
	var sumSq float64
	for _, t := range threads {
		diff := t.Utilization - mean
		sumSq += diff * diff
	}
	return math.Min(sumSq/float64(len(threads)), 1.0)
}

// EnableTracing turns event tracing on or off and optionally resizes the
// retained history.
func (d *Diagnostics) EnableTracing(enabled bool, historySize ...int) {
	if len(historySize) > 0 && historySize[0] > 0 {
		d.tracer.Resize(historySize[0])
	}
	d.tracer.SetEnabled(enabled)

	d.configMu.Lock()
	d.config.EnableTracing = enabled
	d.configMu.Unlock()
}

// IsTracingEnabled reports whether event tracing is currently active.
func (d *Diagnostics) IsTracingEnabled() bool { return d.tracer.Enabled() }

// GetRecentJobs returns the tracer's retained job-completion events.
func (d *Diagnostics) GetRecentJobs() []JobInfo { return d.tracer.RecentJobs() }

// RecordJobEvent feeds a job-completion event into the tracer. Pool code
// calls this after each job finishes; it is a no-op when tracing is
// disabled.
func (d *Diagnostics) RecordJobEvent(info JobInfo) { d.tracer.RecordJob(info) }

// ToJSON renders health, bottleneck, and worker state as a JSON document,
// grounded on the "health"/"workers"/"queue" keys asserted by
// DiagnosticsIntegrationTest.ToJsonProducesValidOutput.
func (d *Diagnostics) ToJSON() ([]byte, error) {
	return marshalDiagnostics(d.HealthCheck(), d.DetectBottlenecks(), d.DumpThreadStates())
}
