package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultPrefix is the metric-name prefix used when none is supplied to
// NewPrometheusExporter, matching the wire schema's documented default.
const DefaultPrefix = "thread_pool"

// PrometheusExporter publishes an EnhancedMetrics snapshot as Prometheus
// gauges on a dedicated registry, grounded on
// therealutkarshpriyadarshi-log/internal/metrics/metrics.go's
// promauto.With(registry) wiring style.
type PrometheusExporter struct {
	source   *EnhancedMetrics
	registry *prometheus.Registry

	tasksSubmitted prometheus.Counter
	tasksExecuted  prometheus.Counter
	tasksFailed    prometheus.Counter

	latencySeconds *prometheus.GaugeVec
	throughput     *prometheus.GaugeVec
	queueDepth     *prometheus.GaugeVec

	workerUtilization prometheus.Gauge
	activeWorkers     prometheus.Gauge
	perWorkerUtil     *prometheus.GaugeVec

	lastTasksSubmitted uint64
	lastTasksExecuted  uint64
	lastTasksFailed    uint64
}

// NewPrometheusExporter registers metrics for source on a fresh registry
// under the given name prefix. An empty prefix falls back to DefaultPrefix.
func NewPrometheusExporter(source *EnhancedMetrics, prefix string) *PrometheusExporter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	registry := prometheus.NewRegistry()
	e := &PrometheusExporter{source: source, registry: registry}

	e.tasksSubmitted = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: prefix + "_tasks_submitted_total",
		Help: "Total tasks submitted to the pool",
	})
	e.tasksExecuted = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: prefix + "_tasks_executed_total",
		Help: "Total tasks executed successfully",
	})
	e.tasksFailed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: prefix + "_tasks_failed_total",
		Help: "Total tasks that returned an error",
	})

	e.latencySeconds = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_latency_seconds",
		Help: "Latency percentiles in seconds, by kind and quantile",
	}, []string{"kind", "quantile"})

	e.throughput = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_throughput_per_second",
		Help: "Jobs completed per second, by trailing window",
	}, []string{"window"})

	e.queueDepth = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_queue_depth",
		Help: "Queue depth, by statistic",
	}, []string{"stat"})

	e.workerUtilization = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_worker_utilization",
		Help: "Pool-wide busy-time ratio",
	})
	e.activeWorkers = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_active_workers",
		Help: "Current active worker count",
	})
	e.perWorkerUtil = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_per_worker_utilization",
		Help: "Busy-time ratio for each worker",
	}, []string{"worker_id"})

	return e
}

func usToSeconds(us float64) float64 { return us / 1e6 }

// Collect pulls a fresh snapshot from the source and updates every metric.
// Counters only move forward, so Collect adds the delta since the last
// call rather than re-setting an absolute value.
func (e *PrometheusExporter) Collect() {
	snap := e.source.Snapshot()

	if snap.TasksSubmitted > e.lastTasksSubmitted {
		e.tasksSubmitted.Add(float64(snap.TasksSubmitted - e.lastTasksSubmitted))
		e.lastTasksSubmitted = snap.TasksSubmitted
	}
	if snap.TasksExecuted > e.lastTasksExecuted {
		e.tasksExecuted.Add(float64(snap.TasksExecuted - e.lastTasksExecuted))
		e.lastTasksExecuted = snap.TasksExecuted
	}
	if snap.TasksFailed > e.lastTasksFailed {
		e.tasksFailed.Add(float64(snap.TasksFailed - e.lastTasksFailed))
		e.lastTasksFailed = snap.TasksFailed
	}

	e.latencySeconds.WithLabelValues("enqueue", "p50").Set(usToSeconds(snap.EnqueueLatencyP50Us))
	e.latencySeconds.WithLabelValues("enqueue", "p90").Set(usToSeconds(snap.EnqueueLatencyP90Us))
	e.latencySeconds.WithLabelValues("enqueue", "p99").Set(usToSeconds(snap.EnqueueLatencyP99Us))
	e.latencySeconds.WithLabelValues("execution", "p50").Set(usToSeconds(snap.ExecutionLatencyP50Us))
	e.latencySeconds.WithLabelValues("execution", "p90").Set(usToSeconds(snap.ExecutionLatencyP90Us))
	e.latencySeconds.WithLabelValues("execution", "p99").Set(usToSeconds(snap.ExecutionLatencyP99Us))
	e.latencySeconds.WithLabelValues("wait", "p50").Set(usToSeconds(snap.WaitTimeP50Us))
	e.latencySeconds.WithLabelValues("wait", "p90").Set(usToSeconds(snap.WaitTimeP90Us))
	e.latencySeconds.WithLabelValues("wait", "p99").Set(usToSeconds(snap.WaitTimeP99Us))

	e.throughput.WithLabelValues("1s").Set(snap.Throughput1s)
	e.throughput.WithLabelValues("1m").Set(snap.Throughput1m)

	e.queueDepth.WithLabelValues("current").Set(float64(snap.CurrentQueueDepth))
	e.queueDepth.WithLabelValues("peak").Set(float64(snap.PeakQueueDepth))
	e.queueDepth.WithLabelValues("avg").Set(snap.AvgQueueDepth)

	e.workerUtilization.Set(snap.WorkerUtilization)
	e.activeWorkers.Set(float64(snap.ActiveWorkers))

	for i, util := range snap.PerWorkerUtilization {
		e.perWorkerUtil.WithLabelValues(workerIDLabel(i)).Set(util)
	}
}

// Registry returns the registry the exporter's metrics are bound to, for
// wiring into an HTTP handler via promhttp.HandlerFor.
func (e *PrometheusExporter) Registry() *prometheus.Registry { return e.registry }

func workerIDLabel(id int) string {
	const digits = "0123456789"
	if id == 0 {
		return "0"
	}
	buf := make([]byte, 0, 8)
	for id > 0 {
		buf = append([]byte{digits[id%10]}, buf...)
		id /= 10
	}
	return string(buf)
}
