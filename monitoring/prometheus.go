package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMonitoring is an IMonitoring adapter that republishes every
// Update* call as Prometheus gauges on its own registry, independent of
// (and in addition to) whatever metrics.PrometheusExporter a pool attaches
// for its EnhancedMetrics snapshot.
type PrometheusMonitoring struct {
	registry *prometheus.Registry

	goroutines prometheus.Gauge

	activeWorkers prometheus.Gauge
	idleWorkers   prometheus.Gauge
	queueDepth    prometheus.Gauge

	workerJobsProcessed *prometheus.GaugeVec
	workerBusyNs        *prometheus.GaugeVec
	workerIdleNs        *prometheus.GaugeVec
}

// NewPrometheusMonitoring registers a fresh set of gauges under prefix on a
// dedicated registry.
func NewPrometheusMonitoring(prefix string) *PrometheusMonitoring {
	if prefix == "" {
		prefix = "thread_pool_monitor"
	}
	registry := prometheus.NewRegistry()
	m := &PrometheusMonitoring{registry: registry}

	m.goroutines = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_goroutines",
		Help: "Goroutine count at last system metrics update",
	})
	m.activeWorkers = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_active_workers",
		Help: "Active worker count at last pool metrics update",
	})
	m.idleWorkers = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_idle_workers",
		Help: "Idle worker count at last pool metrics update",
	})
	m.queueDepth = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_queue_depth",
		Help: "Queue depth at last pool metrics update",
	})
	m.workerJobsProcessed = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_worker_jobs_processed",
		Help: "Cumulative jobs processed, by worker id",
	}, []string{"worker_id"})
	m.workerBusyNs = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_worker_busy_ns",
		Help: "Cumulative busy time in nanoseconds, by worker id",
	}, []string{"worker_id"})
	m.workerIdleNs = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_worker_idle_ns",
		Help: "Cumulative idle time in nanoseconds, by worker id",
	}, []string{"worker_id"})

	return m
}

func (m *PrometheusMonitoring) UpdateSystemMetrics(s SystemMetrics) {
	m.goroutines.Set(float64(s.Goroutines))
}

func (m *PrometheusMonitoring) UpdatePoolMetrics(p PoolMetrics) {
	m.activeWorkers.Set(float64(p.ActiveWorkers))
	m.idleWorkers.Set(float64(p.IdleWorkers))
	m.queueDepth.Set(float64(p.QueueDepth))
}

func (m *PrometheusMonitoring) UpdateWorkerMetrics(w WorkerMetrics) {
	label := workerIDLabel(w.WorkerID)
	m.workerJobsProcessed.WithLabelValues(label).Set(float64(w.JobsProcessed))
	m.workerBusyNs.WithLabelValues(label).Set(float64(w.BusyNs))
	m.workerIdleNs.WithLabelValues(label).Set(float64(w.IdleNs))
}

func (m *PrometheusMonitoring) Snapshot() Snapshot {
	metricFamilies, err := m.registry.Gather()
	if err != nil {
		return nil
	}
	out := make(Snapshot, len(metricFamilies))
	for _, mf := range metricFamilies {
		out[mf.GetName()] = mf.GetMetric()
	}
	return out
}

// Registry returns the registry PrometheusMonitoring's gauges are bound to,
// for wiring into an HTTP handler via promhttp.HandlerFor.
func (m *PrometheusMonitoring) Registry() *prometheus.Registry { return m.registry }

func workerIDLabel(id int) string {
	const digits = "0123456789"
	if id == 0 {
		return "0"
	}
	neg := id < 0
	if neg {
		id = -id
	}
	buf := make([]byte, 0, 8)
	for id > 0 {
		buf = append([]byte{digits[id%10]}, buf...)
		id /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}
