package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// WorkerSample is one worker's point-in-time counters, reported inside an
// EnhancedSnapshot.
type WorkerSample struct {
	WorkerID      int
	IsBusy        bool
	TasksExecuted uint64
	BusyTimeNs    uint64
	IdleTimeNs    uint64
}

// EnhancedSnapshot is the full point-in-time dump of an EnhancedMetrics,
// serialized verbatim by the JSON/Prometheus exporters.
type EnhancedSnapshot struct {
	SnapshotTime time.Time

	TasksSubmitted uint64
	TasksExecuted  uint64
	TasksFailed    uint64

	EnqueueLatencyP50Us   float64
	EnqueueLatencyP90Us   float64
	EnqueueLatencyP99Us   float64
	ExecutionLatencyP50Us float64
	ExecutionLatencyP90Us float64
	ExecutionLatencyP99Us float64
	WaitTimeP50Us         float64
	WaitTimeP90Us         float64
	WaitTimeP99Us         float64

	Throughput1s float64
	Throughput1m float64

	CurrentQueueDepth int64
	PeakQueueDepth    int64
	AvgQueueDepth     float64

	TotalBusyTimeNs  uint64
	TotalIdleTimeNs  uint64
	ActiveWorkers    int64
	WorkerUtilization float64

	PerWorkerUtilization []float64
}

// EnhancedMetrics is the full aggregate pool metrics object: counters,
// three latency histograms, two throughput windows, queue-depth tracking
// and per-worker stats, grounded on
// original_source/src/metrics/enhanced_metrics.cpp.
type EnhancedMetrics struct {
	tasksSubmitted atomic.Uint64
	tasksExecuted  atomic.Uint64
	tasksFailed    atomic.Uint64

	enqueueLatency   *Histogram
	executionLatency *Histogram
	waitTime         *Histogram

	throughput1s *SlidingWindowCounter
	throughput1m *SlidingWindowCounter

	currentQueueDepth atomic.Int64
	peakQueueDepth    atomic.Int64
	queueDepthSum     atomic.Uint64
	queueDepthSamples atomic.Uint64

	totalBusyTimeNs atomic.Uint64
	totalIdleTimeNs atomic.Uint64
	activeWorkers   atomic.Int64

	workersMu sync.Mutex
	workers   []WorkerSample
}

// NewEnhancedMetrics creates an EnhancedMetrics tracking workerCount
// workers.
func NewEnhancedMetrics(workerCount int) *EnhancedMetrics {
	m := &EnhancedMetrics{
		enqueueLatency:   NewHistogram(),
		executionLatency: NewHistogram(),
		waitTime:         NewHistogram(),
		throughput1s:     NewSlidingWindowCounter(time.Second),
		throughput1m:     NewSlidingWindowCounter(60 * time.Second),
		workers:          make([]WorkerSample, workerCount),
	}
	for i := range m.workers {
		m.workers[i].WorkerID = i
	}
	return m
}

// RecordSubmission counts one job submitted to the pool.
func (m *EnhancedMetrics) RecordSubmission() { m.tasksSubmitted.Add(1) }

// RecordEnqueue records how long a submission took to enqueue.
func (m *EnhancedMetrics) RecordEnqueue(latency time.Duration) {
	m.enqueueLatency.RecordNanos(uint64(latency))
}

// RecordExecution records a job's run duration and whether it succeeded.
func (m *EnhancedMetrics) RecordExecution(latency time.Duration, success bool) {
	m.executionLatency.RecordNanos(uint64(latency))
	if success {
		m.tasksExecuted.Add(1)
	} else {
		m.tasksFailed.Add(1)
	}
	m.throughput1s.Increment()
	m.throughput1m.Increment()
}

// RecordWaitTime records how long a job waited in queue before execution.
func (m *EnhancedMetrics) RecordWaitTime(wait time.Duration) {
	m.waitTime.RecordNanos(uint64(wait))
}

// RecordQueueDepth samples the current queue depth.
func (m *EnhancedMetrics) RecordQueueDepth(depth int64) {
	m.currentQueueDepth.Store(depth)
	for {
		cur := m.peakQueueDepth.Load()
		if depth <= cur {
			break
		}
		if m.peakQueueDepth.CompareAndSwap(cur, depth) {
			break
		}
	}
	m.queueDepthSum.Add(uint64(depth))
	m.queueDepthSamples.Add(1)
}

// RecordWorkerState updates a single worker's busy/idle accounting.
func (m *EnhancedMetrics) RecordWorkerState(workerID int, busy bool, durationNs uint64) {
	if busy {
		m.totalBusyTimeNs.Add(durationNs)
	} else {
		m.totalIdleTimeNs.Add(durationNs)
	}

	m.workersMu.Lock()
	defer m.workersMu.Unlock()
	if workerID < 0 || workerID >= len(m.workers) {
		return
	}
	w := &m.workers[workerID]
	w.IsBusy = busy
	if busy {
		w.BusyTimeNs += durationNs
	} else {
		w.IdleTimeNs += durationNs
		if durationNs > 0 {
			w.TasksExecuted++
		}
	}
}

// SetActiveWorkers records the pool's current worker count.
func (m *EnhancedMetrics) SetActiveWorkers(count int64) { m.activeWorkers.Store(count) }

// UpdateWorkerCount grows the per-worker tracking slice if count exceeds
// its current size.
func (m *EnhancedMetrics) UpdateWorkerCount(count int) {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()
	if count <= len(m.workers) {
		return
	}
	old := len(m.workers)
	grown := make([]WorkerSample, count)
	copy(grown, m.workers)
	for i := old; i < count; i++ {
		grown[i].WorkerID = i
	}
	m.workers = grown
}

// EnqueueLatency exposes the enqueue-latency histogram for direct reads.
func (m *EnhancedMetrics) EnqueueLatency() *Histogram { return m.enqueueLatency }

// ExecutionLatency exposes the execution-latency histogram.
func (m *EnhancedMetrics) ExecutionLatency() *Histogram { return m.executionLatency }

// WaitTime exposes the wait-time histogram.
func (m *EnhancedMetrics) WaitTime() *Histogram { return m.waitTime }

// Throughput1s exposes the one-second sliding throughput window.
func (m *EnhancedMetrics) Throughput1s() *SlidingWindowCounter { return m.throughput1s }

// Throughput1m exposes the one-minute sliding throughput window.
func (m *EnhancedMetrics) Throughput1m() *SlidingWindowCounter { return m.throughput1m }

// WorkerMetrics returns a copy of the per-worker sample slice.
func (m *EnhancedMetrics) WorkerMetrics() []WorkerSample {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()
	out := make([]WorkerSample, len(m.workers))
	copy(out, m.workers)
	return out
}

func nsToUs(ns float64) float64 { return ns / 1000.0 }

// Snapshot freezes every counter into an EnhancedSnapshot.
func (m *EnhancedMetrics) Snapshot() EnhancedSnapshot {
	var snap EnhancedSnapshot
	snap.SnapshotTime = time.Now()

	snap.TasksSubmitted = m.tasksSubmitted.Load()
	snap.TasksExecuted = m.tasksExecuted.Load()
	snap.TasksFailed = m.tasksFailed.Load()

	snap.EnqueueLatencyP50Us = nsToUs(m.enqueueLatency.Percentile(0.50))
	snap.EnqueueLatencyP90Us = nsToUs(m.enqueueLatency.Percentile(0.90))
	snap.EnqueueLatencyP99Us = nsToUs(m.enqueueLatency.Percentile(0.99))

	snap.ExecutionLatencyP50Us = nsToUs(m.executionLatency.Percentile(0.50))
	snap.ExecutionLatencyP90Us = nsToUs(m.executionLatency.Percentile(0.90))
	snap.ExecutionLatencyP99Us = nsToUs(m.executionLatency.Percentile(0.99))

	snap.WaitTimeP50Us = nsToUs(m.waitTime.Percentile(0.50))
	snap.WaitTimeP90Us = nsToUs(m.waitTime.Percentile(0.90))
	snap.WaitTimeP99Us = nsToUs(m.waitTime.Percentile(0.99))

	snap.Throughput1s = m.throughput1s.RatePerSecond()
	snap.Throughput1m = m.throughput1m.RatePerSecond()

	snap.CurrentQueueDepth = m.currentQueueDepth.Load()
	snap.PeakQueueDepth = m.peakQueueDepth.Load()
	if samples := m.queueDepthSamples.Load(); samples > 0 {
		snap.AvgQueueDepth = float64(m.queueDepthSum.Load()) / float64(samples)
	}

	snap.TotalBusyTimeNs = m.totalBusyTimeNs.Load()
	snap.TotalIdleTimeNs = m.totalIdleTimeNs.Load()
	snap.ActiveWorkers = m.activeWorkers.Load()

	totalTime := snap.TotalBusyTimeNs + snap.TotalIdleTimeNs
	if totalTime > 0 {
		snap.WorkerUtilization = float64(snap.TotalBusyTimeNs) / float64(totalTime)
	}

	m.workersMu.Lock()
	snap.PerWorkerUtilization = make([]float64, len(m.workers))
	for i, w := range m.workers {
		total := w.BusyTimeNs + w.IdleTimeNs
		if total > 0 {
			snap.PerWorkerUtilization[i] = float64(w.BusyTimeNs) / float64(total)
		}
	}
	m.workersMu.Unlock()

	return snap
}

// Reset zeroes every counter, histogram and window.
func (m *EnhancedMetrics) Reset() {
	m.tasksSubmitted.Store(0)
	m.tasksExecuted.Store(0)
	m.tasksFailed.Store(0)

	m.enqueueLatency.Reset()
	m.executionLatency.Reset()
	m.waitTime.Reset()

	m.throughput1s.Reset()
	m.throughput1m.Reset()

	m.currentQueueDepth.Store(0)
	m.peakQueueDepth.Store(0)
	m.queueDepthSum.Store(0)
	m.queueDepthSamples.Store(0)

	m.workersMu.Lock()
	for i := range m.workers {
		m.workers[i].TasksExecuted = 0
		m.workers[i].BusyTimeNs = 0
		m.workers[i].IdleTimeNs = 0
		m.workers[i].IsBusy = false
	}
	m.workersMu.Unlock()
}

// JobsCompleted satisfies autoscale.MetricsSource.
func (m *EnhancedMetrics) JobsCompleted() uint64 { return m.tasksExecuted.Load() }

// JobsSubmitted satisfies autoscale.MetricsSource.
func (m *EnhancedMetrics) JobsSubmitted() uint64 { return m.tasksSubmitted.Load() }

// P95WaitMillis satisfies autoscale.MetricsSource: the spec's autoscaler
// samples P95 of wait time rather than the original's P99 approximation.
func (m *EnhancedMetrics) P95WaitMillis() float64 {
	return nsToUs(m.waitTime.Percentile(0.95)) / 1000.0
}
