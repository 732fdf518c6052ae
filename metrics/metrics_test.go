package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramBucketZeroHoldsExactlyZero(t *testing.T) {
	h := NewHistogram()
	h.RecordNanos(0)
	assert.Equal(t, uint64(1), h.BucketCount(0))
}

func TestHistogramOverflowBucketHoldsHugeValues(t *testing.T) {
	h := NewHistogram()
	h.RecordNanos(1 << 62)
	assert.Equal(t, uint64(1), h.BucketCount(bucketCount-1))
}

func TestHistogramPercentileMonotonic(t *testing.T) {
	h := NewHistogram()
	for _, v := range []uint64{10, 20, 30, 40, 50, 100, 200, 1000} {
		h.RecordNanos(v)
	}
	p50 := h.Percentile(0.5)
	p99 := h.Percentile(0.99)
	assert.LessOrEqual(t, p50, p99)
	assert.Greater(t, p99, float64(0))
}

func TestHistogramMinMax(t *testing.T) {
	h := NewHistogram()
	h.RecordNanos(500)
	h.RecordNanos(5)
	h.RecordNanos(50000)
	assert.Equal(t, uint64(5), h.Min())
	assert.Equal(t, uint64(50000), h.Max())
}

func TestHistogramEmptyReturnsZero(t *testing.T) {
	h := NewHistogram()
	assert.True(t, h.Empty())
	assert.Equal(t, float64(0), h.Percentile(0.5))
	assert.Equal(t, uint64(0), h.Min())
}

func TestHistogramMergeCombinesCounts(t *testing.T) {
	a := NewHistogram()
	b := NewHistogram()
	a.RecordNanos(100)
	b.RecordNanos(200)
	b.RecordNanos(300)

	a.Merge(b)
	assert.Equal(t, uint64(3), a.Count())
	assert.Equal(t, uint64(100), a.Min())
	assert.Equal(t, uint64(300), a.Max())
}

func TestHistogramResetClearsState(t *testing.T) {
	h := NewHistogram()
	h.RecordNanos(42)
	h.Reset()
	assert.True(t, h.Empty())
	assert.Equal(t, uint64(0), h.Sum())
}

func TestSlidingWindowCounterRatePerSecond(t *testing.T) {
	c := NewSlidingWindowCounter(10 * time.Second)
	c.IncrementBy(50)
	rate := c.RatePerSecond()
	assert.InDelta(t, 5.0, rate, 0.01)
}

func TestSlidingWindowCounterEvictsStaleBuckets(t *testing.T) {
	c := NewSlidingWindowCounter(time.Second)
	c.buckets[time.Now().Unix()-100] = 999
	c.Increment()
	rate := c.RatePerSecond()
	assert.Less(t, rate, 999.0)
}

func TestSlidingWindowCounterReset(t *testing.T) {
	c := NewSlidingWindowCounter(time.Second)
	c.Increment()
	c.Reset()
	assert.Equal(t, float64(0), c.RatePerSecond())
}

func TestEnhancedMetricsSnapshotCounts(t *testing.T) {
	m := NewEnhancedMetrics(2)
	m.RecordSubmission()
	m.RecordSubmission()
	m.RecordEnqueue(5 * time.Microsecond)
	m.RecordExecution(2*time.Millisecond, true)
	m.RecordExecution(3*time.Millisecond, false)
	m.RecordWaitTime(10 * time.Microsecond)
	m.RecordQueueDepth(3)
	m.RecordQueueDepth(7)
	m.RecordWorkerState(0, true, uint64(time.Millisecond))
	m.RecordWorkerState(0, false, uint64(time.Millisecond))
	m.SetActiveWorkers(2)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.TasksSubmitted)
	assert.Equal(t, uint64(1), snap.TasksExecuted)
	assert.Equal(t, uint64(1), snap.TasksFailed)
	assert.Equal(t, int64(7), snap.PeakQueueDepth)
	assert.Equal(t, int64(7), snap.CurrentQueueDepth)
	assert.InDelta(t, 5.0, snap.AvgQueueDepth, 0.01)
	assert.Equal(t, int64(2), snap.ActiveWorkers)
	assert.Greater(t, snap.WorkerUtilization, float64(0))
	require.Len(t, snap.PerWorkerUtilization, 2)
}

func TestEnhancedMetricsUpdateWorkerCountGrows(t *testing.T) {
	m := NewEnhancedMetrics(1)
	m.UpdateWorkerCount(4)
	assert.Len(t, m.WorkerMetrics(), 4)
}

func TestEnhancedMetricsResetClearsCounters(t *testing.T) {
	m := NewEnhancedMetrics(1)
	m.RecordSubmission()
	m.RecordExecution(time.Millisecond, true)
	m.Reset()

	snap := m.Snapshot()
	assert.Equal(t, uint64(0), snap.TasksSubmitted)
	assert.Equal(t, uint64(0), snap.TasksExecuted)
}

func TestEnhancedMetricsSatisfiesMetricsSource(t *testing.T) {
	m := NewEnhancedMetrics(1)
	m.RecordSubmission()
	m.RecordExecution(time.Millisecond, true)
	assert.Equal(t, uint64(1), m.JobsCompleted())
	assert.Equal(t, uint64(1), m.JobsSubmitted())
}

func TestEnhancedSnapshotJSONRoundTrip(t *testing.T) {
	m := NewEnhancedMetrics(2)
	m.RecordSubmission()
	m.RecordExecution(time.Millisecond, true)
	m.RecordQueueDepth(4)
	snap := m.Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var roundTripped EnhancedSnapshot
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	assert.Equal(t, snap.TasksSubmitted, roundTripped.TasksSubmitted)
	assert.Equal(t, snap.TasksExecuted, roundTripped.TasksExecuted)
	assert.Equal(t, snap.CurrentQueueDepth, roundTripped.CurrentQueueDepth)
}

func TestPrometheusExporterCollectDoesNotPanic(t *testing.T) {
	m := NewEnhancedMetrics(2)
	m.RecordSubmission()
	m.RecordExecution(time.Millisecond, true)
	m.RecordWorkerState(0, true, uint64(time.Millisecond))

	exp := NewPrometheusExporter(m, "")
	exp.Collect()

	families, err := exp.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPrometheusExporterUsesDefaultPrefix(t *testing.T) {
	m := NewEnhancedMetrics(1)
	m.RecordSubmission()

	exp := NewPrometheusExporter(m, "")
	exp.Collect()

	families, err := exp.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == DefaultPrefix+"_tasks_submitted_total" {
			found = true
		}
	}
	assert.True(t, found)
}
