package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshot struct {
	name       string
	threads    []ThreadInfo
	queueDepth int
	queueCap   int
	avgWaitMs  float64
	jobsDone   uint64
	running    bool
}

func (f *fakeSnapshot) Name() string                 { return f.name }
func (f *fakeSnapshot) ThreadInfos() []ThreadInfo    { return f.threads }
func (f *fakeSnapshot) QueueDepth() int              { return f.queueDepth }
func (f *fakeSnapshot) QueueCapacity() int           { return f.queueCap }
func (f *fakeSnapshot) AvgWaitTimeMs() float64       { return f.avgWaitMs }
func (f *fakeSnapshot) TotalJobsProcessed() uint64    { return f.jobsDone }
func (f *fakeSnapshot) IsRunning() bool               { return f.running }

func idleThreads(n int) []ThreadInfo {
	out := make([]ThreadInfo, n)
	for i := range out {
		out[i] = ThreadInfo{WorkerID: i, ThreadName: "w", State: WorkerIdle}
	}
	return out
}

func TestDetectBottlenecksNoneOnIdlePool(t *testing.T) {
	snap := &fakeSnapshot{name: "TestPool", threads: idleThreads(4), running: true}
	d := New(snap)

	report := d.DetectBottlenecks()
	assert.False(t, report.HasBottleneck)
	assert.Equal(t, BottleneckNone, report.Type)
	assert.Equal(t, 4, report.TotalWorkers)
	assert.Equal(t, 0, report.QueueDepth)
	assert.Empty(t, report.Recommendations)
}

func TestBottleneckReportSeverityLevels(t *testing.T) {
	var report BottleneckReport
	assert.Equal(t, 0, report.Severity())
	assert.Equal(t, "none", report.SeverityString())
	assert.False(t, report.RequiresImmediateAction())

	report.HasBottleneck = true
	report.QueueSaturation = 0.5
	assert.Equal(t, 1, report.Severity())
	assert.Equal(t, "low", report.SeverityString())

	report.QueueSaturation = 0.85
	assert.Equal(t, 2, report.Severity())
	assert.Equal(t, "medium", report.SeverityString())

	report.QueueSaturation = 0.98
	assert.Equal(t, 3, report.Severity())
	assert.Equal(t, "critical", report.SeverityString())
	assert.True(t, report.RequiresImmediateAction())
}

func TestDetectBottlenecksQueueFullWhenSaturated(t *testing.T) {
	snap := &fakeSnapshot{
		name:       "BoundedPool",
		threads:    idleThreads(1),
		queueDepth: 9,
		queueCap:   10,
		running:    true,
	}
	d := New(snap)

	report := d.DetectBottlenecks()
	assert.True(t, report.HasBottleneck)
	assert.Equal(t, BottleneckQueueFull, report.Type)
	assert.NotEmpty(t, report.Recommendations)
}

func TestWorkerUtilizationWithinRange(t *testing.T) {
	threads := idleThreads(4)
	threads[0].Utilization = 0.5
	snap := &fakeSnapshot{name: "p", threads: threads, running: true}
	d := New(snap)

	report := d.DetectBottlenecks()
	assert.GreaterOrEqual(t, report.WorkerUtilization, 0.0)
	assert.LessOrEqual(t, report.WorkerUtilization, 1.0)
	assert.Equal(t, 4, report.TotalWorkers)
}

func TestHealthCheckHealthyWhenRunning(t *testing.T) {
	snap := &fakeSnapshot{name: "p", threads: idleThreads(4), running: true}
	d := New(snap)

	health := d.HealthCheck()
	assert.True(t, health.IsOperational())
	assert.Equal(t, 4, health.TotalWorkers)
	assert.True(t, d.IsHealthy())
}

func TestHealthCheckUnhealthyWhenStopped(t *testing.T) {
	snap := &fakeSnapshot{name: "p", threads: idleThreads(2), running: false}
	d := New(snap)

	health := d.HealthCheck()
	assert.Equal(t, HealthUnhealthy, health.OverallStatus)
	assert.False(t, d.IsHealthy())
}

func TestFormatThreadDumpContainsPoolNameAndWorkers(t *testing.T) {
	snap := &fakeSnapshot{name: "TestPool", threads: idleThreads(4), running: true}
	d := New(snap)

	dump := d.FormatThreadDump()
	assert.Contains(t, dump, "TestPool")
	assert.Contains(t, dump, "Workers:")
}

func TestEventTracingCanBeEnabled(t *testing.T) {
	snap := &fakeSnapshot{name: "p", running: true}
	d := New(snap)

	assert.False(t, d.IsTracingEnabled())
	d.EnableTracing(true, 100)
	assert.True(t, d.IsTracingEnabled())
	d.EnableTracing(false)
	assert.False(t, d.IsTracingEnabled())
}

func TestRecentJobsInitiallyEmpty(t *testing.T) {
	snap := &fakeSnapshot{name: "p", running: true}
	d := New(snap)
	assert.Empty(t, d.GetRecentJobs())
}

func TestTracerRingBufferOverwritesOldest(t *testing.T) {
	tr := NewTracer(2, true)
	tr.RecordJob(JobInfo{JobID: 1})
	tr.RecordJob(JobInfo{JobID: 2})
	tr.RecordJob(JobInfo{JobID: 3})

	recent := tr.RecentJobs()
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(2), recent[0].JobID)
	assert.Equal(t, uint64(3), recent[1].JobID)
}

func TestToJSONContainsExpectedKeys(t *testing.T) {
	snap := &fakeSnapshot{name: "p", threads: idleThreads(2), running: true}
	d := New(snap)

	data, err := d.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"health\"")
	assert.Contains(t, string(data), "\"workers\"")
	assert.Contains(t, string(data), "\"queue\"")
}

func TestConfigurationCanBeChanged(t *testing.T) {
	snap := &fakeSnapshot{name: "p", running: true}
	d := New(snap)

	cfg := d.GetConfig()
	cfg.WaitTimeThresholdMs = 50.0
	d.SetConfig(cfg)

	assert.Equal(t, 50.0, d.GetConfig().WaitTimeThresholdMs)
}
