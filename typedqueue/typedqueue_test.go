package typedqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
)

func TestTypedQueueDequeuesHighestPriorityFirst(t *testing.T) {
	q := New(DefaultConfig())
	low := job.NewAging("low", "low", job.IntPriority(1), 20, func() error { return nil })
	high := job.NewAging("high", "high", job.IntPriority(10), 20, func() error { return nil })

	require.NoError(t, q.Enqueue(low))
	require.NoError(t, q.Enqueue(high))

	j, err := q.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, "high", j.ID)

	j, err = q.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, "low", j.ID)
}

func TestTypedQueueEmptyReturnsQueueEmpty(t *testing.T) {
	q := New(DefaultConfig())
	_, err := q.TryDequeue()
	require.Error(t, err)
	assert.Equal(t, errs.QueueEmpty, errs.CodeOf(err))
}

func TestTypedQueueStoppedRejectsEnqueue(t *testing.T) {
	q := New(DefaultConfig())
	q.Stop()
	err := q.Enqueue(job.NewAging("a", "a", 1, 20, func() error { return nil }))
	require.Error(t, err)
	assert.Equal(t, errs.QueueStopped, errs.CodeOf(err))
}

func TestApplyAgingBoostsLowPriorityOverTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AgingInterval = time.Millisecond
	cfg.PriorityBoostPerInterval = 5
	q := New(cfg)

	low := job.NewAging("low", "low", job.IntPriority(0), 100, func() error { return nil })
	low.EnqueueTime = time.Now().Add(-20 * time.Millisecond)
	require.NoError(t, q.Enqueue(low))

	q.applyAging()

	assert.Greater(t, low.CurrentBoost, int64(0))
	assert.Greater(t, q.Stats().TotalBoostsApplied, int64(0))
}

func TestCheckStarvationInvokesCallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StarvationThreshold = time.Millisecond

	var alerted bool
	cfg.StarvationCallback = func(j *job.AgingJob) { alerted = true }
	q := New(cfg)

	stale := job.NewAging("stale", "stale", 0, 20, func() error { return nil })
	stale.EnqueueTime = time.Now().Add(-time.Second)
	require.NoError(t, q.Enqueue(stale))

	q.checkStarvation()

	assert.True(t, alerted)
	assert.Equal(t, int64(1), q.Stats().StarvationAlerts)
}

func TestSizeAndEmptyTrackBuckets(t *testing.T) {
	q := New(DefaultConfig())
	assert.True(t, q.Empty())
	require.NoError(t, q.Enqueue(job.NewAging("a", "a", 1, 20, func() error { return nil })))
	assert.False(t, q.Empty())
	assert.Equal(t, 1, q.Size())
}

func TestCalculateBoostCurves(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AgingInterval = time.Millisecond
	cfg.PriorityBoostPerInterval = 1
	cfg.MaxPriorityBoost = 100

	cfg.Curve = job.BoostLinear
	linear := calculateBoost(10*time.Millisecond, cfg)
	assert.Equal(t, int64(10), linear)

	cfg.Curve = job.BoostLogarithmic
	logb := calculateBoost(10*time.Millisecond, cfg)
	assert.Less(t, logb, linear)
}
