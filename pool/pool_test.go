package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/scheduler/diagnostics"
	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/metrics"
	"github.com/go-foundations/scheduler/queue"
)

type PoolTestSuite struct {
	suite.Suite
}

func TestPoolTestSuite(t *testing.T) {
	suite.Run(t, new(PoolTestSuite))
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func (ts *PoolTestSuite) newPool(workers int) *ThreadPool {
	cfg := DefaultConfig()
	cfg.Workers = workers
	cfg.TickInterval = 20 * time.Millisecond
	return New(cfg, queue.NewMutexQueue(), ThreadContext{})
}

func (ts *PoolTestSuite) TestStartTransitionsToRunning() {
	p := ts.newPool(2)
	ts.NoError(p.Start())
	ts.Equal(Running, p.State())
	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestStartTwiceFails() {
	p := ts.newPool(1)
	ts.NoError(p.Start())
	err := p.Start()
	ts.Error(err)
	ts.Equal(errs.ThreadAlreadyRunning, errs.CodeOf(err))
	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestSubmitBeforeStartFails() {
	p := ts.newPool(1)
	err := p.Submit(job.New("j", "", func() error { return nil }))
	ts.Error(err)
	ts.Equal(errs.QueueStopped, errs.CodeOf(err))
}

func (ts *PoolTestSuite) TestSubmitRunsJob() {
	p := ts.newPool(2)
	ts.NoError(p.Start())

	var ran atomic.Bool
	ts.NoError(p.Submit(job.New("j1", "", func() error {
		ran.Store(true)
		return nil
	})))

	ts.True(waitUntil(func() bool { return ran.Load() }))
	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestStopIsIdempotent() {
	p := ts.newPool(2)
	ts.NoError(p.Start())
	ts.NoError(p.Stop(false))
	ts.NoError(p.Stop(false))
	ts.Equal(Stopped, p.State())
}

func (ts *PoolTestSuite) TestSubmitAfterStopFails() {
	p := ts.newPool(1)
	ts.NoError(p.Start())
	ts.NoError(p.Stop(false))

	err := p.Submit(job.New("late", "", func() error { return nil }))
	ts.Error(err)
}

func (ts *PoolTestSuite) TestAddWorkersIncreasesCount() {
	p := ts.newPool(1)
	ts.NoError(p.Start())

	ts.NoError(p.AddWorkers(2))
	ts.Equal(3, p.ActiveWorkerCount())

	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestRemoveWorkersRespectsMinWorkers() {
	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.MinWorkers = 2
	cfg.TickInterval = 20 * time.Millisecond
	p := New(cfg, queue.NewMutexQueue(), ThreadContext{})
	ts.NoError(p.Start())

	ts.True(waitUntil(func() bool { return p.IdleWorkerCount() == 3 }))

	ts.NoError(p.RemoveWorkers(5))
	ts.Equal(2, p.ActiveWorkerCount())

	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestRemoveWorkersNeverStopsLastWorkerWhenMinPositive() {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.MinWorkers = 1
	cfg.TickInterval = 20 * time.Millisecond
	p := New(cfg, queue.NewMutexQueue(), ThreadContext{})
	ts.NoError(p.Start())

	ts.True(waitUntil(func() bool { return p.IdleWorkerCount() == 1 }))
	ts.NoError(p.RemoveWorkers(1))
	ts.Equal(1, p.ActiveWorkerCount())

	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestPoolSnapshotInterfaceSatisfied() {
	p := ts.newPool(2)
	ts.NoError(p.Start())

	var snap diagnostics.PoolSnapshot = p
	ts.Equal("pool", snap.Name())
	ts.GreaterOrEqual(snap.QueueCapacity(), 0)
	ts.True(snap.IsRunning())
	ts.NotNil(snap.ThreadInfos())

	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestPolicyHooksFireOnEnqueueDequeueComplete() {
	p := ts.newPool(1)

	var enqueued, dequeued, completed atomic.Bool
	p.AddPolicy(&recordingPolicy{
		onEnqueue: func(j *job.Job) error { enqueued.Store(true); return nil },
		onDequeue: func(j *job.Job) { dequeued.Store(true) },
		onComplete: func(success bool, d time.Duration) {
			completed.Store(true)
		},
	})

	ts.NoError(p.Start())
	ts.NoError(p.Submit(job.New("j", "", func() error { return nil })))

	ts.True(waitUntil(func() bool { return completed.Load() }))
	ts.True(enqueued.Load())
	ts.True(dequeued.Load())

	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestPolicyCanRejectEnqueue() {
	p := ts.newPool(1)
	p.AddPolicy(&recordingPolicy{
		onEnqueue: func(j *job.Job) error {
			return errs.New(errs.CircuitOpen, "test", "rejected")
		},
	})
	ts.NoError(p.Start())

	err := p.Submit(job.New("j", "", func() error { return nil }))
	ts.Error(err)
	ts.Equal(errs.CircuitOpen, errs.CodeOf(err))

	ts.NoError(p.Stop(false))
}

func (ts *PoolTestSuite) TestWorkStealingModeDistributesAndExecutesJobs() {
	p, err := NewBuilder().
		WithWorkers(3).
		WithWorkStealing().
		BuildAndStart()
	ts.Require().NoError(err)

	var count atomic.Int32
	for i := 0; i < 30; i++ {
		ts.NoError(p.Submit(job.New("j", "", func() error {
			count.Add(1)
			return nil
		})))
	}

	ts.True(waitUntil(func() bool { return count.Load() == 30 }))
	ts.NoError(p.Stop(false))
}

type recordingPolicy struct {
	onEnqueue  func(j *job.Job) error
	onDequeue  func(j *job.Job)
	onComplete func(success bool, d time.Duration)
}

func (r *recordingPolicy) OnJobEnqueue(j *job.Job) error {
	if r.onEnqueue != nil {
		return r.onEnqueue(j)
	}
	return nil
}

func (r *recordingPolicy) OnJobDequeue(j *job.Job) {
	if r.onDequeue != nil {
		r.onDequeue(j)
	}
}

func (r *recordingPolicy) OnJobComplete(success bool, d time.Duration) {
	if r.onComplete != nil {
		r.onComplete(success, d)
	}
}

func (r *recordingPolicy) OnTick(snapshot metrics.EnhancedSnapshot) {}
