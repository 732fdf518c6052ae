package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
)

type TypedPoolTestSuite struct {
	suite.Suite
}

func TestTypedPoolTestSuite(t *testing.T) {
	suite.Run(t, new(TypedPoolTestSuite))
}

func (ts *TypedPoolTestSuite) newTypedPool(workers int) *TypedPool {
	cfg := DefaultTypedPoolConfig()
	cfg.Workers = workers
	cfg.Aging.Enabled = false
	cfg.WakeInterval = 2 * time.Millisecond
	return NewTypedPool(cfg, ThreadContext{})
}

func (ts *TypedPoolTestSuite) TestStartTransitionsToRunning() {
	p := ts.newTypedPool(1)
	ts.NoError(p.Start())
	ts.Equal(Running, p.State())
	ts.NoError(p.Stop())
}

func (ts *TypedPoolTestSuite) TestSubmitBeforeStartFails() {
	p := ts.newTypedPool(1)
	_, err := p.Submit(job.IntPriority(1), func() error { return nil })
	ts.Error(err)
	ts.Equal(errs.QueueStopped, errs.CodeOf(err))
}

func (ts *TypedPoolTestSuite) TestHigherPriorityRunsBeforeLower() {
	p := ts.newTypedPool(1)

	var order []int
	var mu sync.Mutex
	block := make(chan struct{})

	ts.NoError(p.Start())

	// Hold the single worker busy until both jobs are queued, so ordering
	// is decided by the queue rather than goroutine scheduling.
	_, err := p.Submit(job.IntPriority(0), func() error {
		<-block
		return nil
	})
	ts.Require().NoError(err)
	ts.Require().True(waitUntil(func() bool { return p.Size() == 0 }))

	_, err = p.Submit(job.IntPriority(1), func() error {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		return nil
	})
	ts.Require().NoError(err)

	_, err = p.Submit(job.IntPriority(5), func() error {
		mu.Lock()
		order = append(order, 5)
		mu.Unlock()
		return nil
	})
	ts.Require().NoError(err)

	close(block)

	ts.True(waitUntil(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}))

	mu.Lock()
	defer mu.Unlock()
	ts.Equal([]int{5, 1}, order)

	ts.NoError(p.Stop())
}

func (ts *TypedPoolTestSuite) TestSubmitGeneratesMonotonicIDs() {
	p := ts.newTypedPool(1)
	ts.NoError(p.Start())

	id1, err := p.Submit(job.IntPriority(1), func() error { return nil })
	ts.Require().NoError(err)
	id2, err := p.Submit(job.IntPriority(1), func() error { return nil })
	ts.Require().NoError(err)

	ts.NotEqual(id1, id2)

	ts.NoError(p.Stop())
}

func (ts *TypedPoolTestSuite) TestStopIsIdempotent() {
	p := ts.newTypedPool(1)
	ts.NoError(p.Start())
	ts.NoError(p.Stop())
	ts.NoError(p.Stop())
	ts.Equal(Stopped, p.State())
}

func (ts *TypedPoolTestSuite) TestAgingBoostsStarvedJobs() {
	cfg := DefaultTypedPoolConfig()
	cfg.Workers = 0
	cfg.Aging.Enabled = true
	cfg.Aging.AgingInterval = 5 * time.Millisecond
	cfg.Aging.PriorityBoostPerInterval = 1
	cfg.Aging.MaxPriorityBoost = 10
	cfg.Aging.StarvationThreshold = 1 * time.Hour

	p := NewTypedPool(cfg, ThreadContext{})
	err := p.q.Enqueue(job.NewAging("starved", "", job.IntPriority(0), cfg.Aging.MaxPriorityBoost, func() error { return nil }))
	ts.Require().NoError(err)

	p.q.StartAging()
	defer p.q.StopAging()

	ts.True(waitUntil(func() bool {
		return p.AgingStats().TotalBoostsApplied > 0
	}))
}
