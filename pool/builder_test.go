package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/scheduler/autoscale"
	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/resilience"
	"github.com/go-foundations/scheduler/stealer"
)

type BuilderTestSuite struct {
	suite.Suite
}

func TestBuilderTestSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}

func (ts *BuilderTestSuite) TestDefaultBuildUsesMutexQueue() {
	p, err := NewBuilder().WithWorkers(2).Build()
	ts.Require().NoError(err)
	ts.NotNil(p.q)
	ts.Nil(p.queueFactory)
}

func (ts *BuilderTestSuite) TestBuildAndStartRuns() {
	p, err := NewBuilder().WithWorkers(2).BuildAndStart()
	ts.Require().NoError(err)
	ts.Equal(Running, p.State())
	ts.NoError(p.Stop(false))
}

func (ts *BuilderTestSuite) TestWithEnhancedMetricsAttaches() {
	p, err := NewBuilder().WithWorkers(1).WithEnhancedMetrics().Build()
	ts.Require().NoError(err)
	ts.NotNil(p.Metrics())
}

func (ts *BuilderTestSuite) TestWithDiagnosticsAttaches() {
	p, err := NewBuilder().WithWorkers(1).WithDiagnostics().Build()
	ts.Require().NoError(err)
	ts.NotNil(p.Diagnostics())
}

func (ts *BuilderTestSuite) TestWithWorkStealingInstallsPerWorkerQueues() {
	p, err := NewBuilder().WithWorkers(3).WithWorkStealing().Build()
	ts.Require().NoError(err)
	ts.Nil(p.q)
	ts.NotNil(p.queueFactory)

	ts.NoError(p.Start())
	ts.Equal(3, len(p.perWorker))
	ts.NoError(p.Stop(false))
}

func (ts *BuilderTestSuite) TestWithWorkStealingCustomVictimPolicy() {
	p, err := NewBuilder().
		WithWorkers(2).
		WithWorkStealing(stealer.NewRoundRobinVictimPolicy(2)).
		BuildAndStart()
	ts.Require().NoError(err)
	ts.NoError(p.Stop(false))
}

func (ts *BuilderTestSuite) TestWithCircuitBreakerRejectsWhenOpen() {
	cfg := resilience.DefaultConfig()
	cfg.FailureThreshold = 1
	breaker := resilience.New(cfg)
	breaker.RecordFailure(nil)

	p, err := NewBuilder().
		WithWorkers(1).
		WithCircuitBreakerInstance(breaker).
		BuildAndStart()
	ts.Require().NoError(err)

	err = p.Submit(job.New("j", "", func() error { return nil }))
	ts.Error(err)
	ts.Equal(errs.CircuitOpen, errs.CodeOf(err))

	ts.NoError(p.Stop(false))
}

func (ts *BuilderTestSuite) TestWithAutoscalingWiresAutoscaler() {
	policy := autoscale.DefaultPolicy()
	policy.SampleInterval = 10 * time.Millisecond

	p, err := NewBuilder().
		WithWorkers(1).
		WithMinWorkers(1).
		WithAutoscaling(policy).
		BuildAndStart()
	ts.Require().NoError(err)
	ts.NotNil(p.Metrics())

	ts.NoError(p.Stop(false))
}

func (ts *BuilderTestSuite) TestWithPolicyAddsCustomPolicy() {
	var called atomic.Bool
	p, err := NewBuilder().
		WithWorkers(1).
		WithPolicy(&recordingPolicy{
			onEnqueue: func(j *job.Job) error { called.Store(true); return nil },
		}).
		BuildAndStart()
	ts.Require().NoError(err)

	ts.NoError(p.Submit(job.New("j", "", func() error { return nil })))
	ts.True(waitUntil(func() bool { return called.Load() }))

	ts.NoError(p.Stop(false))
}
