package pool

import (
	"time"

	"github.com/go-foundations/scheduler/autoscale"
	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/metrics"
	"github.com/go-foundations/scheduler/resilience"
	"github.com/go-foundations/scheduler/stealer"
)

// Policy is invoked at the pool's defined hook points: on_job_enqueue,
// on_job_dequeue, on_job_complete, on_tick. Implementations that don't care
// about a given hook can embed NoopPolicy.
type Policy interface {
	OnJobEnqueue(j *job.Job) error
	OnJobDequeue(j *job.Job)
	OnJobComplete(success bool, duration time.Duration)
	OnTick(snapshot metrics.EnhancedSnapshot)
}

// NoopPolicy implements Policy with every hook a no-op, for embedding into
// policies that only care about one or two hook points.
type NoopPolicy struct{}

func (NoopPolicy) OnJobEnqueue(*job.Job) error                { return nil }
func (NoopPolicy) OnJobDequeue(*job.Job)                      {}
func (NoopPolicy) OnJobComplete(bool, time.Duration)          {}
func (NoopPolicy) OnTick(metrics.EnhancedSnapshot)            {}

// CircuitBreakerPolicy wraps Submit with a CircuitBreaker: rejects with
// errs.CircuitOpen while the breaker is open, and feeds job outcomes back
// into it on completion.
type CircuitBreakerPolicy struct {
	NoopPolicy
	Breaker *resilience.CircuitBreaker
}

// NewCircuitBreakerPolicy wraps an existing breaker, or a fresh one built
// from config if breaker is nil.
func NewCircuitBreakerPolicy(breaker *resilience.CircuitBreaker, config resilience.Config) *CircuitBreakerPolicy {
	if breaker == nil {
		breaker = resilience.New(config)
	}
	return &CircuitBreakerPolicy{Breaker: breaker}
}

func (p *CircuitBreakerPolicy) OnJobEnqueue(j *job.Job) error {
	if !p.Breaker.AllowRequest() {
		return errs.New(errs.CircuitOpen, "pool.CircuitBreakerPolicy", "circuit breaker is open")
	}
	return nil
}

func (p *CircuitBreakerPolicy) OnJobComplete(success bool, _ time.Duration) {
	if success {
		p.Breaker.RecordSuccess()
	} else {
		p.Breaker.RecordFailure(nil)
	}
}

// AutoscalingPoolPolicy delegates to an Autoscaler on every tick, in
// addition to whatever sampling the autoscaler's own background monitor
// performs once Started.
type AutoscalingPoolPolicy struct {
	NoopPolicy
	Autoscaler *autoscale.Autoscaler
}

// NewAutoscalingPoolPolicy wraps an Autoscaler already built against this
// pool (as its autoscale.PoolController) and its metrics.
func NewAutoscalingPoolPolicy(a *autoscale.Autoscaler) *AutoscalingPoolPolicy {
	return &AutoscalingPoolPolicy{Autoscaler: a}
}

func (p *AutoscalingPoolPolicy) OnTick(metrics.EnhancedSnapshot) {
	if p.Autoscaler == nil {
		return
	}
	decision := p.Autoscaler.EvaluateNow()
	if decision.ShouldScale() {
		_ = p.Autoscaler.ScaleTo(decision.TargetWorkers)
	}
}

// WorkStealingPoolPolicy is a marker policy recording the Stealer a
// work-stealing pool was built with, so callers (and diagnostics) can read
// its steal statistics back out through the pool.
type WorkStealingPoolPolicy struct {
	NoopPolicy
	Stealer *stealer.Stealer
}
