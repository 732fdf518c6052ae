package pool

import (
	"github.com/go-foundations/scheduler/autoscale"
	"github.com/go-foundations/scheduler/deque"
	"github.com/go-foundations/scheduler/queue"
	"github.com/go-foundations/scheduler/resilience"
	"github.com/go-foundations/scheduler/stealer"
)

// ThreadPoolBuilder is the fluent facade every pool is assembled through
// (spec §6): with_workers, with_context, with_queue[_adapter],
// with_circuit_breaker, with_autoscaling, with_work_stealing,
// with_diagnostics, with_enhanced_metrics, with_policy, then build() or
// build_and_start().
type ThreadPoolBuilder struct {
	cfg Config
	ctx ThreadContext

	q queue.Queue

	workStealing   bool
	victimPolicy   stealer.VictimPolicy
	stealBackoff   stealer.BackoffConfig
	stealBatch     stealer.BatchConfig
	numaTopology   *stealer.NumaTopology

	circuitBreakerConfig   *resilience.Config
	circuitBreakerInstance *resilience.CircuitBreaker

	autoscalePolicy *autoscale.Policy

	enableDiagnostics bool
	enableMetrics     bool

	extraPolicies []Policy
}

// NewBuilder starts a ThreadPoolBuilder from DefaultConfig.
func NewBuilder() *ThreadPoolBuilder {
	return &ThreadPoolBuilder{
		cfg:          DefaultConfig(),
		stealBackoff: stealer.DefaultBackoffConfig(),
		stealBatch:   stealer.DefaultBatchConfig(),
	}
}

// WithWorkers sets the initial worker count.
func (b *ThreadPoolBuilder) WithWorkers(n int) *ThreadPoolBuilder {
	b.cfg.Workers = n
	return b
}

// WithMinWorkers sets the autoscale-down floor.
func (b *ThreadPoolBuilder) WithMinWorkers(n int) *ThreadPoolBuilder {
	b.cfg.MinWorkers = n
	return b
}

// WithName sets the pool's diagnostic name.
func (b *ThreadPoolBuilder) WithName(name string) *ThreadPoolBuilder {
	b.cfg.Name = name
	return b
}

// WithContext installs the logger/monitoring/DI-container bundle.
func (b *ThreadPoolBuilder) WithContext(ctx ThreadContext) *ThreadPoolBuilder {
	b.ctx = ctx
	return b
}

// WithQueue installs a pre-built shared Queue, overriding the default
// MutexQueue. Mutually exclusive with WithWorkStealing.
func (b *ThreadPoolBuilder) WithQueue(q queue.Queue) *ThreadPoolBuilder {
	b.q = q
	return b
}

// WithQueueAdapter installs a Queue built by factory, overriding the
// default MutexQueue.
func (b *ThreadPoolBuilder) WithQueueAdapter(factory func() queue.Queue) *ThreadPoolBuilder {
	b.q = factory()
	return b
}

// WithCircuitBreaker installs a CircuitBreakerPolicy built from config.
func (b *ThreadPoolBuilder) WithCircuitBreaker(config resilience.Config) *ThreadPoolBuilder {
	b.circuitBreakerConfig = &config
	return b
}

// WithCircuitBreakerInstance installs a CircuitBreakerPolicy wrapping an
// already-constructed, possibly shared, CircuitBreaker.
func (b *ThreadPoolBuilder) WithCircuitBreakerInstance(cb *resilience.CircuitBreaker) *ThreadPoolBuilder {
	b.circuitBreakerInstance = cb
	return b
}

// WithAutoscaling installs an AutoscalingPoolPolicy and starts its
// background monitor once the pool is built.
func (b *ThreadPoolBuilder) WithAutoscaling(policy autoscale.Policy) *ThreadPoolBuilder {
	b.autoscalePolicy = &policy
	return b
}

// WithWorkStealing switches the pool to per-worker Chase-Lev deques plus a
// Stealer, replacing the default shared queue path. An optional victim
// policy overrides the default RandomVictimPolicy.
func (b *ThreadPoolBuilder) WithWorkStealing(policy ...stealer.VictimPolicy) *ThreadPoolBuilder {
	b.workStealing = true
	if len(policy) > 0 {
		b.victimPolicy = policy[0]
	}
	return b
}

// WithNumaTopology attaches NUMA node information to the work-stealing
// Stealer, enabling same-node/cross-node statistics (and, with a
// NumaAwareVictimPolicy, node-local victim preference).
func (b *ThreadPoolBuilder) WithNumaTopology(topo *stealer.NumaTopology) *ThreadPoolBuilder {
	b.numaTopology = topo
	return b
}

// WithStealBackoff overrides the default steal-retry backoff.
func (b *ThreadPoolBuilder) WithStealBackoff(cfg stealer.BackoffConfig) *ThreadPoolBuilder {
	b.stealBackoff = cfg
	return b
}

// WithStealBatch overrides the default steal batch sizing.
func (b *ThreadPoolBuilder) WithStealBatch(cfg stealer.BatchConfig) *ThreadPoolBuilder {
	b.stealBatch = cfg
	return b
}

// WithDiagnostics enables thread dumps, health checks, bottleneck
// detection and event tracing.
func (b *ThreadPoolBuilder) WithDiagnostics() *ThreadPoolBuilder {
	b.enableDiagnostics = true
	return b
}

// WithEnhancedMetrics enables the full metrics aggregate (histograms,
// throughput windows, per-worker utilization).
func (b *ThreadPoolBuilder) WithEnhancedMetrics() *ThreadPoolBuilder {
	b.enableMetrics = true
	return b
}

// WithPolicy installs a caller-supplied Policy in addition to any built in
// by the other With* methods.
func (b *ThreadPoolBuilder) WithPolicy(p Policy) *ThreadPoolBuilder {
	b.extraPolicies = append(b.extraPolicies, p)
	return b
}

// Build assembles the configured ThreadPool without starting it.
func (b *ThreadPoolBuilder) Build() (*ThreadPool, error) {
	if b.cfg.Workers < 1 {
		b.cfg.Workers = 1
	}

	var p *ThreadPool
	var stealingPolicy *WorkStealingPoolPolicy

	if b.workStealing {
		deques := make([]*deque.Deque, b.cfg.Workers)
		for i := range deques {
			deques[i] = deque.New(64)
		}

		victim := b.victimPolicy
		if victim == nil {
			victim = stealer.NewRandomVictimPolicy()
		}
		st := stealer.New(deques, victim, b.stealBackoff, b.stealBatch)
		if b.numaTopology != nil {
			st = st.WithTopology(b.numaTopology)
		}

		assigned := 0
		qf := func(workerID int) queue.Queue {
			idx := assigned % len(deques)
			assigned++
			return newDequeQueue(workerID, deques[idx], st)
		}
		p = newPool(b.cfg, nil, qf, b.ctx)
		stealingPolicy = &WorkStealingPoolPolicy{Stealer: st}
	} else {
		q := b.q
		if q == nil {
			q = queue.NewMutexQueue()
		}
		p = newPool(b.cfg, q, nil, b.ctx)
	}

	if b.enableMetrics || b.autoscalePolicy != nil {
		p.EnableEnhancedMetrics()
	}
	if b.enableDiagnostics {
		p.EnableDiagnostics()
	}
	if stealingPolicy != nil {
		p.AddPolicy(stealingPolicy)
	}

	if b.circuitBreakerInstance != nil || b.circuitBreakerConfig != nil {
		cfg := resilience.DefaultConfig()
		if b.circuitBreakerConfig != nil {
			cfg = *b.circuitBreakerConfig
		}
		p.AddPolicy(NewCircuitBreakerPolicy(b.circuitBreakerInstance, cfg))
	}

	if b.autoscalePolicy != nil {
		a := autoscale.New(p, p.metrics, *b.autoscalePolicy)
		p.AddPolicy(NewAutoscalingPoolPolicy(a))
		a.Start()
	}

	for _, pol := range b.extraPolicies {
		p.AddPolicy(pol)
	}

	return p, nil
}

// BuildAndStart assembles the pool and immediately Starts it.
func (b *ThreadPoolBuilder) BuildAndStart() (*ThreadPool, error) {
	p, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}
