package pool

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/metrics"
	"github.com/go-foundations/scheduler/typedqueue"
)

const typedPoolModule = "pool.TypedPool"

// TypedPoolConfig parameterizes a TypedPool.
type TypedPoolConfig struct {
	Name         string
	Workers      int
	Aging        typedqueue.Config
	WakeInterval time.Duration
}

// DefaultTypedPoolConfig mirrors DefaultConfig with aging enabled.
func DefaultTypedPoolConfig() TypedPoolConfig {
	return TypedPoolConfig{
		Name:         "typed-pool",
		Workers:      4,
		Aging:        typedqueue.DefaultConfig(),
		WakeInterval: 50 * time.Millisecond,
	}
}

// TypedPool maps job priority to an ordered set of sub-queues (spec §4.5):
// enqueue picks the sub-queue for the job's priority, dequeue visits
// sub-queues in priority order so higher-priority work is never starved by
// lower, and a background goroutine ages waiting jobs' effective priority.
// It does not reuse worker.Worker, which dequeues plain *job.Job off a
// queue.Queue; TypedPool's unit of work is *job.AgingJob off a TypedQueue.
type TypedPool struct {
	cfg TypedPoolConfig
	ctx ThreadContext

	q *typedqueue.TypedQueue

	state   atomic.Int32
	nextJob atomic.Uint64

	metrics *metrics.EnhancedMetrics

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewTypedPool builds a TypedPool ready to Start.
func NewTypedPool(cfg TypedPoolConfig, ctx ThreadContext) *TypedPool {
	if cfg.Name == "" {
		cfg.Name = "typed-pool"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &TypedPool{
		cfg: cfg,
		ctx: ctx,
		q:   typedqueue.New(cfg.Aging),
	}
}

// EnableEnhancedMetrics attaches an EnhancedMetrics instance. Must be
// called before Start.
func (p *TypedPool) EnableEnhancedMetrics() *metrics.EnhancedMetrics {
	p.metrics = metrics.NewEnhancedMetrics(p.cfg.Workers)
	return p.metrics
}

// Metrics returns the attached EnhancedMetrics, or nil if none was enabled.
func (p *TypedPool) Metrics() *metrics.EnhancedMetrics { return p.metrics }

// AgingStats exposes the priority-aging background thread's statistics.
func (p *TypedPool) AgingStats() typedqueue.Stats { return p.q.Stats() }

// StarvingJobs returns jobs that have waited past the configured starvation
// threshold.
func (p *TypedPool) StarvingJobs() []*job.AgingJob { return p.q.StarvingJobs() }

// State returns the pool's current lifecycle stage.
func (p *TypedPool) State() State { return State(p.state.Load()) }

// IsRunning reports whether the pool is accepting and executing jobs.
func (p *TypedPool) IsRunning() bool { return p.State() == Running }

// Start transitions Init -> Running: starts the aging goroutine and spawns
// the configured worker count.
func (p *TypedPool) Start() error {
	if !p.state.CompareAndSwap(int32(Init), int32(Running)) {
		return errs.New(errs.ThreadAlreadyRunning, typedPoolModule, "pool already started")
	}

	p.q.StartAging()
	p.stopCh = make(chan struct{})
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
	return nil
}

func (p *TypedPool) loop(id int) {
	defer p.wg.Done()

	interval := p.cfg.WakeInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		aj, err := p.q.TryDequeue()
		if err != nil {
			select {
			case <-p.stopCh:
				return
			case <-time.After(interval):
			}
			continue
		}

		p.run(aj)
	}
}

func (p *TypedPool) run(aj *job.AgingJob) {
	wait := time.Since(aj.EnqueueTime)
	start := time.Now()
	runErr := aj.Run()
	exec := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordWaitTime(wait)
		p.metrics.RecordExecution(exec, runErr == nil)
	}
}

// Submit enqueues fn at the given priority, returning the generated job id.
func (p *TypedPool) Submit(priority job.IntPriority, fn job.Func) (string, error) {
	if !p.IsRunning() {
		return "", errs.New(errs.QueueStopped, typedPoolModule, "pool is not running")
	}

	id := strconv.FormatUint(p.nextJob.Add(1), 10)
	aj := job.NewAging(id, "", priority, p.cfg.Aging.MaxPriorityBoost, fn)

	start := time.Now()
	if err := p.q.Enqueue(aj); err != nil {
		return "", err
	}

	if p.metrics != nil {
		p.metrics.RecordSubmission()
		p.metrics.RecordEnqueue(time.Since(start))
		p.metrics.RecordQueueDepth(int64(p.q.Size()))
	}
	return id, nil
}

// Stop transitions Running -> Stopping -> Stopped: stops accepting new
// jobs, halts aging, and joins every worker goroutine. Idempotent.
func (p *TypedPool) Stop() error {
	if !p.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return nil
	}

	p.q.Stop()
	close(p.stopCh)
	p.wg.Wait()

	p.state.Store(int32(Stopped))
	return nil
}

// Size returns the total number of queued jobs across every priority
// bucket.
func (p *TypedPool) Size() int { return p.q.Size() }
