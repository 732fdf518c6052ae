// Package pool implements the thread pool: lifecycle (Init/Running/
// Stopping/Stopped), job submission, worker management and autoscale-down,
// the pool-policy hook system, and the fluent ThreadPoolBuilder facade, per
// spec §4.4. Grounded on the teacher's workerpool.go dispatch loop and
// original_source/include/kcenon/thread/core/numa_thread_pool.h /
// thread_pool_builder.h.
package pool

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/container"
	"github.com/go-foundations/scheduler/diagnostics"
	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/logging"
	"github.com/go-foundations/scheduler/metrics"
	"github.com/go-foundations/scheduler/monitoring"
	"github.com/go-foundations/scheduler/queue"
	"github.com/go-foundations/scheduler/worker"
)

const poolModule = "pool.ThreadPool"

// State is a pool's lifecycle stage.
type State int32

const (
	Init State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// ThreadContext carries the optional cross-cutting handles a pool is built
// with: a logger, a monitoring sink, and a DI container (spec §6).
type ThreadContext struct {
	Logger     logging.Logger
	Monitoring monitoring.Monitoring
	Container  *container.Container
}

// Config parameterizes a ThreadPool.
type Config struct {
	Name                   string
	Workers                int
	MinWorkers             int
	QueueCapacity          int // 0 means unbounded; reported to diagnostics only
	WakeInterval           time.Duration
	TickInterval           time.Duration
	MaxConsecutiveFailures int
}

// DefaultConfig mirrors the teacher's DefaultConfig shape.
func DefaultConfig() Config {
	return Config{
		Name:         "pool",
		Workers:      4,
		MinWorkers:   1,
		WakeInterval: 100 * time.Millisecond,
		TickInterval: time.Second,
	}
}

type queueFactory func(workerID int) queue.Queue

type workerDelta struct {
	lastBusyNs int64
	lastIdleNs int64
}

// ThreadPool owns workers and the job queue(s), accepts jobs, and enforces
// the installed policies.
type ThreadPool struct {
	cfg Config
	ctx ThreadContext

	state atomic.Int32

	q            queue.Queue // shared queue; nil in per-worker (work-stealing) mode
	queueFactory queueFactory
	perWorker    []queue.Queue
	nextSubmit   atomic.Int64

	workersMu sync.Mutex
	workers   []*worker.Worker
	nextID    atomic.Int64

	deltaMu sync.Mutex
	deltas  map[int]*workerDelta

	metrics *metrics.EnhancedMetrics
	diag    *diagnostics.Diagnostics

	policiesMu sync.RWMutex
	policies   []Policy

	tickStop chan struct{}
	tickDone chan struct{}
}

// New builds a ThreadPool over a shared queue q, ready to Start.
func New(cfg Config, q queue.Queue, ctx ThreadContext) *ThreadPool {
	return newPool(cfg, q, nil, ctx)
}

func newPool(cfg Config, q queue.Queue, qf queueFactory, ctx ThreadContext) *ThreadPool {
	if cfg.Name == "" {
		cfg.Name = "pool"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if ctx.Logger == nil {
		ctx.Logger = logging.Discard()
	}
	if ctx.Monitoring == nil {
		ctx.Monitoring = monitoring.Noop()
	}
	return &ThreadPool{
		cfg:          cfg,
		ctx:          ctx,
		q:            q,
		queueFactory: qf,
		deltas:       make(map[int]*workerDelta),
	}
}

// EnableEnhancedMetrics attaches an EnhancedMetrics instance. Must be
// called before Start.
func (p *ThreadPool) EnableEnhancedMetrics() *metrics.EnhancedMetrics {
	p.metrics = metrics.NewEnhancedMetrics(p.cfg.Workers)
	return p.metrics
}

// Metrics returns the attached EnhancedMetrics, or nil if none was enabled.
func (p *ThreadPool) Metrics() *metrics.EnhancedMetrics { return p.metrics }

// EnableDiagnostics attaches a Diagnostics instance bound to this pool.
// Must be called before Start.
func (p *ThreadPool) EnableDiagnostics() *diagnostics.Diagnostics {
	p.diag = diagnostics.New(p)
	return p.diag
}

// Diagnostics returns the attached Diagnostics, or nil if none was enabled.
func (p *ThreadPool) Diagnostics() *diagnostics.Diagnostics { return p.diag }

// AddPolicy installs pol; it is invoked on every subsequent hook point.
func (p *ThreadPool) AddPolicy(pol Policy) {
	p.policiesMu.Lock()
	p.policies = append(p.policies, pol)
	p.policiesMu.Unlock()
}

func (p *ThreadPool) snapshotPolicies() []Policy {
	p.policiesMu.RLock()
	defer p.policiesMu.RUnlock()
	out := make([]Policy, len(p.policies))
	copy(out, p.policies)
	return out
}

// State returns the pool's current lifecycle stage.
func (p *ThreadPool) State() State { return State(p.state.Load()) }

// IsRunning reports whether the pool is accepting and executing jobs.
func (p *ThreadPool) IsRunning() bool { return p.State() == Running }

// Start transitions Init -> Running, spawning the configured worker count.
// Any other starting state returns errs.ThreadAlreadyRunning.
func (p *ThreadPool) Start() error {
	if !p.state.CompareAndSwap(int32(Init), int32(Running)) {
		return errs.New(errs.ThreadAlreadyRunning, poolModule, "pool already started")
	}

	for i := 0; i < p.cfg.Workers; i++ {
		if err := p.spawnWorker(); err != nil {
			return err
		}
	}

	p.tickStop = make(chan struct{})
	p.tickDone = make(chan struct{})
	go p.tickLoop(p.tickStop, p.tickDone)

	return nil
}

func (p *ThreadPool) spawnWorker() error {
	id := int(p.nextID.Add(1)) - 1

	var q queue.Queue
	if p.queueFactory != nil {
		q = p.queueFactory(id)
	} else {
		q = p.q
	}

	hooks := worker.Hooks{
		JobDequeued:  p.onJobDequeued,
		JobCompleted: p.onJobCompleted,
	}
	w := worker.New(id, q, p.ctx.Logger, hooks)
	if p.cfg.MaxConsecutiveFailures > 0 {
		w.SetMaxConsecutiveFailures(p.cfg.MaxConsecutiveFailures)
	}
	if p.cfg.WakeInterval > 0 {
		wi := p.cfg.WakeInterval
		w.SetWakeInterval(&wi)
	}

	p.workersMu.Lock()
	p.workers = append(p.workers, w)
	if p.queueFactory != nil {
		p.perWorker = append(p.perWorker, q)
	}
	count := len(p.workers)
	p.workersMu.Unlock()

	if p.metrics != nil {
		p.metrics.UpdateWorkerCount(count)
		p.metrics.SetActiveWorkers(int64(count))
	}

	return w.Start()
}

// Submit enqueues j via the configured overflow policy, recording
// submission and enqueue-latency metrics. Returns errs.QueueStopped if the
// pool is not Running, or whatever error an installed policy (e.g. an open
// circuit breaker) rejects the job with.
func (p *ThreadPool) Submit(j *job.Job) error {
	if !p.IsRunning() {
		return errs.New(errs.QueueStopped, poolModule, "pool is not running")
	}

	for _, pol := range p.snapshotPolicies() {
		if err := pol.OnJobEnqueue(j); err != nil {
			return err
		}
	}

	start := time.Now()
	err := p.enqueue(j)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordSubmission()
		p.metrics.RecordEnqueue(elapsed)
		p.metrics.RecordQueueDepth(int64(p.PendingJobCount()))
	}
	return nil
}

func (p *ThreadPool) enqueue(j *job.Job) error {
	if p.q != nil {
		return p.q.Enqueue(j)
	}

	p.workersMu.Lock()
	n := len(p.perWorker)
	p.workersMu.Unlock()
	if n == 0 {
		return errs.New(errs.ResourceAllocationFailed, poolModule, "no workers available to receive jobs")
	}

	idx := int(p.nextSubmit.Add(1)-1) % n
	p.workersMu.Lock()
	target := p.perWorker[idx]
	p.workersMu.Unlock()
	return target.Enqueue(j)
}

func (p *ThreadPool) onJobDequeued(j *job.Job) {
	for _, pol := range p.snapshotPolicies() {
		pol.OnJobDequeue(j)
	}
}

func (p *ThreadPool) onJobCompleted(j *job.Job, waitTime, execTime time.Duration, err error) {
	success := err == nil

	if p.metrics != nil {
		p.metrics.RecordWaitTime(waitTime)
		p.metrics.RecordExecution(execTime, success)
	}

	if p.diag != nil && p.diag.IsTracingEnabled() {
		status := diagnostics.JobCompleted
		if !success {
			status = diagnostics.JobFailed
		}
		p.diag.RecordJobEvent(diagnostics.JobInfo{
			JobID:     hashJobID(j.ID),
			Status:    status,
			StartTime: j.Metadata.StartTime,
			EndTime:   j.Metadata.StartTime.Add(execTime),
		})
	}

	for _, pol := range p.snapshotPolicies() {
		pol.OnJobComplete(success, execTime)
	}
}

func hashJobID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

// Stop transitions Running -> Stopping -> Stopped: stops the queue(s), and
// if immediate, cancels in-flight jobs and clears pending ones, then joins
// every worker. Concurrent callers linearize on the state CAS; losers
// return nil (idempotent).
func (p *ThreadPool) Stop(immediate bool) error {
	if !p.beginStop() {
		return nil
	}

	if p.q != nil {
		p.q.Stop()
	}

	p.workersMu.Lock()
	queues := append([]queue.Queue(nil), p.perWorker...)
	workers := append([]*worker.Worker(nil), p.workers...)
	p.workersMu.Unlock()

	for _, q := range queues {
		q.Stop()
	}

	if immediate {
		if p.q != nil {
			p.q.Clear()
		}
		for _, q := range queues {
			q.Clear()
		}
	}

	if p.tickStop != nil {
		close(p.tickStop)
		<-p.tickDone
	}

	var firstErr error
	for _, w := range workers {
		if err := w.Stop(immediate); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.state.Store(int32(Stopped))
	return firstErr
}

func (p *ThreadPool) beginStop() bool {
	for {
		cur := State(p.state.Load())
		if cur == Stopping || cur == Stopped {
			return false
		}
		if p.state.CompareAndSwap(int32(cur), int32(Stopping)) {
			return true
		}
	}
}

// AddWorkers spawns n additional workers. Implements
// autoscale.PoolController.
func (p *ThreadPool) AddWorkers(n int) error {
	if n <= 0 {
		return nil
	}
	if !p.IsRunning() {
		return errs.New(errs.ThreadNotRunning, poolModule, "pool not running")
	}
	for i := 0; i < n; i++ {
		if err := p.spawnWorker(); err != nil {
			return err
		}
	}
	return nil
}

// RemoveWorkers stops up to n currently idle workers, selected LIFO, never
// reducing the pool below MinWorkers and never stopping the last worker
// while running unless MinWorkers is 0. Implements autoscale.PoolController.
func (p *ThreadPool) RemoveWorkers(n int) error {
	if n <= 0 {
		return nil
	}

	p.workersMu.Lock()
	min := p.cfg.MinWorkers
	total := len(p.workers)
	toRemove := make(map[int]bool, n)
	removed := 0

	for i := total - 1; i >= 0 && removed < n; i-- {
		w := p.workers[i]
		if w.State() != worker.Waiting {
			continue
		}
		survivors := total - removed
		after := survivors - 1
		if after < min {
			continue
		}
		if after < 1 && min > 0 {
			continue
		}
		toRemove[i] = true
		removed++
	}

	if removed == 0 {
		p.workersMu.Unlock()
		return nil
	}

	var victims []*worker.Worker
	kept := make([]*worker.Worker, 0, total-removed)
	var keptQueues []queue.Queue
	for i, w := range p.workers {
		if toRemove[i] {
			victims = append(victims, w)
			continue
		}
		kept = append(kept, w)
		if p.queueFactory != nil {
			keptQueues = append(keptQueues, p.perWorker[i])
		}
	}
	p.workers = kept
	if p.queueFactory != nil {
		p.perWorker = keptQueues
	}
	p.workersMu.Unlock()

	var firstErr error
	for _, w := range victims {
		if err := w.Stop(false); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.metrics != nil {
		p.metrics.SetActiveWorkers(int64(len(kept)))
	}
	return firstErr
}

// ActiveWorkerCount implements autoscale.PoolController.
func (p *ThreadPool) ActiveWorkerCount() int {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	return len(p.workers)
}

// IdleWorkerCount implements autoscale.PoolController.
func (p *ThreadPool) IdleWorkerCount() int {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	n := 0
	for _, w := range p.workers {
		if w.State() == worker.Waiting || w.State() == worker.Created {
			n++
		}
	}
	return n
}

// PendingJobCount implements autoscale.PoolController, summing the shared
// queue's depth or every per-worker deque's depth.
func (p *ThreadPool) PendingJobCount() int {
	if p.q != nil {
		return p.q.Size()
	}
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	total := 0
	for _, q := range p.perWorker {
		total += q.Size()
	}
	return total
}

// Name implements diagnostics.PoolSnapshot.
func (p *ThreadPool) Name() string { return p.cfg.Name }

// QueueDepth implements diagnostics.PoolSnapshot.
func (p *ThreadPool) QueueDepth() int { return p.PendingJobCount() }

// QueueCapacity implements diagnostics.PoolSnapshot. 0 means unbounded.
func (p *ThreadPool) QueueCapacity() int { return p.cfg.QueueCapacity }

// AvgWaitTimeMs implements diagnostics.PoolSnapshot.
func (p *ThreadPool) AvgWaitTimeMs() float64 {
	if p.metrics == nil {
		return 0
	}
	return p.metrics.WaitTime().Mean() / 1e6
}

// TotalJobsProcessed implements diagnostics.PoolSnapshot.
func (p *ThreadPool) TotalJobsProcessed() uint64 {
	if p.metrics == nil {
		var total uint64
		p.workersMu.Lock()
		for _, w := range p.workers {
			total += w.Stats().JobsProcessed
		}
		p.workersMu.Unlock()
		return total
	}
	snap := p.metrics.Snapshot()
	return snap.TasksExecuted + snap.TasksFailed
}

// ThreadInfos implements diagnostics.PoolSnapshot.
func (p *ThreadPool) ThreadInfos() []diagnostics.ThreadInfo {
	p.workersMu.Lock()
	workers := append([]*worker.Worker(nil), p.workers...)
	p.workersMu.Unlock()

	infos := make([]diagnostics.ThreadInfo, 0, len(workers))
	for _, w := range workers {
		st := w.Stats()
		info := diagnostics.ThreadInfo{
			WorkerID:      w.ID(),
			ThreadName:    fmt.Sprintf("worker-%d", w.ID()),
			State:         toDiagnosticState(w.State()),
			TotalBusyTime: time.Duration(st.TotalBusyNs),
			TotalIdleTime: time.Duration(st.TotalIdleNs),
			JobsCompleted: st.JobsProcessed,
		}
		info.UpdateUtilization()
		if cur := w.CurrentJob(); cur != nil {
			info.CurrentJob = &diagnostics.JobInfo{
				JobID:     hashJobID(cur.ID),
				Status:    diagnostics.JobRunning,
				StartTime: cur.Metadata.StartTime,
			}
		}
		infos = append(infos, info)
	}
	return infos
}

func toDiagnosticState(s worker.State) diagnostics.WorkerState {
	switch s {
	case worker.Working:
		return diagnostics.WorkerActive
	case worker.Stopping:
		return diagnostics.WorkerStopping
	case worker.Stopped:
		return diagnostics.WorkerStopped
	default:
		return diagnostics.WorkerIdle
	}
}

func (p *ThreadPool) tickLoop(stop, done chan struct{}) {
	defer close(done)

	interval := p.cfg.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *ThreadPool) tick() {
	p.sampleWorkers()

	if p.metrics == nil {
		return
	}

	snap := p.metrics.Snapshot()
	p.ctx.Monitoring.UpdatePoolMetrics(monitoring.PoolMetrics{
		ActiveWorkers: p.ActiveWorkerCount() - p.IdleWorkerCount(),
		IdleWorkers:   p.IdleWorkerCount(),
		QueueDepth:    p.PendingJobCount(),
		Timestamp:     time.Now(),
	})

	for _, pol := range p.snapshotPolicies() {
		pol.OnTick(snap)
	}
}

func (p *ThreadPool) sampleWorkers() {
	p.workersMu.Lock()
	workers := append([]*worker.Worker(nil), p.workers...)
	p.workersMu.Unlock()

	if p.metrics != nil {
		p.metrics.UpdateWorkerCount(len(workers))
		p.metrics.SetActiveWorkers(int64(len(workers)))
	}

	p.deltaMu.Lock()
	defer p.deltaMu.Unlock()

	for _, w := range workers {
		id := w.ID()
		st := w.Stats()
		d, ok := p.deltas[id]
		if !ok {
			d = &workerDelta{}
			p.deltas[id] = d
		}
		busyDelta := st.TotalBusyNs - d.lastBusyNs
		idleDelta := st.TotalIdleNs - d.lastIdleNs
		d.lastBusyNs = st.TotalBusyNs
		d.lastIdleNs = st.TotalIdleNs

		if p.metrics != nil {
			if busyDelta > 0 {
				p.metrics.RecordWorkerState(id, true, uint64(busyDelta))
			}
			if idleDelta > 0 {
				p.metrics.RecordWorkerState(id, false, uint64(idleDelta))
			}
		}

		p.ctx.Monitoring.UpdateWorkerMetrics(monitoring.WorkerMetrics{
			WorkerID:      id,
			JobsProcessed: st.JobsProcessed,
			BusyNs:        st.TotalBusyNs,
			IdleNs:        st.TotalIdleNs,
			Timestamp:     time.Now(),
		})
	}
}
