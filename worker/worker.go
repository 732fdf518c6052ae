// Package worker implements the worker lifecycle: the state machine
// Created -> Waiting <-> Working -> Stopping -> Stopped, its work loop, and
// cooperative cancellation, per spec §4.1.
package worker

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/logging"
	"github.com/go-foundations/scheduler/queue"
	"github.com/go-foundations/scheduler/token"
)

const module = "worker.Worker"

// State is a worker's lifecycle stage.
type State int32

const (
	Created State = iota
	Waiting
	Working
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Waiting:
		return "waiting"
	case Working:
		return "working"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// defaultMaxConsecutiveFailures is the spec §4.1 default of 11.
const defaultMaxConsecutiveFailures = 11

// Hooks are optional lifecycle callbacks. Errors from either are logged,
// never propagated.
type Hooks struct {
	BeforeStart func() error
	AfterStop   func() error
	// ShouldContinueWork lets the owner signal there is still work to look
	// at even though no wake interval elapsed yet (e.g. a queue push
	// notification plumbed in by the pool).
	ShouldContinueWork func() bool
	// JobDequeued is invoked, if set, right after a job is pulled off the
	// queue and before it runs, so a pool policy can observe on_job_dequeue.
	JobDequeued func(j *job.Job)
	// JobCompleted is invoked, if set, after every job the worker runs
	// (including failures), so the pool can feed wait/execution latency
	// into its metrics without this package depending on the metrics
	// package.
	JobCompleted func(j *job.Job, waitTime, execTime time.Duration, err error)
}

// Worker is one long-lived logical OS thread (a goroutine, in Go) that
// repeatedly dequeues and executes jobs from its queue.
type Worker struct {
	id     int
	logger logging.Logger
	hooks  Hooks

	maxConsecutiveFailures int

	state atomic.Int32

	queueMu sync.RWMutex // serializes SetQueue against the work loop's read
	q       queue.Queue

	currentJob      atomic.Pointer[job.Job]
	currentJobToken atomic.Pointer[token.Token]

	jobsProcessed atomic.Uint64
	totalBusyNs   atomic.Int64
	totalIdleNs   atomic.Int64

	wakeInterval atomic.Pointer[time.Duration]

	stopRequested atomic.Bool
	immediateStop atomic.Bool
	wake          chan struct{}
	done          chan struct{}
	runningMu     sync.Mutex
	running       bool
}

// New creates a Worker with the given id pulling from q.
func New(id int, q queue.Queue, logger logging.Logger, hooks Hooks) *Worker {
	if logger == nil {
		logger = logging.Discard()
	}
	w := &Worker{
		id:                     id,
		q:                      q,
		logger:                 logger,
		hooks:                  hooks,
		maxConsecutiveFailures: defaultMaxConsecutiveFailures,
		wake:                   make(chan struct{}, 1),
	}
	w.state.Store(int32(Created))
	return w
}

// ID returns the worker's id.
func (w *Worker) ID() int { return w.id }

// State returns the worker's current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// SetMaxConsecutiveFailures overrides the default backoff/abort threshold.
func (w *Worker) SetMaxConsecutiveFailures(n int) {
	if n > 0 {
		w.maxConsecutiveFailures = n
	}
}

// SetWakeInterval installs (or clears, with nil) a periodic wake so the
// work loop re-evaluates ShouldContinueWork even with an empty queue.
func (w *Worker) SetWakeInterval(d *time.Duration) {
	w.wakeInterval.Store(d)
}

// CurrentJob exposes the in-flight job, read-only, for diagnostics.
func (w *Worker) CurrentJob() *job.Job { return w.currentJob.Load() }

// Stats is a point-in-time read of the worker's cumulative counters.
type Stats struct {
	JobsProcessed uint64
	TotalBusyNs   int64
	TotalIdleNs   int64
}

// Stats returns the worker's cumulative counters.
func (w *Worker) Stats() Stats {
	return Stats{
		JobsProcessed: w.jobsProcessed.Load(),
		TotalBusyNs:   w.totalBusyNs.Load(),
		TotalIdleNs:   w.totalIdleNs.Load(),
	}
}

// SetQueue replaces the worker's queue under queueMu, so the swap never
// races with the work loop reading the queue field. A doWork() call that
// has already read the old queue finishes its dequeue on the old queue.
func (w *Worker) SetQueue(q queue.Queue) {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	w.q = q
}

func (w *Worker) readQueue() queue.Queue {
	w.queueMu.RLock()
	defer w.queueMu.RUnlock()
	return w.q
}

// Start spawns the work-loop goroutine. Returns errs.ThreadAlreadyRunning if
// the previous run has not been joined yet.
func (w *Worker) Start() error {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()

	if w.running {
		return errs.New(errs.ThreadAlreadyRunning, module, "worker already running")
	}

	w.stopRequested.Store(false)
	w.immediateStop.Store(false)
	w.done = make(chan struct{})
	w.running = true
	w.state.Store(int32(Created))

	goroutineDone := w.done
	go w.loop(goroutineDone)
	return nil
}

// Stop requests cooperative shutdown and joins the work-loop goroutine.
// Calling Stop from inside the worker's own goroutine returns
// errs.InvalidArgument (it would deadlock on the join).
func (w *Worker) Stop(immediate bool) error {
	if w.onOwnGoroutine() {
		return errs.New(errs.InvalidArgument, module, "Stop called from worker's own goroutine")
	}

	w.runningMu.Lock()
	if !w.running {
		w.runningMu.Unlock()
		return nil
	}
	done := w.done
	w.runningMu.Unlock()

	if immediate {
		w.immediateStop.Store(true)
		if cur := w.currentJobToken.Load(); cur != nil {
			cur.Cancel()
		}
		w.readQueue().Clear()
	}
	w.stopRequested.Store(true)
	select {
	case w.wake <- struct{}{}:
	default:
	}

	<-done

	w.runningMu.Lock()
	w.running = false
	w.runningMu.Unlock()
	return nil
}

var currentGoroutineWorker sync.Map // *Worker -> id of the goroutine running its loop

// goroutineID parses the caller's id from its stack header "goroutine N [...]".
func goroutineID() uint64 {
	var buf [64]byte
	f := bytes.Fields(buf[:runtime.Stack(buf[:], false)])
	id, _ := strconv.ParseUint(string(f[1]), 10, 64)
	return id
}

func (w *Worker) onOwnGoroutine() bool {
	v, ok := currentGoroutineWorker.Load(w)
	return ok && v.(uint64) == goroutineID()
}

// loop is the work loop described in spec §4.1.
func (w *Worker) loop(done chan struct{}) {
	currentGoroutineWorker.Store(w, goroutineID())
	defer currentGoroutineWorker.Delete(w)
	defer close(done)

	if w.hooks.BeforeStart != nil {
		if err := w.hooks.BeforeStart(); err != nil {
			w.logger.Log(logging.Error, "before_start hook failed: "+err.Error(), nil)
		}
	}

	var consecutiveFailures int

	for {
		if w.stopRequested.Load() && !w.shouldContinueWork() {
			w.state.Store(int32(Stopping))
			break
		}

		w.state.Store(int32(Waiting))
		idleStart := time.Now()
		w.waitForWork()
		w.totalIdleNs.Add(int64(time.Since(idleStart)))

		if w.stopRequested.Load() && !w.shouldContinueWork() {
			w.state.Store(int32(Stopping))
			break
		}

		w.state.Store(int32(Working))
		busyStart := time.Now()
		err := w.doWork()
		w.totalBusyNs.Add(int64(time.Since(busyStart)))

		if err == nil {
			consecutiveFailures = 0
			continue
		}
		if errs.CodeOf(err) == errs.QueueEmpty {
			continue
		}

		consecutiveFailures++
		if consecutiveFailures >= w.maxConsecutiveFailures {
			w.logger.Log(logging.Critical, "worker aborting after too many consecutive failures", nil)
			break
		}
		backoff := time.Duration(100*(1<<uint(consecutiveFailures-1))) * time.Millisecond
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
		time.Sleep(backoff)
	}

	w.state.Store(int32(Stopping))
	if w.hooks.AfterStop != nil {
		if err := w.hooks.AfterStop(); err != nil {
			w.logger.Log(logging.Error, "after_stop hook failed: "+err.Error(), nil)
		}
	}
	w.state.Store(int32(Stopped))
}

func (w *Worker) shouldContinueWork() bool {
	if w.hooks.ShouldContinueWork != nil && w.hooks.ShouldContinueWork() {
		return true
	}
	return !w.readQueue().Empty()
}

// waitForWork blocks until there is a reason to look at the queue again:
// the wake interval elapses, an explicit wake is signalled, or stop is
// requested.
func (w *Worker) waitForWork() {
	interval := w.wakeInterval.Load()

	var timer *time.Timer
	var timerC <-chan time.Time
	if interval != nil {
		timer = time.NewTimer(*interval)
		timerC = timer.C
		defer timer.Stop()
	}

	if !w.readQueue().Empty() || w.stopRequested.Load() {
		return
	}

	select {
	case <-w.wake:
	case <-timerC:
	}
}

// doWork dequeues and executes exactly one job, returning its error (if
// any). errs.QueueEmpty is returned (and treated as a non-failure) when the
// queue had nothing ready.
func (w *Worker) doWork() error {
	q := w.readQueue()
	j, err := q.TryDequeue()
	if err != nil {
		return err
	}

	w.currentJob.Store(j)
	w.currentJobToken.Store(j.Token)
	defer func() {
		w.currentJob.Store(nil)
		w.currentJobToken.Store(nil)
	}()

	if j.Token.IsCancelled() {
		return nil
	}

	if w.hooks.JobDequeued != nil {
		w.hooks.JobDequeued(j)
	}

	j.Metadata.StartTime = time.Now()
	j.Metadata.Attempt++
	waitTime := j.Metadata.StartTime.Sub(j.Metadata.SubmitTime)

	runErr := j.Run()
	execTime := time.Since(j.Metadata.StartTime)
	w.jobsProcessed.Add(1)

	if w.hooks.JobCompleted != nil {
		w.hooks.JobCompleted(j, waitTime, execTime, runErr)
	}

	if runErr != nil {
		return errs.New(errs.JobExecutionFailed, module, runErr.Error())
	}
	return nil
}
