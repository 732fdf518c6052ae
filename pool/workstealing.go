package pool

import (
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/deque"
	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/queue"
	"github.com/go-foundations/scheduler/stealer"
)

const dequeQueueModule = "pool.dequeQueue"

// dequeQueue adapts a single worker's Chase-Lev deque, plus the shared
// Stealer, to the queue.Queue interface. The deque's Push/Pop pair is
// owner-only: only the worker goroutine that owns d may call them, which
// rules out calling Push directly from Enqueue, since Enqueue runs on
// whatever goroutine is submitting a job. External submissions instead land
// in injector, a mutex-guarded MutexQueue any goroutine may enqueue into
// safely; TryDequeue, which only ever runs on the owning worker goroutine,
// drains injector into d before trying to steal. This keeps d's Push/Pop
// pair exclusively owner-side while still making submitted jobs visible to
// thieves once the owner has folded them in. This is what WithWorkStealing
// installs in place of the default shared queue (spec §4.4).
type dequeQueue struct {
	id       int
	d        *deque.Deque
	injector *queue.MutexQueue
	stealer  *stealer.Stealer
	stopped  atomic.Bool
}

func newDequeQueue(id int, d *deque.Deque, s *stealer.Stealer) *dequeQueue {
	return &dequeQueue{id: id, d: d, injector: queue.NewMutexQueue(), stealer: s}
}

func (q *dequeQueue) Enqueue(j *job.Job) error {
	if q.stopped.Load() {
		return errs.New(errs.QueueStopped, dequeQueueModule, "enqueue after stop")
	}
	return q.injector.Enqueue(j)
}

// drainInjector folds every job waiting in injector into d. Only ever called
// from TryDequeue, so this is the owner goroutine: safe to Push onto d.
func (q *dequeQueue) drainInjector() {
	for {
		j, err := q.injector.TryDequeue()
		if err != nil {
			return
		}
		q.d.Push(j)
	}
}

func (q *dequeQueue) TryDequeue() (*job.Job, error) {
	if j, ok := q.d.Pop(); ok {
		return j, nil
	}
	q.drainInjector()
	if j, ok := q.d.Pop(); ok {
		return j, nil
	}
	if q.stealer != nil {
		if j, ok := q.stealer.StealFor(q.id); ok {
			return j, nil
		}
	}
	return nil, errs.New(errs.QueueEmpty, dequeQueueModule, "no job available")
}

// Dequeue polls with the stealer's configured backoff rather than blocking
// on a condition variable: Chase-Lev deques have no shared lock to wait on.
func (q *dequeQueue) Dequeue() (*job.Job, error) {
	attempt := 0
	for {
		j, err := q.TryDequeue()
		if err == nil {
			return j, nil
		}
		if q.stopped.Load() {
			return nil, errs.New(errs.QueueStopped, dequeQueueModule, "stopped and empty")
		}
		attempt++
		if q.stealer != nil {
			q.stealer.Backoff(attempt)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

func (q *dequeQueue) Size() int { return q.d.Size() + q.injector.Size() }
func (q *dequeQueue) Empty() bool { return q.d.IsEmpty() && q.injector.Empty() }

// Clear drops every job waiting in injector, then steals whatever remains
// in d off its top end. Clear runs on the goroutine stopping the pool or
// worker, not the owner, so it uses Steal, which any goroutine may call.
func (q *dequeQueue) Clear() {
	q.injector.Clear()
	for !q.d.IsEmpty() {
		_, _ = q.d.Steal()
	}
}

func (q *dequeQueue) Stop() {
	q.stopped.Store(true)
	q.injector.Stop()
}

func (q *dequeQueue) Capabilities() queue.Capabilities {
	return queue.Capabilities{
		ExactSize:            false,
		AtomicEmptyCheck:     true,
		LockFree:             false,
		WaitFree:             false,
		SupportsBatch:        false,
		SupportsBlockingWait: false,
		SupportsStop:         true,
	}
}
