package queue

import (
	"sync"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
)

const mutexQueueModule = "queue.MutexQueue"

// MutexQueue is a standard unbounded FIFO guarded by a mutex and condition
// variable, matching spec §4.2.1.
type MutexQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*job.Job
	stopped bool
}

// NewMutexQueue creates an empty, running MutexQueue.
func NewMutexQueue() *MutexQueue {
	q := &MutexQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *MutexQueue) Enqueue(j *job.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return errs.New(errs.QueueStopped, mutexQueueModule, "enqueue after stop")
	}
	q.items = append(q.items, j)
	q.cond.Signal()
	return nil
}

// EnqueueBatch links a whole slice of jobs in with a single notify, matching
// the batch-enqueue shape the lock-free queue offers.
func (q *MutexQueue) EnqueueBatch(jobs []*job.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return errs.New(errs.QueueStopped, mutexQueueModule, "enqueue after stop")
	}
	q.items = append(q.items, jobs...)
	q.cond.Broadcast()
	return nil
}

func (q *MutexQueue) Dequeue() (*job.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, errs.New(errs.QueueStopped, mutexQueueModule, "queue stopped and empty")
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, nil
}

func (q *MutexQueue) TryDequeue() (*job.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, errs.New(errs.QueueEmpty, mutexQueueModule, "no job available")
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, nil
}

func (q *MutexQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MutexQueue) Empty() bool {
	return q.Size() == 0
}

func (q *MutexQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

func (q *MutexQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	q.cond.Broadcast()
}

func (q *MutexQueue) Capabilities() Capabilities {
	return Capabilities{
		ExactSize:            true,
		AtomicEmptyCheck:     true,
		LockFree:             false,
		WaitFree:             false,
		SupportsBatch:        true,
		SupportsBlockingWait: true,
		SupportsStop:         true,
	}
}
