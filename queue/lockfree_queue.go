package queue

import (
	"sync/atomic"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/hazard"
	"github.com/go-foundations/scheduler/job"
)

const lockFreeQueueModule = "queue.LockFreeQueue"

// maxEnqueueRetries bounds the CAS retry loop so enqueue fails with
// errs.ResourceLimitReached instead of livelocking under extreme contention.
const maxEnqueueRetries = 50_000

type lfNode struct {
	payload *job.Job
	next    atomic.Pointer[lfNode]
}

// LockFreeQueue is a Michael-Scott singly-linked MPMC queue with a sentinel
// dummy head/tail and hazard-pointer-protected reclamation, matching spec
// §4.2.2. Size is approximate (a best-effort counter), not exact.
type LockFreeQueue struct {
	head    atomic.Pointer[lfNode]
	tail    atomic.Pointer[lfNode]
	domain  *hazard.Domain
	approxN atomic.Int64
	stopped atomic.Bool
}

// NewLockFreeQueue creates an empty, running LockFreeQueue.
func NewLockFreeQueue() *LockFreeQueue {
	q := &LockFreeQueue{domain: hazard.NewDomain()}
	dummy := &lfNode{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

func (q *LockFreeQueue) Enqueue(j *job.Job) error {
	if q.stopped.Load() {
		return errs.New(errs.QueueStopped, lockFreeQueueModule, "enqueue after stop")
	}

	// Payload is set before the node is ever linked into the list, so a
	// weakly-ordered reader that observes the link can never observe a torn
	// (nil) payload — see SPEC_FULL.md open-question resolution #2.
	n := &lfNode{payload: j}

	for attempt := 0; attempt < maxEnqueueRetries; attempt++ {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				q.approxN.Add(1)
				return nil
			}
		} else {
			// Help advance a tail some other enqueuer left behind.
			q.tail.CompareAndSwap(tail, next)
		}
	}
	return errs.New(errs.ResourceLimitReached, lockFreeQueueModule, "enqueue retry limit exceeded")
}

func (q *LockFreeQueue) EnqueueBatch(jobs []*job.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if q.stopped.Load() {
		return errs.New(errs.QueueStopped, lockFreeQueueModule, "enqueue after stop")
	}

	first := &lfNode{payload: jobs[0]}
	cur := first
	for _, j := range jobs[1:] {
		n := &lfNode{payload: j}
		cur.next.Store(n)
		cur = n
	}
	last := cur

	for attempt := 0; attempt < maxEnqueueRetries; attempt++ {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, first) {
				q.tail.CompareAndSwap(tail, last)
				q.approxN.Add(int64(len(jobs)))
				return nil
			}
		} else {
			q.tail.CompareAndSwap(tail, next)
		}
	}
	return errs.New(errs.ResourceLimitReached, lockFreeQueueModule, "batch enqueue retry limit exceeded")
}

func (q *LockFreeQueue) TryDequeue() (*job.Job, error) {
	h := q.domain.Acquire()
	defer h.Release()

	for {
		head := q.head.Load()
		h.Protect(head)
		// Re-check head hasn't changed since the hazard publication.
		if head != q.head.Load() {
			continue
		}

		tail := q.tail.Load()
		next := head.next.Load()

		if head == tail {
			if next == nil {
				h.Clear()
				return nil, errs.New(errs.QueueEmpty, lockFreeQueueModule, "no job available")
			}
			// Tail has fallen behind; help it along and retry.
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		if next == nil {
			continue
		}
		payload := next.payload
		if q.head.CompareAndSwap(head, next) {
			h.Clear()
			q.approxN.Add(-1)
			h.Retire(head, func() {})
			return payload, nil
		}
	}
}

func (q *LockFreeQueue) Dequeue() (*job.Job, error) {
	// The lock-free queue does not support blocking waits (capability
	// SupportsBlockingWait=false); Dequeue degrades to TryDequeue, returning
	// errs.QueueEmpty immediately rather than blocking the caller.
	j, err := q.TryDequeue()
	if err != nil && errs.CodeOf(err) == errs.QueueEmpty && q.stopped.Load() {
		return nil, errs.New(errs.QueueStopped, lockFreeQueueModule, "queue stopped and empty")
	}
	return j, err
}

func (q *LockFreeQueue) Size() int {
	n := q.approxN.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (q *LockFreeQueue) Empty() bool {
	head := q.head.Load()
	return head.next.Load() == nil
}

func (q *LockFreeQueue) Clear() {
	for {
		if _, err := q.TryDequeue(); err != nil {
			return
		}
	}
}

func (q *LockFreeQueue) Stop() {
	q.stopped.Store(true)
}

func (q *LockFreeQueue) Capabilities() Capabilities {
	return Capabilities{
		ExactSize:            false,
		AtomicEmptyCheck:     false,
		LockFree:             true,
		WaitFree:             false,
		SupportsBatch:        true,
		SupportsBlockingWait: false,
		SupportsStop:         true,
	}
}
