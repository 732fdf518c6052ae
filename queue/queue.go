// Package queue implements the job queue family: an unbounded mutex/condvar
// queue, a lock-free MPMC queue with hazard-pointer reclamation, a
// policy-parameterized queue template, and an adaptive wrapper that switches
// between the two under contention.
package queue

import "github.com/go-foundations/scheduler/job"

// Capabilities describes what a Queue implementation can promise. Every
// Queue exposes one so callers (diagnostics, the pool) can branch on exact
// semantics instead of assuming a lowest common denominator.
type Capabilities struct {
	ExactSize            bool
	AtomicEmptyCheck     bool
	LockFree             bool
	WaitFree             bool
	SupportsBatch        bool
	SupportsBlockingWait bool
	SupportsStop         bool
}

// Queue is the abstract contract every concrete job queue satisfies.
type Queue interface {
	// Enqueue adds job to the queue. Returns a *errs.Info with code
	// errs.QueueStopped if the queue has been stopped, or errs.QueueFull if
	// a bound/overflow policy rejects it.
	Enqueue(j *job.Job) error
	// Dequeue waits until a job is available or the queue is stopped. A
	// queue whose Capabilities().SupportsBlockingWait is false may instead
	// return errs.QueueEmpty at once (LockFreeQueue does).
	Dequeue() (*job.Job, error)
	// TryDequeue returns immediately: a job, or a *errs.Info with code
	// errs.QueueEmpty.
	TryDequeue() (*job.Job, error)
	// Size returns the current element count. Exact only if
	// Capabilities().ExactSize is true.
	Size() int
	// Empty reports whether the queue currently holds no elements.
	Empty() bool
	// Clear discards every currently queued job without running it.
	Clear()
	// Stop marks the queue stopped: subsequent Enqueue calls fail and
	// blocked Dequeue callers are woken with errs.QueueStopped once drained.
	Stop()
	// Capabilities reports this queue's guarantees.
	Capabilities() Capabilities
}

// BatchEnqueuer is implemented by queues whose Capabilities().SupportsBatch
// is true.
type BatchEnqueuer interface {
	EnqueueBatch(jobs []*job.Job) error
}
