package queue

import (
	"time"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
)

const policyQueueModule = "queue.PolicyQueue"

// SyncPolicy selects the underlying synchronization strategy.
type SyncPolicy int

const (
	MutexSync SyncPolicy = iota
	LockFreeSync
	AdaptiveSync
)

// BoundPolicy selects whether the queue has a capacity ceiling.
type BoundPolicy int

const (
	Unbounded BoundPolicy = iota
	Bounded
)

// OverflowKind selects what happens on Enqueue when a Bounded queue is full.
type OverflowKind int

const (
	Reject OverflowKind = iota
	Block
	DropOldest
	DropNewest
	Timeout
)

// OverflowPolicy configures the OverflowKind, with a Duration for Timeout.
type OverflowPolicy struct {
	Kind    OverflowKind
	Timeout time.Duration
}

// PolicyQueueConfig composes the three policy axes. Invalid combinations —
// LockFreeSync + Bounded + Block — are rejected by NewPolicyQueue.
type PolicyQueueConfig struct {
	Sync     SyncPolicy
	Bound    BoundPolicy
	Overflow OverflowPolicy
	Capacity int // only meaningful when Bound == Bounded
}

// PolicyQueue is the policy-parameterized queue template of spec §4.2.4: a
// composition of (SyncPolicy, BoundPolicy, OverflowPolicy) over either a
// MutexQueue or a LockFreeQueue backend.
type PolicyQueue struct {
	cfg     PolicyQueueConfig
	backend Queue
}

// NewPolicyQueue validates cfg and builds the composed queue, or returns
// errs.InvalidArgument for a disallowed combination.
func NewPolicyQueue(cfg PolicyQueueConfig) (*PolicyQueue, error) {
	if cfg.Sync == LockFreeSync && cfg.Bound == Bounded && cfg.Overflow.Kind == Block {
		return nil, errs.New(errs.InvalidArgument, policyQueueModule,
			"LockFreeSync + Bounded + Block is not a supported combination")
	}
	if cfg.Bound == Bounded && cfg.Capacity <= 0 {
		return nil, errs.New(errs.InvalidArgument, policyQueueModule, "bounded queue requires Capacity > 0")
	}
	if cfg.Overflow.Kind == Block && cfg.Sync == LockFreeSync {
		return nil, errs.New(errs.InvalidArgument, policyQueueModule,
			"Block overflow requires a blocking-capable sync policy")
	}

	var backend Queue
	switch cfg.Sync {
	case LockFreeSync:
		backend = NewLockFreeQueue()
	default:
		backend = NewMutexQueue()
	}

	return &PolicyQueue{cfg: cfg, backend: backend}, nil
}

func (q *PolicyQueue) Enqueue(j *job.Job) error {
	if q.cfg.Bound != Bounded {
		return q.backend.Enqueue(j)
	}

	if q.backend.Size() < q.cfg.Capacity {
		return q.backend.Enqueue(j)
	}

	switch q.cfg.Overflow.Kind {
	case Reject:
		return errs.New(errs.QueueFull, policyQueueModule, "queue at capacity")
	case DropNewest:
		return nil // silently succeed without storing
	case DropOldest:
		_, _ = q.backend.TryDequeue()
		return q.backend.Enqueue(j)
	case Block:
		deadline := time.Now().Add(24 * time.Hour) // effectively unbounded wait
		for q.backend.Size() >= q.cfg.Capacity {
			if time.Now().After(deadline) {
				return errs.New(errs.OperationTimeout, policyQueueModule, "blocked enqueue timed out")
			}
			time.Sleep(time.Millisecond)
		}
		return q.backend.Enqueue(j)
	case Timeout:
		deadline := time.Now().Add(q.cfg.Overflow.Timeout)
		for q.backend.Size() >= q.cfg.Capacity {
			if time.Now().After(deadline) {
				return errs.New(errs.QueueFull, policyQueueModule, "queue at capacity after timeout")
			}
			time.Sleep(time.Millisecond)
		}
		return q.backend.Enqueue(j)
	default:
		return q.backend.Enqueue(j)
	}
}

func (q *PolicyQueue) Dequeue() (*job.Job, error)    { return q.backend.Dequeue() }
func (q *PolicyQueue) TryDequeue() (*job.Job, error) { return q.backend.TryDequeue() }
func (q *PolicyQueue) Size() int                     { return q.backend.Size() }
func (q *PolicyQueue) Empty() bool                   { return q.backend.Empty() }
func (q *PolicyQueue) Clear()                        { q.backend.Clear() }
func (q *PolicyQueue) Stop()                         { q.backend.Stop() }

func (q *PolicyQueue) Capabilities() Capabilities {
	caps := q.backend.Capabilities()
	caps.SupportsBlockingWait = caps.SupportsBlockingWait || q.cfg.Overflow.Kind == Block
	return caps
}
