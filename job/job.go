// Package job defines the unit of scheduled work that flows through every
// queue, worker and pool in the scheduler.
package job

import (
	"time"

	"github.com/go-foundations/scheduler/token"
)

// Func is the synchronous closure a job executes. Jobs are plain callables,
// not cooperative coroutines: a Func that blocks, blocks its worker.
type Func func() error

// Metadata tracks the lifecycle timestamps and attempt count of a Job.
// Producers never touch it directly; the queue/worker machinery updates it.
type Metadata struct {
	SubmitTime time.Time
	StartTime  time.Time
	Attempt    int32
}

// Job is a unit of work: an id, an optional name, an execution closure, a
// cancellation token and metadata. Jobs are created by producers, owned
// exclusively by the queue after Enqueue, and transferred exclusively to a
// worker on Dequeue.
type Job struct {
	ID       string
	Name     string
	Run      Func
	Token    *token.Token
	Metadata Metadata
}

// New builds a Job with a fresh cancellation token and a stamped submit
// time.
func New(id, name string, run Func) *Job {
	return &Job{
		ID:    id,
		Name:  name,
		Run:   run,
		Token: token.New(),
		Metadata: Metadata{
			SubmitTime: time.Now(),
		},
	}
}

// Priority is any user-defined ordered tag type for a typed (priority) job.
// Higher Less() rank means lower scheduling priority, mirroring a min-heap
// over "effective priority" where boosted jobs rank higher.
type Priority interface {
	comparable
	Less(other any) bool
}

// IntPriority is the common case: an ordered integer priority where larger
// values are more important.
type IntPriority int

// Less implements a max-priority ordering: a higher IntPriority is "less"
// in heap terms, i.e. closer to the root.
func (p IntPriority) Less(other any) bool {
	o, ok := other.(IntPriority)
	if !ok {
		return false
	}
	return p > o
}

// TypedJob augments Job with a user-defined priority tag, for use with the
// typed (priority) pool.
type TypedJob struct {
	Job
	Priority IntPriority
}

// NewTyped builds a TypedJob at the given priority.
func NewTyped(id, name string, priority IntPriority, run Func) *TypedJob {
	return &TypedJob{
		Job:      *New(id, name, run),
		Priority: priority,
	}
}

// BoostCurve names how an AgingJob's priority boost grows with wait time.
type BoostCurve int

const (
	// BoostLinear grows boost linearly with intervals waited.
	BoostLinear BoostCurve = iota
	// BoostExponential grows boost geometrically with intervals waited.
	BoostExponential
	// BoostLogarithmic grows boost sub-linearly with intervals waited.
	BoostLogarithmic
)

// AgingJob is a TypedJob additionally carrying the bookkeeping the priority
// aging background thread needs: the job's original priority, its current
// boost, the boost ceiling, and when it was enqueued.
type AgingJob struct {
	TypedJob
	OriginalPriority IntPriority
	CurrentBoost     int64
	MaxBoost         int64
	EnqueueTime      time.Time
}

// NewAging builds an AgingJob ready for insertion into an aging typed queue.
func NewAging(id, name string, priority IntPriority, maxBoost int64, run Func) *AgingJob {
	return &AgingJob{
		TypedJob:         *NewTyped(id, name, priority, run),
		OriginalPriority: priority,
		MaxBoost:         maxBoost,
		EnqueueTime:      time.Now(),
	}
}

// EffectivePriority returns the original priority boosted by CurrentBoost:
// boosted jobs rank higher (more important) than their nominal priority.
func (a *AgingJob) EffectivePriority() IntPriority {
	return a.OriginalPriority + IntPriority(a.CurrentBoost)
}
