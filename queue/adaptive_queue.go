package queue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/job"
)

// AdaptiveConfig tunes the mutex<->lock-free switch hysteresis. Per
// SPEC_FULL.md open-question #3, this is a tunable parameter set, not a
// hardcoded constant.
type AdaptiveConfig struct {
	// ContentionWindow is how many consecutive Enqueue calls are sampled
	// before a switch decision is (re-)evaluated.
	ContentionWindow int
	// RetryThreshold is the average enqueue-retry count (mutex-mode lock
	// wait is modeled as one "retry" per contended Lock) above which the
	// queue switches to lock-free mode.
	RetryThreshold float64
	// Cooldown is the minimum time between switches in either direction.
	Cooldown time.Duration
}

// DefaultAdaptiveConfig returns sane defaults for AdaptiveQueue.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		ContentionWindow: 256,
		RetryThreshold:   2.0,
		Cooldown:         200 * time.Millisecond,
	}
}

// AdaptiveQueue starts in mutex mode, monitors contention, and switches to
// lock-free mode when RetryThreshold is crossed, switching back after
// Cooldown of low contention. The switch drains the current backend into the
// target backend under a one-shot lock (spec §4.2.5).
type AdaptiveQueue struct {
	cfg AdaptiveConfig

	mu         sync.Mutex // serializes switches only
	current    atomic.Pointer[Queue]
	lockFree   atomic.Bool
	lastSwitch atomic.Int64 // unix nanos

	samples      atomic.Int64
	contentionHi atomic.Int64 // count of samples flagged contended this window
}

// NewAdaptiveQueue builds an AdaptiveQueue in mutex mode.
func NewAdaptiveQueue(cfg AdaptiveConfig) *AdaptiveQueue {
	q := &AdaptiveQueue{cfg: cfg}
	var backend Queue = NewMutexQueue()
	q.current.Store(&backend)
	q.lastSwitch.Store(time.Now().UnixNano())
	return q
}

func (q *AdaptiveQueue) backend() Queue {
	return *q.current.Load()
}

func (q *AdaptiveQueue) Enqueue(j *job.Job) error {
	start := time.Now()
	err := q.backend().Enqueue(j)
	q.observe(time.Since(start))
	return err
}

// observe records one enqueue's latency as a contention signal and, once
// ContentionWindow samples have accumulated, evaluates a mode switch.
func (q *AdaptiveQueue) observe(d time.Duration) {
	contended := d > 50*time.Microsecond
	if contended {
		q.contentionHi.Add(1)
	}
	n := q.samples.Add(1)
	if n < int64(q.cfg.ContentionWindow) {
		return
	}

	hi := q.contentionHi.Load()
	q.samples.Store(0)
	q.contentionHi.Store(0)

	avgRetries := float64(hi) / float64(q.cfg.ContentionWindow)
	now := time.Now()
	lastSwitch := time.Unix(0, q.lastSwitch.Load())
	if now.Sub(lastSwitch) < q.cfg.Cooldown {
		return
	}

	switch {
	case avgRetries >= q.cfg.RetryThreshold && !q.lockFree.Load():
		q.switchTo(NewLockFreeQueue())
		q.lockFree.Store(true)
		q.lastSwitch.Store(now.UnixNano())
	case avgRetries < q.cfg.RetryThreshold/2 && q.lockFree.Load():
		q.switchTo(NewMutexQueue())
		q.lockFree.Store(false)
		q.lastSwitch.Store(now.UnixNano())
	}
}

// switchTo drains the current backend into target and publishes target as
// the new backend atomically.
func (q *AdaptiveQueue) switchTo(target Queue) {
	q.mu.Lock()
	defer q.mu.Unlock()

	old := q.backend()
	for {
		j, err := old.TryDequeue()
		if err != nil {
			break
		}
		_ = target.Enqueue(j)
	}
	var t Queue = target
	q.current.Store(&t)
}

func (q *AdaptiveQueue) Dequeue() (*job.Job, error)    { return q.backend().Dequeue() }
func (q *AdaptiveQueue) TryDequeue() (*job.Job, error) { return q.backend().TryDequeue() }
func (q *AdaptiveQueue) Size() int                     { return q.backend().Size() }
func (q *AdaptiveQueue) Empty() bool                   { return q.backend().Empty() }
func (q *AdaptiveQueue) Clear()                        { q.backend().Clear() }
func (q *AdaptiveQueue) Stop()                         { q.backend().Stop() }

func (q *AdaptiveQueue) Capabilities() Capabilities {
	caps := q.backend().Capabilities()
	caps.ExactSize = false // can change mid-flight across a switch
	return caps
}

// IsLockFree reports whether the queue is currently operating in lock-free
// mode (for diagnostics/tests).
func (q *AdaptiveQueue) IsLockFree() bool { return q.lockFree.Load() }
