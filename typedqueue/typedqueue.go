// Package typedqueue implements the priority-typed job queue with
// background priority aging, per spec §4.5, grounded on
// original_source/src/impl/typed_pool/aging_typed_job_queue.cpp.
package typedqueue

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
)

const module = "typedqueue.TypedQueue"

// Config mirrors original_source's priority_aging_config.
type Config struct {
	Enabled                bool
	AgingInterval          time.Duration
	PriorityBoostPerInterval int64
	MaxPriorityBoost       int64
	Curve                  job.BoostCurve
	ExponentialFactor      float64
	StarvationThreshold    time.Duration
	StarvationCallback     func(j *job.AgingJob)
}

// DefaultConfig matches the original's defaults: linear aging, one priority
// point per 50ms waited, capped at 20, starvation flagged past 2s.
func DefaultConfig() Config {
	return Config{
		Enabled:                  true,
		AgingInterval:            50 * time.Millisecond,
		PriorityBoostPerInterval: 1,
		MaxPriorityBoost:         20,
		Curve:                    job.BoostLinear,
		ExponentialFactor:        1.5,
		StarvationThreshold:      2 * time.Second,
	}
}

// Stats mirrors original_source's aging_stats.
type Stats struct {
	TotalBoostsApplied  int64
	JobsReachedMaxBoost int64
	MaxWaitTime         time.Duration
	AvgWaitTime         time.Duration
	StarvationAlerts    int64
	BoostRate           float64
}

type bucket struct {
	jobs []*job.AgingJob
}

// TypedQueue is a priority-bucketed job queue: one FIFO bucket per distinct
// priority, with a background goroutine that boosts waiting jobs' effective
// priority over time so low-priority work is never starved.
type TypedQueue struct {
	mu      sync.Mutex
	buckets map[job.IntPriority]*bucket

	agingMu   sync.Mutex
	agingJobs []*job.AgingJob

	statsMu    sync.Mutex
	stats      Stats
	statsStart time.Time

	config    Config
	configMu  sync.RWMutex

	stopped      atomic.Bool
	agingRunning atomic.Bool
	agingStop    chan struct{}
	agingDone    chan struct{}
}

// New creates a TypedQueue with the given aging configuration.
func New(config Config) *TypedQueue {
	return &TypedQueue{
		buckets:    make(map[job.IntPriority]*bucket),
		config:     config,
		statsStart: time.Now(),
	}
}

// StartAging launches the background aging goroutine; a no-op if already
// running.
func (q *TypedQueue) StartAging() {
	if q.agingRunning.Swap(true) {
		return
	}
	q.agingStop = make(chan struct{})
	q.agingDone = make(chan struct{})
	go q.agingLoop(q.agingStop, q.agingDone)
}

// StopAging halts the background aging goroutine and joins it.
func (q *TypedQueue) StopAging() {
	if !q.agingRunning.Swap(false) {
		return
	}
	close(q.agingStop)
	<-q.agingDone
}

func (q *TypedQueue) agingLoop(stop, done chan struct{}) {
	defer close(done)
	for {
		cfg := q.currentConfig()
		interval := cfg.AgingInterval
		if interval <= 0 {
			interval = 50 * time.Millisecond
		}
		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		if !q.agingRunning.Load() {
			return
		}
		if cfg.Enabled {
			q.applyAging()
			q.checkStarvation()
		}
	}
}

func (q *TypedQueue) currentConfig() Config {
	q.configMu.RLock()
	defer q.configMu.RUnlock()
	return q.config
}

// SetConfig installs a new aging configuration, taking effect on the next
// aging tick.
func (q *TypedQueue) SetConfig(cfg Config) {
	q.configMu.Lock()
	q.config = cfg
	q.configMu.Unlock()
}

func (q *TypedQueue) applyAging() {
	cfg := q.currentConfig()

	q.agingMu.Lock()
	defer q.agingMu.Unlock()

	var boostsApplied int64
	var maxWait, totalWait time.Duration

	for _, j := range q.agingJobs {
		if j == nil {
			continue
		}
		wait := time.Since(j.EnqueueTime)
		totalWait += wait
		if wait > maxWait {
			maxWait = wait
		}

		if wait < cfg.AgingInterval {
			continue
		}
		boost := calculateBoost(wait, cfg)
		if boost > j.MaxBoost {
			boost = j.MaxBoost
		}
		if boost > j.CurrentBoost {
			j.CurrentBoost = boost
			boostsApplied++
			if j.CurrentBoost >= j.MaxBoost {
				q.statsMu.Lock()
				q.stats.JobsReachedMaxBoost++
				q.statsMu.Unlock()
			}
		}
	}

	if len(q.agingJobs) > 0 {
		q.updateStats(boostsApplied, maxWait, totalWait, len(q.agingJobs))
	}
}

func calculateBoost(wait time.Duration, cfg Config) int64 {
	intervalNs := float64(cfg.AgingInterval)
	if intervalNs <= 0 {
		return 0
	}
	intervals := float64(wait) / intervalNs

	var boost int64
	switch cfg.Curve {
	case job.BoostLinear:
		boost = int64(intervals) * cfg.PriorityBoostPerInterval
	case job.BoostExponential:
		factor := cfg.ExponentialFactor
		if factor <= 1 {
			factor = 1.5
		}
		boost = int64(math.Pow(factor, intervals)-1.0) * cfg.PriorityBoostPerInterval
	case job.BoostLogarithmic:
		if intervals > 0 {
			boost = int64(math.Log(intervals+1)/math.Log(2)) * cfg.PriorityBoostPerInterval
		}
	}
	if boost > cfg.MaxPriorityBoost {
		boost = cfg.MaxPriorityBoost
	}
	return boost
}

func (q *TypedQueue) checkStarvation() {
	cfg := q.currentConfig()
	if cfg.StarvationCallback == nil {
		return
	}

	q.agingMu.Lock()
	defer q.agingMu.Unlock()

	for _, j := range q.agingJobs {
		if j == nil {
			continue
		}
		if time.Since(j.EnqueueTime) > cfg.StarvationThreshold {
			cfg.StarvationCallback(j)
			q.statsMu.Lock()
			q.stats.StarvationAlerts++
			q.statsMu.Unlock()
		}
	}
}

func (q *TypedQueue) updateStats(boostsApplied int64, maxWait, totalWait time.Duration, jobCount int) {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()

	q.stats.TotalBoostsApplied += boostsApplied
	if maxWait > q.stats.MaxWaitTime {
		q.stats.MaxWaitTime = maxWait
	}
	if jobCount > 0 {
		q.stats.AvgWaitTime = totalWait / time.Duration(jobCount)
	}
	elapsed := time.Since(q.statsStart).Seconds()
	if elapsed > 0 {
		q.stats.BoostRate = float64(q.stats.TotalBoostsApplied) / elapsed
	}
}

// Stats returns a point-in-time copy of the aging statistics.
func (q *TypedQueue) Stats() Stats {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return q.stats
}

// ResetStats zeroes the aging statistics.
func (q *TypedQueue) ResetStats() {
	q.statsMu.Lock()
	q.stats = Stats{}
	q.statsStart = time.Now()
	q.statsMu.Unlock()
}

// Enqueue adds j to its priority's bucket and registers it for aging.
func (q *TypedQueue) Enqueue(j *job.AgingJob) error {
	if j == nil {
		return errs.New(errs.InvalidArgument, module, "nil job")
	}
	if q.stopped.Load() {
		return errs.New(errs.QueueStopped, module, "queue is stopped")
	}

	q.configMu.RLock()
	j.MaxBoost = q.config.MaxPriorityBoost
	q.configMu.RUnlock()

	q.agingMu.Lock()
	q.agingJobs = append(q.agingJobs, j)
	q.agingMu.Unlock()

	q.mu.Lock()
	b, ok := q.buckets[j.Priority]
	if !ok {
		b = &bucket{}
		q.buckets[j.Priority] = b
	}
	b.jobs = append(b.jobs, j)
	q.mu.Unlock()
	return nil
}

// TryDequeue pops the job with the highest current effective priority
// across every bucket (ties broken FIFO within a bucket). Returns
// errs.QueueEmpty when nothing is ready.
func (q *TypedQueue) TryDequeue() (*job.AgingJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var bestPriority job.IntPriority
	var best *bucket
	first := true
	for p, b := range q.buckets {
		if len(b.jobs) == 0 {
			continue
		}
		effective := job.IntPriority(int(p) + int(b.jobs[0].CurrentBoost))
		if first || effective.Less(bestPriority) {
			bestPriority = effective
			best = b
			first = false
		}
	}
	if best == nil {
		return nil, errs.New(errs.QueueEmpty, module, "queue is empty")
	}

	j := best.jobs[0]
	best.jobs = best.jobs[1:]
	q.unregisterAging(j)
	return j, nil
}

func (q *TypedQueue) unregisterAging(j *job.AgingJob) {
	q.agingMu.Lock()
	defer q.agingMu.Unlock()
	for i, aj := range q.agingJobs {
		if aj == j {
			q.agingJobs = append(q.agingJobs[:i], q.agingJobs[i+1:]...)
			break
		}
	}
}

// TryDequeueFromPriority pops from a single named priority bucket only.
func (q *TypedQueue) TryDequeueFromPriority(p job.IntPriority) (*job.AgingJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.buckets[p]
	if !ok || len(b.jobs) == 0 {
		return nil, false
	}
	j := b.jobs[0]
	b.jobs = b.jobs[1:]
	q.unregisterAging(j)
	return j, true
}

// Size returns the total number of queued jobs across every bucket.
func (q *TypedQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, b := range q.buckets {
		total += len(b.jobs)
	}
	return total
}

// Empty reports whether every priority bucket is empty.
func (q *TypedQueue) Empty() bool { return q.Size() == 0 }

// Priorities returns the distinct priorities currently holding jobs, sorted
// best-first.
func (q *TypedQueue) Priorities() []job.IntPriority {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]job.IntPriority, 0, len(q.buckets))
	for p, b := range q.buckets {
		if len(b.jobs) > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// StarvingJobs returns jobs that have waited longer than the configured
// starvation threshold.
func (q *TypedQueue) StarvingJobs() []*job.AgingJob {
	cfg := q.currentConfig()
	q.agingMu.Lock()
	defer q.agingMu.Unlock()

	var out []*job.AgingJob
	for _, j := range q.agingJobs {
		if j != nil && time.Since(j.EnqueueTime) > cfg.StarvationThreshold {
			out = append(out, j)
		}
	}
	return out
}

// Clear drops every queued job and its aging registration.
func (q *TypedQueue) Clear() {
	q.mu.Lock()
	q.buckets = make(map[job.IntPriority]*bucket)
	q.mu.Unlock()

	q.agingMu.Lock()
	q.agingJobs = nil
	q.agingMu.Unlock()
}

// Stop marks the queue stopped (rejecting further Enqueue calls) and halts
// aging.
func (q *TypedQueue) Stop() {
	q.stopped.Store(true)
	q.StopAging()
}
