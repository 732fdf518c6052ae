// Package autoscale implements sampled-metric driven pool resizing, per
// spec §4.7, grounded on original_source/src/scaling/autoscaler.cpp.
package autoscale

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// PoolController is the subset of pool operations the autoscaler drives.
// The pool package implements this.
type PoolController interface {
	ActiveWorkerCount() int
	IdleWorkerCount() int
	PendingJobCount() int
	AddWorkers(n int) error
	RemoveWorkers(n int) error
	IsRunning() bool
}

// MetricsSource supplies the pool-level counters the autoscaler samples.
type MetricsSource interface {
	JobsCompleted() uint64
	JobsSubmitted() uint64
	P95WaitMillis() float64
}

// Mode selects whether the autoscaler only observes or actively resizes
// the pool.
type Mode int

const (
	ModeAutomatic Mode = iota
	ModeObserveOnly
)

// Direction is which way a ScalingDecision moves the pool.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

// Reason names which trigger produced a ScalingDecision.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUtilization
	ReasonQueueDepth
	ReasonLatency
)

// Thresholds groups the trigger levels for one scaling direction.
type Thresholds struct {
	UtilizationThreshold  float64
	QueueDepthThreshold   float64 // per-worker
	LatencyThresholdMs    float64
	PendingJobsThreshold  int
}

// Policy parameterizes an Autoscaler.
type Policy struct {
	MinWorkers           int
	MaxWorkers           int
	ScaleUpIncrement     int
	ScaleDownIncrement   int
	UseMultiplicative    bool
	ScaleUpFactor        float64
	ScaleUpCooldown      time.Duration
	ScaleDownCooldown    time.Duration
	SampleInterval       time.Duration
	SamplesForDecision   int
	ScalingMode          Mode
	ScaleUp              Thresholds
	ScaleDown            Thresholds
	ScalingCallback      func(dir Direction, reason Reason, from, to int)
}

// DefaultPolicy mirrors the original's typical defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinWorkers:         1,
		MaxWorkers:         32,
		ScaleUpIncrement:   1,
		ScaleDownIncrement: 1,
		UseMultiplicative:  false,
		ScaleUpFactor:      1.5,
		ScaleUpCooldown:    10 * time.Second,
		ScaleDownCooldown:  30 * time.Second,
		SampleInterval:     time.Second,
		SamplesForDecision: 3,
		ScalingMode:        ModeAutomatic,
		ScaleUp: Thresholds{
			UtilizationThreshold: 0.8,
			QueueDepthThreshold:  5,
			LatencyThresholdMs:   100,
			PendingJobsThreshold: 100,
		},
		ScaleDown: Thresholds{
			UtilizationThreshold: 0.2,
			QueueDepthThreshold:  1,
		},
	}
}

// Sample is one point-in-time metrics observation.
type Sample struct {
	Timestamp            time.Time
	WorkerCount          int
	ActiveWorkers        int
	QueueDepth           int
	Utilization          float64
	QueueDepthPerWorker  float64
	JobsCompleted        uint64
	JobsSubmitted        uint64
	ThroughputPerSecond  float64
	P95LatencyMs         float64
}

// Decision is the outcome of evaluating the current metric history.
type Decision struct {
	Direction     Direction
	Reason        Reason
	TargetWorkers int
	Explanation   string
}

// ShouldScale reports whether Decision represents an actual resize.
func (d Decision) ShouldScale() bool { return d.Direction != DirectionNone }

// Stats is a point-in-time read of the Autoscaler's lifetime counters.
type Stats struct {
	DecisionsEvaluated int64
	ScaleUpCount       int64
	ScaleDownCount     int64
	LastScaleUp        time.Time
	LastScaleDown      time.Time
	MinWorkersSeen     int
	PeakWorkersSeen    int
}

// Autoscaler samples a pool's metrics on an interval and resizes it to
// match observed load, subject to cooldowns and min/max bounds.
type Autoscaler struct {
	pool    PoolController
	metrics MetricsSource

	policyMu sync.RWMutex
	policy   Policy

	historyMu sync.Mutex
	history   []Sample

	lastSampleTime    time.Time
	lastJobsCompleted uint64
	lastJobsSubmitted uint64

	lastScaleUpTime   atomic.Value // time.Time
	lastScaleDownTime atomic.Value // time.Time

	statsMu sync.Mutex
	stats   Stats

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an Autoscaler driving pool, sourcing metrics from metrics.
func New(pool PoolController, metrics MetricsSource, policy Policy) *Autoscaler {
	a := &Autoscaler{
		pool:           pool,
		metrics:        metrics,
		policy:         policy,
		lastSampleTime: time.Now(),
	}
	a.lastScaleUpTime.Store(time.Time{})
	a.lastScaleDownTime.Store(time.Time{})

	current := pool.ActiveWorkerCount()
	a.stats.MinWorkersSeen = current
	a.stats.PeakWorkersSeen = current
	return a
}

// Start launches the background monitor goroutine; a no-op if already
// running.
func (a *Autoscaler) Start() {
	if a.running.Swap(true) {
		return
	}
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.monitorLoop(a.stopCh, a.doneCh)
}

// Stop halts the monitor goroutine and joins it.
func (a *Autoscaler) Stop() {
	if !a.running.Swap(false) {
		return
	}
	close(a.stopCh)
	<-a.doneCh
}

// IsActive reports whether the monitor goroutine is running.
func (a *Autoscaler) IsActive() bool { return a.running.Load() }

func (a *Autoscaler) monitorLoop(stop, done chan struct{}) {
	defer close(done)
	for {
		interval := a.currentPolicy().SampleInterval
		if interval <= 0 {
			interval = time.Second
		}
		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		if !a.running.Load() {
			return
		}
		if !a.pool.IsRunning() {
			continue
		}

		sample := a.collectMetrics()
		a.pushHistory(sample)

		policy := a.currentPolicy()
		if policy.ScalingMode != ModeAutomatic {
			continue
		}

		samples := a.recentSamples(policy.SamplesForDecision)
		if len(samples) < policy.SamplesForDecision {
			continue
		}

		decision := a.makeDecision(samples)
		if decision.ShouldScale() {
			a.executeScaling(decision)
		}

		a.statsMu.Lock()
		a.stats.DecisionsEvaluated++
		current := a.pool.ActiveWorkerCount()
		if current > a.stats.PeakWorkersSeen {
			a.stats.PeakWorkersSeen = current
		}
		if a.stats.MinWorkersSeen == 0 || current < a.stats.MinWorkersSeen {
			a.stats.MinWorkersSeen = current
		}
		a.statsMu.Unlock()
	}
}

func (a *Autoscaler) currentPolicy() Policy {
	a.policyMu.RLock()
	defer a.policyMu.RUnlock()
	return a.policy
}

// SetPolicy installs a new policy, taking effect on the next sample.
func (a *Autoscaler) SetPolicy(p Policy) {
	a.policyMu.Lock()
	a.policy = p
	a.policyMu.Unlock()
}

// Policy returns the current policy.
func (a *Autoscaler) Policy() Policy { return a.currentPolicy() }

func (a *Autoscaler) collectMetrics() Sample {
	now := time.Now()

	sample := Sample{Timestamp: now}
	sample.WorkerCount = a.pool.ActiveWorkerCount()
	sample.ActiveWorkers = sample.WorkerCount - a.pool.IdleWorkerCount()
	sample.QueueDepth = a.pool.PendingJobCount()

	if sample.WorkerCount > 0 {
		sample.Utilization = float64(sample.ActiveWorkers) / float64(sample.WorkerCount)
		sample.QueueDepthPerWorker = float64(sample.QueueDepth) / float64(sample.WorkerCount)
	}

	if a.metrics != nil {
		sample.JobsCompleted = a.metrics.JobsCompleted()
		sample.JobsSubmitted = a.metrics.JobsSubmitted()
		sample.P95LatencyMs = a.metrics.P95WaitMillis()
	}

	elapsedMs := now.Sub(a.lastSampleTime).Milliseconds()
	if elapsedMs > 0 && sample.JobsCompleted >= a.lastJobsCompleted {
		delta := sample.JobsCompleted - a.lastJobsCompleted
		sample.ThroughputPerSecond = float64(delta) * 1000.0 / float64(elapsedMs)
	}

	a.lastJobsCompleted = sample.JobsCompleted
	a.lastJobsSubmitted = sample.JobsSubmitted
	a.lastSampleTime = now

	return sample
}

func (a *Autoscaler) pushHistory(s Sample) {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()
	a.history = append(a.history, s)
	if len(a.history) > 60 {
		a.history = a.history[len(a.history)-60:]
	}
}

func (a *Autoscaler) recentSamples(count int) []Sample {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()
	if count > len(a.history) {
		count = len(a.history)
	}
	out := make([]Sample, count)
	copy(out, a.history[len(a.history)-count:])
	return out
}

// EvaluateNow samples the pool immediately and returns the resulting
// decision without necessarily executing it.
func (a *Autoscaler) EvaluateNow() Decision {
	sample := a.collectMetrics()
	a.pushHistory(sample)
	policy := a.currentPolicy()
	samples := a.recentSamples(policy.SamplesForDecision)
	return a.makeDecision(samples)
}

func (a *Autoscaler) makeDecision(samples []Sample) Decision {
	if len(samples) == 0 {
		return Decision{}
	}

	policy := a.currentPolicy()

	var avgUtil, avgQueuePerWorker, avgLatency float64
	var avgQueueDepth int
	for _, s := range samples {
		avgUtil += s.Utilization
		avgQueuePerWorker += s.QueueDepthPerWorker
		avgLatency += s.P95LatencyMs
		avgQueueDepth += s.QueueDepth
	}
	n := float64(len(samples))
	avgUtil /= n
	avgQueuePerWorker /= n
	avgLatency /= n
	avgQueueDepth /= len(samples)

	current := a.pool.ActiveWorkerCount()

	upTarget := current + policy.ScaleUpIncrement
	if policy.UseMultiplicative {
		upTarget = int(math.Ceil(float64(current) * policy.ScaleUpFactor))
		if upTarget <= current {
			upTarget = current + 1
		}
	}
	upTarget = clampInt(upTarget, policy.MinWorkers, policy.MaxWorkers)

	if a.canScaleUp(policy, current) {
		if avgUtil > policy.ScaleUp.UtilizationThreshold {
			return Decision{DirectionUp, ReasonUtilization, upTarget, "utilization above threshold"}
		}
		if avgQueuePerWorker > policy.ScaleUp.QueueDepthThreshold {
			return Decision{DirectionUp, ReasonQueueDepth, upTarget, "queue depth per worker above threshold"}
		}
		if avgLatency > policy.ScaleUp.LatencyThresholdMs && avgLatency > 0 {
			return Decision{DirectionUp, ReasonLatency, upTarget, "p95 wait latency above threshold"}
		}
		if avgQueueDepth > policy.ScaleUp.PendingJobsThreshold {
			return Decision{DirectionUp, ReasonQueueDepth, upTarget, "absolute queue depth above threshold"}
		}
	}

	if a.canScaleDown(policy, current) && current > policy.MinWorkers {
		utilOK := avgUtil < policy.ScaleDown.UtilizationThreshold
		queueOK := avgQueuePerWorker < policy.ScaleDown.QueueDepthThreshold
		if utilOK && queueOK {
			target := current - policy.ScaleDownIncrement
			if target < policy.MinWorkers {
				target = policy.MinWorkers
			}
			return Decision{DirectionDown, ReasonUtilization, target, "utilization and queue depth below threshold"}
		}
	}

	return Decision{}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (a *Autoscaler) canScaleUp(policy Policy, current int) bool {
	if current >= policy.MaxWorkers {
		return false
	}
	last := a.lastScaleUpTime.Load().(time.Time)
	return time.Since(last) >= policy.ScaleUpCooldown
}

func (a *Autoscaler) canScaleDown(policy Policy, current int) bool {
	if current <= policy.MinWorkers {
		return false
	}
	last := a.lastScaleDownTime.Load().(time.Time)
	return time.Since(last) >= policy.ScaleDownCooldown
}

func (a *Autoscaler) executeScaling(d Decision) {
	current := a.pool.ActiveWorkerCount()
	now := time.Now()
	policy := a.currentPolicy()

	switch d.Direction {
	case DirectionUp:
		if err := a.pool.AddWorkers(d.TargetWorkers - current); err == nil {
			a.lastScaleUpTime.Store(now)
			a.statsMu.Lock()
			a.stats.ScaleUpCount++
			a.stats.LastScaleUp = now
			a.statsMu.Unlock()
			if policy.ScalingCallback != nil {
				policy.ScalingCallback(DirectionUp, d.Reason, current, d.TargetWorkers)
			}
		}
	case DirectionDown:
		if err := a.pool.RemoveWorkers(current - d.TargetWorkers); err == nil {
			a.lastScaleDownTime.Store(now)
			a.statsMu.Lock()
			a.stats.ScaleDownCount++
			a.stats.LastScaleDown = now
			a.statsMu.Unlock()
			if policy.ScalingCallback != nil {
				policy.ScalingCallback(DirectionDown, d.Reason, current, d.TargetWorkers)
			}
		}
	}
}

// ScaleTo resizes the pool to exactly target workers, clamped to policy
// bounds, bypassing trigger evaluation (but not worker add/remove errors).
func (a *Autoscaler) ScaleTo(target int) error {
	policy := a.currentPolicy()
	target = clampInt(target, policy.MinWorkers, policy.MaxWorkers)
	current := a.pool.ActiveWorkerCount()

	if target > current {
		return a.pool.AddWorkers(target - current)
	}
	if target < current {
		return a.pool.RemoveWorkers(current - target)
	}
	return nil
}

// Stats returns a point-in-time read of the autoscaler's lifetime counters.
func (a *Autoscaler) Stats() Stats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return a.stats
}

// ResetStats zeroes the lifetime counters.
func (a *Autoscaler) ResetStats() {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	current := a.pool.ActiveWorkerCount()
	a.stats = Stats{MinWorkersSeen: current, PeakWorkersSeen: current}
}

// MetricsHistory returns up to count of the most recent samples.
func (a *Autoscaler) MetricsHistory(count int) []Sample {
	return a.recentSamples(count)
}
