// Package stealer implements the work-stealing scheduler: victim selection
// policies (random, round-robin, adaptive, NUMA-aware, locality-aware,
// hierarchical), batch sizing, backoff, and steal statistics, per spec
// §4.3.
package stealer

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/deque"
	"github.com/go-foundations/scheduler/job"
)

// VictimPolicy picks which worker a thief should try to steal from next.
type VictimPolicy interface {
	// SelectVictims returns an ordered list of candidate victim indices
	// (excluding thiefID) to try, best candidate first.
	SelectVictims(thiefID int, deques []*deque.Deque) []int
	Name() string
}

// BackoffKind selects the sleep strategy used between failed steal rounds.
type BackoffKind int

const (
	NoBackoff BackoffKind = iota
	LinearBackoff
	ExponentialBackoff
)

// BackoffConfig parameterizes the backoff strategy.
type BackoffConfig struct {
	Kind           BackoffKind
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultBackoffConfig is a conservative exponential backoff.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Kind:           ExponentialBackoff,
		InitialBackoff: 50 * time.Microsecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

// BatchConfig controls how many jobs a single successful steal takes.
type BatchConfig struct {
	MinBatch     int
	MaxBatch     int
	AdaptiveSize bool // if true, steal min(victimSize/2, MaxBatch)
}

// DefaultBatchConfig steals one job at a time (no batching).
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{MinBatch: 1, MaxBatch: 1, AdaptiveSize: false}
}

// Stats are the monotonic counters spec §4.3 requires. All fields are
// atomics; Snapshot returns a non-atomic frozen copy.
type Stats struct {
	Attempts         atomic.Int64
	Successes        atomic.Int64
	Failures         atomic.Int64
	SameNode         atomic.Int64
	CrossNode        atomic.Int64
	BatchSteals      atomic.Int64
	TotalJobsStolen  atomic.Int64
	TotalStealTimeNs atomic.Int64
	TotalBackoffNs   atomic.Int64
}

// StatsSnapshot is a frozen, non-atomic copy of Stats.
type StatsSnapshot struct {
	Attempts         int64
	Successes        int64
	Failures         int64
	SameNode         int64
	CrossNode        int64
	BatchSteals      int64
	TotalJobsStolen  int64
	TotalStealTimeNs int64
	TotalBackoffNs   int64
}

// Snapshot freezes the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Attempts:         s.Attempts.Load(),
		Successes:        s.Successes.Load(),
		Failures:         s.Failures.Load(),
		SameNode:         s.SameNode.Load(),
		CrossNode:        s.CrossNode.Load(),
		BatchSteals:      s.BatchSteals.Load(),
		TotalJobsStolen:  s.TotalJobsStolen.Load(),
		TotalStealTimeNs: s.TotalStealTimeNs.Load(),
		TotalBackoffNs:   s.TotalBackoffNs.Load(),
	}
}

// Stealer coordinates steals across a fixed set of per-worker deques using a
// configurable VictimPolicy, batch size and backoff.
type Stealer struct {
	deques  []*deque.Deque
	policy  VictimPolicy
	backoff BackoffConfig
	batch   BatchConfig
	topo    *NumaTopology // nil if NUMA information is not configured
	affinity *AffinityTracker
	stats   Stats
	rng     *rand.Rand
}

// New builds a Stealer over deques using policy.
func New(deques []*deque.Deque, policy VictimPolicy, backoff BackoffConfig, batch BatchConfig) *Stealer {
	return &Stealer{
		deques:   deques,
		policy:   policy,
		backoff:  backoff,
		batch:    batch,
		affinity: NewAffinityTracker(len(deques)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithTopology attaches NUMA node information, enabling same-node/cross-node
// statistics even for non-NUMA policies.
func (s *Stealer) WithTopology(topo *NumaTopology) *Stealer {
	s.topo = topo
	return s
}

// StealFor attempts one steal on behalf of thiefID, returning the job (or
// nil, false if every candidate was empty).
func (s *Stealer) StealFor(thiefID int) (*job.Job, bool) {
	jobs, ok := s.StealBatchFor(thiefID, 1)
	if !ok || len(jobs) == 0 {
		return nil, false
	}
	return jobs[0], true
}

// StealBatchFor attempts to steal up to max jobs from the best-ranked
// victim that yields at least one job.
func (s *Stealer) StealBatchFor(thiefID int, max int) ([]*job.Job, bool) {
	start := time.Now()
	s.stats.Attempts.Add(1)

	candidates := s.policy.SelectVictims(thiefID, s.deques)
	for _, victimID := range candidates {
		if victimID == thiefID || victimID < 0 || victimID >= len(s.deques) {
			continue
		}
		victim := s.deques[victimID]

		n := s.batchSize(victim, max)
		var stolen []*job.Job
		for i := 0; i < n; i++ {
			j, ok := victim.Steal()
			if !ok {
				break
			}
			stolen = append(stolen, j)
		}

		if len(stolen) > 0 {
			s.recordSuccess(thiefID, victimID, stolen, time.Since(start))
			return stolen, true
		}
	}

	s.stats.Failures.Add(1)
	return nil, false
}

func (s *Stealer) batchSize(victim *deque.Deque, max int) int {
	n := max
	if s.batch.MaxBatch > 0 && n > s.batch.MaxBatch {
		n = s.batch.MaxBatch
	}
	if s.batch.AdaptiveSize {
		adaptive := victim.Size() / 2
		if adaptive < n {
			n = adaptive
		}
	}
	if n < s.batch.MinBatch {
		n = s.batch.MinBatch
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Stealer) recordSuccess(thiefID, victimID int, stolen []*job.Job, elapsed time.Duration) {
	s.stats.Successes.Add(1)
	s.stats.TotalJobsStolen.Add(int64(len(stolen)))
	s.stats.TotalStealTimeNs.Add(int64(elapsed))
	if len(stolen) > 1 {
		s.stats.BatchSteals.Add(1)
	}
	if s.topo != nil {
		if s.topo.SameNode(thiefID, victimID) {
			s.stats.SameNode.Add(1)
		} else {
			s.stats.CrossNode.Add(1)
		}
	}
	s.affinity.RecordSuccess(thiefID, victimID)
}

// Backoff sleeps according to the configured strategy for the given failed
// attempt count (1-based), returning the sleep duration for bookkeeping.
func (s *Stealer) Backoff(attempt int) time.Duration {
	var d time.Duration
	switch s.backoff.Kind {
	case NoBackoff:
		return 0
	case LinearBackoff:
		d = s.backoff.InitialBackoff * time.Duration(attempt)
	case ExponentialBackoff:
		mult := s.backoff.Multiplier
		if mult <= 1 {
			mult = 2
		}
		d = s.backoff.InitialBackoff
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * mult)
			if d >= s.backoff.MaxBackoff {
				break
			}
		}
	}
	if d > s.backoff.MaxBackoff {
		d = s.backoff.MaxBackoff
	}
	if d > 0 {
		time.Sleep(d)
		s.stats.TotalBackoffNs.Add(int64(d))
	}
	return d
}

// Stats returns the live stats object for direct atomic reads; its
// Snapshot method gives a frozen copy.
func (s *Stealer) Stats() *Stats { return &s.stats }
