package stealer

import (
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-foundations/scheduler/deque"
)

// RandomVictimPolicy picks a uniformly random victim each attempt, grounded
// on the teacher's WorkStealingStrategy random-victim selection.
type RandomVictimPolicy struct {
	rng *rand.Rand
}

func NewRandomVictimPolicy() *RandomVictimPolicy {
	return &RandomVictimPolicy{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *RandomVictimPolicy) Name() string { return "random" }

func (p *RandomVictimPolicy) SelectVictims(thiefID int, deques []*deque.Deque) []int {
	n := len(deques)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != thiefID {
			order = append(order, i)
		}
	}
	p.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// RoundRobinVictimPolicy cycles through victims in a fixed rotation starting
// just past the last victim tried, one cursor per thief.
type RoundRobinVictimPolicy struct {
	cursors []atomic.Int64
}

func NewRoundRobinVictimPolicy(numWorkers int) *RoundRobinVictimPolicy {
	return &RoundRobinVictimPolicy{cursors: make([]atomic.Int64, numWorkers)}
}

func (p *RoundRobinVictimPolicy) Name() string { return "round_robin" }

func (p *RoundRobinVictimPolicy) SelectVictims(thiefID int, deques []*deque.Deque) []int {
	n := len(deques)
	start := int(p.cursors[thiefID].Add(1)) % n
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if idx != thiefID {
			order = append(order, idx)
		}
	}
	return order
}

// AdaptiveVictimPolicy ranks victims by observed deque size, richest first,
// re-sampling sizes on every call (an O(n log n) scan, acceptable since n is
// the worker count).
type AdaptiveVictimPolicy struct{}

func NewAdaptiveVictimPolicy() *AdaptiveVictimPolicy { return &AdaptiveVictimPolicy{} }

func (p *AdaptiveVictimPolicy) Name() string { return "adaptive" }

func (p *AdaptiveVictimPolicy) SelectVictims(thiefID int, deques []*deque.Deque) []int {
	type cand struct {
		id   int
		size int
	}
	cands := make([]cand, 0, len(deques))
	for i, d := range deques {
		if i == thiefID {
			continue
		}
		cands = append(cands, cand{id: i, size: d.Size()})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].size > cands[j].size })
	order := make([]int, len(cands))
	for i, c := range cands {
		order[i] = c.id
	}
	return order
}

// NumaAwareVictimPolicy prefers same-NUMA-node victims (ranked by deque
// size within the node) before falling back to the rest of the machine,
// grounded on original_source's numa_work_stealer.cpp node-local-first
// ordering.
type NumaAwareVictimPolicy struct {
	topo *NumaTopology
}

func NewNumaAwareVictimPolicy(topo *NumaTopology) *NumaAwareVictimPolicy {
	return &NumaAwareVictimPolicy{topo: topo}
}

func (p *NumaAwareVictimPolicy) Name() string { return "numa_aware" }

func (p *NumaAwareVictimPolicy) SelectVictims(thiefID int, deques []*deque.Deque) []int {
	local := make([]int, 0, len(deques))
	remote := make([]int, 0, len(deques))
	for i := range deques {
		if i == thiefID {
			continue
		}
		if p.topo.SameNode(thiefID, i) {
			local = append(local, i)
		} else {
			remote = append(remote, i)
		}
	}
	sortBySize(local, deques)
	sortBySize(remote, deques)
	return append(local, remote...)
}

func sortBySize(ids []int, deques []*deque.Deque) {
	sort.Slice(ids, func(i, j int) bool { return deques[ids[i]].Size() > deques[ids[j]].Size() })
}

// LocalityAwareVictimPolicy prefers the victims a thief has most recently
// stolen from successfully (temporal/spatial locality of the work itself),
// falling back to the rest in size order.
type LocalityAwareVictimPolicy struct {
	affinity *AffinityTracker
}

func NewLocalityAwareVictimPolicy(affinity *AffinityTracker) *LocalityAwareVictimPolicy {
	return &LocalityAwareVictimPolicy{affinity: affinity}
}

func (p *LocalityAwareVictimPolicy) Name() string { return "locality_aware" }

func (p *LocalityAwareVictimPolicy) SelectVictims(thiefID int, deques []*deque.Deque) []int {
	n := len(deques)
	type cand struct {
		id    int
		score float64
	}
	cands := make([]cand, 0, n)
	for i := range deques {
		if i == thiefID {
			continue
		}
		cands = append(cands, cand{id: i, score: p.affinity.Score(thiefID, i)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	order := make([]int, len(cands))
	for i, c := range cands {
		order[i] = c.id
	}
	return order
}

// HierarchicalVictimPolicy composes NUMA-awareness with a locality-scored
// ranking within each tier: same-node victims ranked by affinity, then
// cross-node victims ranked by affinity.
type HierarchicalVictimPolicy struct {
	topo     *NumaTopology
	affinity *AffinityTracker
}

func NewHierarchicalVictimPolicy(topo *NumaTopology, affinity *AffinityTracker) *HierarchicalVictimPolicy {
	return &HierarchicalVictimPolicy{topo: topo, affinity: affinity}
}

func (p *HierarchicalVictimPolicy) Name() string { return "hierarchical" }

func (p *HierarchicalVictimPolicy) SelectVictims(thiefID int, deques []*deque.Deque) []int {
	var local, remote []int
	for i := range deques {
		if i == thiefID {
			continue
		}
		if p.topo.SameNode(thiefID, i) {
			local = append(local, i)
		} else {
			remote = append(remote, i)
		}
	}
	byAffinity := func(ids []int) {
		sort.Slice(ids, func(i, j int) bool {
			return p.affinity.Score(thiefID, ids[i]) > p.affinity.Score(thiefID, ids[j])
		})
	}
	byAffinity(local)
	byAffinity(remote)
	return append(local, remote...)
}
