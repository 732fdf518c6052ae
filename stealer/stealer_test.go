package stealer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-foundations/scheduler/deque"
	"github.com/go-foundations/scheduler/job"
)

func makeDeques(n int) []*deque.Deque {
	out := make([]*deque.Deque, n)
	for i := range out {
		out[i] = deque.New(8)
	}
	return out
}

func TestStealerStealsFromRichestVictim(t *testing.T) {
	deques := makeDeques(3)
	for i := 0; i < 5; i++ {
		deques[1].Push(job.New("j", "j", func() error { return nil }))
	}

	s := New(deques, NewAdaptiveVictimPolicy(), DefaultBackoffConfig(), DefaultBatchConfig())
	j, ok := s.StealFor(0)
	require.True(t, ok)
	assert.NotNil(t, j)
	assert.Equal(t, int64(1), s.Stats().Successes.Load())
}

func TestStealerNoVictimsReturnsFalse(t *testing.T) {
	deques := makeDeques(3)
	s := New(deques, NewRandomVictimPolicy(), DefaultBackoffConfig(), DefaultBatchConfig())
	_, ok := s.StealFor(0)
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Stats().Failures.Load())
}

func TestStealerNeverTargetsSelf(t *testing.T) {
	deques := makeDeques(2)
	policy := NewRoundRobinVictimPolicy(2)
	for i := 0; i < 10; i++ {
		victims := policy.SelectVictims(0, deques)
		for _, v := range victims {
			assert.NotEqual(t, 0, v)
		}
	}
}

func TestNumaAwareVictimPolicyPrefersSameNode(t *testing.T) {
	deques := makeDeques(4)
	for i := 0; i < 3; i++ {
		deques[2].Push(job.New("j", "j", func() error { return nil }))
		deques[3].Push(job.New("j", "j", func() error { return nil }))
	}
	topo := NewNumaTopology([]int{0, 0, 1, 1})
	policy := NewNumaAwareVictimPolicy(topo)

	victims := policy.SelectVictims(1, deques)
	require.NotEmpty(t, victims)
	assert.Equal(t, 0, victims[0])
}

func TestAffinityTrackerBoostsAfterSuccess(t *testing.T) {
	a := NewAffinityTracker(4)
	assert.Equal(t, float64(0), a.Score(0, 1))
	a.RecordSuccess(0, 1)
	assert.Greater(t, a.Score(0, 1), 0.0)
}

func TestBatchStealRespectsMax(t *testing.T) {
	deques := makeDeques(2)
	for i := 0; i < 20; i++ {
		deques[1].Push(job.New("j", "j", func() error { return nil }))
	}
	s := New(deques, NewAdaptiveVictimPolicy(), DefaultBackoffConfig(), BatchConfig{MinBatch: 1, MaxBatch: 4})
	jobs, ok := s.StealBatchFor(0, 4)
	require.True(t, ok)
	assert.LessOrEqual(t, len(jobs), 4)
	assert.Equal(t, int64(1), s.Stats().BatchSteals.Load())
}
