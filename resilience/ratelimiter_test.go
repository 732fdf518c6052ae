package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAdapterStartsWithFullBurst(t *testing.T) {
	a := NewTokenBucketFromRate(10, 5)
	for i := 0; i < 5; i++ {
		require.True(t, a.TryAcquire(1))
	}
	assert.False(t, a.TryAcquire(1))
}

func TestRateLimiterAdapterTryAcquireForSucceedsWithinTimeout(t *testing.T) {
	a := NewTokenBucketFromRate(1000, 1)
	require.True(t, a.TryAcquire(1))
	assert.True(t, a.TryAcquireFor(1, 50*time.Millisecond))
}

func TestRateLimiterAdapterTryAcquireForTimesOut(t *testing.T) {
	a := NewTokenBucketFromRate(1, 1)
	require.True(t, a.TryAcquire(1))
	assert.False(t, a.TryAcquireFor(1, 5*time.Millisecond))
}

func TestRateLimiterAdapterSetRateAndBurst(t *testing.T) {
	a := NewTokenBucketFromRate(10, 1)
	a.SetBurstSize(3)
	a.SetRate(5)
	require.True(t, a.TryAcquire(1))
}
