package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketStartsFull(t *testing.T) {
	tb := NewTokenBucket(10, 5)
	assert.Equal(t, uint64(5), tb.AvailableTokens())
}

func TestTokenBucketTryAcquireDrainsTokens(t *testing.T) {
	tb := NewTokenBucket(10, 5)
	for i := 0; i < 5; i++ {
		require.True(t, tb.TryAcquire(1))
	}
	assert.False(t, tb.TryAcquire(1))
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	tb := NewTokenBucket(1000, 5)
	for i := 0; i < 5; i++ {
		require.True(t, tb.TryAcquire(1))
	}
	require.False(t, tb.TryAcquire(1))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, tb.TryAcquire(1))
}

func TestTokenBucketTryAcquireForSucceedsWithinTimeout(t *testing.T) {
	tb := NewTokenBucket(1000, 1)
	require.True(t, tb.TryAcquire(1))
	assert.True(t, tb.TryAcquireFor(1, 50*time.Millisecond))
}

func TestTokenBucketTryAcquireForTimesOut(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.TryAcquire(1))
	assert.False(t, tb.TryAcquireFor(1, 5*time.Millisecond))
}

func TestTokenBucketSetBurstSizeCapsCurrent(t *testing.T) {
	tb := NewTokenBucket(10, 10)
	tb.SetBurstSize(2)
	assert.Equal(t, uint64(2), tb.AvailableTokens())
}

func TestTokenBucketResetRefillsToMax(t *testing.T) {
	tb := NewTokenBucket(10, 5)
	require.True(t, tb.TryAcquire(5))
	tb.Reset()
	assert.Equal(t, uint64(5), tb.AvailableTokens())
}

func TestTokenBucketTimeUntilAvailable(t *testing.T) {
	tb := NewTokenBucket(1000, 1)
	require.True(t, tb.TryAcquire(1))
	d := tb.TimeUntilAvailable(1)
	assert.Greater(t, d, time.Duration(0))
}
