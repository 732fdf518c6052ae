package metrics

import (
	"sync"
	"time"
)

// SlidingWindowCounter tracks a throughput rate over a trailing window by
// bucketing increments into one-second slots and discarding slots older
// than the window.
type SlidingWindowCounter struct {
	mu         sync.Mutex
	window     time.Duration
	buckets    map[int64]uint64 // unix-second -> count
}

// NewSlidingWindowCounter creates a counter over the given trailing window.
func NewSlidingWindowCounter(window time.Duration) *SlidingWindowCounter {
	return &SlidingWindowCounter{window: window, buckets: make(map[int64]uint64)}
}

// Increment records one event at the current time.
func (c *SlidingWindowCounter) Increment() {
	c.IncrementBy(1)
}

// IncrementBy records n events at the current time.
func (c *SlidingWindowCounter) IncrementBy(n uint64) {
	now := time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[now] += n
	c.evictLocked(now)
}

// RatePerSecond returns the average events-per-second over the trailing
// window.
func (c *SlidingWindowCounter) RatePerSecond() float64 {
	now := time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(now)

	var total uint64
	for _, v := range c.buckets {
		total += v
	}
	seconds := c.window.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(total) / seconds
}

// Reset clears every bucket.
func (c *SlidingWindowCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets = make(map[int64]uint64)
}

func (c *SlidingWindowCounter) evictLocked(now int64) {
	cutoff := now - int64(c.window.Seconds())
	for ts := range c.buckets {
		if ts < cutoff {
			delete(c.buckets, ts)
		}
	}
}
