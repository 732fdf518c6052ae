// Package metrics implements the latency histogram, sliding-window
// throughput counter, and enhanced aggregate metrics described in spec
// §4.8, grounded on original_source/src/metrics/latency_histogram.cpp and
// enhanced_metrics.cpp, with Prometheus/JSON exporters grounded on
// therealutkarshpriyadarshi-log/internal/metrics/metrics.go.
package metrics

import (
	"math"
	"math/bits"
	"sync/atomic"
)

// bucketCount is the number of power-of-two latency buckets: bucket 0 holds
// exactly value==0, bucket i (1..62) holds [2^(i-1), 2^i), and the last
// bucket (63) holds every value from 2^62 upward.
const bucketCount = 64

// Histogram is a lock-free, fixed-size logarithmic-bucket latency
// histogram: O(1) record, O(bucketCount) percentile.
type Histogram struct {
	buckets    [bucketCount]atomic.Uint64
	totalCount atomic.Uint64
	totalSum   atomic.Uint64
	minValue   atomic.Uint64
	maxValue   atomic.Uint64
}

// NewHistogram returns an empty Histogram.
func NewHistogram() *Histogram {
	h := &Histogram{}
	h.minValue.Store(math.MaxUint64)
	return h
}

// RecordNanos records a single observation in nanoseconds.
func (h *Histogram) RecordNanos(ns uint64) {
	idx := computeBucketIndex(ns)
	h.buckets[idx].Add(1)
	h.totalCount.Add(1)
	h.totalSum.Add(ns)

	for {
		cur := h.minValue.Load()
		if ns >= cur {
			break
		}
		if h.minValue.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := h.maxValue.Load()
		if ns <= cur {
			break
		}
		if h.maxValue.CompareAndSwap(cur, ns) {
			break
		}
	}
}

// Percentile returns the interpolated value at percentile p (0..1).
func (h *Histogram) Percentile(p float64) float64 {
	total := h.totalCount.Load()
	if total == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	target := uint64(math.Ceil(p * float64(total)))

	var cumulative uint64
	for i := 0; i < bucketCount; i++ {
		bucketVal := h.buckets[i].Load()
		cumulative += bucketVal
		if cumulative >= target {
			if bucketVal == 0 {
				return bucketMidpoint(i)
			}
			prevCumulative := cumulative - bucketVal
			targetInBucket := target - prevCumulative
			fraction := float64(targetInBucket) / float64(bucketVal)

			lower := float64(bucketLowerBound(i))
			upper := bucketUpperBoundF(i)
			return lower + fraction*(upper-lower)
		}
	}
	return bucketUpperBoundF(bucketCount - 1)
}

// Mean returns the arithmetic mean of every recorded value.
func (h *Histogram) Mean() float64 {
	total := h.totalCount.Load()
	if total == 0 {
		return 0
	}
	return float64(h.totalSum.Load()) / float64(total)
}

// StdDev estimates the standard deviation from bucket midpoints.
func (h *Histogram) StdDev() float64 {
	total := h.totalCount.Load()
	if total < 2 {
		return 0
	}
	mean := h.Mean()
	var sumSq float64
	for i := 0; i < bucketCount; i++ {
		c := h.buckets[i].Load()
		if c == 0 {
			continue
		}
		diff := bucketMidpoint(i) - mean
		sumSq += float64(c) * diff * diff
	}
	return math.Sqrt(sumSq / float64(total-1))
}

// Min returns the smallest recorded value, 0 if empty.
func (h *Histogram) Min() uint64 {
	if h.totalCount.Load() == 0 {
		return 0
	}
	return h.minValue.Load()
}

// Max returns the largest recorded value, 0 if empty.
func (h *Histogram) Max() uint64 {
	if h.totalCount.Load() == 0 {
		return 0
	}
	return h.maxValue.Load()
}

// Count returns the total number of recorded observations.
func (h *Histogram) Count() uint64 { return h.totalCount.Load() }

// Sum returns the sum of every recorded value.
func (h *Histogram) Sum() uint64 { return h.totalSum.Load() }

// Empty reports whether no observation has been recorded.
func (h *Histogram) Empty() bool { return h.totalCount.Load() == 0 }

// Reset zeroes every counter.
func (h *Histogram) Reset() {
	for i := range h.buckets {
		h.buckets[i].Store(0)
	}
	h.totalCount.Store(0)
	h.totalSum.Store(0)
	h.minValue.Store(math.MaxUint64)
	h.maxValue.Store(0)
}

// Merge folds other's counters into h.
func (h *Histogram) Merge(other *Histogram) {
	for i := range h.buckets {
		h.buckets[i].Add(other.buckets[i].Load())
	}
	h.totalCount.Add(other.totalCount.Load())
	h.totalSum.Add(other.totalSum.Load())

	otherMin := other.minValue.Load()
	for {
		cur := h.minValue.Load()
		if otherMin >= cur {
			break
		}
		if h.minValue.CompareAndSwap(cur, otherMin) {
			break
		}
	}
	otherMax := other.maxValue.Load()
	for {
		cur := h.maxValue.Load()
		if otherMax <= cur {
			break
		}
		if h.maxValue.CompareAndSwap(cur, otherMax) {
			break
		}
	}
}

// BucketCount returns the raw count in one bucket, 0 if out of range.
func (h *Histogram) BucketCount(i int) uint64 {
	if i < 0 || i >= bucketCount {
		return 0
	}
	return h.buckets[i].Load()
}

func bucketLowerBound(i int) uint64 {
	if i == 0 {
		return 0
	}
	if i >= bucketCount {
		return math.MaxUint64
	}
	return uint64(1) << uint(i-1)
}

func bucketUpperBoundF(i int) float64 {
	if i >= bucketCount-1 {
		return float64(math.MaxUint64)
	}
	return float64(uint64(1) << uint(i))
}

func bucketMidpoint(i int) float64 {
	lower := float64(bucketLowerBound(i))
	upper := bucketUpperBoundF(i)
	if upper == float64(math.MaxUint64) {
		return lower
	}
	return (lower + upper) / 2.0
}

// computeBucketIndex maps a nanosecond value to its power-of-two bucket via
// the position of its highest set bit.
func computeBucketIndex(value uint64) int {
	if value == 0 {
		return 0
	}
	highestBit := 63 - bits.LeadingZeros64(value)
	idx := highestBit + 1
	if idx > bucketCount-1 {
		idx = bucketCount - 1
	}
	return idx
}
