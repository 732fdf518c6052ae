package resilience

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterAdapter wraps golang.org/x/time/rate.Limiter behind the same
// Acquire-style surface as TokenBucket, for callers that want the standard
// library-grade limiter's token-interval math (fractional tokens-per-second,
// burst smoothing) instead of TokenBucket's lock-free CAS refill.
//
// TokenBucket stays the default: it exposes AvailableTokens and
// TimeUntilAvailable for diagnostics, and never blocks a caller behind a
// mutex. RateLimiterAdapter is for the cases that want rate.Limiter's
// battle-tested reservation math directly.
type RateLimiterAdapter struct {
	limiter *rate.Limiter
}

// NewTokenBucketFromRate builds a RateLimiterAdapter at the given
// tokens-per-second rate and burst size, using x/time/rate internally.
func NewTokenBucketFromRate(tokensPerSecond float64, burstSize int) *RateLimiterAdapter {
	return &RateLimiterAdapter{
		limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), burstSize),
	}
}

// TryAcquire reports whether n tokens are available right now, consuming
// them if so.
func (a *RateLimiterAdapter) TryAcquire(n int) bool {
	return a.limiter.AllowN(time.Now(), n)
}

// TryAcquireFor blocks up to timeout waiting for n tokens to become
// available, reporting whether they were acquired.
func (a *RateLimiterAdapter) TryAcquireFor(n int, timeout time.Duration) bool {
	reservation := a.limiter.ReserveN(time.Now(), n)
	if !reservation.OK() {
		return false
	}
	delay := reservation.Delay()
	if delay > timeout {
		reservation.Cancel()
		return false
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return true
}

// SetRate updates the refill rate.
func (a *RateLimiterAdapter) SetRate(tokensPerSecond float64) {
	a.limiter.SetLimit(rate.Limit(tokensPerSecond))
}

// SetBurstSize updates the maximum burst capacity.
func (a *RateLimiterAdapter) SetBurstSize(burstSize int) {
	a.limiter.SetBurst(burstSize)
}
