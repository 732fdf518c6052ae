package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := New(DefaultConfig())
	assert.Equal(t, Closed, cb.State())
	assert.True(t, cb.AllowRequest())
}

func TestCircuitBreakerTripsOnConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 3
	cb := New(cfg)

	for i := 0; i < 3; i++ {
		require.True(t, cb.AllowRequest())
		cb.RecordFailure(errors.New("boom"))
	}

	assert.Equal(t, Open, cb.State())
	assert.False(t, cb.AllowRequest())
}

func TestCircuitBreakerHalfOpenAfterCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.OpenDuration = 10 * time.Millisecond
	cfg.HalfOpenMaxRequests = 1
	cfg.HalfOpenSuccessThreshold = 1
	cb := New(cfg)

	cb.AllowRequest()
	cb.RecordFailure(errors.New("boom"))
	assert.Equal(t, Open, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.AllowRequest())
	assert.Equal(t, HalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.OpenDuration = 10 * time.Millisecond
	cb := New(cfg)

	cb.AllowRequest()
	cb.RecordFailure(errors.New("boom"))
	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.AllowRequest())
	require.Equal(t, HalfOpen, cb.State())

	cb.RecordFailure(errors.New("still broken"))
	assert.Equal(t, Open, cb.State())
}

func TestCircuitBreakerFailurePredicateFiltersErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	ignorable := errors.New("ignore me")
	cfg.FailurePredicate = func(err error) bool { return !errors.Is(err, ignorable) }
	cb := New(cfg)

	cb.AllowRequest()
	cb.RecordFailure(ignorable)
	assert.Equal(t, Closed, cb.State())
}

func TestGuardRecordsImplicitFailureOnClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cb := New(cfg)

	func() {
		g := cb.NewGuard()
		defer g.Close()
		require.True(t, g.IsAllowed())
	}()

	assert.Equal(t, Open, cb.State())
}

func TestGuardMarkSuccessPreventsImplicitFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cb := New(cfg)

	func() {
		g := cb.NewGuard()
		defer g.Close()
		g.MarkSuccess()
	}()

	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreakerResetClearsState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cb := New(cfg)
	cb.AllowRequest()
	cb.RecordFailure(errors.New("boom"))
	require.Equal(t, Open, cb.State())

	cb.Reset()
	assert.Equal(t, Closed, cb.State())
	assert.Equal(t, int64(0), cb.Stats().ConsecutiveFailures)
}
