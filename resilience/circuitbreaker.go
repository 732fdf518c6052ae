// Package resilience implements the circuit breaker and token-bucket rate
// limiter used to protect downstream resources from an overloaded pool,
// per spec §4.6. The circuit breaker is grounded on
// therealutkarshpriyadarshi-log/internal/reliability/circuitbreaker.go's
// generation-based state machine and original_source's
// src/resilience/circuit_breaker.cpp ring-buffer failure window and guard
// API; TokenBucket is grounded on original_source/src/core/token_bucket.cpp.
package resilience

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is a circuit breaker's lifecycle stage.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return "half_open"
	}
}

// Config parameterizes a CircuitBreaker.
type Config struct {
	FailureThreshold         int64 // consecutive failures that trip the breaker
	FailureRateThreshold     float64
	WindowSize               int
	MinimumRequests          int64
	OpenDuration             time.Duration
	HalfOpenMaxRequests      int64
	HalfOpenSuccessThreshold int64
	FailurePredicate         func(error) bool
	StateChangeCallback      func(from, to State)
}

// DefaultConfig mirrors the original's defaults: five consecutive failures
// or a 50% failure rate over 20 requests trips the breaker for 30s.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:         5,
		FailureRateThreshold:     0.5,
		WindowSize:               20,
		MinimumRequests:          10,
		OpenDuration:             30 * time.Second,
		HalfOpenMaxRequests:      1,
		HalfOpenSuccessThreshold: 1,
	}
}

// Stats is a point-in-time read of a CircuitBreaker's counters.
type Stats struct {
	State               State
	StateSince           time.Time
	TotalRequests        int64
	SuccessfulRequests   int64
	FailedRequests       int64
	RejectedRequests     int64
	FailureRate          float64
	ConsecutiveFailures  int64
	StateTransitions     int64
}

// failureWindow is a fixed-size ring buffer of pass/fail outcomes used to
// compute a sliding failure rate.
type failureWindow struct {
	mu       sync.Mutex
	outcomes []bool
	filled   []bool
	pos      int
	failures int
	total    int
}

func newFailureWindow(size int) *failureWindow {
	if size < 1 {
		size = 1
	}
	return &failureWindow{outcomes: make([]bool, size), filled: make([]bool, size)}
}

func (w *failureWindow) record(failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.filled[w.pos] {
		if w.outcomes[w.pos] {
			w.failures--
		}
		w.total--
	}
	w.outcomes[w.pos] = failed
	w.filled[w.pos] = true
	if failed {
		w.failures++
	}
	w.total++
	w.pos = (w.pos + 1) % len(w.outcomes)
}

func (w *failureWindow) failureRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.total == 0 {
		return 0
	}
	return float64(w.failures) / float64(w.total)
}

func (w *failureWindow) totalRequests() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(w.total)
}

func (w *failureWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.outcomes {
		w.filled[i] = false
		w.outcomes[i] = false
	}
	w.pos, w.failures, w.total = 0, 0, 0
}

// CircuitBreaker protects a resource from cascading failure: once the
// failure rate or consecutive-failure count crosses its threshold it opens
// and rejects requests until a cooldown elapses, then probes with a
// half-open trial before fully closing again.
type CircuitBreaker struct {
	config Config
	window *failureWindow

	stateMu         sync.Mutex
	state           atomic.Int32
	stateChangeTime time.Time
	openTime        time.Time

	totalRequests       atomic.Int64
	successfulRequests  atomic.Int64
	failedRequests      atomic.Int64
	rejectedRequests    atomic.Int64
	consecutiveFailures atomic.Int64
	stateTransitions    atomic.Int64

	halfOpenRequests atomic.Int64
	halfOpenSuccesses atomic.Int64
}

// New creates a CircuitBreaker in the Closed state.
func New(config Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		config:          config,
		window:          newFailureWindow(config.WindowSize),
		stateChangeTime: time.Now(),
	}
	return cb
}

// AllowRequest reports whether a caller may proceed, transitioning
// Open->HalfOpen when the cooldown has elapsed.
func (cb *CircuitBreaker) AllowRequest() bool {
	switch State(cb.state.Load()) {
	case Closed:
		cb.totalRequests.Add(1)
		return true

	case Open:
		if cb.shouldTransitionToHalfOpen() {
			cb.stateMu.Lock()
			defer cb.stateMu.Unlock()
			if State(cb.state.Load()) == Open {
				cb.transitionTo(HalfOpen)
				cb.halfOpenRequests.Store(1)
				cb.totalRequests.Add(1)
				return true
			}
		}
		cb.rejectedRequests.Add(1)
		return false

	case HalfOpen:
		requests := cb.halfOpenRequests.Add(1)
		if requests <= cb.config.HalfOpenMaxRequests {
			cb.totalRequests.Add(1)
			return true
		}
		cb.halfOpenRequests.Add(-1)
		cb.rejectedRequests.Add(1)
		return false

	default:
		cb.rejectedRequests.Add(1)
		return false
	}
}

// RecordSuccess marks the most recent allowed request as successful.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.window.record(false)
	cb.successfulRequests.Add(1)
	cb.consecutiveFailures.Store(0)

	if State(cb.state.Load()) == HalfOpen {
		successes := cb.halfOpenSuccesses.Add(1)
		if successes >= cb.config.HalfOpenSuccessThreshold {
			cb.stateMu.Lock()
			if State(cb.state.Load()) == HalfOpen {
				cb.transitionTo(Closed)
			}
			cb.stateMu.Unlock()
		}
	}
}

// RecordFailure marks the most recent allowed request as failed. err may be
// nil; when non-nil and a FailurePredicate is configured, failures the
// predicate rejects are not counted.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if cb.config.FailurePredicate != nil && err != nil && !cb.config.FailurePredicate(err) {
		return
	}

	cb.window.record(true)
	cb.failedRequests.Add(1)
	failures := cb.consecutiveFailures.Add(1)

	switch State(cb.state.Load()) {
	case Closed:
		if failures >= cb.config.FailureThreshold || cb.shouldTransitionToOpen() {
			cb.stateMu.Lock()
			if State(cb.state.Load()) == Closed {
				cb.transitionTo(Open)
			}
			cb.stateMu.Unlock()
		}
	case HalfOpen:
		cb.stateMu.Lock()
		if State(cb.state.Load()) == HalfOpen {
			cb.transitionTo(Open)
		}
		cb.stateMu.Unlock()
	}
}

// State returns the breaker's current lifecycle stage.
func (cb *CircuitBreaker) State() State { return State(cb.state.Load()) }

// Trip forces the breaker open regardless of current counters.
func (cb *CircuitBreaker) Trip() {
	cb.stateMu.Lock()
	defer cb.stateMu.Unlock()
	if State(cb.state.Load()) != Open {
		cb.transitionTo(Open)
	}
}

// Reset forces the breaker closed and clears every counter.
func (cb *CircuitBreaker) Reset() {
	cb.stateMu.Lock()
	defer cb.stateMu.Unlock()
	cb.transitionTo(Closed)
	cb.window.reset()
	cb.consecutiveFailures.Store(0)
	cb.halfOpenRequests.Store(0)
	cb.halfOpenSuccesses.Store(0)
}

// Stats returns a point-in-time snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() Stats {
	return Stats{
		State:               State(cb.state.Load()),
		StateSince:          cb.stateChangeTime,
		TotalRequests:       cb.totalRequests.Load(),
		SuccessfulRequests:  cb.successfulRequests.Load(),
		FailedRequests:      cb.failedRequests.Load(),
		RejectedRequests:    cb.rejectedRequests.Load(),
		FailureRate:         cb.window.failureRate(),
		ConsecutiveFailures: cb.consecutiveFailures.Load(),
		StateTransitions:    cb.stateTransitions.Load(),
	}
}

// transitionTo must be called with stateMu held.
func (cb *CircuitBreaker) transitionTo(newState State) {
	oldState := State(cb.state.Load())
	if oldState == newState {
		return
	}

	cb.state.Store(int32(newState))
	cb.stateChangeTime = time.Now()
	cb.stateTransitions.Add(1)

	switch newState {
	case Open:
		cb.openTime = cb.stateChangeTime
	case HalfOpen:
		cb.halfOpenRequests.Store(0)
		cb.halfOpenSuccesses.Store(0)
	case Closed:
		cb.consecutiveFailures.Store(0)
	}

	if cb.config.StateChangeCallback != nil {
		cb.config.StateChangeCallback(oldState, newState)
	}
}

func (cb *CircuitBreaker) shouldTransitionToOpen() bool {
	if cb.window.totalRequests() < cb.config.MinimumRequests {
		return false
	}
	return cb.window.failureRate() >= cb.config.FailureRateThreshold
}

func (cb *CircuitBreaker) shouldTransitionToHalfOpen() bool {
	return time.Since(cb.openTime) >= cb.config.OpenDuration
}

// Guard is a call-scoped handle returned by NewGuard: call MarkSuccess or
// MarkFailure once the guarded call completes, then Close (typically via
// defer) to record an implicit failure if neither was called.
type Guard struct {
	cb       *CircuitBreaker
	allowed  bool
	recorded bool
}

// NewGuard evaluates AllowRequest and returns a Guard wrapping the
// decision.
func (cb *CircuitBreaker) NewGuard() *Guard {
	return &Guard{cb: cb, allowed: cb.AllowRequest()}
}

// IsAllowed reports whether the guarded call may proceed.
func (g *Guard) IsAllowed() bool { return g.allowed }

// MarkSuccess records the guarded call as successful. A no-op if the call
// was not allowed or has already been marked.
func (g *Guard) MarkSuccess() {
	if g.cb != nil && g.allowed && !g.recorded {
		g.cb.RecordSuccess()
		g.recorded = true
	}
}

// MarkFailure records the guarded call as failed with err (nil allowed).
func (g *Guard) MarkFailure(err error) {
	if g.cb != nil && g.allowed && !g.recorded {
		g.cb.RecordFailure(err)
		g.recorded = true
	}
}

// Close, deferred by the caller, records an implicit failure if the guarded
// call never explicitly marked success or failure — mirroring the
// destructor behavior of the original's guard type.
func (g *Guard) Close() {
	if g.cb != nil && g.allowed && !g.recorded {
		g.cb.RecordFailure(nil)
		g.recorded = true
	}
}
