// Package token implements the cooperative cancellation token shared by
// jobs, workers and pools.
package token

import "sync"

// Token is a shared cancellation flag with registered callbacks. The zero
// value is not usable; construct with New.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	callbacks []func()
	drained   bool
	parent    *Token
	children  []*Token
}

// New returns a fresh, non-cancelled token.
func New() *Token {
	return &Token{}
}

// Child returns a new token linked to t: cancelling t (or any ancestor)
// cancels the child too.
func (t *Token) Child() *Token {
	c := New()
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		c.Cancel()
		return c
	}
	c.parent = t
	t.children = append(t.children, c)
	t.mu.Unlock()
	return c
}

// IsCancelled reports whether Cancel has been called on this token or any
// ancestor.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Cancel transitions the token to cancelled exactly once, invoking every
// currently registered callback in registration order, then propagating to
// children. Subsequent calls are no-ops.
func (t *Token) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	callbacks := t.callbacks
	t.callbacks = nil
	t.drained = true
	children := t.children
	t.children = nil
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	for _, c := range children {
		c.Cancel()
	}
}

// RegisterCallback adds f to the list of callbacks invoked on Cancel. If the
// token is already cancelled, f runs immediately (synchronously, before
// RegisterCallback returns).
func (t *Token) RegisterCallback(f func()) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		f()
		return
	}
	t.callbacks = append(t.callbacks, f)
	t.mu.Unlock()
}
