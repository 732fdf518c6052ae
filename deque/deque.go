// Package deque implements the Chase-Lev work-stealing deque: a per-worker
// double-ended queue with an owner-only bottom (push/pop, LIFO) and a shared
// top (steal, FIFO), per spec §4.2.3.
package deque

import (
	"sync/atomic"

	"github.com/go-foundations/scheduler/hazard"
	"github.com/go-foundations/scheduler/job"
)

type buffer struct {
	mask  int64 // len-1, len is always a power of two
	slots []atomic.Pointer[job.Job]
}

func newBuffer(size int64) *buffer {
	return &buffer{mask: size - 1, slots: make([]atomic.Pointer[job.Job], size)}
}

func (b *buffer) get(i int64) *job.Job     { return b.slots[i&b.mask].Load() }
func (b *buffer) put(i int64, j *job.Job)  { b.slots[i&b.mask].Store(j) }
func (b *buffer) size() int64              { return b.mask + 1 }

// Deque is a single owner's Chase-Lev work-stealing deque. The owner calls
// Push/Pop; any other goroutine may call Steal concurrently.
type Deque struct {
	top    atomic.Int64
	bottom atomic.Int64
	buf    atomic.Pointer[buffer]
	domain *hazard.Domain
}

// New creates a Deque with the given (power-of-two-rounded) initial
// capacity.
func New(initialCapacity int) *Deque {
	size := int64(64)
	for size < int64(initialCapacity) {
		size <<= 1
	}
	d := &Deque{domain: hazard.NewDomain()}
	d.buf.Store(newBuffer(size))
	return d
}

// Push adds j to the bottom of the deque. Owner-only.
func (d *Deque) Push(j *job.Job) {
	b := d.bottom.Load()
	t := d.top.Load()
	buf := d.buf.Load()

	if b-t >= buf.size()-1 {
		buf = d.grow(buf, b, t)
	}

	buf.put(b, j)
	d.bottom.Store(b + 1)
}

// grow doubles the buffer, copies the live range [t, b), retires the old
// buffer through the hazard domain, and returns the new buffer.
func (d *Deque) grow(old *buffer, b, t int64) *buffer {
	next := newBuffer(old.size() * 2)
	for i := t; i < b; i++ {
		next.put(i, old.get(i))
	}
	d.buf.Store(next)

	h := d.domain.Acquire()
	h.Retire(old, func() {})
	h.Release()

	return next
}

// Pop removes and returns the bottom element (owner-only, LIFO). Returns
// false if the deque is empty, racing a concurrent Steal of the last
// element via a single CAS on top.
func (d *Deque) Pop() (*job.Job, bool) {
	b := d.bottom.Load() - 1
	d.bottom.Store(b)

	t := d.top.Load()

	if t > b {
		d.bottom.Store(t)
		return nil, false
	}

	buf := d.buf.Load()
	j := buf.get(b)

	if t == b {
		if !d.top.CompareAndSwap(t, t+1) {
			// A thief won the race for the last element.
			j = nil
		}
		d.bottom.Store(t + 1)
		if j == nil {
			return nil, false
		}
		return j, true
	}

	return j, true
}

// Steal removes and returns the top element (thief-side, FIFO). Returns
// false if the deque appears empty or a concurrent Pop/Steal won the race.
func (d *Deque) Steal() (*job.Job, bool) {
	t := d.top.Load()
	b := d.bottom.Load()

	if t >= b {
		return nil, false
	}

	h := d.domain.Acquire()
	defer h.Release()

	buf := d.buf.Load()
	h.Protect(buf)
	if buf != d.buf.Load() {
		return nil, false
	}

	j := buf.get(t)
	if !d.top.CompareAndSwap(t, t+1) {
		return nil, false
	}
	return j, true
}

// Size returns an approximate element count (bottom-top; racy under
// concurrent Steal, exact from the owner's perspective between calls).
func (d *Deque) Size() int {
	b := d.bottom.Load()
	t := d.top.Load()
	if b < t {
		return 0
	}
	return int(b - t)
}

// IsEmpty reports whether the deque currently appears empty.
func (d *Deque) IsEmpty() bool { return d.Size() == 0 }
