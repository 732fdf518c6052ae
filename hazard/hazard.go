// Package hazard implements a bounded hazard-pointer domain used by the
// lock-free MPMC queue and the Chase-Lev work-stealing deque to reclaim
// shared nodes/arrays without a garbage collector assist, a reference count,
// or epoch-based reclamation.
//
// A hazard pointer is a single-slot, per-thread publication of "I am
// currently dereferencing this address". A retired pointer is only freed
// once a scan confirms no slot in the domain still protects it.
package hazard

import (
	"sync"
	"sync/atomic"
)

// scanThreshold bounds how many retired pointers a single goroutine's
// local list accumulates before it triggers a domain-wide scan.
const scanThreshold = 64

// record is one goroutine's hazard-pointer slot plus its private retired
// list. Records are never removed once allocated; a goroutine that exits
// simply stops using its record (bounded registry: one per goroutine that
// ever touched the domain in its lifetime, reused via sync.Pool semantics
// is deliberately avoided — see Domain.Acquire).
type record struct {
	protected atomic.Pointer[any]
	next      *record
	inUse     atomic.Bool

	mu       sync.Mutex
	retired  []retiredEntry
}

type retiredEntry struct {
	ptr    unsafeAny
	reclaim func()
}

// unsafeAny avoids importing unsafe: we only need an opaque comparable
// handle for "is this address still protected", which the caller supplies
// as the same *T it published.
type unsafeAny = any

// Domain is a registry of hazard-pointer records shared by every goroutine
// that reads from a given lock-free structure.
type Domain struct {
	head atomic.Pointer[record]
}

// NewDomain creates an empty hazard-pointer domain.
func NewDomain() *Domain {
	return &Domain{}
}

// Handle is a goroutine-local handle into a Domain, acquired once and reused
// across many Protect/Clear/Retire calls from the same goroutine.
type Handle struct {
	domain *Domain
	rec    *record
}

// Acquire returns a Handle for the calling goroutine, reusing a free record
// from the domain's list if one exists, or allocating a new one.
func (d *Domain) Acquire() *Handle {
	for r := d.head.Load(); r != nil; r = r.next {
		if r.inUse.CompareAndSwap(false, true) {
			return &Handle{domain: d, rec: r}
		}
	}

	r := &record{}
	r.inUse.Store(true)
	for {
		head := d.head.Load()
		r.next = head
		if d.head.CompareAndSwap(head, r) {
			break
		}
	}
	return &Handle{domain: d, rec: r}
}

// Release returns the handle's record to the free pool. The caller must not
// use h after calling Release.
func (h *Handle) Release() {
	h.rec.protected.Store(nil)
	h.scan() // flush anything still retired before giving up the slot
	h.rec.inUse.Store(false)
}

// Protect publishes ptr as currently being dereferenced by this goroutine.
// Protect(nil) clears the protection.
func (h *Handle) Protect(ptr any) {
	h.rec.protected.Store(&ptr)
}

// Clear is equivalent to Protect(nil).
func (h *Handle) Clear() {
	h.rec.protected.Store(nil)
}

// Retire marks ptr for reclamation via reclaim once no hazard slot in the
// domain protects it. reclaim must be idempotent-free: it runs at most once.
func (h *Handle) Retire(ptr any, reclaim func()) {
	h.rec.mu.Lock()
	h.rec.retired = append(h.rec.retired, retiredEntry{ptr: ptr, reclaim: reclaim})
	pending := len(h.rec.retired)
	h.rec.mu.Unlock()

	if pending >= scanThreshold {
		h.scan()
	}
}

// scan walks every record's protected slot; any locally retired entry whose
// pointer is not currently protected anywhere is reclaimed and dropped.
// Entries still protected by some slot are put back on rec.retired so a
// later scan gets another chance at them — none are ever silently dropped.
func (h *Handle) scan() {
	h.rec.mu.Lock()
	retired := h.rec.retired
	h.rec.retired = nil
	h.rec.mu.Unlock()

	if len(retired) == 0 {
		return
	}

	protectedSet := make(map[any]struct{}, 8)
	for r := h.domain.head.Load(); r != nil; r = r.next {
		if p := r.protected.Load(); p != nil {
			protectedSet[*p] = struct{}{}
		}
	}

	var stillRetired []retiredEntry
	for _, e := range retired {
		if _, busy := protectedSet[e.ptr]; busy {
			stillRetired = append(stillRetired, e)
			continue
		}
		e.reclaim()
	}

	if len(stillRetired) > 0 {
		h.rec.mu.Lock()
		h.rec.retired = append(h.rec.retired, stillRetired...)
		h.rec.mu.Unlock()
	}
}
