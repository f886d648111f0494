// Package urefcount implements the atomic reference count used by
// udict dictionaries, block substrate regions and upipe pipes. Release fires the
// destructor exactly once even under concurrent callers.
package urefcount

import "sync/atomic"

// RefCount is an atomic reference count with a one-shot destructor.
// Zero value is not usable; construct with New.
type RefCount struct {
	n    atomic.Int32
	done atomic.Bool
	free func()
}

// New returns a RefCount starting at one live reference. destructor is
// invoked exactly once, when the count transitions from one to zero.
// destructor may be nil.
func New(destructor func()) *RefCount {
	rc := &RefCount{free: destructor}
	rc.n.Store(1)
	return rc
}

// Acquire increments the count. The caller must already hold a live
// reference (acquiring from nothing is a use-after-free).
func (rc *RefCount) Acquire() {
	rc.n.Add(1)
}

// Release decrements the count and runs the destructor on the
// transition to zero. Returns true if this call triggered destruction.
func (rc *RefCount) Release() bool {
	if rc.n.Add(-1) != 0 {
		return false
	}
	if rc.done.CompareAndSwap(false, true) {
		if rc.free != nil {
			rc.free()
		}
		return true
	}
	return false
}

// Single reports whether this is currently the only live reference.
// Used by write paths to decide whether copy-on-write is necessary.
// Only safe absent a concurrent Acquire racing on the same handle:
// handles are owned by one loop at a time, and cross-thread sharing
// goes through a deep transfer or a uqueue, never a shared handle.
func (rc *RefCount) Single() bool {
	return rc.n.Load() == 1
}

// Count returns the current reference count, for diagnostics/tests
// only; never branch production logic on anything but Single().
func (rc *RefCount) Count() int32 {
	return rc.n.Load()
}
