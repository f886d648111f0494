package upump

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Blocker is a per-watcher token suppressing callback delivery while
// held. Release is idempotent; releasing an already-released Blocker
// is a no-op, matching the one-shot-destructor discipline used
// throughout the module (urefcount.RefCount's CAS-guarded destructor).
type Blocker struct {
	dec      func()
	released atomic.Bool
}

// NewBlocker constructs a Blocker whose Release calls dec exactly
// once. Blockable.Block uses this; it is exported so an alternative
// upump.Loop backend could build its own Blockable-equivalent.
func NewBlocker(dec func()) *Blocker {
	return &Blocker{dec: dec}
}

// Release frees the blocker, resuming the watcher once no other
// blocker remains against it.
func (b *Blocker) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.dec()
	}
}

// Blockable is embedded by every Watcher implementation to provide
// Block() and the masked-delivery check a loop's dispatch path uses
// before invoking a watcher's callback. The mask is a weight-1
// semaphore: acquiring it (on the first concurrently-held Blocker)
// masks the watcher, and a dispatch loop tests deliverability by a
// non-blocking TryAcquire/Release pair rather than consuming the
// permit, so masking never races with delivery.
type Blockable struct {
	sem   *semaphore.Weighted
	count atomic.Int32
}

// NewBlockable returns an unmasked Blockable ready to embed in a
// Watcher.
func NewBlockable() *Blockable {
	return &Blockable{sem: semaphore.NewWeighted(1)}
}

// Block allocates a blocker against this watcher: while any blocker
// returned by Block is unreleased, Deliverable reports false. This is
// the backpressure mechanism: a filter whose downstream queue is full
// blocks its source's read watcher and releases the blocker from the
// queue's pop-ready callback.
func (b *Blockable) Block() *Blocker {
	if b.count.Add(1) == 1 {
		b.sem.TryAcquire(1)
	}
	return NewBlocker(func() {
		if b.count.Add(-1) == 0 {
			b.sem.Release(1)
		}
	})
}

// Deliverable reports whether no blocker currently masks this watcher.
// It never blocks: it probes the semaphore's free capacity with a
// non-blocking TryAcquire and immediately gives the permit back.
func (b *Blockable) Deliverable() bool {
	if !b.sem.TryAcquire(1) {
		return false
	}
	b.sem.Release(1)
	return true
}
