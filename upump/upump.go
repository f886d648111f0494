// Package upump defines the cooperative, single-threaded event loop
// contract shared by every pipe that waits on timers, file descriptors,
// signals, or idle time. The production backend lives
// in upump/upumpunix, built on golang.org/x/sys/unix; this package is
// the backend-agnostic interface plus the Blocker backpressure
// primitive.
package upump

import (
	"context"
	"time"
)

// Watcher is a single registered event source. Start/Stop arm and
// disarm it without destroying it; a Blocker held against it
// additionally suppresses callback delivery without disarming the
// underlying OS registration, so a paused watcher resumes instantly
// once unblocked.
type Watcher interface {
	Start() error
	Stop() error

	// Block allocates a blocker against this watcher: while any
	// blocker is live, the watcher's callback does not fire. This is
	// the backpressure mechanism: a filter whose
	// downstream queue is full blocks the source's read watcher and
	// releases the blocker from the queue's pop-ready callback.
	Block() *Blocker
}

// EventfdWatcher additionally supports being woken from any thread.
type EventfdWatcher interface {
	Watcher
	Signal() error
}

// Loop is the cooperative scheduler. Exactly one goroutine may call
// Run at a time; every Alloc* call and every watcher callback runs on
// that same goroutine, so pipes built against a Loop need no internal
// locking for state only that loop's pumps touch.
type Loop interface {
	AllocTimer(after, repeat time.Duration, cb func()) (Watcher, error)
	AllocFdRead(fd int, cb func()) (Watcher, error)
	AllocFdWrite(fd int, cb func()) (Watcher, error)
	AllocSignal(sig Signal, cb func()) (Watcher, error)
	AllocIdler(cb func()) (Watcher, error)
	AllocEventfd(cb func()) (EventfdWatcher, error)

	// Run drives the loop until ctx is cancelled or StopAll is called.
	Run(ctx context.Context) error

	// StopAll disarms every watcher and releases the loop's OS
	// resources. Run returns shortly after.
	StopAll()
}

// Signal is a Unix signal number, kept as a plain int so this package
// does not need to import os/syscall itself; upumpunix uses the value
// directly as the signal number.
type Signal int
