// Package uqueue is the fixed-capacity multi-producer/multi-consumer
// queue underlying cross-loop record and message transfer: a bounded
// ring in which each cell carries its own sequence number, so
// cross-thread visibility needs no explicit fences; sync/atomic
// supplies the acquire/release ordering.
package uqueue

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/upipe-go/upipe/internal/uerror"
)

// ErrFull is returned by Push when the queue has no free cell.
var ErrFull = errors.New("uqueue: full")

// ErrEmpty is returned by Pop when the queue has no pending cell.
var ErrEmpty = errors.New("uqueue: empty")

type cell[T any] struct {
	sequence atomic.Uint64
	value    T
}

// Queue is a fixed power-of-two-capacity ring of tagged cells. Push
// and Pop are lock-free (Vyukov's bounded MPMC algorithm): each
// cell's sequence number lets concurrent producers/consumers claim
// distinct slots via a single CompareAndSwap on a monotonic position
// counter without ever blocking on each other.
//
// Readiness is exposed as two eventfd-backed signals so a consumer on
// one upump.Loop and a producer on another (different thread, same
// process) can each independently watch them with
// Loop.AllocFdRead(fd, cb) without sharing a Loop. Both fds are level
// held: a fired callback must drain the fd (Drain) and then loop
// Push/Pop until it sees Err{Full,Empty} before re-arming, the usual
// edge-triggered-reactor discipline.
type Queue[T any] struct {
	mask  uint64
	cells []cell[T]

	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
	length     atomic.Int64

	pushReadyFd int
	popReadyFd  int
}

// New creates a queue of the given capacity rounded up to the next
// power of two, as the mask-based slot lookup requires.
func New[T any](capacity int) (*Queue[T], error) {
	n := nextPow2(capacity)
	q := &Queue[T]{mask: uint64(n - 1), cells: make([]cell[T], n)}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}

	var err error
	q.pushReadyFd, err = unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, uerror.Wrap("uqueue.New", err)
	}
	q.popReadyFd, err = unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(q.pushReadyFd)
		return nil, uerror.Wrap("uqueue.New", err)
	}
	signalFd(q.pushReadyFd) // an empty queue always has room
	return q, nil
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the queue's rounded-up capacity.
func (q *Queue[T]) Cap() int { return len(q.cells) }

// Len returns a best-effort snapshot of the occupied cell count. It is
// exact only when no concurrent Push/Pop is in flight; the readiness
// fds, not Len, are the authoritative coordination signal.
func (q *Queue[T]) Len() int { return int(q.length.Load()) }

// PushReadyFd is signaled (readable) whenever a slot is free; a pop
// that drops occupancy below capacity re-signals it on the
// full→nonfull edge.
func (q *Queue[T]) PushReadyFd() int { return q.pushReadyFd }

// PopReadyFd is signaled whenever at least one cell is occupied; a
// push re-signals it on the empty→nonempty edge.
func (q *Queue[T]) PopReadyFd() int { return q.popReadyFd }

// Drain clears a pending readiness signal on fd (PushReadyFd or
// PopReadyFd). Call it from the watcher callback before re-arming;
// the fd is level-triggered so leaving it unread spins the loop.
func Drain(fd int) {
	var buf [8]byte
	unix.Read(fd, buf[:])
}

func signalFd(fd int) {
	var one [8]byte
	one[0] = 1
	unix.Write(fd, one[:])
}

// Push appends v to the tail, returning ErrFull if every cell is
// occupied. Safe for concurrent use by multiple producers; within one
// producer, pushes land in FIFO order, and across producers the order
// is whichever goroutine wins each slot's CompareAndSwap.
func (q *Queue[T]) Push(v T) error {
	for {
		pos := q.enqueuePos.Load()
		c := &q.cells[pos&q.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff < 0:
			return ErrFull
		case diff > 0:
			continue // another producer already claimed this position; reload
		case !q.enqueuePos.CompareAndSwap(pos, pos+1):
			continue
		}

		c.value = v
		c.sequence.Store(pos + 1)
		if newLen := q.length.Add(1); newLen == 1 {
			signalFd(q.popReadyFd)
		}
		return nil
	}
}

// Pop removes and returns the head, returning ErrEmpty if no cell is
// occupied. Safe for concurrent use by multiple consumers.
func (q *Queue[T]) Pop() (T, error) {
	for {
		pos := q.dequeuePos.Load()
		c := &q.cells[pos&q.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff < 0:
			var zero T
			return zero, ErrEmpty
		case diff > 0:
			continue // another consumer already claimed this position; reload
		case !q.dequeuePos.CompareAndSwap(pos, pos+1):
			continue
		}

		v := c.value
		var zero T
		c.value = zero
		c.sequence.Store(pos + q.mask + 1)
		if newLen := q.length.Add(-1); newLen == int64(len(q.cells))-1 {
			signalFd(q.pushReadyFd)
		}
		return v, nil
	}
}

// Close releases the readiness fds. Call it once no producer or
// consumer can still be using the queue.
func (q *Queue[T]) Close() error {
	if err := unix.Close(q.pushReadyFd); err != nil {
		return uerror.Wrap("Queue.Close", err)
	}
	if err := unix.Close(q.popReadyFd); err != nil {
		return uerror.Wrap("Queue.Close", err)
	}
	return nil
}
