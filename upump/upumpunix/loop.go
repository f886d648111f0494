// Package upumpunix is the production upump.Loop backend: one epoll
// set per loop, with timers multiplexed through timerfd and signals
// through signalfd, all woken through the same epoll_wait.
package upumpunix

import (
	"context"
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"

	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/upump"
)

const maxEvents = 64

// Loop is the epoll-backed upump.Loop implementation.
type Loop struct {
	epfd    int
	stopfd  int // eventfd signalled by StopAll to unblock a pending epoll_wait
	sources map[int]source
	idlers  []*idlerWatcher
	stopped bool
}

type source interface {
	fd() int
	fire()
}

// New creates an empty loop. Call Run on the goroutine that will own
// it; every other method must only be called from that same
// goroutine except Signal on an EventfdWatcher, which is explicitly
// cross-thread safe.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, uerror.Wrap("upumpunix.New", err)
	}
	stopfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, uerror.Wrap("upumpunix.New", err)
	}
	l := &Loop{epfd: epfd, stopfd: stopfd, sources: make(map[int]source)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, stopfd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(stopfd)}); err != nil {
		unix.Close(epfd)
		unix.Close(stopfd)
		return nil, uerror.Wrap("upumpunix.New", err)
	}
	return l, nil
}

var _ upump.Loop = (*Loop)(nil)

func (l *Loop) register(fd int, events uint32, s source) error {
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)}); err != nil {
		return uerror.Wrap("upumpunix.register", err)
	}
	l.sources[fd] = s
	return nil
}

// AllocFdRead registers cb to run whenever fd becomes readable.
func (l *Loop) AllocFdRead(fd int, cb func()) (upump.Watcher, error) {
	w := &fdWatcher{Blockable: upump.NewBlockable(), loop: l, f: fd, events: unix.EPOLLIN, cb: cb}
	if err := l.register(fd, w.events, w); err != nil {
		return nil, err
	}
	return w, nil
}

// AllocFdWrite registers cb to run whenever fd becomes writable.
func (l *Loop) AllocFdWrite(fd int, cb func()) (upump.Watcher, error) {
	w := &fdWatcher{Blockable: upump.NewBlockable(), loop: l, f: fd, events: unix.EPOLLOUT, cb: cb}
	if err := l.register(fd, w.events, w); err != nil {
		return nil, err
	}
	return w, nil
}

// AllocTimer arms cb to run once after `after`, then every `repeat`
// thereafter (repeat == 0 means one-shot).
func (l *Loop) AllocTimer(after, repeat time.Duration, cb func()) (upump.Watcher, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, uerror.Wrap("upumpunix.AllocTimer", err)
	}
	first := after.Nanoseconds()
	if first <= 0 {
		first = 1 // a zero it_value disarms a timerfd; clamp so "now" still fires
	}
	spec := &unix.ItimerSpec{
		Value:    unix.NsecToTimespec(first),
		Interval: unix.NsecToTimespec(repeat.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, spec, nil); err != nil {
		unix.Close(fd)
		return nil, uerror.Wrap("upumpunix.AllocTimer", err)
	}
	w := &timerWatcher{Blockable: upump.NewBlockable(), loop: l, f: fd, cb: cb}
	if err := l.register(fd, unix.EPOLLIN, w); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

// AllocSignal arms cb to run whenever sig is delivered to this
// process. It blocks the signal with PthreadSigmask (signalfd requires
// the signal be blocked), which affects only the calling OS thread.
func (l *Loop) AllocSignal(sig upump.Signal, cb func()) (upump.Watcher, error) {
	var set unix.Sigset_t
	sigaddset(&set, int(sig))
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return nil, uerror.Wrap("upumpunix.AllocSignal", err)
	}
	fd, err := unix.Signalfd(-1, &set, unix.SFD_CLOEXEC|unix.SFD_NONBLOCK)
	if err != nil {
		return nil, uerror.Wrap("upumpunix.AllocSignal", err)
	}
	w := &signalWatcher{Blockable: upump.NewBlockable(), loop: l, f: fd, cb: cb}
	if err := l.register(fd, unix.EPOLLIN, w); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

// AllocIdler arms cb to run unconditionally on every loop iteration
// while the watcher is registered and deliverable (not masked by a
// Blocker), regardless of whether any fd/timer/signal event was also
// dispatched that iteration.
func (l *Loop) AllocIdler(cb func()) (upump.Watcher, error) {
	w := &idlerWatcher{Blockable: upump.NewBlockable(), loop: l, cb: cb, active: true}
	l.idlers = append(l.idlers, w)
	return w, nil
}

// AllocEventfd registers an eventfd that cb fires on whenever any
// thread calls the returned watcher's Signal method.
func (l *Loop) AllocEventfd(cb func()) (upump.EventfdWatcher, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, uerror.Wrap("upumpunix.AllocEventfd", err)
	}
	w := &eventfdWatcher{Blockable: upump.NewBlockable(), loop: l, f: fd, cb: cb}
	if err := l.register(fd, unix.EPOLLIN, w); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

// Run drives the loop until ctx is cancelled or StopAll is called.
func (l *Loop) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, maxEvents)
	for {
		if l.stopped {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		timeout := -1
		if len(l.idlers) > 0 {
			timeout = 0
		}
		n, err := unix.EpollWait(l.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return uerror.Wrap("upumpunix.Run", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == l.stopfd {
				drainEventfd(l.stopfd)
				l.stopped = true
				continue
			}
			if s, ok := l.sources[fd]; ok {
				s.fire()
			}
		}
		for _, idler := range l.idlers {
			if idler.active && idler.Deliverable() {
				idler.cb()
			}
		}
	}
}

// StopAll disarms every watcher, closes every registered fd, and
// wakes a blocked Run.
func (l *Loop) StopAll() {
	for fd := range l.sources {
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		unix.Close(fd)
	}
	l.sources = make(map[int]source)
	l.idlers = nil
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	unix.Write(l.stopfd, one[:])
}

func drainEventfd(fd int) {
	var buf [8]byte
	unix.Read(fd, buf[:])
}

// sigaddset sets bit `sig` in a Linux kernel sigset_t, which
// golang.org/x/sys/unix represents as a fixed array of uint64 words
// (Val); there is no exported helper for this in the package, so every
// caller of signalfd constructs the mask by hand the same way.
func sigaddset(set *unix.Sigset_t, sig int) {
	word := (sig - 1) / 64
	bit := uint((sig - 1) % 64)
	set.Val[word] |= 1 << bit
}
