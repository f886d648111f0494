package upumpunix

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/upump"
)

type fdWatcher struct {
	*upump.Blockable
	loop    *Loop
	f       int
	events  uint32
	cb      func()
	stopped bool
}

func (w *fdWatcher) fd() int { return w.f }

func (w *fdWatcher) fire() {
	if w.Deliverable() {
		w.cb()
	}
}

func (w *fdWatcher) Start() error {
	if !w.stopped {
		return nil
	}
	w.stopped = false
	return w.loop.register(w.f, w.events, w)
}

func (w *fdWatcher) Stop() error {
	if w.stopped {
		return nil
	}
	w.stopped = true
	if err := unix.EpollCtl(w.loop.epfd, unix.EPOLL_CTL_DEL, w.f, nil); err != nil {
		return uerror.Wrap("fdWatcher.Stop", err)
	}
	delete(w.loop.sources, w.f)
	return nil
}

type timerWatcher struct {
	*upump.Blockable
	loop    *Loop
	f       int
	cb      func()
	stopped bool
}

func (w *timerWatcher) fd() int { return w.f }

func (w *timerWatcher) fire() {
	var buf [8]byte
	unix.Read(w.f, buf[:]) // clears the timerfd's expiration counter
	if w.Deliverable() {
		w.cb()
	}
}

func (w *timerWatcher) Start() error {
	if !w.stopped {
		return nil
	}
	w.stopped = false
	return w.loop.register(w.f, unix.EPOLLIN, w)
}

func (w *timerWatcher) Stop() error {
	if w.stopped {
		return nil
	}
	w.stopped = true
	unix.EpollCtl(w.loop.epfd, unix.EPOLL_CTL_DEL, w.f, nil)
	delete(w.loop.sources, w.f)
	return nil
}

type signalWatcher struct {
	*upump.Blockable
	loop    *Loop
	f       int
	cb      func()
	stopped bool
}

func (w *signalWatcher) fd() int { return w.f }

func (w *signalWatcher) fire() {
	var buf [unsafe.Sizeof(unix.SignalfdSiginfo{})]byte
	unix.Read(w.f, buf[:])
	if w.Deliverable() {
		w.cb()
	}
}

func (w *signalWatcher) Start() error {
	if !w.stopped {
		return nil
	}
	w.stopped = false
	return w.loop.register(w.f, unix.EPOLLIN, w)
}

func (w *signalWatcher) Stop() error {
	if w.stopped {
		return nil
	}
	w.stopped = true
	unix.EpollCtl(w.loop.epfd, unix.EPOLL_CTL_DEL, w.f, nil)
	delete(w.loop.sources, w.f)
	return nil
}

type idlerWatcher struct {
	*upump.Blockable
	loop   *Loop
	cb     func()
	active bool
}

func (w *idlerWatcher) fd() int { return -1 }
func (w *idlerWatcher) fire()   {}

func (w *idlerWatcher) Start() error {
	w.active = true
	return nil
}

func (w *idlerWatcher) Stop() error {
	w.active = false
	return nil
}

type eventfdWatcher struct {
	*upump.Blockable
	loop    *Loop
	f       int
	cb      func()
	stopped bool
}

func (w *eventfdWatcher) fd() int { return w.f }

func (w *eventfdWatcher) fire() {
	var buf [8]byte
	unix.Read(w.f, buf[:])
	if w.Deliverable() {
		w.cb()
	}
}

func (w *eventfdWatcher) Start() error {
	if !w.stopped {
		return nil
	}
	w.stopped = false
	return w.loop.register(w.f, unix.EPOLLIN, w)
}

func (w *eventfdWatcher) Stop() error {
	if w.stopped {
		return nil
	}
	w.stopped = true
	unix.EpollCtl(w.loop.epfd, unix.EPOLL_CTL_DEL, w.f, nil)
	delete(w.loop.sources, w.f)
	return nil
}

// Signal writes to the eventfd, waking any thread blocked in the
// owning Loop's Run and triggering this watcher's callback. Safe to
// call from any goroutine.
func (w *eventfdWatcher) Signal() error {
	var one [8]byte
	one[0] = 1
	if _, err := unix.Write(w.f, one[:]); err != nil {
		return uerror.Wrap("eventfdWatcher.Signal", err)
	}
	return nil
}
