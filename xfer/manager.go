// Package xfer implements cross-thread pipe transfer: a proxy pipe
// usable on one event loop's thread and a remote inner pipe living on
// another's, with commands marshalled across a lock-free uqueue and
// events re-posted back the other way. Modeled as the actor pattern
// (proxy = mailbox handle, inner pipe = actor body, uqueue = mailbox
// transport), never as shared memory.
package xfer

import (
	"sync"

	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/upump"
	"github.com/upipe-go/upipe/uqueue"
)

// Manager owns the pair of queues a proxy/inner pipe pair marshals
// through: toInner carries commands from the proxy's thread to the
// inner pipe's thread, toSource carries re-posted events back. One
// Manager instance serves every proxy/inner pair between a given
// thread pair; command msgs are pooled, though each command crossing
// still allocates its reply channel, and events, pipe allocations and
// releases use freshly allocated messages.
type Manager struct {
	toInner  *uqueue.Queue[*msg]
	toSource *uqueue.Queue[*eventMsg]
	pool     sync.Pool

	innerLoop    upump.Loop
	innerWatcher upump.Watcher

	sourceWatcher upump.Watcher
}

// NewManager creates a Manager whose queues hold queueCapacity
// messages each (rounded up to a power of two by uqueue.New).
// poolSize pre-warms the command message pool with that many msgs.
func NewManager(queueCapacity, poolSize int) (*Manager, error) {
	toInner, err := uqueue.New[*msg](queueCapacity)
	if err != nil {
		return nil, uerror.Wrap("xfer.NewManager", err)
	}
	toSource, err := uqueue.New[*eventMsg](queueCapacity)
	if err != nil {
		toInner.Close()
		return nil, uerror.Wrap("xfer.NewManager", err)
	}
	m := &Manager{toInner: toInner, toSource: toSource}
	m.pool.New = func() any { return &msg{} }
	for i := 0; i < poolSize; i++ {
		m.pool.Put(&msg{})
	}
	return m, nil
}

// Attach binds the manager to the target thread's loop: every inner
// pipe transferred through this manager runs its callbacks on loop
// from this point on. Spawns the consumer watcher draining toInner on
// loop's pop-ready edge.
func (m *Manager) Attach(loop upump.Loop) error {
	m.innerLoop = loop
	w, err := loop.AllocFdRead(m.toInner.PopReadyFd(), m.drainInner)
	if err != nil {
		return uerror.Wrap("xfer.Manager.Attach", err)
	}
	if err := w.Start(); err != nil {
		return uerror.Wrap("xfer.Manager.Attach", err)
	}
	m.innerWatcher = w
	return nil
}

// AttachSource binds the manager's return path to the source thread's
// loop: re-posted events are dispatched through that loop's callback
// discipline rather than synchronously from whatever goroutine pushed
// them.
func (m *Manager) AttachSource(loop upump.Loop) error {
	w, err := loop.AllocFdRead(m.toSource.PopReadyFd(), m.drainSource)
	if err != nil {
		return uerror.Wrap("xfer.Manager.AttachSource", err)
	}
	if err := w.Start(); err != nil {
		return uerror.Wrap("xfer.Manager.AttachSource", err)
	}
	m.sourceWatcher = w
	return nil
}

// Detach stops both consumer watchers and closes the queues. Call
// once no proxy/inner pair using this manager is still live.
func (m *Manager) Detach() error {
	if m.innerWatcher != nil {
		m.innerWatcher.Stop()
	}
	if m.sourceWatcher != nil {
		m.sourceWatcher.Stop()
	}
	if err := m.toInner.Close(); err != nil {
		return err
	}
	return m.toSource.Close()
}

// PumpInner drains and processes every message currently queued for
// the target thread, without requiring a real upump.Loop. Useful for
// tests and for a target "thread" modeled as a plain goroutine that
// polls rather than running a full event loop.
func (m *Manager) PumpInner() { m.drainInner() }

// PumpSource drains and re-throws every event currently queued for
// the source thread, the PumpInner counterpart for the return path.
func (m *Manager) PumpSource() { m.drainSource() }

func (m *Manager) drainInner() {
	uqueue.Drain(m.toInner.PopReadyFd())
	for {
		mg, err := m.toInner.Pop()
		if err != nil {
			return
		}
		m.process(mg)
	}
}

func (m *Manager) process(mg *msg) {
	var err error
	switch mg.kind {
	case msgAlloc:
		err = mg.proxy.inner.Mgr().Control(mg.proxy.inner, upipe.AttachUpumpMgr, m.innerLoop)
	case msgRelease:
		mg.proxy.inner.Release(nil)
	default:
		err = mg.proxy.inner.Mgr().Control(mg.proxy.inner, mg.cmd, mg.args...)
	}
	if mg.done != nil {
		mg.done <- err
	}
	*mg = msg{}
	m.pool.Put(mg)
}

func (m *Manager) drainSource() {
	uqueue.Drain(m.toSource.PopReadyFd())
	for {
		em, err := m.toSource.Pop()
		if err != nil {
			return
		}
		upipe.Throw(em.proxy, em.event, em.args...)
	}
}

func (m *Manager) enqueue(mg *msg) error {
	if err := m.toInner.Push(mg); err != nil {
		return uerror.Wrap("xfer", err)
	}
	return nil
}

func (m *Manager) enqueueEvent(em *eventMsg) error {
	if err := m.toSource.Push(em); err != nil {
		return uerror.Wrap("xfer", err)
	}
	return nil
}
