package xfer

import (
	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/uref"
)

// Signature identifies every proxy pipe's manager, used the same way
// every other manager's signature gates module-local commands: a
// proxy rejects any command not in its small locally-handled set by
// forwarding it rather than misinterpreting it.
const Signature = "upipe.xfer"

// proxyMgr is a proxy pipe's manager: one instance per proxy/inner
// pair (nothing requires a Mgr to be shared across many pipes; here
// it captures the pair's private state directly, the same way
// upipe.MockMgr's AllocFunc closures capture per-test state).
type proxyMgr struct {
	xfer  *Manager
	inner *upipe.Pipe
}

func (m *proxyMgr) Signature() string { return Signature }

func (m *proxyMgr) Alloc(probe upipe.Probe, signature string, args ...any) (*upipe.Pipe, error) {
	return nil, uerror.New("xfer.proxyMgr.Alloc", uerror.CodeInvalid, "use xfer.Alloc, not Mgr.Alloc, to construct a proxy")
}

// Input is illegal on a proxy pipe: records flow through direct
// output wiring created on the target thread, never
// back through the proxy. A caller that mistakenly calls it loses the
// record and gets a FATAL thrown so the mistake is visible.
func (m *proxyMgr) Input(p *upipe.Pipe, u *uref.Uref, pumpHint any) {
	if u != nil {
		u.Release()
	}
	upipe.Throw(p, upipe.EventFatal, uerror.CodeInvalid, "xfer: Input is illegal on a proxy pipe")
}

// Control splits the command set: output routing is handled
// locally (the proxy's own Pipe.output field is purely informational
// here, since Input never flows through it: callers that need to
// know where a transferred pipe's output is wired ask the proxy, not
// the inner pipe, which holds no strong reference back to the
// caller's thread); every other command is serialised across the
// queue to the inner pipe's manager on the target thread and blocks
// for its result, handed back synchronously across a channel so the
// caller never polls.
func (m *proxyMgr) Control(p *upipe.Pipe, cmd upipe.Command, args ...any) error {
	switch cmd {
	case upipe.GetOutput:
		if len(args) != 1 {
			return uerror.New("xfer.Control", uerror.CodeInvalid, "GET-OUTPUT wants one *(*upipe.Pipe) arg")
		}
		out, ok := args[0].(**upipe.Pipe)
		if !ok {
			return uerror.New("xfer.Control", uerror.CodeInvalid, "GET-OUTPUT arg must be **upipe.Pipe")
		}
		*out = p.Output()
		return nil
	case upipe.SetOutput:
		out, _ := args[0].(*upipe.Pipe)
		p.SetOutput(out)
		return nil
	}

	kind := msgControl
	switch cmd {
	case upipe.SetURI:
		kind = msgSetURI
	case upipe.SetOption:
		kind = msgSetOption
	case upipe.AttachUclock:
		kind = msgAttachUclock
	case upipe.AttachUpumpMgr:
		kind = msgSetUpumpMgr
	}
	return m.forward(kind, cmd, args...)
}

func (m *proxyMgr) forward(kind msgKind, cmd upipe.Command, args ...any) error {
	mg, _ := m.xfer.pool.Get().(*msg)
	if mg == nil {
		mg = &msg{}
	}
	mg.kind = kind
	mg.proxy = m
	mg.cmd = cmd
	mg.args = args
	mg.done = make(chan error, 1)
	if err := m.xfer.enqueue(mg); err != nil {
		return err
	}
	return <-mg.done
}

// Alloc creates a proxy pipe on the caller's thread wrapping inner, an
// already-constructed pipe not yet attached to any event loop. It
// enqueues an "alloc" message that, once processed on mgr's target
// thread, attaches inner to that thread's loop. The transfer happens
// on this first crossing, not at construction. inner's probe is
// replaced with a Probe so its events
// re-post back to proxy's probe chain on the source thread, limited to
// the event kinds listed in forward.
func Alloc(mgr *Manager, probe upipe.Probe, inner *upipe.Pipe, forward ...upipe.Event) (*upipe.Pipe, error) {
	pm := &proxyMgr{xfer: mgr, inner: inner}
	p := upipe.New(pm, probe)

	inner.SetProbe(&Probe{xfer: mgr, proxy: p, forward: forward})

	mg := &msg{kind: msgAlloc, proxy: pm}
	if err := mgr.enqueue(mg); err != nil {
		return nil, err
	}
	return p, nil
}

// Release drops one reference to a proxy pipe. On the transition to
// zero it enqueues a final release message so the inner pipe's
// reference is dropped on its own thread, where its destructor (and
// any resulting EventDead) belongs.
func Release(p *upipe.Pipe) {
	pm, ok := p.Mgr().(*proxyMgr)
	if !ok {
		p.Release(nil)
		return
	}
	p.Release(func() {
		pm.xfer.enqueue(&msg{kind: msgRelease, proxy: pm})
	})
}
