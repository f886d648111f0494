package upipe

import (
	"github.com/upipe-go/upipe/uref"
	"github.com/upipe-go/upipe/uref/urefcount"
)

// Pipe is the state every concrete module embeds: the refcount
// lifecycle plus the probe chain every pipe publishes upward. A
// module type is built as:
//
//	type pipe struct {
//	    *upipe.Pipe
//	    // module-private fields
//	}
type Pipe struct {
	refcount *urefcount.RefCount
	mgr      Mgr
	probe    Probe

	output *Pipe // downstream pipe wired via SET-OUTPUT, nil if none
	parent *Pipe // strong ref to parent, for sub-pipes of split/join pipes
}

// New constructs a Pipe with one live reference, using NopProbe when
// probe is nil. Module-private teardown is passed to Release, not here.
func New(mgr Mgr, probe Probe) *Pipe {
	if probe == nil {
		probe = NopProbe{}
	}
	p := &Pipe{mgr: mgr, probe: probe}
	p.refcount = urefcount.New(nil)
	return p
}

// Mgr returns the pipe's manager.
func (p *Pipe) Mgr() Mgr { return p.mgr }

// SetProbe replaces the pipe's upward channel. Used by xfer.Alloc to
// swap a transferred pipe's probe for one that re-posts whitelisted
// events back across the transfer queue, and by any wrapper that
// needs to insert itself into an already-allocated pipe's chain.
func (p *Pipe) SetProbe(probe Probe) {
	if probe == nil {
		probe = NopProbe{}
	}
	p.probe = probe
}

// Dup acquires a new strong reference to the same pipe, returning p
// itself (matching the C library's handle-sharing semantics: a Go
// *Pipe is already a stable pointer, Dup just bumps the count a
// caller must later Release).
func (p *Pipe) Dup() *Pipe {
	p.refcount.Acquire()
	return p
}

// Release drops one reference. On the transition to zero it throws
// EventDead through the probe chain and, if destroy is non-nil, calls
// it to free module-private state.
func (p *Pipe) Release(destroy func()) {
	if p.refcount.Release() {
		Throw(p, EventDead)
		if destroy != nil {
			destroy()
		}
	}
}

// Throw sends event through this pipe's probe chain.
func (p *Pipe) Throw(event Event, args ...any) error {
	return Throw(p, event, args...)
}

// SetOutput wires the downstream pipe records get forwarded to; pass
// nil to disconnect. Does not take a reference: callers manage the
// downstream pipe's lifetime independently; only parent/sub-pipe
// links and explicit Dup calls create strong references.
func (p *Pipe) SetOutput(output *Pipe) { p.output = output }

// Output returns the currently wired downstream pipe, or nil.
func (p *Pipe) Output() *Pipe { return p.output }

// SetParent records a strong reference to a sub-pipe's owning split
// pipe; ReleaseParent drops it. Sub-pipe managers call this from
// Alloc/their destroy callback.
func (p *Pipe) SetParent(parent *Pipe) { p.parent = parent.Dup() }

func (p *Pipe) ReleaseParent(destroy func()) {
	if p.parent == nil {
		return
	}
	parent := p.parent
	p.parent = nil
	parent.Release(destroy)
}

// ForwardInput delivers u to p's wired output, if any, consuming the
// caller's reference to u by calling Input on the downstream pipe's
// manager. A no-op (the record is dropped) if no output is wired.
func ForwardInput(p *Pipe, u *uref.Uref, pumpHint any) {
	out := p.output
	if out == nil {
		return
	}
	out.mgr.Input(out, u, pumpHint)
}
