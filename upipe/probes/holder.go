package probes

import "github.com/upipe-go/upipe/upipe"

// ManagerHolderProbe answers exactly one NEED-* event by handing back
// a resource it holds one reference to, via the request's Satisfy
// callback. The four NEED-* resource kinds (upump manager, uref
// manager, ubuf manager, clock) are four instantiations of this one
// type.
type ManagerHolderProbe struct {
	Event    upipe.Event
	Resource any
	Inner    upipe.Probe
}

// NewManagerHolderProbe returns a probe that answers event with
// resource whenever thrown args[0] is a *upipe.Request.
func NewManagerHolderProbe(event upipe.Event, resource any, inner upipe.Probe) *ManagerHolderProbe {
	return &ManagerHolderProbe{Event: event, Resource: resource, Inner: inner}
}

func (p *ManagerHolderProbe) Throw(pipe *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	if event == p.Event && len(args) >= 1 {
		if req, ok := args[0].(*upipe.Request); ok {
			req.Satisfy(p.Resource)
			return true, nil
		}
	}
	if p.Inner != nil {
		return p.Inner.Throw(pipe, event, args...)
	}
	return false, nil
}

// NewUpumpMgrHolderProbe answers NEED-UPUMP-MGR with loop.
func NewUpumpMgrHolderProbe(loop any, inner upipe.Probe) *ManagerHolderProbe {
	return NewManagerHolderProbe(upipe.EventNeedUpumpMgr, loop, inner)
}

// NewUrefMgrHolderProbe answers NEED-UREF-MGR with mgr.
func NewUrefMgrHolderProbe(mgr any, inner upipe.Probe) *ManagerHolderProbe {
	return NewManagerHolderProbe(upipe.EventNeedUrefMgr, mgr, inner)
}

// NewUbufMgrHolderProbe answers NEED-UBUF-MGR with mgr.
func NewUbufMgrHolderProbe(mgr any, inner upipe.Probe) *ManagerHolderProbe {
	return NewManagerHolderProbe(upipe.EventNeedUbufMgr, mgr, inner)
}

// NewUclockHolderProbe answers NEED-UCLOCK with clock.
func NewUclockHolderProbe(clock any, inner upipe.Probe) *ManagerHolderProbe {
	return NewManagerHolderProbe(upipe.EventNeedUclock, clock, inner)
}
