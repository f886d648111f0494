package probes

import (
	"fmt"
	"sync"

	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/uref"
)

// UbufPoolProbe satisfies NEED-UBUF-MGR requests by pooling a manager
// per flow-def fingerprint: a requester whose flow-def matches one
// already seen gets the same manager back instead of a fresh
// allocation.
type UbufPoolProbe struct {
	// Fingerprint computes the pool key from a flow-def record;
	// DefaultFingerprint is used when nil.
	Fingerprint func(def *uref.Uref) string

	// New builds a fresh manager for a fingerprint not seen before.
	New func(def *uref.Uref) (any, error)

	Inner upipe.Probe

	mu   sync.Mutex
	pool map[string]any
}

// DefaultFingerprint combines the flow-def's type prefix with the
// subset of pic./sound. geometry attributes relevant to buffer shape
// (hsize/vsize for pictures, rate/channels for sound); two flow-defs
// producing the same fingerprint can safely share one buffer manager.
func DefaultFingerprint(def *uref.Uref) string {
	flowDef, _ := def.FlowDef()
	fp := flowDef
	if h, ok := def.PicHSize(); ok {
		if v, ok2 := def.PicVSize(); ok2 {
			fp += fmt.Sprintf("|%dx%d", h, v)
		}
	}
	if r, ok := def.SoundRate(); ok {
		if c, ok2 := def.SoundChannels(); ok2 {
			fp += fmt.Sprintf("|%dhz*%dch", r, c)
		}
	}
	return fp
}

func (p *UbufPoolProbe) Throw(pipe *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	if event == upipe.EventNeedUbufMgr && len(args) >= 1 {
		if req, ok := args[0].(*upipe.Request); ok && req.Want != nil {
			mgr, err := p.resolve(req.Want)
			if err != nil {
				return true, err
			}
			req.Satisfy(mgr)
			return true, nil
		}
	}
	if p.Inner != nil {
		return p.Inner.Throw(pipe, event, args...)
	}
	return false, nil
}

func (p *UbufPoolProbe) resolve(def *uref.Uref) (any, error) {
	fingerprint := p.Fingerprint
	if fingerprint == nil {
		fingerprint = DefaultFingerprint
	}
	key := fingerprint(def)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		p.pool = make(map[string]any)
	}
	if mgr, ok := p.pool[key]; ok {
		return mgr, nil
	}
	mgr, err := p.New(def)
	if err != nil {
		return nil, err
	}
	p.pool[key] = mgr
	return mgr, nil
}
