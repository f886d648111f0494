package xfer

import "github.com/upipe-go/upipe/upipe"

// Probe is installed as a transferred inner pipe's upward channel on
// the target thread. Events in the Forward whitelist are marshalled
// back across the manager's return queue to be re-thrown through
// proxy's probe chain on the source thread; every other event is
// swallowed here: a target-thread-only concern, e.g. verbose logging
// of the inner pipe's own internals, has nowhere useful to go on the
// source thread.
type Probe struct {
	xfer    *Manager
	proxy   *upipe.Pipe
	forward []upipe.Event
}

func (p *Probe) Throw(pipe *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	for _, e := range p.forward {
		if e == event {
			p.xfer.enqueueEvent(&eventMsg{proxy: p.proxy, event: event, args: args})
			return true, nil
		}
	}
	return true, nil
}
