package upipe

import "github.com/upipe-go/upipe/internal/uerror"

// Probe is a pipe's upward channel. Throw is called
// with the pipe that raised the event; returning handled=true stops
// propagation, handled=false lets a chaining probe try the next link.
// An error a probe returns is handed back to the thrower by the
// package-level Throw; errors never propagate as panics.
type Probe interface {
	Throw(p *Pipe, event Event, args ...any) (handled bool, err error)
}

// Chain links two probes: Next is tried whenever First returns
// handled=false. The specialised probes in package probes do not use
// it; each wraps its own Inner probe instead.
type Chain struct {
	First Probe
	Next  Probe
}

func (c *Chain) Throw(p *Pipe, event Event, args ...any) (bool, error) {
	if c.First != nil {
		if handled, err := c.First.Throw(p, event, args...); handled {
			return true, err
		}
	}
	if c.Next != nil {
		return c.Next.Throw(p, event, args...)
	}
	return false, nil
}

// ProbeFunc adapts a plain function to Probe, for tests and small
// inline probes.
type ProbeFunc func(p *Pipe, event Event, args ...any) (bool, error)

func (f ProbeFunc) Throw(p *Pipe, event Event, args ...any) (bool, error) {
	return f(p, event, args...)
}

// NopProbe handles nothing; every event falls through unhandled. Safe
// zero value for a pipe allocated without a caller-supplied probe.
type NopProbe struct{}

func (NopProbe) Throw(*Pipe, Event, ...any) (bool, error) { return false, nil }

// Throw is a convenience used by pipe implementations: it throws
// through p's probe chain and maps an unhandled EventFatal/EventError
// into a returned error so callers that don't care about probe
// plumbing can just check err.
func Throw(p *Pipe, event Event, args ...any) error {
	handled, err := p.probe.Throw(p, event, args...)
	if err != nil {
		return err
	}
	if !handled && (event == EventFatal || event == EventError) {
		return uerror.New("upipe.Throw", uerror.CodeUnhandled, "event reached end of probe chain unhandled")
	}
	return nil
}
