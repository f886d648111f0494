// Package probes collects reusable probe chain nodes: a
// tag-prepending wrapper, a stdout log renderer, manager-holder
// probes answering the four NEED-* events, a per-goroutine
// pump-manager resolver, a split-pipe flow-def matcher, and a
// ubuf-manager pool. Each wraps an optional Inner probe, so chains
// are built by composition rather than by mutating a shared list in
// place.
package probes

import (
	"github.com/upipe-go/upipe/internal/ulog"
	"github.com/upipe-go/upipe/upipe"
)

// PrefixProbe prepends Tag to every EventLog record's tag list before
// falling through to Inner (or, with Inner nil, swallowing the
// event). Nesting several PrefixProbes yields one tag per level,
// outermost first.
type PrefixProbe struct {
	Tag   string
	Inner upipe.Probe
}

func (p *PrefixProbe) Throw(pipe *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	if event == upipe.EventLog && len(args) == 1 {
		if rec, ok := args[0].(ulog.Record); ok {
			rec.Tags = append([]string{p.Tag}, rec.Tags...)
			args = []any{rec}
		}
	}
	if p.Inner == nil {
		return false, nil
	}
	return p.Inner.Throw(pipe, event, args...)
}
