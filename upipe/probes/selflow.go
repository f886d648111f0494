package probes

import (
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/uref"
)

// SelflowRule wires Output as the pipe's downstream whenever a thrown
// EventNewFlowDef's flow-def matches Prefix under the hierarchical
// prefix rule.
type SelflowRule struct {
	Prefix string
	Output *upipe.Pipe
}

// SelflowProbe answers EventNewFlowDef from a split pipe's sub-pipes
// by pattern-matching the new flow-def's prefix against Rules and
// attaching the matching concrete output. First matching rule wins.
type SelflowProbe struct {
	Rules []SelflowRule
	Inner upipe.Probe
}

func (p *SelflowProbe) Throw(pipe *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	if event == upipe.EventNewFlowDef && len(args) >= 1 {
		if def, ok := args[0].(*uref.Uref); ok {
			for _, rule := range p.Rules {
				if def.FlowDefHasPrefix(rule.Prefix) {
					pipe.SetOutput(rule.Output)
					return true, nil
				}
			}
		}
	}
	if p.Inner != nil {
		return p.Inner.Throw(pipe, event, args...)
	}
	return false, nil
}
