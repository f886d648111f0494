package upipe

import "github.com/upipe-go/upipe/uref"

// FlowDefHelper gives a pipe implementation the standard SET-FLOW-DEF/
// GET-FLOW-DEF bookkeeping:
// store the accepted record, hand it back on request, and let a filter
// forward a derived one downstream. Embed it in a module's pipe struct
// alongside *upipe.Pipe.
type FlowDefHelper struct {
	current *uref.Uref
}

// SetFlowDef stores a Dup of def (releasing any previously stored
// record) and returns the stored record. It does no validation: prefix
// checks are up to the caller (see HasPrefix).
func (h *FlowDefHelper) SetFlowDef(def *uref.Uref) *uref.Uref {
	if h.current != nil {
		h.current.Release()
	}
	h.current = def.Dup()
	return h.current
}

// FlowDef returns the currently accepted flow-definition record, or
// nil if none has been set yet.
func (h *FlowDefHelper) FlowDef() *uref.Uref { return h.current }

// Release frees the stored flow-definition record; call from the
// pipe's destroy callback.
func (h *FlowDefHelper) Release() {
	if h.current != nil {
		h.current.Release()
		h.current = nil
	}
}

// HasPrefix reports whether the stored flow-def matches prefix, or
// false if no flow-def has been accepted yet.
func (h *FlowDefHelper) HasPrefix(prefix string) bool {
	return h.current != nil && h.current.FlowDefHasPrefix(prefix)
}
