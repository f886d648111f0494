package uref

// Typed accessors for the "flow." attribute namespace:
// per-flow metadata carried on a flow-definition record and forwarded
// unchanged by pipes that do not alter the flow's identity.

// FlowDef returns the "flow.def" string attribute, e.g.
// "block.mpegts." or "pic.".
func (u *Uref) FlowDef() (string, bool) {
	if u.dict == nil {
		return "", false
	}
	return u.dict.GetString("flow.def")
}

// SetFlowDef sets "flow.def".
func (u *Uref) SetFlowDef(def string) {
	u.MutableDict().SetString("flow.def", def)
}

// FlowDefHasPrefix reports whether the record's flow-def matches
// prefix under the hierarchical-prefix matching rule.
func (u *Uref) FlowDefHasPrefix(prefix string) bool {
	def, ok := u.FlowDef()
	if !ok {
		return false
	}
	return len(def) >= len(prefix) && def[:len(prefix)] == prefix
}

// FlowName returns the "flow.name" string attribute.
func (u *Uref) FlowName() (string, bool) {
	if u.dict == nil {
		return "", false
	}
	return u.dict.GetString("flow.name")
}

// SetFlowName sets "flow.name".
func (u *Uref) SetFlowName(name string) {
	u.MutableDict().SetString("flow.name", name)
}

// FlowID returns the "flow.id" uint64 attribute.
func (u *Uref) FlowID() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("flow.id")
}

// SetFlowID sets "flow.id".
func (u *Uref) SetFlowID(id uint64) {
	u.MutableDict().SetUint64("flow.id", id)
}

// FlowDiscontinuity returns the "flow.discontinuity" bool attribute:
// a sticky flag on the flow definition itself, distinct from the
// per-record Clock.Discontinuity flag.
func (u *Uref) FlowDiscontinuity() (bool, bool) {
	if u.dict == nil {
		return false, false
	}
	return u.dict.GetBool("flow.discontinuity")
}

// SetFlowDiscontinuity sets "flow.discontinuity".
func (u *Uref) SetFlowDiscontinuity(v bool) {
	u.MutableDict().SetBool("flow.discontinuity", v)
}

// FlowRandom returns the "flow.random" bool attribute.
func (u *Uref) FlowRandom() (bool, bool) {
	if u.dict == nil {
		return false, false
	}
	return u.dict.GetBool("flow.random")
}

// SetFlowRandom sets "flow.random".
func (u *Uref) SetFlowRandom(v bool) {
	u.MutableDict().SetBool("flow.random", v)
}

// FlowError returns the "flow.error" bool attribute.
func (u *Uref) FlowError() (bool, bool) {
	if u.dict == nil {
		return false, false
	}
	return u.dict.GetBool("flow.error")
}

// SetFlowError sets "flow.error".
func (u *Uref) SetFlowError(v bool) {
	u.MutableDict().SetBool("flow.error", v)
}
