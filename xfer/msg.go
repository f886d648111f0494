package xfer

import "github.com/upipe-go/upipe/upipe"

// msgKind tags a forward (source-to-target) message. All kinds
// besides msgAlloc/msgRelease are
// processed identically (a Control call on the inner pipe); the kind
// is kept distinct anyway so a trace of forwarded messages reads as
// the named operation it represents, not a generic "control #7".
type msgKind int

const (
	msgAlloc msgKind = iota
	msgSetUpumpMgr
	msgSetURI
	msgSetOption
	msgAttachUclock
	msgRelease
	msgControl // generic control-forward: any other upipe.Command
)

// msg is one pooled cross-thread command, source thread to target
// thread. done, when non-nil, receives the inner pipe's Control
// result exactly once; msgAlloc/msgRelease leave it nil since neither
// has a caller-visible Go return value to deliver.
type msg struct {
	kind  msgKind
	proxy *proxyMgr
	cmd   upipe.Command
	args  []any
	done  chan error
}

// eventMsg is one re-posted event, target thread to source thread:
// the inner pipe threw event on the target thread; it is replayed
// through proxy's probe chain on the source thread as if proxy itself
// had thrown it.
type eventMsg struct {
	proxy *upipe.Pipe
	event upipe.Event
	args  []any
}
