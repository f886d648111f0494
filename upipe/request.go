package upipe

import "github.com/upipe-go/upipe/uref"

// Request describes a resource a pipe needs but doesn't have at alloc
// time: a flow-def describing the want, and a callback
// invoked once a holder upstream provides it. Registered via
// Control(RegisterRequest, req) on the requester's input pipe, which
// either satisfies it (if it holds a matching resource) or forwards it
// further upstream; a holder probe at the top answers it.
type Request struct {
	// Kind identifies what's being requested, e.g. "UBUF-MGR",
	// "UPUMP-MGR", "UCLOCK", "SINK-LATENCY".
	Kind string

	// Want describes the request, e.g. a flow-def fingerprint for a
	// UBUF-MGR request.
	Want *uref.Uref

	// Provide is called with the resource once a holder answers; the
	// requester is expected to Acquire/Dup whatever reference
	// semantics the resource has. Provide is never called more than
	// once per Request.
	Provide func(resource any)

	// Latency accumulates intrinsic per-pipe latency as a
	// SINK-LATENCY request climbs toward the source; each forwarding
	// pipe adds its own latency before calling Forward. Unused by
	// other request kinds.
	Latency int64

	provided bool
}

// Forward adds this pipe's intrinsic latency (zero for most requests)
// and passes the request one hop further upstream by invoking next.
func (r *Request) Forward(intrinsicLatency int64, next func(*Request) error) error {
	r.Latency += intrinsicLatency
	return next(r)
}

// Satisfy calls Provide exactly once; subsequent calls are no-ops,
// guarding against a request somehow being answered twice as it climbs
// back down through forwarding pipes.
func (r *Request) Satisfy(resource any) {
	if r.provided {
		return
	}
	r.provided = true
	if r.Provide != nil {
		r.Provide(resource)
	}
}
