package upipe

import (
	"github.com/upipe-go/upipe/upump"
	"github.com/upipe-go/upipe/uref"
)

// UpumpMgrHelper caches the upump.Loop a pipe was attached to via
// AttachUpumpMgr: every watcher a pipe allocates (timers, fd reads
// for a live source) is allocated against this cached loop rather
// than threading it through every method call.
type UpumpMgrHelper struct {
	loop upump.Loop
}

// SetUpumpMgr stores loop; a module's Control implementation calls
// this from its AttachUpumpMgr case.
func (h *UpumpMgrHelper) SetUpumpMgr(loop upump.Loop) { h.loop = loop }

// UpumpMgr returns the cached loop, or nil if AttachUpumpMgr hasn't
// happened yet.
func (h *UpumpMgrHelper) UpumpMgr() upump.Loop { return h.loop }

// HasUpumpMgr reports whether a loop has been attached.
func (h *UpumpMgrHelper) HasUpumpMgr() bool { return h.loop != nil }

// InputQueueHelper buffers urefs a pipe receives before it is ready to
// process them, the common case being a sink still waiting on
// SET-FLOW-DEF negotiation, or a filter blocked on a request it has
// registered upstream. Hold records with Queue, flush them once ready
// with Flush.
type InputQueueHelper struct {
	pending []queuedInput
	blocked bool
}

type queuedInput struct {
	uref     *uref.Uref
	pumpHint any
}

// Block marks the helper as not ready: subsequent Queue calls buffer
// rather than the caller processing immediately.
func (h *InputQueueHelper) Block() { h.blocked = true }

// Blocked reports whether the helper is currently buffering.
func (h *InputQueueHelper) Blocked() bool { return h.blocked }

// Queue buffers u for later delivery. The helper takes ownership of
// the caller's reference; it is released either by Flush's callback
// consuming it or by Drop.
func (h *InputQueueHelper) Queue(u *uref.Uref, pumpHint any) {
	h.pending = append(h.pending, queuedInput{uref: u, pumpHint: pumpHint})
}

// Flush marks the helper ready and delivers every buffered record, in
// arrival order, via process. It unblocks before delivering so a
// process callback that re-blocks (because it immediately registers
// another request) stops the flush from going further and leaves the
// remainder queued.
func (h *InputQueueHelper) Flush(process func(u *uref.Uref, pumpHint any)) {
	h.blocked = false
	for len(h.pending) > 0 && !h.blocked {
		next := h.pending[0]
		h.pending = h.pending[1:]
		process(next.uref, next.pumpHint)
	}
}

// Drop releases every buffered record without delivering it, e.g. on
// pipe teardown.
func (h *InputQueueHelper) Drop() {
	for _, q := range h.pending {
		q.uref.Release()
	}
	h.pending = nil
}
