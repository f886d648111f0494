package probes

import (
	"context"
	"sync/atomic"

	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/upipe"
)

// loopCtxKey is the context.Context key a caller threads the current
// goroutine's upump.Loop through. Go deliberately has no native
// thread-local storage (and no stable OS-thread affinity without
// runtime.LockOSThread, which this module does not require of
// callers), so ThreadLocalPumpProbe resolves "the current thread's
// loop" from an explicit context value passed alongside the request
// rather than emulating a goroutine-id-keyed registry, the one place
// this rendition deliberately diverges from a literal port, recorded
// in DESIGN.md.
type loopCtxKey struct{}

// WithLoop returns a context carrying loop for ThreadLocalPumpProbe to
// resolve. A per-thread event-loop manager calls this once per
// goroutine it hands pipe-allocation work to.
func WithLoop(ctx context.Context, loop any) context.Context {
	return context.WithValue(ctx, loopCtxKey{}, loop)
}

// LoopFromContext returns the loop WithLoop attached to ctx, if any.
func LoopFromContext(ctx context.Context) (any, bool) {
	loop := ctx.Value(loopCtxKey{})
	return loop, loop != nil
}

// ThreadLocalPumpProbe answers NEED-UPUMP-MGR by resolving the loop
// from the context.Context passed as the event's second argument
// (args[1], after the *upipe.Request at args[0]), rather than holding
// one fixed loop like ManagerHolderProbe, for processes running
// several event loops, one per worker thread.
// FREEZE-UPUMP-MGR/THAW-UPUMP-MGR nest
// via an atomic counter: while frozen, NEED-UPUMP-MGR is refused
// rather than silently answered, catching a pipe that fetches a loop
// inside a region asserting it must not.
type ThreadLocalPumpProbe struct {
	Inner upipe.Probe

	freeze atomic.Int32
}

func (p *ThreadLocalPumpProbe) Throw(pipe *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	switch event {
	case upipe.EventFreezeUpumpMgr:
		p.freeze.Add(1)
		return true, nil
	case upipe.EventThawUpumpMgr:
		p.freeze.Add(-1)
		return true, nil
	case upipe.EventNeedUpumpMgr:
		if len(args) >= 2 {
			req, ok := args[0].(*upipe.Request)
			ctx, ok2 := args[1].(context.Context)
			if ok && ok2 {
				if p.freeze.Load() > 0 {
					return true, uerror.New("probes.ThreadLocalPumpProbe", uerror.CodeBusy, "upump manager fetch frozen")
				}
				if loop, ok := LoopFromContext(ctx); ok {
					req.Satisfy(loop)
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
