package upipe

import "github.com/upipe-go/upipe/internal/ulog"

// Event identifies one upward notification thrown into a pipe's probe
// chain, mirroring Command's closed-plus-tagged shape:
// well-known events carry an empty Signature, module-local events
// (e.g. a demux pipe announcing a new elementary stream) carry their
// manager's signature.
type Event struct {
	code      int
	signature string
}

func (e Event) Code() int         { return e.code }
func (e Event) Signature() string { return e.signature }
func (e Event) IsLocal() bool     { return e.signature != "" }

// NewLocalEvent builds a module-local event tagged with signature.
func NewLocalEvent(signature string, local int) Event {
	return Event{code: local, signature: signature}
}

// Well-known events.
var (
	EventReady          = Event{code: 0}
	EventDead           = Event{code: 1}
	EventNewFlowDef     = Event{code: 2}
	EventNeedUpumpMgr   = Event{code: 3}
	EventNeedUrefMgr    = Event{code: 4}
	EventNeedUbufMgr    = Event{code: 5}
	EventNeedUclock     = Event{code: 6}
	EventFreezeUpumpMgr = Event{code: 7}
	EventThawUpumpMgr   = Event{code: 8}
	EventSourceEnd      = Event{code: 9}
	EventSinkLatency    = Event{code: 10}
	EventError          = Event{code: 11} // a recoverable problem; args: (code uerror.Code, msg string)
	EventFatal          = Event{code: 12} // unrecoverable; Throw turns it into an error if no probe handles it
	EventLog            = Event{code: 13} // args: (rec ulog.Record), rendered by probes.StdoutLogProbe

	// EventProvideRequest is thrown by a pipe that cannot satisfy one of
	// its own registered requests locally, giving every probe upstream
	// of it a chance to answer before the request is forwarded to the
	// next pipe's input peer; args: (req *Request).
	EventProvideRequest = Event{code: 14}
	EventClockRef       = Event{code: 15} // args: (cr int64), a clock reference update from upstream
	EventClockTs        = Event{code: 16} // args: (dts int64), a timestamp derived from a clock reference
	EventSinkEnd        = Event{code: 17} // a sink pipe stopped consuming (e.g. output closed)
	EventSyncAcquired   = Event{code: 18} // a framer locked onto a byte-aligned frame boundary
	EventSyncLost       = Event{code: 19} // a framer lost frame-boundary lock
	EventSplitUpdate    = Event{code: 20} // a split pipe's sub-pipe set changed
)

// LogRecord builds the ulog.Record an EventLog throw carries, with the
// given tags only; a chain of PrefixProbes can prepend further context
// on the way up.
func LogRecord(level ulog.Level, msg string, tags ...string) ulog.Record {
	return ulog.Record{Level: level, Tags: tags, Msg: msg}
}
