// Package tssync implements MPEG transport-stream frame alignment: it
// consumes arbitrarily-chunked "block." records, locks onto the
// 0x47-every-188-bytes sync pattern, and emits one aligned 188-byte
// record per transport packet. Lock transitions are announced upward
// with EventSyncAcquired / EventSyncLost, per the framer contract in
// the core event taxonomy.
//
// A packet is only emitted once the following syncCount-1 sync-byte
// positions have been seen and verified, so the tail of the stream
// stays buffered until more data (or Flush) arrives. Incoming bytes
// accumulate zero-copy: input blocks are appended to one pending
// segment list and emitted packets are spliced back out of it, so
// payload is never copied regardless of how the input was chunked.
//
// Same per-pipe-manager idiom as modules/pidfilter and modules/rtpd.
package tssync

import (
	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/upump"
	"github.com/upipe-go/upipe/uref"
)

// Signature identifies tssync's manager and tags its local commands.
const Signature = "upipe.tssync"

// SetSyncCount sets how many consecutive sync bytes at 188-byte
// spacing are required before a packet is emitted. args: (n int).
var SetSyncCount = upipe.NewLocalCommand(Signature, 0)

// GetSyncCount returns the current requirement. args: (out *int).
var GetSyncCount = upipe.NewLocalCommand(Signature, 1)

// Flush emits any complete, sync-aligned packet still buffered without
// waiting for its confirming sync bytes, then drops the rest. Call
// before releasing the pipe, or on SOURCE-END, to avoid losing the
// stream's tail. args: none.
var Flush = upipe.NewLocalCommand(Signature, 2)

const (
	tsPacketSize = 188
	tsSyncByte   = 0x47

	defaultSyncCount = 2
)

// Mgr is one tssync pipe's manager and private state combined.
type Mgr struct {
	upipe.FlowDefHelper
	upipe.UpumpMgrHelper
	upipe.InputQueueHelper

	pending   *block.Block // accumulated unaligned input, nil when empty
	clock     uref.Clock   // clock of the input record that started the current pending buffer
	synced    bool
	syncCount int
}

// New allocates a tssync pipe. Throws EventReady before returning.
func New(probe upipe.Probe) (*upipe.Pipe, error) {
	m := &Mgr{syncCount: defaultSyncCount}
	m.Block() // no output wired yet; buffer until SET-OUTPUT arrives
	p := upipe.New(m, probe)
	if err := upipe.Throw(p, upipe.EventReady); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mgr) Signature() string { return Signature }

func (m *Mgr) Alloc(probe upipe.Probe, signature string, args ...any) (*upipe.Pipe, error) {
	return nil, uerror.New("tssync.Alloc", uerror.CodeInvalid, "use tssync.New, not Mgr.Alloc, to construct a tssync pipe")
}

// Input appends the record's bytes to the pending buffer and processes
// as many aligned packets as the accumulated data confirms.
func (m *Mgr) Input(p *upipe.Pipe, u *uref.Uref, pumpHint any) {
	blk, ok := u.Buffer.(*block.Block)
	if !ok {
		u.Release()
		upipe.Throw(p, upipe.EventError, uerror.CodeInvalid, "tssync: non-block record")
		return
	}
	if m.pending == nil {
		m.pending = blk.Dup().(*block.Block)
		m.clock = u.Clock
	} else {
		m.pending.Append(blk)
	}
	u.Release()
	m.process(p, pumpHint)
}

// process drains m.pending: acquire sync if lost, emit every packet
// whose confirming sync bytes are all present, stop when the buffer
// runs out of confirmable data.
func (m *Mgr) process(p *upipe.Pipe, pumpHint any) {
	for m.pending != nil {
		if !m.synced {
			if !m.acquire(p) {
				return
			}
		}
		switch m.confirm(0) {
		case confirmed:
			m.emit(p, pumpHint)
		case broken:
			m.synced = false
			upipe.Throw(p, upipe.EventSyncLost)
			m.skip(1)
		case starved:
			return
		}
	}
}

type confirmation int

const (
	confirmed confirmation = iota // all syncCount positions present and valid
	broken                        // a present position is not a sync byte
	starved                       // not enough data to decide
)

// confirm checks the sync bytes at offset, offset+188, ... for
// syncCount positions.
func (m *Mgr) confirm(offset int) confirmation {
	for k := 0; k < m.syncCount; k++ {
		pos := offset + k*tsPacketSize
		if pos >= m.pending.Size() {
			return starved
		}
		b, err := m.pending.Peek(pos, 1)
		if err != nil || b[0] != tsSyncByte {
			return broken
		}
	}
	return confirmed
}

// acquire scans the pending buffer for a position satisfying the full
// sync requirement, drops everything before it, and throws
// EventSyncAcquired. Returns false when the buffer has no confirmable
// position yet (bytes that can no longer start a packet are dropped,
// the rest kept for the next Input).
func (m *Mgr) acquire(p *upipe.Pipe) bool {
	offset := 0
	for {
		if !m.pending.Scan(&offset, tsSyncByte) {
			// no sync byte at all: nothing here can start a packet
			m.skip(m.pending.Size())
			return false
		}
		switch m.confirm(offset) {
		case confirmed:
			m.skip(offset)
			m.synced = true
			upipe.Throw(p, upipe.EventSyncAcquired)
			return true
		case broken:
			offset++
		case starved:
			m.skip(offset)
			return false
		}
	}
}

// emit splices the head packet out of the pending buffer and forwards
// it (or queues it while no output is wired).
func (m *Mgr) emit(p *upipe.Pipe, pumpHint any) {
	pkt, err := m.pending.Splice(0, tsPacketSize)
	if err != nil {
		upipe.Throw(p, upipe.EventFatal, uerror.Wrap("tssync.emit", err))
		return
	}
	m.skip(tsPacketSize)
	out := uref.FromBuffer(pkt)
	out.Clock = m.clock
	if m.Blocked() {
		m.Queue(out, pumpHint)
		return
	}
	upipe.ForwardInput(p, out, pumpHint)
}

// skip drops n bytes off the front of the pending buffer, releasing it
// entirely when it empties.
func (m *Mgr) skip(n int) {
	if n <= 0 {
		return
	}
	if n >= m.pending.Size() {
		m.pending.Release()
		m.pending = nil
		return
	}
	m.pending.Resize(-n, 0)
}

// flushTail emits a final buffered packet that starts on a sync byte
// and is complete, without requiring its confirming sync bytes, then
// drops whatever remains.
func (m *Mgr) flushTail(p *upipe.Pipe, pumpHint any) {
	for m.pending != nil && m.synced && m.pending.Size() >= tsPacketSize {
		b, err := m.pending.Peek(0, 1)
		if err != nil || b[0] != tsSyncByte {
			break
		}
		m.emit(p, pumpHint)
	}
	if m.pending != nil {
		m.pending.Release()
		m.pending = nil
	}
}

func (m *Mgr) flushOutput(p *upipe.Pipe) {
	m.Flush(func(u *uref.Uref, pumpHint any) {
		upipe.ForwardInput(p, u, pumpHint)
	})
}

func (m *Mgr) Control(p *upipe.Pipe, cmd upipe.Command, args ...any) error {
	switch cmd {
	case upipe.SetFlowDef:
		return m.setFlowDef(p, args)
	case upipe.GetFlowDef:
		return getPtr(args, m.FlowDef())
	case upipe.SetOutput:
		out, _ := firstArg[*upipe.Pipe](args)
		p.SetOutput(out)
		if out != nil {
			m.flushOutput(p)
		}
		return nil
	case upipe.GetOutput:
		return getPtr(args, p.Output())
	case upipe.AttachUpumpMgr:
		loop, _ := firstArg[upump.Loop](args)
		m.SetUpumpMgr(loop)
		return nil
	case SetSyncCount:
		n, ok := firstArg[int](args)
		if !ok || n < 1 {
			return uerror.New("tssync.SET-SYNC-COUNT", uerror.CodeInvalid, "want a positive int")
		}
		m.syncCount = n
		return nil
	case GetSyncCount:
		return getPtr(args, m.syncCount)
	case Flush:
		m.flushTail(p, nil)
		return nil
	default:
		return uerror.New("tssync.Control", uerror.CodeUnhandled, "command not recognised")
	}
}

// setFlowDef accepts any block. flow and forwards the aligned
// derivative downstream.
func (m *Mgr) setFlowDef(p *upipe.Pipe, args []any) error {
	def, ok := firstArg[*uref.Uref](args)
	if !ok || def == nil {
		return uerror.New("tssync.SET-FLOW-DEF", uerror.CodeInvalid, "missing flow-def arg")
	}
	if !def.FlowDefHasPrefix("block.") {
		return uerror.New("tssync.SET-FLOW-DEF", uerror.CodeInvalid, "flow-def must be block.*")
	}
	m.SetFlowDef(def)
	aligned := def.Dup()
	aligned.SetFlowDef("block.mpegts.")
	defer aligned.Release()
	if out := p.Output(); out != nil {
		if err := out.Mgr().Control(out, upipe.SetFlowDef, aligned); err != nil {
			return err
		}
	}
	return upipe.Throw(p, upipe.EventNewFlowDef, aligned)
}

func firstArg[T any](args []any) (T, bool) {
	var zero T
	if len(args) != 1 {
		return zero, false
	}
	v, ok := args[0].(T)
	return v, ok
}

func getPtr[T any](args []any, val T) error {
	ptr, ok := firstArg[*T](args)
	if !ok {
		return uerror.New("tssync.Control", uerror.CodeInvalid, "expected a pointer out-arg")
	}
	*ptr = val
	return nil
}
