// Package pidfilter implements a PID filter: it consumes
// "block.mpegtsaligned." records (188-byte MPEG transport-stream
// packets already aligned to the sync byte by an upstream framer,
// e.g. modules/rtpd for RTP payload type 33), inspects each packet's 13-bit PID field, and
// forwards only the packets whose PID is in a caller-configured
// allow-set to its one output.
//
// One *Mgr instance per pipe captures the pipe's private state
// directly (pids plus the FlowDefHelper/UpumpMgrHelper/
// InputQueueHelper mixins) rather than a shared vtable plus an
// identity-keyed registry, since nothing here needs many pipes
// sharing one manager instance. Records arriving before SET-OUTPUT
// wires a downstream pipe are buffered via InputQueueHelper and
// flushed in order once it does.
package pidfilter

import (
	"sort"

	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/upump"
	"github.com/upipe-go/upipe/uref"
)

// Signature identifies pidfilter's manager and tags its local commands.
const Signature = "upipe.pidfilter"

// SetPids replaces the allow-set: only packets whose PID appears in
// pids are forwarded. args: (pids []uint16).
var SetPids = upipe.NewLocalCommand(Signature, 0)

// GetPids returns the current allow-set. args: (out *[]uint16).
var GetPids = upipe.NewLocalCommand(Signature, 1)

const tsPacketSize = 188

// Mgr is one pidfilter pipe's manager and private state combined.
type Mgr struct {
	upipe.FlowDefHelper
	upipe.UpumpMgrHelper
	upipe.InputQueueHelper

	pids map[uint16]bool
}

// New allocates a pidfilter pipe with the given initial PID allow-set
// (may be empty; replace it later via Control(SetPids, ...)). Throws
// EventReady before returning.
func New(probe upipe.Probe, pids []uint16) (*upipe.Pipe, error) {
	m := &Mgr{pids: make(map[uint16]bool, len(pids))}
	for _, pid := range pids {
		m.pids[pid] = true
	}
	m.Block() // no output wired yet; buffer until SET-OUTPUT arrives
	p := upipe.New(m, probe)
	if err := upipe.Throw(p, upipe.EventReady); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mgr) Signature() string { return Signature }

func (m *Mgr) Alloc(probe upipe.Probe, signature string, args ...any) (*upipe.Pipe, error) {
	return nil, uerror.New("pidfilter.Alloc", uerror.CodeInvalid, "use pidfilter.New, not Mgr.Alloc, to construct a pidfilter pipe")
}

// Input consumes one block.mpegtsaligned. record: a 188-byte-aligned
// TS packet (or a multiple of 188, the first packet inspected).
// Packets whose PID is not in the allow-set are silently dropped;
// allowed packets are forwarded downstream unmodified.
func (m *Mgr) Input(p *upipe.Pipe, u *uref.Uref, pumpHint any) {
	pid, ok := packetPID(u)
	if !ok {
		u.Release()
		upipe.Throw(p, upipe.EventError, uerror.CodeInvalid, "pidfilter: short or non-block packet")
		return
	}
	if !m.pids[pid] {
		u.Release()
		return
	}
	if m.Blocked() {
		m.Queue(u, pumpHint)
		return
	}
	upipe.ForwardInput(p, u, pumpHint)
}

// flush delivers every record buffered while no output was wired, in
// arrival order, once SET-OUTPUT supplies one.
func (m *Mgr) flush(p *upipe.Pipe) {
	m.Flush(func(u *uref.Uref, pumpHint any) {
		upipe.ForwardInput(p, u, pumpHint)
	})
}

// packetPID extracts the 13-bit PID from the first TS packet header
// in u's block buffer: byte 1's low 5 bits are the PID's high bits,
// byte 2 is the low 8 bits (the top 3 bits of byte 1 are the
// transport-error/payload-unit-start/priority flags, not part of the
// PID).
func packetPID(u *uref.Uref) (uint16, bool) {
	blk, ok := u.Buffer.(*block.Block)
	if !ok || blk.Size() < 3 {
		return 0, false
	}
	header, err := blk.Peek(0, 3)
	if err != nil {
		return 0, false
	}
	return uint16(header[1]&0x1f)<<8 | uint16(header[2]), true
}

// Control implements the subset of well-known commands this module
// needs plus its two local ones.
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
			m.flush(p)
		}
		return nil
	case upipe.GetOutput:
		return getPtr(args, p.Output())
	case upipe.AttachUpumpMgr:
		loop, _ := firstArg[upump.Loop](args)
		m.SetUpumpMgr(loop)
		return nil
	case SetPids:
		return m.setPids(args)
	case GetPids:
		return getPtr(args, m.sortedPids())
	default:
		return uerror.New("pidfilter.Control", uerror.CodeUnhandled, "command not recognised")
	}
}

func (m *Mgr) setFlowDef(p *upipe.Pipe, args []any) error {
	def, ok := firstArg[*uref.Uref](args)
	if !ok || def == nil {
		return uerror.New("pidfilter.SET-FLOW-DEF", uerror.CodeInvalid, "missing flow-def arg")
	}
	if !def.FlowDefHasPrefix("block.mpegtsaligned.") {
		return uerror.New("pidfilter.SET-FLOW-DEF", uerror.CodeInvalid, "flow-def must be block.mpegtsaligned.*")
	}
	accepted := m.SetFlowDef(def)
	if out := p.Output(); out != nil {
		if err := out.Mgr().Control(out, upipe.SetFlowDef, accepted); err != nil {
			return err
		}
	}
	return upipe.Throw(p, upipe.EventNewFlowDef, accepted)
}

func (m *Mgr) setPids(args []any) error {
	pids, ok := firstArg[[]uint16](args)
	if !ok {
		return uerror.New("pidfilter.SET-PIDS", uerror.CodeInvalid, "want []uint16")
	}
	m.pids = make(map[uint16]bool, len(pids))
	for _, pid := range pids {
		m.pids[pid] = true
	}
	return nil
}

func (m *Mgr) sortedPids() []uint16 {
	out := make([]uint16, 0, len(m.pids))
	for pid := range m.pids {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
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
		return uerror.New("pidfilter.Control", uerror.CodeInvalid, "expected a pointer out-arg")
	}
	*ptr = val
	return nil
}
