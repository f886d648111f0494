// Package rtpd implements an RTP decapsulator: it consumes
// "block.rtp." records, strips the RTP header (fixed part, CSRC list
// and extension if present) in place, tracks the 16-bit sequence
// number, and forwards the bare payload downstream. A gap in the
// sequence marks the first record after the gap with the
// "flow.discontinuity" attribute and adds the missing count to a
// packets-lost counter readable via GetPacketsLost.
//
// The output flow definition is derived from the payload type of the
// first packet seen: type 33 (MPEG transport stream) yields
// "block.mpegtsaligned.", anything else the generic "block.". It is
// forwarded downstream and announced via EventNewFlowDef the first
// time it is known, and again if the payload type changes mid-flow.
//
// Same per-pipe-manager idiom as modules/pidfilter: one *Mgr instance
// holds the pipe's private state directly.
package rtpd

import (
	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/upump"
	"github.com/upipe-go/upipe/uref"
)

// Signature identifies rtpd's manager and tags its local commands.
const Signature = "upipe.rtpd"

// GetPacketsLost returns the cumulative count of sequence numbers
// skipped over since the first packet. args: (out *uint64).
var GetPacketsLost = upipe.NewLocalCommand(Signature, 0)

const (
	rtpHeaderSize = 12
	rtpTypeTS     = 33
)

// Mgr is one rtpd pipe's manager and private state combined.
type Mgr struct {
	upipe.FlowDefHelper
	upipe.UpumpMgrHelper
	upipe.InputQueueHelper

	outputDef *uref.Uref // derived from the payload type, nil until known
	lastType  uint8

	expected    uint16 // next expected sequence number
	expectedSet bool
	lost        uint64
}

// New allocates an rtpd pipe. Throws EventReady before returning.
func New(probe upipe.Probe) (*upipe.Pipe, error) {
	m := &Mgr{}
	m.Block() // no output wired yet; buffer until SET-OUTPUT arrives
	p := upipe.New(m, probe)
	if err := upipe.Throw(p, upipe.EventReady); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mgr) Signature() string { return Signature }

func (m *Mgr) Alloc(probe upipe.Probe, signature string, args ...any) (*upipe.Pipe, error) {
	return nil, uerror.New("rtpd.Alloc", uerror.CodeInvalid, "use rtpd.New, not Mgr.Alloc, to construct an rtpd pipe")
}

// Input consumes one block.rtp. record, strips the header in place and
// forwards the payload. Malformed packets (short, wrong version) are
// dropped with an EventError.
func (m *Mgr) Input(p *upipe.Pipe, u *uref.Uref, pumpHint any) {
	blk, ok := u.Buffer.(*block.Block)
	if !ok {
		u.Release()
		upipe.Throw(p, upipe.EventError, uerror.CodeInvalid, "rtpd: non-block record")
		return
	}
	hdrLen, seq, ptype, ok := parseHeader(blk)
	if !ok {
		u.Release()
		upipe.Throw(p, upipe.EventError, uerror.CodeInvalid, "rtpd: malformed RTP header")
		return
	}

	if m.outputDef == nil || ptype != m.lastType {
		m.setOutputDef(p, ptype)
	}

	if m.expectedSet && seq != m.expected {
		m.lost += uint64(seq - m.expected) // uint16 subtraction wraps mod 65536
		u.SetFlowDiscontinuity(true)
	}
	m.expected = seq + 1
	m.expectedSet = true

	if err := blk.Resize(-hdrLen, 0); err != nil {
		u.Release()
		upipe.Throw(p, upipe.EventError, uerror.CodeInvalid, "rtpd: payload shorter than header")
		return
	}
	if m.Blocked() {
		m.Queue(u, pumpHint)
		return
	}
	upipe.ForwardInput(p, u, pumpHint)
}

// parseHeader validates the fixed RTP header and returns the total
// header length (fixed part + CSRC list + extension), the sequence
// number and the payload type.
func parseHeader(blk *block.Block) (hdrLen int, seq uint16, ptype uint8, ok bool) {
	if blk.Size() < rtpHeaderSize {
		return 0, 0, 0, false
	}
	hdr, err := blk.Peek(0, rtpHeaderSize)
	if err != nil || hdr[0]>>6 != 2 {
		return 0, 0, 0, false
	}
	hdrLen = rtpHeaderSize + 4*int(hdr[0]&0x0f)
	if hdr[0]&0x10 != 0 { // extension bit
		if blk.Size() < hdrLen+4 {
			return 0, 0, 0, false
		}
		ext, err := blk.Peek(hdrLen, 4)
		if err != nil {
			return 0, 0, 0, false
		}
		hdrLen += 4 + 4*int(uint16(ext[2])<<8|uint16(ext[3]))
	}
	if blk.Size() < hdrLen {
		return 0, 0, 0, false
	}
	seq = uint16(hdr[2])<<8 | uint16(hdr[3])
	ptype = hdr[1] & 0x7f
	return hdrLen, seq, ptype, true
}

// setOutputDef derives the output flow definition from the payload
// type, forwards it downstream and announces it upward.
func (m *Mgr) setOutputDef(p *upipe.Pipe, ptype uint8) {
	def := uref.New()
	if ptype == rtpTypeTS {
		def.SetFlowDef("block.mpegtsaligned.")
	} else {
		def.SetFlowDef("block.")
	}
	if m.outputDef != nil {
		m.outputDef.Release()
	}
	m.outputDef = def
	m.lastType = ptype
	if out := p.Output(); out != nil {
		out.Mgr().Control(out, upipe.SetFlowDef, m.outputDef)
	}
	upipe.Throw(p, upipe.EventNewFlowDef, m.outputDef)
}

func (m *Mgr) flush(p *upipe.Pipe) {
	m.Flush(func(u *uref.Uref, pumpHint any) {
		upipe.ForwardInput(p, u, pumpHint)
	})
}

func (m *Mgr) Control(p *upipe.Pipe, cmd upipe.Command, args ...any) error {
	switch cmd {
	case upipe.SetFlowDef:
		return m.setFlowDef(args)
	case upipe.GetFlowDef:
		return getPtr(args, m.FlowDef())
	case upipe.SetOutput:
		out, _ := firstArg[*upipe.Pipe](args)
		p.SetOutput(out)
		if out != nil {
			if m.outputDef != nil {
				if err := out.Mgr().Control(out, upipe.SetFlowDef, m.outputDef); err != nil {
					return err
				}
			}
			m.flush(p)
		}
		return nil
	case upipe.GetOutput:
		return getPtr(args, p.Output())
	case upipe.AttachUpumpMgr:
		loop, _ := firstArg[upump.Loop](args)
		m.SetUpumpMgr(loop)
		return nil
	case GetPacketsLost:
		return getPtr(args, m.lost)
	default:
		return uerror.New("rtpd.Control", uerror.CodeUnhandled, "command not recognised")
	}
}

func (m *Mgr) setFlowDef(args []any) error {
	def, ok := firstArg[*uref.Uref](args)
	if !ok || def == nil {
		return uerror.New("rtpd.SET-FLOW-DEF", uerror.CodeInvalid, "missing flow-def arg")
	}
	if !def.FlowDefHasPrefix("block.rtp.") {
		return uerror.New("rtpd.SET-FLOW-DEF", uerror.CodeInvalid, "flow-def must be block.rtp.*")
	}
	m.SetFlowDef(def)
	return nil
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
		return uerror.New("rtpd.Control", uerror.CodeInvalid, "expected a pointer out-arg")
	}
	*ptr = val
	return nil
}
