package rtpd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/uref"
)

const payloadSize = 1328 - rtpHeaderSize

// rtpPacket builds a minimal RTP packet: version 2, no CSRC, no
// extension, MPEG-TS payload type, the given sequence number.
func rtpPacket(seq uint16) *uref.Uref {
	data := make([]byte, rtpHeaderSize+payloadSize)
	data[0] = 2 << 6
	data[1] = rtpTypeTS
	data[2] = byte(seq >> 8)
	data[3] = byte(seq)
	return uref.FromBuffer(block.NewFromBytes(data))
}

func TestSequenceGapSetsDiscontinuityAndCountsLost(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	var received []*uref.Uref
	sinkMgr := &upipe.MockMgr{Sig: "sink", InputFunc: func(sp *upipe.Pipe, u *uref.Uref, pumpHint any) {
		received = append(received, u)
	}}
	sink := upipe.New(sinkMgr, nil)
	require.NoError(t, p.Mgr().Control(p, upipe.SetOutput, sink))

	def := uref.New()
	def.SetFlowDef("block.rtp.")
	require.NoError(t, p.Mgr().Control(p, upipe.SetFlowDef, def))

	p.Mgr().Input(p, rtpPacket(1), nil)
	p.Mgr().Input(p, rtpPacket(42), nil)
	require.Len(t, received, 2)

	_, ok := received[0].FlowDiscontinuity()
	require.False(t, ok, "first packet carries no discontinuity")
	disc, ok := received[1].FlowDiscontinuity()
	require.True(t, ok)
	require.True(t, disc)

	var lost uint64
	require.NoError(t, p.Mgr().Control(p, GetPacketsLost, &lost))
	require.Equal(t, uint64(42-1-1), lost)
}

func TestStripsHeaderAndDerivesOutputFlowDef(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	var received []*uref.Uref
	var forwardedDef *uref.Uref
	sinkMgr := &upipe.MockMgr{
		Sig: "sink",
		InputFunc: func(sp *upipe.Pipe, u *uref.Uref, pumpHint any) {
			received = append(received, u)
		},
		ControlFunc: func(sp *upipe.Pipe, cmd upipe.Command, args ...any) error {
			if cmd == upipe.SetFlowDef {
				forwardedDef = args[0].(*uref.Uref)
			}
			return nil
		},
	}
	sink := upipe.New(sinkMgr, nil)
	require.NoError(t, p.Mgr().Control(p, upipe.SetOutput, sink))

	p.Mgr().Input(p, rtpPacket(7), nil)
	require.Len(t, received, 1)
	require.Equal(t, payloadSize, received[0].Buffer.(*block.Block).Size())

	require.NotNil(t, forwardedDef, "output flow-def is forwarded downstream on first packet")
	got, ok := forwardedDef.FlowDef()
	require.True(t, ok)
	require.Equal(t, "block.mpegtsaligned.", got)
}

func TestInputBeforeOutputIsQueuedThenFlushedOnSetOutput(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	p.Mgr().Input(p, rtpPacket(1), nil)
	p.Mgr().Input(p, rtpPacket(2), nil)

	sinkMgr := &upipe.MockMgr{Sig: "sink"}
	sink := upipe.New(sinkMgr, nil)
	require.NoError(t, p.Mgr().Control(p, upipe.SetOutput, sink))
	require.Equal(t, 2, sinkMgr.InputCalls, "queued records flush in order once SET-OUTPUT arrives")
}

func TestSetFlowDefRejectsWrongPrefix(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	def := uref.New()
	def.SetFlowDef("block.mpegts.")
	require.Error(t, p.Mgr().Control(p, upipe.SetFlowDef, def))
}

func TestMalformedPacketIsDroppedWithError(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	var thrown upipe.Event
	p.SetProbe(upipe.ProbeFunc(func(pp *upipe.Pipe, e upipe.Event, args ...any) (bool, error) {
		thrown = e
		return true, nil
	}))

	short := uref.FromBuffer(block.NewFromBytes([]byte{2 << 6, rtpTypeTS, 0, 1}))
	p.Mgr().Input(p, short, nil)
	require.Equal(t, upipe.EventError, thrown)
}
