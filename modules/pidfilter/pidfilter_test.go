package pidfilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/uref"
)

func tsPacket(pid uint16) *uref.Uref {
	data := make([]byte, tsPacketSize)
	data[0] = 0x47
	data[1] = byte(pid >> 8 & 0x1f)
	data[2] = byte(pid)
	return uref.FromBuffer(block.NewFromBytes(data))
}

func TestForwardsAllowedPIDAndDropsOthers(t *testing.T) {
	p, err := New(nil, []uint16{100})
	require.NoError(t, err)

	sinkMgr := &upipe.MockMgr{Sig: "sink"}
	sink := upipe.New(sinkMgr, nil)
	require.NoError(t, p.Mgr().Control(p, upipe.SetOutput, sink))

	p.Mgr().Input(p, tsPacket(100), nil)
	require.Equal(t, 1, sinkMgr.InputCalls)

	p.Mgr().Input(p, tsPacket(200), nil)
	require.Equal(t, 1, sinkMgr.InputCalls, "PID 200 is not in the allow-set")
}

func TestInputBeforeOutputIsQueuedThenFlushedOnSetOutput(t *testing.T) {
	p, err := New(nil, []uint16{100})
	require.NoError(t, err)

	p.Mgr().Input(p, tsPacket(100), nil)
	p.Mgr().Input(p, tsPacket(100), nil)

	sinkMgr := &upipe.MockMgr{Sig: "sink"}
	sink := upipe.New(sinkMgr, nil)
	require.Equal(t, 0, sinkMgr.InputCalls, "no output wired yet; records stay queued")

	require.NoError(t, p.Mgr().Control(p, upipe.SetOutput, sink))
	require.Equal(t, 2, sinkMgr.InputCalls, "queued records flush in order once SET-OUTPUT arrives")
}

func TestSetPidsReplacesAllowSet(t *testing.T) {
	p, err := New(nil, []uint16{100})
	require.NoError(t, err)

	require.NoError(t, p.Mgr().Control(p, SetPids, []uint16{7, 42}))

	var got []uint16
	require.NoError(t, p.Mgr().Control(p, GetPids, &got))
	require.Equal(t, []uint16{7, 42}, got)

	sinkMgr := &upipe.MockMgr{Sig: "sink"}
	sink := upipe.New(sinkMgr, nil)
	require.NoError(t, p.Mgr().Control(p, upipe.SetOutput, sink))

	p.Mgr().Input(p, tsPacket(100), nil)
	require.Equal(t, 0, sinkMgr.InputCalls, "PID 100 was replaced out of the allow-set")

	p.Mgr().Input(p, tsPacket(42), nil)
	require.Equal(t, 1, sinkMgr.InputCalls)
}

func TestSetFlowDefRejectsWrongPrefix(t *testing.T) {
	p, err := New(nil, nil)
	require.NoError(t, err)

	def := uref.New()
	def.SetFlowDef("pic.")
	err = p.Mgr().Control(p, upipe.SetFlowDef, def)
	require.Error(t, err)
}

func TestSetFlowDefAcceptsAndForwardsDownstream(t *testing.T) {
	p, err := New(nil, nil)
	require.NoError(t, err)

	var forwardedDef *uref.Uref
	sinkMgr := &upipe.MockMgr{Sig: "sink", ControlFunc: func(sp *upipe.Pipe, cmd upipe.Command, args ...any) error {
		if cmd == upipe.SetFlowDef {
			forwardedDef = args[0].(*uref.Uref)
		}
		return nil
	}}
	sink := upipe.New(sinkMgr, nil)
	require.NoError(t, p.Mgr().Control(p, upipe.SetOutput, sink))

	def := uref.New()
	def.SetFlowDef("block.mpegtsaligned.")
	require.NoError(t, p.Mgr().Control(p, upipe.SetFlowDef, def))

	require.Equal(t, 1, sinkMgr.ControlCalls)
	require.NotNil(t, forwardedDef)
	got, ok := forwardedDef.FlowDef()
	require.True(t, ok)
	require.Equal(t, "block.mpegtsaligned.", got)
}

func TestInputDropsShortPacketAndThrowsError(t *testing.T) {
	p, err := New(nil, []uint16{1})
	require.NoError(t, err)

	var thrown upipe.Event
	p.SetProbe(upipe.ProbeFunc(func(pp *upipe.Pipe, e upipe.Event, args ...any) (bool, error) {
		thrown = e
		return true, nil
	}))

	short := uref.FromBuffer(block.NewFromBytes([]byte{0x47, 0x00}))
	p.Mgr().Input(p, short, nil)
	require.Equal(t, upipe.EventError, thrown)
}
