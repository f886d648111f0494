package uref

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/ubuf/umem"
)

func TestDupSharesBufferAndDictHandles(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := block.New(mgr, 4)
	require.NoError(t, err)

	u := FromBuffer(b)
	u.SetFlowDef("block.mpegts.")
	u.Clock.SetDts(100)

	dup := u.Dup()
	defer u.Release()
	defer dup.Release()

	def, ok := dup.FlowDef()
	require.True(t, ok)
	require.Equal(t, "block.mpegts.", def)

	dts, ok := dup.Clock.Dts()
	require.True(t, ok)
	require.EqualValues(t, 100, dts)
}

func TestAttributeCopyOnWriteIsolatesDupFromOriginal(t *testing.T) {
	u := New()
	u.SetFlowDef("pic.")

	dup := u.Dup()
	defer u.Release()
	defer dup.Release()

	u.SetFlowName("original")
	dup.SetFlowName("duplicate")

	name, _ := u.FlowName()
	require.Equal(t, "original", name)
	dname, _ := dup.FlowName()
	require.Equal(t, "duplicate", dname)
}

func TestClockPtsAndCrDerivedFromDts(t *testing.T) {
	u := New()
	u.Clock.SetDts(1000)
	require.True(t, u.Clock.SetPts(1040))
	require.True(t, u.Clock.SetCr(960))

	pts, ok := u.Clock.Pts()
	require.True(t, ok)
	require.EqualValues(t, 1040, pts)

	cr, ok := u.Clock.Cr()
	require.True(t, ok)
	require.EqualValues(t, 960, cr)
}

func TestRapSysRejectsRegression(t *testing.T) {
	u := New()
	require.True(t, u.Clock.SetRapSys(100))
	require.True(t, u.Clock.SetRapSys(200))
	require.False(t, u.Clock.SetRapSys(150))
	require.EqualValues(t, 200, u.Clock.RapSys)
}

func TestFlowDefPrefixMatch(t *testing.T) {
	u := New()
	u.SetFlowDef("block.mpegts.aligned.")
	require.True(t, u.FlowDefHasPrefix("block."))
	require.True(t, u.FlowDefHasPrefix("block.mpegts."))
	require.False(t, u.FlowDefHasPrefix("pic."))
}

func TestPicAndSoundAttributeNamespaces(t *testing.T) {
	u := New()
	u.SetPicHSize(1920)
	u.SetPicVSize(1080)
	u.SetSoundRate(48000)
	u.SetSoundChannels(2)

	h, ok := u.PicHSize()
	require.True(t, ok)
	require.EqualValues(t, 1920, h)

	rate, ok := u.SoundRate()
	require.True(t, ok)
	require.EqualValues(t, 48000, rate)
}

func TestDumpRendersAttributesAndClock(t *testing.T) {
	u := New()
	u.SetFlowDef("block.mpegts.")
	u.Clock.SetDts(42)

	var buf bytes.Buffer
	u.Dump(&buf)

	out := buf.String()
	require.Contains(t, out, "flow.def")
	require.Contains(t, out, "dts=42")
}
