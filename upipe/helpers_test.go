package upipe

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/upipe-go/upipe/upump/upumpunix"
	"github.com/upipe-go/upipe/uref"
)

func TestFlowDefHelperStoresAndReturnsAccepted(t *testing.T) {
	var h FlowDefHelper
	require.Nil(t, h.FlowDef())

	def := uref.New()
	def.SetFlowDef("block.mpegtsaligned.")

	h.SetFlowDef(def)
	require.True(t, h.HasPrefix("block."))
	require.False(t, h.HasPrefix("pic."))

	h.Release()
}

func TestFlowDefHelperReleasesPreviousOnResubscribe(t *testing.T) {
	var h FlowDefHelper
	first := uref.New()
	first.SetFlowDef("block.")
	h.SetFlowDef(first)

	second := uref.New()
	second.SetFlowDef("pic.")
	h.SetFlowDef(second)

	require.True(t, h.HasPrefix("pic."))
	h.Release()
}

func TestUpumpMgrHelperCachesLoop(t *testing.T) {
	var h UpumpMgrHelper
	require.False(t, h.HasUpumpMgr())

	loop, err := upumpunix.New()
	require.NoError(t, err)
	defer loop.StopAll()

	h.SetUpumpMgr(loop)
	require.True(t, h.HasUpumpMgr())
	require.Equal(t, loop, h.UpumpMgr())
}

func TestInputQueueHelperBuffersUntilFlush(t *testing.T) {
	var h InputQueueHelper
	h.Block()

	u1 := uref.New()
	u2 := uref.New()
	h.Queue(u1, "a")
	h.Queue(u2, "b")

	var delivered []string
	h.Flush(func(u *uref.Uref, pumpHint any) {
		delivered = append(delivered, pumpHint.(string))
	})

	require.Equal(t, []string{"a", "b"}, delivered)
	require.False(t, h.Blocked())
}

func TestInputQueueHelperReblockingDuringFlushStopsDelivery(t *testing.T) {
	var h InputQueueHelper
	h.Block()
	h.Queue(uref.New(), 1)
	h.Queue(uref.New(), 2)
	h.Queue(uref.New(), 3)

	var delivered []int
	h.Flush(func(u *uref.Uref, pumpHint any) {
		delivered = append(delivered, pumpHint.(int))
		if pumpHint.(int) == 1 {
			h.Block() // simulate re-registering a request mid-flush
		}
	})

	require.Equal(t, []int{1}, delivered)
	require.True(t, h.Blocked())

	h.Drop()
}
