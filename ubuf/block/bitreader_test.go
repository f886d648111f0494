package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upipe-go/upipe/ubuf/umem"
)

func TestFillBitsExtractsPidAcrossByteBoundary(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 4)
	require.NoError(t, err)
	defer b.Release()
	// sync(8) transport_error(1) payload_start(1) priority(1) pid(13)
	require.NoError(t, b.WriteAt(0, []byte{0x47, 0x41, 0x00, 0x00}))

	r := NewBitReader(b, 0)
	sync := r.FillBits(8)
	require.EqualValues(t, 0x47, sync)

	r.SkipBits(3)
	pid := r.FillBits(13)
	require.EqualValues(t, 0x100, pid)
	require.False(t, r.Overflow())
	require.Equal(t, 24, r.PositionInBits())
}

func TestShowBitsDoesNotConsume(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 1)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte{0xAB}))

	r := NewBitReader(b, 0)
	peeked := r.ShowBits(4)
	require.EqualValues(t, 0xA, peeked)
	require.Equal(t, 0, r.PositionInBits())

	consumed := r.FillBits(4)
	require.EqualValues(t, 0xA, consumed)
	require.Equal(t, 4, r.PositionInBits())
}

func TestFillBitsOverflowIsSticky(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 1)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte{0xFF}))

	r := NewBitReader(b, 0)
	r.FillBits(8)
	require.False(t, r.Overflow())

	v := r.FillBits(8)
	require.EqualValues(t, 0, v)
	require.True(t, r.Overflow())

	v2 := r.FillBits(4)
	require.EqualValues(t, 0, v2)
	require.True(t, r.Overflow())
}
