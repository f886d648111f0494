package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upipe-go/upipe/ubuf/umem"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 16)
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.WriteAt(0, []byte("hello world!!!!!")))
	got, err := b.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "hello world!!!!!", string(got))
}

func TestDupSharesPayloadUntilWritten(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 8)
	require.NoError(t, err)
	require.NoError(t, b.WriteAt(0, []byte("aaaaaaaa")))

	dup := b.Dup().(*Block)
	defer b.Release()
	defer dup.Release()

	// Writing through the source block must not be observed through dup:
	// region.single() is false while both handles hold it, so Write
	// detaches a private copy first.
	require.NoError(t, b.WriteAt(0, []byte("bbbbbbbb")))

	origData, err := b.ReadAll()
	require.NoError(t, err)
	dupData, err := dup.ReadAll()
	require.NoError(t, err)

	require.Equal(t, "bbbbbbbb", string(origData))
	require.Equal(t, "aaaaaaaa", string(dupData))
}

func TestResizeThenNegativeResizeRestoresOriginal(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 8)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte("12345678")))

	require.NoError(t, b.Resize(4, 4))
	require.Equal(t, 16, b.Size())

	require.NoError(t, b.Resize(-4, -4))
	require.Equal(t, 8, b.Size())

	got, err := b.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "12345678", string(got))
}

func TestSpliceIsAZeroCopyView(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 10)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte("0123456789")))

	view, err := b.Splice(2, 5)
	require.NoError(t, err)
	defer view.Release()

	got, err := view.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "23456", string(got))
}

func TestSpliceAcrossMultipleSegments(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 4)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte("abcd")))
	require.NoError(t, b.Resize(0, 4))
	require.NoError(t, b.WriteAt(4, []byte("efgh")))

	view, err := b.Splice(2, 4)
	require.NoError(t, err)
	defer view.Release()

	got, err := view.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "cdef", string(got))
}

func TestTruncateShortensBlock(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 10)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte("0123456789")))

	require.NoError(t, b.Truncate(4))
	require.Equal(t, 4, b.Size())
	got, err := b.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "0123", string(got))
}

func TestAppendConcatenatesWithoutCopy(t *testing.T) {
	mgr := umem.NewDefaultManager()
	a, err := New(mgr, 3)
	require.NoError(t, err)
	defer a.Release()
	require.NoError(t, a.WriteAt(0, []byte("abc")))

	c, err := New(mgr, 3)
	require.NoError(t, err)
	require.NoError(t, c.WriteAt(0, []byte("def")))

	a.Append(c)
	c.Release()

	require.Equal(t, 6, a.Size())
	got, err := a.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(got))
}

func TestExtractProducesIndependentCopy(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 8)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte("abcdefgh")))

	ex, err := b.Extract(2, 4)
	require.NoError(t, err)
	defer ex.Release()

	require.NoError(t, b.WriteAt(2, []byte("ZZZZ")))

	got, err := ex.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "cdef", string(got))
}

func TestFindLocatesPatternWithMask(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 6)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte{0x47, 0x00, 0x00, 0x47, 0x1F, 0xFF}))

	off := 1
	ok := b.Find(&off, []byte{0x47}, nil)
	require.True(t, ok)
	require.Equal(t, 3, off)
}

func TestScanFindsFirstMatchingByte(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 4)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte{0x00, 0x00, 0x47, 0x00}))

	off := 0
	require.True(t, b.Scan(&off, 0x47))
	require.Equal(t, 2, off)
}

func TestMatchChecksRangeUnderMask(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 2)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, b.WriteAt(0, []byte{0x47, 0x1F}))

	ok, err := b.Match(0, []byte{0x47, 0x00}, []byte{0xFF, 0x00})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWriteGrowsBlockWhenOffsetBeyondCurrentSize(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 0)
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.WriteAt(0, []byte("grown")))
	require.Equal(t, 5, b.Size())
	got, err := b.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "grown", string(got))
}

func TestUnmapWithoutMapErrors(t *testing.T) {
	mgr := umem.NewDefaultManager()
	b, err := New(mgr, 1)
	require.NoError(t, err)
	defer b.Release()

	require.Error(t, b.Unmap())
}

func TestNewFromBytesWrapsWithoutCopy(t *testing.T) {
	data := []byte("zero-copy")
	b := NewFromBytes(data)
	defer b.Release()

	require.Equal(t, len(data), b.Size())
	got, err := b.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "zero-copy", string(got))
}
