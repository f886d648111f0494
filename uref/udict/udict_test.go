package udict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetString(t *testing.T) {
	d := New()
	d.SetString("flow.name", "channel-1")
	v, ok := d.GetString("flow.name")
	require.True(t, ok)
	require.Equal(t, "channel-1", v)
}

func TestGetWrongTypeReturnsInvalid(t *testing.T) {
	d := New()
	d.SetString("flow.name", "x")
	_, ok, err := d.Get("flow.name", TypeUint)
	require.False(t, ok)
	require.Error(t, err)
}

func TestIterationOrderIsInsertionOrder(t *testing.T) {
	d := New()
	d.SetString("flow.def", "block.")
	d.SetUint64("pic.hsize", 1920)
	d.SetUint64("pic.vsize", 1080)

	var names []string
	d.Iterate(func(name string, typ Type, val Value) bool {
		names = append(names, name)
		return true
	})
	require.Equal(t, []string{"flow.def", "pic.hsize", "pic.vsize"}, names)
}

func TestOverwritePreservesPosition(t *testing.T) {
	d := New()
	d.SetUint64("a", 1)
	d.SetUint64("b", 2)
	d.SetUint64("a", 99)

	var names []string
	d.Iterate(func(name string, typ Type, val Value) bool {
		names = append(names, name)
		return true
	})
	require.Equal(t, []string{"a", "b"}, names)
	v, _ := d.GetUint64("a")
	require.Equal(t, uint64(99), v)
}

func TestDeleteThenReinsertAppendsAtEnd(t *testing.T) {
	d := New()
	d.SetUint64("a", 1)
	d.SetUint64("b", 2)
	d.Delete("a")
	d.SetUint64("a", 3)

	var names []string
	d.Iterate(func(name string, typ Type, val Value) bool {
		names = append(names, name)
		return true
	})
	require.Equal(t, []string{"b", "a"}, names)
}

func TestDupPreservesOrderAndIsIndependent(t *testing.T) {
	d := New()
	d.SetUint64("a", 1)
	d.SetUint64("b", 2)

	dup := d.Dup()
	dup.SetUint64("c", 3)

	require.Equal(t, 2, d.Len())
	require.Equal(t, 3, dup.Len())

	var names []string
	dup.Iterate(func(name string, typ Type, val Value) bool {
		names = append(names, name)
		return true
	})
	require.Equal(t, []string{"a", "b", "c"}, names)
}

func TestDetachDupsOnlyWhenShared(t *testing.T) {
	d := New()
	d.SetUint64("a", 1)

	// Single reference: Detach returns the same handle.
	same := d.Detach()
	require.Same(t, d, same)

	// Shared reference: Detach must copy.
	shared := d.Acquire()
	detached := shared.Detach()
	require.NotSame(t, d, detached)
	v, _ := detached.GetUint64("a")
	require.Equal(t, uint64(1), v)
}

func TestShorthandRoundTrip(t *testing.T) {
	d := New()
	d.SetShorthand(7, TypeUint, Value{U64: 42})
	v, ok, err := d.GetShorthand(7, TypeUint)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), v.U64)
}

func TestOpaqueDupIsDeepCopy(t *testing.T) {
	d := New()
	d.Set("raw", TypeOpaque, Value{Opaque: []byte{1, 2, 3}})
	dup := d.Dup()

	v, _, _ := dup.Get("raw", TypeOpaque)
	v.Opaque[0] = 0xFF

	orig, _, _ := d.Get("raw", TypeOpaque)
	require.Equal(t, byte(1), orig.Opaque[0])
}
