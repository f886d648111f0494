package upump

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockableStartsDeliverable(t *testing.T) {
	b := NewBlockable()
	require.True(t, b.Deliverable())
}

func TestBlockMasksDeliverable(t *testing.T) {
	b := NewBlockable()
	blocker := b.Block()
	require.False(t, b.Deliverable())
	blocker.Release()
	require.True(t, b.Deliverable())
}

func TestMultipleBlockersRequireAllReleases(t *testing.T) {
	b := NewBlockable()
	first := b.Block()
	second := b.Block()
	require.False(t, b.Deliverable())

	first.Release()
	require.False(t, b.Deliverable(), "still masked while second blocker is held")

	second.Release()
	require.True(t, b.Deliverable())
}

func TestBlockerReleaseIsIdempotent(t *testing.T) {
	b := NewBlockable()
	first := b.Block()
	second := b.Block()

	first.Release()
	first.Release() // must not double-decrement the count
	require.False(t, b.Deliverable(), "second blocker is still held")

	second.Release()
	require.True(t, b.Deliverable())
}

func TestDeliverableProbeDoesNotConsumePermit(t *testing.T) {
	b := NewBlockable()
	for i := 0; i < 5; i++ {
		require.True(t, b.Deliverable())
	}
}
