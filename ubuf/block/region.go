package block

import (
	"github.com/upipe-go/upipe/ubuf/umem"
	"github.com/upipe-go/upipe/uref/urefcount"
)

// region is one shared, reference-counted byte-slab substrate. Several
// segments (possibly across several Block headers produced by Dup or
// Splice) may point into the same region; region.rc tracks exactly
// how many segments currently do.
type region struct {
	rc  *urefcount.RefCount
	mem *umem.Mem // nil for a region not backed by the pool (rare: externally supplied bytes)
	buf []byte
}

func newRegion(mgr *umem.Manager, size int) (*region, error) {
	mem, err := mgr.Alloc(size)
	if err != nil {
		return nil, err
	}
	clear(mem.Buf) // pooled buffers come back dirty; new regions start zero-filled
	r := &region{mem: mem, buf: mem.Buf}
	r.rc = urefcount.New(func() {
		if r.mem != nil {
			r.mem.Free()
		}
	})
	return r, nil
}

// wrapBytes builds a region around caller-owned bytes, used by
// NewFromBytes when the caller hands in data directly rather than
// going through a pooled allocation.
func wrapBytes(buf []byte) *region {
	r := &region{buf: buf}
	r.rc = urefcount.New(nil)
	return r
}

func (r *region) acquire() *region {
	r.rc.Acquire()
	return r
}

func (r *region) release() {
	r.rc.Release()
}

func (r *region) single() bool {
	return r.rc.Single()
}
