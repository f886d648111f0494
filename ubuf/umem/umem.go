// Package umem is the pooled memory allocator underlying every ubuf
// substrate allocation: a power-of-two ladder of size-bucketed
// sync.Pools (pointer-to-slice, to dodge sync.Pool's interface-boxing
// allocation), since allocations range from a handful of bytes (a
// dictionary opaque value) to multi-megabyte picture planes.
package umem

import (
	"sync"

	"github.com/upipe-go/upipe/internal/uerror"
)

// Mem is one pooled allocation: a byte slice plus the bucket it came
// from, so Free can return it to the right pool.
type Mem struct {
	Buf    []byte
	bucket int
	mgr    *Manager
}

// Free returns the allocation to its owning pool. Safe to call once;
// calling it twice corrupts the pool. The exactly-one-release
// discipline is enforced one layer up by urefcount.
func (m *Mem) Free() {
	if m.mgr == nil {
		return
	}
	b := m.Buf[:cap(m.Buf)]
	m.mgr.buckets[m.bucket].Put(&b)
}

// Manager is a umem manager: a ladder of size-bucketed pools. Minimum
// and maximum bucket sizes are powers of two; a request larger than
// the top bucket is satisfied with a one-off allocation that is never
// pooled.
type Manager struct {
	minShift int
	buckets  []sync.Pool
	sizes    []int
}

// DefaultMinSize and DefaultMaxSize bound the default manager's pooled
// range: 64 bytes (a dictionary value or small block segment) up to
// 4MiB (an uncompressed 1080p YUV420 plane).
const (
	DefaultMinSize = 64
	DefaultMaxSize = 4 << 20
)

// NewManager builds a pool covering [minSize, maxSize], both rounded
// up to the nearest power of two. Panics if maxSize < minSize.
func NewManager(minSize, maxSize int) *Manager {
	if maxSize < minSize {
		panic("umem: maxSize < minSize")
	}
	minShift := bitLen(roundPow2(minSize)) - 1
	maxShift := bitLen(roundPow2(maxSize)) - 1
	n := maxShift - minShift + 1

	m := &Manager{minShift: minShift, buckets: make([]sync.Pool, n), sizes: make([]int, n)}
	for i := 0; i < n; i++ {
		size := 1 << (minShift + i)
		m.sizes[i] = size
		sz := size
		m.buckets[i].New = func() any {
			b := make([]byte, sz)
			return &b
		}
	}
	return m
}

// NewDefaultManager returns a manager sized for typical Upipe
// payloads (see DefaultMinSize/DefaultMaxSize).
func NewDefaultManager() *Manager {
	return NewManager(DefaultMinSize, DefaultMaxSize)
}

// Alloc returns a Mem of at least size bytes, pooled if size falls
// within the manager's bucket range.
func (m *Manager) Alloc(size int) (*Mem, error) {
	if size < 0 {
		return nil, uerror.New("umem.Alloc", uerror.CodeInvalid, "negative size")
	}
	bucket := m.bucketFor(size)
	if bucket < 0 {
		// Larger than the top bucket: one-off, unpooled allocation.
		return &Mem{Buf: make([]byte, size)}, nil
	}
	p := m.buckets[bucket].Get().(*[]byte)
	return &Mem{Buf: (*p)[:size], bucket: bucket, mgr: m}, nil
}

func (m *Manager) bucketFor(size int) int {
	for i, sz := range m.sizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

func bitLen(x int) int {
	n := 0
	for x > 0 {
		n++
		x >>= 1
	}
	return n
}

func roundPow2(x int) int {
	if x <= 1 {
		return 1
	}
	p := 1
	for p < x {
		p <<= 1
	}
	return p
}
