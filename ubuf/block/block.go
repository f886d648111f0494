// Package block implements the block buffer shape: a logical byte
// sequence formed by one or more segments, each a view into a
// reference-counted memory region.
package block

import (
	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/ubuf"
	"github.com/upipe-go/upipe/ubuf/umem"
)

// seg is one segment: a byte-range view into a region.
type seg struct {
	r   *region
	off int // offset into r.buf
	len int
}

// Block is the block buffer handle. It is not itself reference
// counted: Dup/Splice return an independent Block value whose segments
// share (reference-count) the same underlying regions as the source,
// so the payload is never copied and a Write on one handle cannot
// corrupt another handle's view (region-level copy-on-write).
type Block struct {
	mgr    *umem.Manager
	segs   []seg
	size   int
	cursor int // index of the segment last touched by sequential Read, for O(1) amortised walks
	maps   int // open map count, for the map/unmap pairing invariant
}

var _ ubuf.Ubuf = (*Block)(nil)

// New allocates an empty block buffer of size bytes (zero-filled)
// against mgr.
func New(mgr *umem.Manager, size int) (*Block, error) {
	if size < 0 {
		return nil, uerror.New("block.New", uerror.CodeInvalid, "negative size")
	}
	b := &Block{mgr: mgr}
	if size > 0 {
		r, err := newRegion(mgr, size)
		if err != nil {
			return nil, uerror.Wrap("block.New", err)
		}
		b.segs = append(b.segs, seg{r: r, off: 0, len: size})
		b.size = size
	}
	return b, nil
}

// NewFromBytes wraps an existing byte slice as a single-segment block
// without copying or pool-allocating it. Useful for tests and for
// zero-copy ingestion of externally-owned buffers.
func NewFromBytes(data []byte) *Block {
	b := &Block{}
	if len(data) > 0 {
		b.segs = append(b.segs, seg{r: wrapBytes(data), off: 0, len: len(data)})
		b.size = len(data)
	}
	return b
}

// Size returns the total logical length of the block.
func (b *Block) Size() int {
	return b.size
}

// Dup returns a new Block sharing every segment's underlying region
// (region refcounts incremented); no payload is copied.
func (b *Block) Dup() ubuf.Ubuf {
	nb := &Block{mgr: b.mgr, size: b.size, segs: make([]seg, len(b.segs))}
	for i, s := range b.segs {
		nb.segs[i] = seg{r: s.r.acquire(), off: s.off, len: s.len}
	}
	return nb
}

// Release drops this handle's reference to every segment's region.
func (b *Block) Release() {
	for _, s := range b.segs {
		s.r.release()
	}
	b.segs = nil
	b.size = 0
}

// locate returns the segment index covering offset and the byte offset
// within that segment, starting the search from the cached cursor for
// amortised O(1) sequential access.
func (b *Block) locate(offset int) (idx, segOff int, ok bool) {
	if offset < 0 || offset >= b.size {
		return 0, 0, false
	}
	start := b.cursor
	if start >= len(b.segs) {
		start = 0
	}
	// Compute the byte offset at the start of segment `start`.
	base := 0
	for i := 0; i < start; i++ {
		base += b.segs[i].len
	}
	if base > offset {
		// cursor overshoots; restart from the beginning
		start, base = 0, 0
	}
	for i := start; i < len(b.segs); i++ {
		if offset < base+b.segs[i].len {
			return i, offset - base, true
		}
		base += b.segs[i].len
	}
	return 0, 0, false
}

// Read maps at most requestedLen bytes starting at offset for shared
// read access. The granted length may be shorter than requested if the
// covering segment ends first; callers loop for longer ranges. Pair
// with Unmap.
func (b *Block) Read(offset, requestedLen int) ([]byte, int, error) {
	if requestedLen <= 0 {
		return nil, 0, uerror.New("block.Read", uerror.CodeInvalid, "non-positive length")
	}
	idx, segOff, ok := b.locate(offset)
	if !ok {
		return nil, 0, uerror.New("block.Read", uerror.CodeInvalid, "offset out of range")
	}
	b.cursor = idx
	s := b.segs[idx]
	avail := s.len - segOff
	granted := requestedLen
	if granted > avail {
		granted = avail
	}
	b.maps++
	return s.r.buf[s.off+segOff : s.off+segOff+granted], granted, nil
}

// Write maps at most requestedLen bytes starting at offset for
// exclusive write access, detaching (deep-copying) the covering
// region first if it is shared with another Block handle. Pair with
// Unmap.
func (b *Block) Write(offset, requestedLen int) ([]byte, int, error) {
	if requestedLen <= 0 {
		return nil, 0, uerror.New("block.Write", uerror.CodeInvalid, "non-positive length")
	}
	idx, segOff, ok := b.locate(offset)
	if !ok {
		return nil, 0, uerror.New("block.Write", uerror.CodeInvalid, "offset out of range")
	}
	s := &b.segs[idx]
	if !s.r.single() {
		nr, err := newRegion(b.mgr, s.len)
		if err != nil {
			return nil, 0, uerror.Wrap("block.Write", err)
		}
		copy(nr.buf, s.r.buf[s.off:s.off+s.len])
		s.r.release()
		s.r = nr
		s.off = 0
	}
	b.cursor = idx
	avail := s.len - segOff
	granted := requestedLen
	if granted > avail {
		granted = avail
	}
	b.maps++
	return s.r.buf[s.off+segOff : s.off+segOff+granted], granted, nil
}

// Unmap releases one outstanding map obtained from Read or Write.
func (b *Block) Unmap() error {
	if b.maps == 0 {
		return uerror.New("block.Unmap", uerror.CodeInvalid, "unmap without matching map")
	}
	b.maps--
	return nil
}

// ReadAll copies the full logical content out as a single slice,
// looping over Read as callers of the per-segment API must.
func (b *Block) ReadAll() ([]byte, error) {
	out := make([]byte, b.size)
	off := 0
	for off < b.size {
		chunk, n, err := b.Read(off, b.size-off)
		if err != nil {
			return nil, err
		}
		copy(out[off:], chunk)
		b.Unmap()
		off += n
	}
	return out, nil
}

// WriteAt writes data at offset, looping over Write as needed and
// growing the block if offset+len(data) exceeds the current size.
func (b *Block) WriteAt(offset int, data []byte) error {
	if offset+len(data) > b.size {
		if err := b.growTo(offset + len(data)); err != nil {
			return err
		}
	}
	off := 0
	for off < len(data) {
		chunk, n, err := b.Write(offset+off, len(data)-off)
		if err != nil {
			return err
		}
		copy(chunk, data[off:off+n])
		b.Unmap()
		off += n
	}
	return nil
}

func (b *Block) growTo(newSize int) error {
	if newSize <= b.size {
		return nil
	}
	extra := newSize - b.size
	r, err := newRegion(b.mgr, extra)
	if err != nil {
		return uerror.Wrap("block.growTo", err)
	}
	b.segs = append(b.segs, seg{r: r, off: 0, len: extra})
	b.size = newSize
	return nil
}

// Splice returns a new Block that is a cheap view over [offset,
// offset+length) of b: affected segments are shared (region refcounts
// incremented, possibly trimmed at the edges), no bytes are copied.
func (b *Block) Splice(offset, length int) (*Block, error) {
	if offset < 0 || length < 0 || offset+length > b.size {
		return nil, uerror.New("block.Splice", uerror.CodeInvalid, "range out of bounds")
	}
	nb := &Block{mgr: b.mgr, size: length}
	remaining := length
	base := 0
	for _, s := range b.segs {
		segStart, segEnd := base, base+s.len
		base = segEnd
		if remaining <= 0 {
			break
		}
		// Intersect [offset, offset+length) with [segStart, segEnd).
		lo := offset
		if lo < segStart {
			lo = segStart
		}
		hi := offset + length
		if hi > segEnd {
			hi = segEnd
		}
		if lo >= hi {
			continue
		}
		nb.segs = append(nb.segs, seg{r: s.r.acquire(), off: s.off + (lo - segStart), len: hi - lo})
		remaining -= hi - lo
	}
	return nb, nil
}

// Resize prepends `prepend` zero-filled bytes and appends `add`
// zero-filled bytes (either may be negative to trim that many bytes
// back off, restoring the block resize(prepend,add) produced).
// Trimming more than the block's current size is an error.
func (b *Block) Resize(prepend, add int) error {
	if prepend > 0 {
		r, err := newRegion(b.mgr, prepend)
		if err != nil {
			return uerror.Wrap("block.Resize", err)
		}
		b.segs = append([]seg{{r: r, off: 0, len: prepend}}, b.segs...)
		b.size += prepend
	} else if prepend < 0 {
		if err := b.trimFront(-prepend); err != nil {
			return err
		}
	}
	if add > 0 {
		r, err := newRegion(b.mgr, add)
		if err != nil {
			return uerror.Wrap("block.Resize", err)
		}
		b.segs = append(b.segs, seg{r: r, off: 0, len: add})
		b.size += add
	} else if add < 0 {
		if err := b.trimBack(-add); err != nil {
			return err
		}
	}
	b.cursor = 0
	return nil
}

func (b *Block) trimFront(n int) error {
	if n > b.size {
		return uerror.New("block.Resize", uerror.CodeInvalid, "trim exceeds size")
	}
	for n > 0 {
		s := &b.segs[0]
		if s.len <= n {
			n -= s.len
			s.r.release()
			b.segs = b.segs[1:]
		} else {
			s.off += n
			s.len -= n
			n = 0
		}
	}
	return b.recount()
}

func (b *Block) trimBack(n int) error {
	if n > b.size {
		return uerror.New("block.Resize", uerror.CodeInvalid, "trim exceeds size")
	}
	for n > 0 {
		last := &b.segs[len(b.segs)-1]
		if last.len <= n {
			n -= last.len
			last.r.release()
			b.segs = b.segs[:len(b.segs)-1]
		} else {
			last.len -= n
			n = 0
		}
	}
	return b.recount()
}

func (b *Block) recount() error {
	total := 0
	for _, s := range b.segs {
		total += s.len
	}
	b.size = total
	return nil
}

// Truncate shortens the block to at most length bytes.
func (b *Block) Truncate(length int) error {
	if length >= b.size {
		return nil
	}
	return b.trimBack(b.size - length)
}

// Append concatenates sub onto the end of b, sharing sub's segments
// (region refcounts incremented) rather than copying.
func (b *Block) Append(sub *Block) {
	for _, s := range sub.segs {
		b.segs = append(b.segs, seg{r: s.r.acquire(), off: s.off, len: s.len})
	}
	b.size += sub.size
}

// Extract returns a standalone deep copy of [offset, offset+length).
func (b *Block) Extract(offset, length int) (*Block, error) {
	view, err := b.Splice(offset, length)
	if err != nil {
		return nil, err
	}
	defer view.Release()
	data, err := view.ReadAll()
	if err != nil {
		return nil, err
	}
	return newFilled(b.mgr, data)
}

func newFilled(mgr *umem.Manager, data []byte) (*Block, error) {
	nb, err := New(mgr, len(data))
	if err != nil {
		return nil, err
	}
	if err := nb.WriteAt(0, data); err != nil {
		nb.Release()
		return nil, err
	}
	return nb, nil
}

// Peek copies up to length bytes starting at offset into a small
// inline slice, for callers that want a snapshot without holding a map
// open (e.g. a sync-byte scanner).
func (b *Block) Peek(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > b.size {
		return nil, uerror.New("block.Peek", uerror.CodeInvalid, "range out of bounds")
	}
	out := make([]byte, 0, length)
	off := offset
	for len(out) < length {
		chunk, n, err := b.Read(off, length-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		b.Unmap()
		off += n
	}
	return out, nil
}

// Scan searches for the first byte equal to value starting at
// *offset, updating *offset to the match position and returning
// whether one was found.
func (b *Block) Scan(offset *int, value byte) bool {
	for off := *offset; off < b.size; off++ {
		chunk, n, err := b.Read(off, 1)
		if err != nil {
			return false
		}
		found := chunk[0] == value
		b.Unmap()
		if found {
			*offset = off
			return true
		}
		off += n - 1
	}
	return false
}

// Find searches for the first occurrence of pattern (with mask
// applied byte-wise, nil mask means exact match) starting at *offset.
func (b *Block) Find(offset *int, pattern, mask []byte) bool {
	n := len(pattern)
	if n == 0 || *offset+n > b.size {
		return false
	}
	for start := *offset; start+n <= b.size; start++ {
		window, err := b.Peek(start, n)
		if err != nil {
			return false
		}
		if matchBytes(window, pattern, mask) {
			*offset = start
			return true
		}
	}
	return false
}

// Match reports whether len bytes starting at offset match pattern
// under mask (nil mask means exact match).
func (b *Block) Match(offset int, pattern, mask []byte) (bool, error) {
	n := len(pattern)
	window, err := b.Peek(offset, n)
	if err != nil {
		return false, err
	}
	return matchBytes(window, pattern, mask), nil
}

func matchBytes(window, pattern, mask []byte) bool {
	for i := range pattern {
		w, p := window[i], pattern[i]
		if mask != nil {
			w &= mask[i]
			p &= mask[i]
		}
		if w != p {
			return false
		}
	}
	return true
}
