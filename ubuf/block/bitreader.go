package block

// BitReader reads fixed-width bit fields out of a Block MSB-first, the
// way transport-stream and elementary-stream headers pack them (e.g.
// a 13-bit PID straddling a byte boundary). Overflow is sticky: once a
// read runs past the end of the block every subsequent read returns 0
// and Overflow keeps reporting true, so a caller can perform a whole
// header's worth of reads and check Overflow once at the end instead
// of after every field.
type BitReader struct {
	b        *Block
	byteOff  int
	bitOff   uint // 0-7, bits already consumed from the current byte
	cur      byte
	loaded   bool
	overflow bool
}

// NewBitReader returns a reader starting at the given byte offset.
func NewBitReader(b *Block, byteOffset int) *BitReader {
	return &BitReader{b: b, byteOff: byteOffset}
}

// Overflow reports whether any read since construction ran past the
// end of the block.
func (r *BitReader) Overflow() bool {
	return r.overflow
}

// PositionInBits returns the total number of bits consumed so far.
func (r *BitReader) PositionInBits() int {
	return r.byteOff*8 + int(r.bitOff)
}

func (r *BitReader) loadByte() bool {
	if r.loaded {
		return true
	}
	if r.byteOff >= r.b.Size() {
		r.overflow = true
		return false
	}
	chunk, _, err := r.b.Read(r.byteOff, 1)
	if err != nil {
		r.overflow = true
		return false
	}
	r.cur = chunk[0]
	r.b.Unmap()
	r.loaded = true
	return true
}

// ShowBits peeks at the next nbits (1-57) without consuming them.
func (r *BitReader) ShowBits(nbits uint) uint64 {
	save := *r
	v := r.FillBits(nbits)
	*r = save
	return v
}

// FillBits consumes and returns the next nbits (1-57) as the low bits
// of the result, MSB-first. Returns 0 once overflow has occurred.
func (r *BitReader) FillBits(nbits uint) uint64 {
	var v uint64
	for nbits > 0 {
		if !r.loadByte() {
			return 0
		}
		avail := 8 - r.bitOff
		take := nbits
		if take > avail {
			take = avail
		}
		shift := avail - take
		mask := byte((1 << take) - 1)
		bits := (r.cur >> shift) & mask
		v = v<<take | uint64(bits)

		r.bitOff += take
		nbits -= take
		if r.bitOff == 8 {
			r.bitOff = 0
			r.byteOff++
			r.loaded = false
		}
	}
	return v
}

// SkipBits advances nbits without retaining the value.
func (r *BitReader) SkipBits(nbits uint) {
	for nbits > 0 {
		if !r.loadByte() {
			return
		}
		avail := 8 - r.bitOff
		take := nbits
		if take > avail {
			take = avail
		}
		r.bitOff += take
		nbits -= take
		if r.bitOff == 8 {
			r.bitOff = 0
			r.byteOff++
			r.loaded = false
		}
	}
}
