// Package pic implements the picture buffer shape: a set of named
// planes, each chroma-subsampled relative to the picture's luma
// dimensions, sharing one logical crop/resize window. Every plane's
// storage reuses ubuf/block.Block, so region-level
// reference counting and copy-on-write on Write come for free.
package pic

import (
	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/ubuf"
	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/ubuf/umem"
)

// PlaneFormat describes one named plane's geometry relative to the
// picture's luma dimensions.
type PlaneFormat struct {
	Name            string
	HSub, VSub      int // chroma subsampling divisors; 1 for luma
	MacropixelBytes int // bytes per sample in this plane
}

// Format is a picture's plane layout. Macropixel is the picture-wide
// macropixel group size in pixels (1 for every planar format this
// package ships; packed formats like YUYV would set 2).
type Format struct {
	Name       string
	Macropixel int
	Planes     []PlaneFormat
}

// Well-known planar formats, the picture analogue of the dictionary's
// flow-definition prefixes ("pic.yuv420p.", "pic.yuv422p.", ...).
var (
	FormatYUV420P = Format{
		Name:       "pic.yuv420p.",
		Macropixel: 1,
		Planes: []PlaneFormat{
			{Name: "y8", HSub: 1, VSub: 1, MacropixelBytes: 1},
			{Name: "u8", HSub: 2, VSub: 2, MacropixelBytes: 1},
			{Name: "v8", HSub: 2, VSub: 2, MacropixelBytes: 1},
		},
	}
	FormatYUV422P = Format{
		Name:       "pic.yuv422p.",
		Macropixel: 1,
		Planes: []PlaneFormat{
			{Name: "y8", HSub: 1, VSub: 1, MacropixelBytes: 1},
			{Name: "u8", HSub: 2, VSub: 1, MacropixelBytes: 1},
			{Name: "v8", HSub: 2, VSub: 1, MacropixelBytes: 1},
		},
	}
)

type plane struct {
	buf    *block.Block
	stride int // bytes per row of the FULL allocated plane, fixed for the plane's lifetime
	rows   int // full allocated row count
}

// Picture is the picture buffer handle.
type Picture struct {
	mgr    *umem.Manager
	format Format

	// bufWidth/bufHeight is the full allocated extent in luma pixel
	// units; left/top/width/height is the current crop/margin window
	// within it. Resize moves this window, reallocating only when the
	// requested window would fall outside the allocated extent.
	bufWidth, bufHeight     int
	left, top, width, height int

	planes []plane
}

var _ ubuf.Ubuf = (*Picture)(nil)

// New allocates a picture of width x height (luma pixels) in format,
// with hmargin/vmargin extra pixels of margin on every side so a
// subsequent Resize can grow back into them without reallocating.
func New(mgr *umem.Manager, format Format, width, height, hmargin, vmargin int) (*Picture, error) {
	if width <= 0 || height <= 0 || hmargin < 0 || vmargin < 0 {
		return nil, uerror.New("pic.New", uerror.CodeInvalid, "invalid dimensions")
	}
	for _, pf := range format.Planes {
		if width%pf.HSub != 0 || height%pf.VSub != 0 || hmargin%pf.HSub != 0 || vmargin%pf.VSub != 0 {
			return nil, uerror.New("pic.New", uerror.CodeInvalid, "dimensions violate plane subsampling")
		}
	}

	p := &Picture{
		mgr:      mgr,
		format:   format,
		bufWidth: width + 2*hmargin,
		bufHeight: height + 2*vmargin,
		left:     hmargin,
		top:      vmargin,
		width:    width,
		height:   height,
	}
	for _, pf := range format.Planes {
		stride := (p.bufWidth / pf.HSub) * pf.MacropixelBytes
		rows := p.bufHeight / pf.VSub
		b, err := block.New(mgr, stride*rows)
		if err != nil {
			p.Release()
			return nil, uerror.Wrap("pic.New", err)
		}
		p.planes = append(p.planes, plane{buf: b, stride: stride, rows: rows})
	}
	return p, nil
}

// Size returns the current window's luma dimensions and the format's
// macropixel group size.
func (p *Picture) Size() (hsize, vsize, macropixel int) {
	return p.width, p.height, p.format.Macropixel
}

// PlaneCount returns the number of named planes.
func (p *Picture) PlaneCount() int {
	return len(p.planes)
}

// PlaneName returns plane i's name ("y8", "u8", ...).
func (p *Picture) PlaneName(i int) string {
	return p.format.Planes[i].Name
}

// PlaneRowBytes returns the byte length of one row of plane i within
// the current window.
func (p *Picture) PlaneRowBytes(i int) int {
	pf := p.format.Planes[i]
	return (p.width / pf.HSub) * pf.MacropixelBytes
}

// PlaneRows returns the current window's row count for plane i.
func (p *Picture) PlaneRows(i int) int {
	return p.height / p.format.Planes[i].VSub
}

func (p *Picture) planeOffset(i, row int) (int, error) {
	pf := p.format.Planes[i]
	pl := p.planes[i]
	if row < 0 || row >= p.height/pf.VSub {
		return 0, uerror.New("pic.plane", uerror.CodeInvalid, "row out of window")
	}
	absRow := p.top/pf.VSub + row
	colBytes := (p.left / pf.HSub) * pf.MacropixelBytes
	return absRow*pl.stride + colBytes, nil
}

// ReadRow maps plane i's row for shared read access. Pair with
// UnmapRow.
func (p *Picture) ReadRow(planeIdx, row int) ([]byte, error) {
	off, err := p.planeOffset(planeIdx, row)
	if err != nil {
		return nil, err
	}
	n := p.PlaneRowBytes(planeIdx)
	data, got, err := p.planes[planeIdx].buf.Read(off, n)
	if err != nil {
		return nil, uerror.Wrap("pic.ReadRow", err)
	}
	if got != n {
		return nil, uerror.New("pic.ReadRow", uerror.CodeInvalid, "row spans unexpected segment boundary")
	}
	return data, nil
}

// WriteRow maps plane i's row for exclusive write access, triggering
// copy-on-write on the underlying block if shared. Pair with
// UnmapRow.
func (p *Picture) WriteRow(planeIdx, row int) ([]byte, error) {
	off, err := p.planeOffset(planeIdx, row)
	if err != nil {
		return nil, err
	}
	n := p.PlaneRowBytes(planeIdx)
	data, got, err := p.planes[planeIdx].buf.Write(off, n)
	if err != nil {
		return nil, uerror.Wrap("pic.WriteRow", err)
	}
	if got != n {
		return nil, uerror.New("pic.WriteRow", uerror.CodeInvalid, "row spans unexpected segment boundary")
	}
	return data, nil
}

// UnmapRow releases a map obtained from ReadRow/WriteRow.
func (p *Picture) UnmapRow(planeIdx int) error {
	return p.planes[planeIdx].buf.Unmap()
}

// Dup returns a new Picture sharing every plane's substrate (region
// refcounts incremented); the window geometry is copied by value, so
// a later Resize on either handle never affects the other.
func (p *Picture) Dup() ubuf.Ubuf {
	np := &Picture{
		mgr: p.mgr, format: p.format,
		bufWidth: p.bufWidth, bufHeight: p.bufHeight,
		left: p.left, top: p.top, width: p.width, height: p.height,
		planes: make([]plane, len(p.planes)),
	}
	for i, pl := range p.planes {
		np.planes[i] = plane{buf: pl.buf.Dup().(*block.Block), stride: pl.stride, rows: pl.rows}
	}
	return np
}

// Release drops this handle's reference to every plane's substrate.
func (p *Picture) Release() {
	for _, pl := range p.planes {
		if pl.buf != nil {
			pl.buf.Release()
		}
	}
	p.planes = nil
}

// Resize moves the window's origin by (hoffset, voffset) and sets its
// new size to (newW, newH), all in luma pixel units. Positive offsets
// shrink from the near edge (into margin, or discarding pixels);
// negative offsets grow into previously-allocated margin. The
// operation is zero-copy whenever the requested window still falls
// within the picture's allocated extent; otherwise every plane is
// reallocated at a larger extent and the overlapping pixels are
// copied across.
func (p *Picture) Resize(hoffset, voffset, newW, newH int) error {
	if newW <= 0 || newH <= 0 {
		return uerror.New("pic.Resize", uerror.CodeInvalid, "non-positive size")
	}
	for _, pf := range p.format.Planes {
		if hoffset%pf.HSub != 0 || voffset%pf.VSub != 0 || newW%pf.HSub != 0 || newH%pf.VSub != 0 {
			return uerror.New("pic.Resize", uerror.CodeInvalid, "offsets/size violate plane subsampling")
		}
	}

	newLeft := p.left + hoffset
	newTop := p.top + voffset

	if newLeft >= 0 && newTop >= 0 && newLeft+newW <= p.bufWidth && newTop+newH <= p.bufHeight {
		p.left, p.top, p.width, p.height = newLeft, newTop, newW, newH
		return nil
	}
	return p.reallocate(hoffset, voffset, newLeft, newTop, newW, newH)
}

// reallocate grows the buffer extent so that the requested window
// (possibly at negative offsets relative to the old extent) fits, and
// copies the overlap between the old window and the new one across.
// hoffset/voffset are the old-window-relative deltas requested by
// Resize; newLeft/newTop/newW/newH are the resulting buffer-absolute
// window.
func (p *Picture) reallocate(hoffset, voffset, newLeft, newTop, newW, newH int) error {
	growLeft, growTop := 0, 0
	if newLeft < 0 {
		growLeft = -newLeft
	}
	if newTop < 0 {
		growTop = -newTop
	}
	newBufWidth := p.bufWidth + growLeft
	if shifted := newLeft + growLeft + newW; shifted > newBufWidth {
		newBufWidth = shifted
	}
	newBufHeight := p.bufHeight + growTop
	if shifted := newTop + growTop + newH; shifted > newBufHeight {
		newBufHeight = shifted
	}

	fresh := make([]plane, len(p.planes))
	for i, pf := range p.format.Planes {
		stride := (newBufWidth / pf.HSub) * pf.MacropixelBytes
		rows := newBufHeight / pf.VSub
		b, err := block.New(p.mgr, stride*rows)
		if err != nil {
			for _, f := range fresh {
				if f.buf != nil {
					f.buf.Release()
				}
			}
			return uerror.Wrap("pic.Resize", err)
		}
		fresh[i] = plane{buf: b, stride: stride, rows: rows}
	}

	// Copy the overlap between the old window [0,width)x[0,height) and
	// the new window [hoffset,hoffset+newW)x[voffset,voffset+newH),
	// both expressed in old-window-relative luma units.
	overlapLeft := max(0, hoffset)
	overlapTop := max(0, voffset)
	overlapRight := min(p.width, hoffset+newW)
	overlapBottom := min(p.height, voffset+newH)
	overlapW := overlapRight - overlapLeft
	overlapH := overlapBottom - overlapTop

	for i, pf := range p.format.Planes {
		if overlapW <= 0 || overlapH <= 0 {
			break
		}
		srcStride, dstStride := p.planes[i].stride, fresh[i].stride
		rowBytes := (overlapW / pf.HSub) * pf.MacropixelBytes
		if rowBytes == 0 {
			continue
		}
		srcColBytes := (p.left + overlapLeft) / pf.HSub * pf.MacropixelBytes
		dstColBytes := (p.left + growLeft + overlapLeft) / pf.HSub * pf.MacropixelBytes

		for planeRow := 0; planeRow < overlapH/pf.VSub; planeRow++ {
			srcOff := (p.top/pf.VSub+overlapTop/pf.VSub+planeRow)*srcStride + srcColBytes
			dstOff := ((p.top+growTop)/pf.VSub+overlapTop/pf.VSub+planeRow)*dstStride + dstColBytes

			src, _, err := p.planes[i].buf.Read(srcOff, rowBytes)
			if err != nil {
				continue
			}
			dst, _, err := fresh[i].buf.Write(dstOff, rowBytes)
			if err == nil {
				copy(dst, src)
				fresh[i].buf.Unmap()
			}
			p.planes[i].buf.Unmap()
		}
	}

	for _, pl := range p.planes {
		pl.buf.Release()
	}
	p.planes = fresh
	p.bufWidth, p.bufHeight = newBufWidth, newBufHeight
	p.left, p.top = newLeft+growLeft, newTop+growTop
	p.width, p.height = newW, newH
	return nil
}
