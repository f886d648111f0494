// Package sound implements the sound buffer shape: a set of named
// channel planes (or one interleaved plane naming the whole channel
// set) sharing one sliding sample window over a ubuf/block substrate.
package sound

import (
	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/ubuf"
	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/ubuf/umem"
)

// ChannelFormat describes one plane: its name (a single channel like
// "l"/"r", or an enumeration of channels for an interleaved plane like
// "lr") and the byte size of one sample frame in that plane.
type ChannelFormat struct {
	Name        string
	SampleBytes int
}

// Format is a sound buffer's plane layout.
type Format struct {
	Name     string
	Channels []ChannelFormat
}

// Well-known formats, mirroring the sound.* flow-definition namespace.
var (
	FormatS16Planar = Format{
		Name: "sound.s16.",
		Channels: []ChannelFormat{
			{Name: "l", SampleBytes: 2},
			{Name: "r", SampleBytes: 2},
		},
	}
	FormatS16Interleaved = Format{
		Name: "sound.s16.",
		Channels: []ChannelFormat{
			{Name: "lr", SampleBytes: 4},
		},
	}
)

type channelPlane struct {
	buf      *block.Block
	capacity int // allocated sample capacity
}

// Sound is the sound buffer handle.
type Sound struct {
	mgr      *umem.Manager
	format   Format
	offset   int // window start, in samples, within each plane's capacity
	samples  int // current window length, in samples
	channels []channelPlane
}

var _ ubuf.Ubuf = (*Sound)(nil)

// New allocates a sound buffer of `samples` frames with room to grow
// up to `capacity` frames (capacity >= samples) before Resize must
// reallocate.
func New(mgr *umem.Manager, format Format, samples, capacity int) (*Sound, error) {
	if samples < 0 || capacity < samples {
		return nil, uerror.New("sound.New", uerror.CodeInvalid, "invalid sample counts")
	}
	s := &Sound{mgr: mgr, format: format, samples: samples}
	for _, cf := range format.Channels {
		b, err := block.New(mgr, capacity*cf.SampleBytes)
		if err != nil {
			s.Release()
			return nil, uerror.Wrap("sound.New", err)
		}
		s.channels = append(s.channels, channelPlane{buf: b, capacity: capacity})
	}
	return s, nil
}

// Size returns the current window length in samples and the largest
// per-sample byte size shared across channels.
func (s *Sound) Size() (samples, sampleSize int) {
	max := 0
	for _, cf := range s.format.Channels {
		if cf.SampleBytes > max {
			max = cf.SampleBytes
		}
	}
	return s.samples, max
}

// ChannelCount returns the number of named planes.
func (s *Sound) ChannelCount() int {
	return len(s.channels)
}

// ChannelName returns channel i's name.
func (s *Sound) ChannelName(i int) string {
	return s.format.Channels[i].Name
}

// PlaneRead maps nsamples starting at offset (within the current
// window) on channel i for shared read access. Pair with Unmap.
func (s *Sound) PlaneRead(i, offset, nsamples int) ([]byte, error) {
	if offset < 0 || nsamples < 0 || offset+nsamples > s.samples {
		return nil, uerror.New("sound.PlaneRead", uerror.CodeInvalid, "range outside window")
	}
	cf := s.format.Channels[i]
	byteOff := (s.offset + offset) * cf.SampleBytes
	n := nsamples * cf.SampleBytes
	data, got, err := s.channels[i].buf.Read(byteOff, n)
	if err != nil {
		return nil, uerror.Wrap("sound.PlaneRead", err)
	}
	if got != n {
		return nil, uerror.New("sound.PlaneRead", uerror.CodeInvalid, "range spans unexpected segment boundary")
	}
	return data, nil
}

// PlaneWrite maps nsamples starting at offset on channel i for
// exclusive write access, triggering copy-on-write if shared. Pair
// with Unmap.
func (s *Sound) PlaneWrite(i, offset, nsamples int) ([]byte, error) {
	if offset < 0 || nsamples < 0 || offset+nsamples > s.samples {
		return nil, uerror.New("sound.PlaneWrite", uerror.CodeInvalid, "range outside window")
	}
	cf := s.format.Channels[i]
	byteOff := (s.offset + offset) * cf.SampleBytes
	n := nsamples * cf.SampleBytes
	data, got, err := s.channels[i].buf.Write(byteOff, n)
	if err != nil {
		return nil, uerror.Wrap("sound.PlaneWrite", err)
	}
	if got != n {
		return nil, uerror.New("sound.PlaneWrite", uerror.CodeInvalid, "range spans unexpected segment boundary")
	}
	return data, nil
}

// Unmap releases a map obtained from PlaneRead/PlaneWrite on channel i.
func (s *Sound) Unmap(i int) error {
	return s.channels[i].buf.Unmap()
}

// Dup returns a new Sound sharing every channel's substrate (region
// refcounts incremented); the window is copied by value, so a later
// Resize on either handle never affects the other.
func (s *Sound) Dup() ubuf.Ubuf {
	ns := &Sound{mgr: s.mgr, format: s.format, offset: s.offset, samples: s.samples}
	ns.channels = make([]channelPlane, len(s.channels))
	for i, c := range s.channels {
		ns.channels[i] = channelPlane{buf: c.buf.Dup().(*block.Block), capacity: c.capacity}
	}
	return ns
}

// Release drops this handle's reference to every channel's substrate.
func (s *Sound) Release() {
	for _, c := range s.channels {
		if c.buf != nil {
			c.buf.Release()
		}
	}
	s.channels = nil
}

// Resize trims trimFront samples off the window's start and sets the
// new window length to newSamples. Zero-copy whenever the result
// still fits the allocated capacity; copy-on-write (reallocate and
// copy the surviving samples) only when newSamples exceeds the
// capacity remaining after the slide.
func (s *Sound) Resize(trimFront, newSamples int) error {
	if trimFront < 0 || newSamples < 0 {
		return uerror.New("sound.Resize", uerror.CodeInvalid, "negative trim/size")
	}
	if trimFront > s.samples {
		return uerror.New("sound.Resize", uerror.CodeInvalid, "trim exceeds window")
	}
	newOffset := s.offset + trimFront
	if len(s.channels) > 0 && newOffset+newSamples <= s.channels[0].capacity {
		s.offset, s.samples = newOffset, newSamples
		return nil
	}
	return s.reallocate(newOffset, newSamples)
}

func (s *Sound) reallocate(newOffset, newSamples int) error {
	newCapacity := newOffset + newSamples
	fresh := make([]channelPlane, len(s.channels))
	for i, cf := range s.format.Channels {
		b, err := block.New(s.mgr, newCapacity*cf.SampleBytes)
		if err != nil {
			for _, f := range fresh {
				if f.buf != nil {
					f.buf.Release()
				}
			}
			return uerror.Wrap("sound.Resize", err)
		}
		fresh[i] = channelPlane{buf: b, capacity: newCapacity}

		// Copy the samples still alive after the slide: min(samples
		// remaining in the old window after trimming, newSamples).
		remaining := s.samples - (newOffset - s.offset)
		keep := remaining
		if newSamples < keep {
			keep = newSamples
		}
		if keep < 0 {
			keep = 0
		}
		if keep > 0 {
			srcOff := newOffset * cf.SampleBytes
			n := keep * cf.SampleBytes
			src, _, err := s.channels[i].buf.Read(srcOff, n)
			if err == nil {
				dst, _, err := b.Write(0, n)
				if err == nil {
					copy(dst, src)
					b.Unmap()
				}
				s.channels[i].buf.Unmap()
			}
		}
	}
	for _, c := range s.channels {
		c.buf.Release()
	}
	s.channels = fresh
	s.offset = 0
	s.samples = newSamples
	return nil
}
