package uref

import "github.com/upipe-go/upipe/uref/udict"

// Typed accessors for the "pic." attribute namespace:
// picture geometry carried on a picture flow-definition record.

func (u *Uref) PicHSize() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("pic.hsize")
}

func (u *Uref) SetPicHSize(v uint64) {
	u.MutableDict().SetUint64("pic.hsize", v)
}

func (u *Uref) PicVSize() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("pic.vsize")
}

func (u *Uref) SetPicVSize(v uint64) {
	u.MutableDict().SetUint64("pic.vsize", v)
}

func (u *Uref) PicHPosition() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("pic.hposition")
}

func (u *Uref) SetPicHPosition(v uint64) {
	u.MutableDict().SetUint64("pic.hposition", v)
}

func (u *Uref) PicVPosition() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("pic.vposition")
}

func (u *Uref) SetPicVPosition(v uint64) {
	u.MutableDict().SetUint64("pic.vposition", v)
}

// PicFps returns the "pic.fps" frame-rate rational.
func (u *Uref) PicFps() (udict.Rational, bool) {
	if u.dict == nil {
		return udict.Rational{}, false
	}
	return u.dict.GetRational("pic.fps")
}

func (u *Uref) SetPicFps(r udict.Rational) {
	u.MutableDict().SetRational("pic.fps", r)
}

// PicSar returns the "pic.sar" sample aspect ratio rational.
func (u *Uref) PicSar() (udict.Rational, bool) {
	if u.dict == nil {
		return udict.Rational{}, false
	}
	return u.dict.GetRational("pic.sar")
}

func (u *Uref) SetPicSar(r udict.Rational) {
	u.MutableDict().SetRational("pic.sar", r)
}

func (u *Uref) PicProgressive() (bool, bool) {
	if u.dict == nil {
		return false, false
	}
	return u.dict.GetBool("pic.progressive")
}

func (u *Uref) SetPicProgressive(v bool) {
	u.MutableDict().SetBool("pic.progressive", v)
}

// PicTf/PicBf report whether the top/bottom field is present, for
// interlaced content.
func (u *Uref) PicTf() (bool, bool) {
	if u.dict == nil {
		return false, false
	}
	return u.dict.GetBool("pic.tf")
}

func (u *Uref) SetPicTf(v bool) {
	u.MutableDict().SetBool("pic.tf", v)
}

func (u *Uref) PicBf() (bool, bool) {
	if u.dict == nil {
		return false, false
	}
	return u.dict.GetBool("pic.bf")
}

func (u *Uref) SetPicBf(v bool) {
	u.MutableDict().SetBool("pic.bf", v)
}
