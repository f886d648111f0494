package uref

// Typed accessors for the "k." (clock) attribute namespace. Most
// pipes read/write timing through the Clock sub-record directly;
// these exist for a flow-definition record (which carries no per-frame Clock of its
// own) recording a default/nominal timing hint, and Dump-style
// tooling that wants every attribute visible through one dictionary
// walk.

func (u *Uref) KDts() (int64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetInt64("k.dts")
}

func (u *Uref) SetKDts(v int64) {
	u.MutableDict().SetInt64("k.dts", v)
}

func (u *Uref) KPts() (int64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetInt64("k.pts")
}

func (u *Uref) SetKPts(v int64) {
	u.MutableDict().SetInt64("k.pts", v)
}

func (u *Uref) KCr() (int64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetInt64("k.cr")
}

func (u *Uref) SetKCr(v int64) {
	u.MutableDict().SetInt64("k.cr", v)
}

func (u *Uref) KRap() (int64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetInt64("k.rap")
}

func (u *Uref) SetKRap(v int64) {
	u.MutableDict().SetInt64("k.rap", v)
}
