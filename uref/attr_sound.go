package uref

// Typed accessors for the "sound." attribute namespace:
// audio layout carried on a sound flow-definition record.

func (u *Uref) SoundRate() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("sound.rate")
}

func (u *Uref) SetSoundRate(v uint64) {
	u.MutableDict().SetUint64("sound.rate", v)
}

func (u *Uref) SoundSamples() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("sound.samples")
}

func (u *Uref) SetSoundSamples(v uint64) {
	u.MutableDict().SetUint64("sound.samples", v)
}

func (u *Uref) SoundChannels() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("sound.channels")
}

func (u *Uref) SetSoundChannels(v uint64) {
	u.MutableDict().SetUint64("sound.channels", v)
}

func (u *Uref) SoundPlanes() (uint64, bool) {
	if u.dict == nil {
		return 0, false
	}
	return u.dict.GetUint64("sound.planes")
}

func (u *Uref) SetSoundPlanes(v uint64) {
	u.MutableDict().SetUint64("sound.planes", v)
}
