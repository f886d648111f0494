package uref

// Clock is a uref's pre-parsed clock sub-record: optional monotonic
// dates, delays, duration and random-access date, plus status flags.
// Each optional value is an
// (int64, bool) pair rather than a sentinel value so "unset" is
// unambiguous.
type Clock struct {
	DateSys      int64
	DateSysSet   bool
	DateProg     int64
	DateProgSet  bool
	DateOrig     int64
	DateOrigSet  bool
	DtsDelay     int64
	DtsDelaySet  bool
	CrDtsDelay   int64
	CrDtsDelaySet bool
	PtsDtsDelay  int64
	PtsDtsDelaySet bool
	Duration     int64
	DurationSet  bool
	RapSys       int64
	RapSysSet    bool

	Discontinuity bool
	Error         bool
	RandomAccess  bool
	FlowStart     bool
}

// Dts returns the decoding timestamp (DateSys) and whether it is set.
func (c *Clock) Dts() (int64, bool) {
	return c.DateSys, c.DateSysSet
}

// SetDts sets the decoding timestamp.
func (c *Clock) SetDts(v int64) {
	c.DateSys, c.DateSysSet = v, true
}

// Pts returns the presentation timestamp, derived as Dts +
// PtsDtsDelay. Both must be set.
func (c *Clock) Pts() (int64, bool) {
	if !c.DateSysSet || !c.PtsDtsDelaySet {
		return 0, false
	}
	return c.DateSys + c.PtsDtsDelay, true
}

// SetPts sets PtsDtsDelay such that Pts() == v, given the current Dts.
// Dts must already be set.
func (c *Clock) SetPts(v int64) bool {
	if !c.DateSysSet {
		return false
	}
	c.PtsDtsDelay, c.PtsDtsDelaySet = v-c.DateSys, true
	return true
}

// Cr returns the clock-reference timestamp, derived as Dts -
// CrDtsDelay. Both must be set.
func (c *Clock) Cr() (int64, bool) {
	if !c.DateSysSet || !c.CrDtsDelaySet {
		return 0, false
	}
	return c.DateSys - c.CrDtsDelay, true
}

// SetCr sets CrDtsDelay such that Cr() == v, given the current Dts.
// Dts must already be set.
func (c *Clock) SetCr(v int64) bool {
	if !c.DateSysSet {
		return false
	}
	c.CrDtsDelay, c.CrDtsDelaySet = c.DateSys-v, true
	return true
}

// SetRapSys sets the random-access-point system date, refusing a
// value that would make RapSys decrease within a flow. Returns false
// and leaves the field unchanged on a regression.
func (c *Clock) SetRapSys(v int64) bool {
	if c.RapSysSet && v < c.RapSys {
		return false
	}
	c.RapSys, c.RapSysSet = v, true
	return true
}
