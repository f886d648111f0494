// Package uref implements the typed record that flows between pipes:
// one optional buffer handle, one optional attribute dictionary, and a
// pre-parsed clock sub-record.
package uref

import (
	"fmt"
	"io"

	"github.com/upipe-go/upipe/ubuf"
	"github.com/upipe-go/upipe/uref/udict"
)

// Uref is one record. The zero value is a valid, empty record (no
// buffer, no dictionary, unset clock).
type Uref struct {
	Buffer ubuf.Ubuf
	Clock  Clock

	dict *udict.Dict
}

// New returns an empty record.
func New() *Uref {
	return &Uref{}
}

// FromBuffer returns a record wrapping buf, with no dictionary.
func FromBuffer(buf ubuf.Ubuf) *Uref {
	return &Uref{Buffer: buf}
}

// Dict returns the record's dictionary handle, or nil if it has none.
// The returned handle must not be mutated directly; use MutableDict to
// add or change attributes.
func (u *Uref) Dict() *udict.Dict {
	return u.dict
}

// MutableDict returns a dictionary guaranteed safe to mutate in place,
// allocating one if the record has none yet and detaching (copy on
// write) if the existing one is shared. Invoked by every attr_*.go
// setter.
func (u *Uref) MutableDict() *udict.Dict {
	if u.dict == nil {
		u.dict = udict.New()
		return u.dict
	}
	u.dict = u.dict.Detach()
	return u.dict
}

// Dup returns a new record sharing this one's buffer and dictionary
// handles (refcounts incremented on each, no payload copied) with an
// independent copy of the clock sub-record; payloads are shared, not
// copied.
func (u *Uref) Dup() *Uref {
	nu := &Uref{Clock: u.Clock}
	if u.Buffer != nil {
		nu.Buffer = u.Buffer.Dup()
	}
	if u.dict != nil {
		nu.dict = u.dict.Acquire()
	}
	return nu
}

// Release drops this record's reference to its buffer and dictionary,
// if any.
func (u *Uref) Release() {
	if u.Buffer != nil {
		u.Buffer.Release()
		u.Buffer = nil
	}
	if u.dict != nil {
		u.dict.Release()
		u.dict = nil
	}
}

// Dump writes a human-readable listing of the record's attributes and
// clock sub-record to w, for debugging/tooling use.
func (u *Uref) Dump(w io.Writer) {
	fmt.Fprintln(w, "uref:")
	if u.Buffer != nil {
		fmt.Fprintf(w, "  buffer: present\n")
	} else {
		fmt.Fprintf(w, "  buffer: none\n")
	}
	dumpClock(w, &u.Clock)
	if u.dict == nil {
		fmt.Fprintln(w, "  attributes: none")
		return
	}
	fmt.Fprintf(w, "  attributes (%d):\n", u.dict.Len())
	u.dict.Iterate(func(name string, typ udict.Type, val udict.Value) bool {
		fmt.Fprintf(w, "    %s [%s] = %s\n", name, typ, formatValue(typ, val))
		return true
	})
}

func dumpClock(w io.Writer, c *Clock) {
	fmt.Fprintln(w, "  clock:")
	if v, ok := c.Dts(); ok {
		fmt.Fprintf(w, "    dts=%d\n", v)
	}
	if v, ok := c.Pts(); ok {
		fmt.Fprintf(w, "    pts=%d\n", v)
	}
	if v, ok := c.Cr(); ok {
		fmt.Fprintf(w, "    cr=%d\n", v)
	}
	if c.DurationSet {
		fmt.Fprintf(w, "    duration=%d\n", c.Duration)
	}
	if c.RapSysSet {
		fmt.Fprintf(w, "    rap_sys=%d\n", c.RapSys)
	}
	if c.Discontinuity {
		fmt.Fprintln(w, "    discontinuity")
	}
	if c.Error {
		fmt.Fprintln(w, "    error")
	}
	if c.RandomAccess {
		fmt.Fprintln(w, "    random-access")
	}
	if c.FlowStart {
		fmt.Fprintln(w, "    flow-start")
	}
}

func formatValue(typ udict.Type, val udict.Value) string {
	switch typ {
	case udict.TypeString:
		return val.Str
	case udict.TypeBool:
		return fmt.Sprintf("%t", val.Bool)
	case udict.TypeSmallInt:
		return fmt.Sprintf("%d", val.I8)
	case udict.TypeSmallUint:
		return fmt.Sprintf("%d", val.U8)
	case udict.TypeInt:
		return fmt.Sprintf("%d", val.I64)
	case udict.TypeUint:
		return fmt.Sprintf("%d", val.U64)
	case udict.TypeFloat:
		return fmt.Sprintf("%g", val.F64)
	case udict.TypeRational:
		return fmt.Sprintf("%d/%d", val.Rational.Num, val.Rational.Den)
	case udict.TypeOpaque:
		return fmt.Sprintf("<%d bytes>", len(val.Opaque))
	case udict.TypeVoid:
		return "-"
	default:
		return "?"
	}
}
