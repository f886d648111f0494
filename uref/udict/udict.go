// Package udict implements the ordered attribute dictionary that
// backs every uref: a reference-counted, ordered
// sequence of (type, name, value) triples with map-indexed lookup,
// insertion-order iteration preserved across Dup, and copy-on-write
// detachment so a shared dictionary is never mutated under another
// holder.
package udict

import (
	"fmt"

	"github.com/upipe-go/upipe/internal/uerror"
	"github.com/upipe-go/upipe/uref/urefcount"
)

// Type tags the kind of value stored for one attribute.
type Type int

const (
	TypeOpaque Type = iota // arbitrary byte run
	TypeString             // UTF-8 string
	TypeVoid               // presence only, no payload
	TypeBool
	TypeSmallInt  // int8
	TypeSmallUint // uint8
	TypeInt       // int64
	TypeUint      // uint64
	TypeFloat     // float64
	TypeRational  // signed numerator, unsigned denominator
)

func (t Type) String() string {
	switch t {
	case TypeOpaque:
		return "opaque"
	case TypeString:
		return "string"
	case TypeVoid:
		return "void"
	case TypeBool:
		return "bool"
	case TypeSmallInt:
		return "int8"
	case TypeSmallUint:
		return "uint8"
	case TypeInt:
		return "int64"
	case TypeUint:
		return "uint64"
	case TypeFloat:
		return "float64"
	case TypeRational:
		return "rational"
	default:
		return "unknown"
	}
}

// Rational is a signed-numerator, unsigned-denominator fraction, used
// for frame rates and sample aspect ratios (pic.fps, pic.sar).
type Rational struct {
	Num int64
	Den uint64
}

// Value is the tagged union of everything a dictionary entry can hold.
// Exactly one field is meaningful, selected by the entry's Type.
type Value struct {
	Opaque   []byte
	Str      string
	Bool     bool
	I8       int8
	U8       uint8
	I64      int64
	U64      uint64
	F64      float64
	Rational Rational
}

// entry is one (name, type, value) triple. shorthand is a small
// pre-declared integer key used instead of name for well-known
// attributes, compressing the common case; shorthand
// zero means "no shorthand, use name".
type entry struct {
	name      string
	shorthand uint16
	typ       Type
	val       Value
}

func (e *entry) key() string {
	if e.shorthand != 0 {
		return shorthandKey(e.shorthand)
	}
	return e.name
}

func shorthandKey(sh uint16) string {
	return fmt.Sprintf("\x00sh:%d", sh)
}

// Dict is an ordered, reference-counted attribute dictionary.
type Dict struct {
	rc      *urefcount.RefCount
	entries []entry
	index   map[string]int // key() -> position in entries
}

// New returns an empty dictionary with one live reference.
func New() *Dict {
	d := &Dict{index: make(map[string]int)}
	d.rc = urefcount.New(nil)
	return d
}

// Acquire adds a reference, returning the same handle (dictionaries
// are shared by handle, matching uref.Dup's "dup shares the dictionary
// handle" contract).
func (d *Dict) Acquire() *Dict {
	d.rc.Acquire()
	return d
}

// Release drops a reference; the dictionary's storage is reclaimed
// when the last reference is released.
func (d *Dict) Release() {
	d.rc.Release()
}

// Single reports whether d has exactly one live reference, i.e.
// whether it may be mutated in place without a prior Dup.
func (d *Dict) Single() bool {
	return d.rc.Single()
}

// Dup deep-copies all entries into a fresh, singly-referenced
// dictionary, preserving insertion order exactly.
func (d *Dict) Dup() *Dict {
	nd := New()
	nd.entries = make([]entry, len(d.entries))
	copy(nd.entries, d.entries)
	for i, e := range nd.entries {
		if e.typ == TypeOpaque && e.val.Opaque != nil {
			cp := make([]byte, len(e.val.Opaque))
			copy(cp, e.val.Opaque)
			nd.entries[i].val.Opaque = cp
		}
	}
	for k, v := range d.index {
		nd.index[k] = v
	}
	return nd
}

// Detach returns a dictionary guaranteed to have exactly one
// reference: d itself if already Single, otherwise a Dup (with d's
// reference released), implementing attribute copy-on-write.
func (d *Dict) Detach() *Dict {
	if d.Single() {
		return d
	}
	nd := d.Dup()
	d.Release()
	return nd
}

// Get looks up name as the given type. ok is false if absent; err is
// set (CodeInvalid) if present under a different type.
func (d *Dict) Get(name string, typ Type) (Value, bool, error) {
	return d.get(name, typ)
}

func (d *Dict) get(key string, typ Type) (Value, bool, error) {
	pos, ok := d.index[key]
	if !ok {
		return Value{}, false, nil
	}
	e := &d.entries[pos]
	if e.typ != typ {
		return Value{}, false, uerror.New("udict.get", uerror.CodeInvalid,
			fmt.Sprintf("attribute %q is %s, not %s", key, e.typ, typ))
	}
	return e.val, true, nil
}

// GetShorthand looks up a shorthand-keyed attribute.
func (d *Dict) GetShorthand(sh uint16, typ Type) (Value, bool, error) {
	return d.get(shorthandKey(sh), typ)
}

// Set inserts or overwrites name with the given type/value. First
// occurrence of a name is appended at the end, preserving insertion
// order; subsequent Set calls on the same name overwrite in place.
// The caller must hold the only reference to d (see uref's
// copy-on-write wrapper, which calls Detach first).
func (d *Dict) Set(name string, typ Type, val Value) {
	d.set(name, 0, typ, val)
}

// SetShorthand is Set using a shorthand integer key instead of a name.
func (d *Dict) SetShorthand(sh uint16, typ Type, val Value) {
	d.set("", sh, typ, val)
}

func (d *Dict) set(name string, sh uint16, typ Type, val Value) {
	e := entry{name: name, shorthand: sh, typ: typ, val: val}
	key := e.key()
	if pos, ok := d.index[key]; ok {
		d.entries[pos] = e
		return
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, e)
}

// Delete removes name if present. Deleting a name that is later
// re-Set appends it at the new end; deletion does not reserve the
// old slot.
func (d *Dict) Delete(name string) {
	d.delete(name)
}

func (d *Dict) delete(key string) {
	pos, ok := d.index[key]
	if !ok {
		return
	}
	d.entries = append(d.entries[:pos], d.entries[pos+1:]...)
	delete(d.index, key)
	for k, v := range d.index {
		if v > pos {
			d.index[k] = v - 1
		}
	}
}

// Iterate walks entries in insertion order, calling fn(name, typ, val)
// for each. fn returning false stops iteration early. A zero
// shorthand-derived name is reported as its synthetic key; callers
// working with shorthand attributes should prefer GetShorthand.
func (d *Dict) Iterate(fn func(name string, typ Type, val Value) bool) {
	for _, e := range d.entries {
		name := e.name
		if e.shorthand != 0 {
			name = shorthandKey(e.shorthand)
		}
		if !fn(name, e.typ, e.val) {
			return
		}
	}
}

// Len returns the number of attributes currently stored.
func (d *Dict) Len() int {
	return len(d.entries)
}

// Convenience typed accessors, used pervasively by the attr_*.go
// namespace helpers (flow.*, pic.*, sound.*, k.*).

func (d *Dict) GetString(name string) (string, bool) {
	v, ok, err := d.Get(name, TypeString)
	if err != nil || !ok {
		return "", false
	}
	return v.Str, true
}

func (d *Dict) SetString(name, s string) {
	d.Set(name, TypeString, Value{Str: s})
}

func (d *Dict) GetUint64(name string) (uint64, bool) {
	v, ok, err := d.Get(name, TypeUint)
	if err != nil || !ok {
		return 0, false
	}
	return v.U64, true
}

func (d *Dict) SetUint64(name string, u uint64) {
	d.Set(name, TypeUint, Value{U64: u})
}

func (d *Dict) GetInt64(name string) (int64, bool) {
	v, ok, err := d.Get(name, TypeInt)
	if err != nil || !ok {
		return 0, false
	}
	return v.I64, true
}

func (d *Dict) SetInt64(name string, i int64) {
	d.Set(name, TypeInt, Value{I64: i})
}

func (d *Dict) GetBool(name string) (bool, bool) {
	v, ok, err := d.Get(name, TypeBool)
	if err != nil || !ok {
		return false, false
	}
	return v.Bool, true
}

func (d *Dict) SetBool(name string, b bool) {
	d.Set(name, TypeBool, Value{Bool: b})
}

func (d *Dict) GetRational(name string) (Rational, bool) {
	v, ok, err := d.Get(name, TypeRational)
	if err != nil || !ok {
		return Rational{}, false
	}
	return v.Rational, true
}

func (d *Dict) SetRational(name string, r Rational) {
	d.Set(name, TypeRational, Value{Rational: r})
}

func (d *Dict) SetVoid(name string) {
	d.Set(name, TypeVoid, Value{})
}

func (d *Dict) HasVoid(name string) bool {
	_, ok, err := d.Get(name, TypeVoid)
	return err == nil && ok
}
