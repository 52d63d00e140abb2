// Package enums models enum types stored inside JSON documents.
// Each enum has a fixed-width underlying integer kind, and values may be stored
// either as their numeric ordinal (canonical) or as their member name (legacy).
package enums

import (
	"fmt"
	"math"
	"strconv"
)

// Width is the underlying integer kind of an enum type
type Width int

const (
	Int8 Width = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
)

// String returns the string representation of the width
func (w Width) String() string {
	switch w {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	default:
		return "unknown"
	}
}

// ParseWidth converts a string to a Width. The aliases byte, int and long are accepted.
func ParseWidth(s string) (Width, error) {
	switch s {
	case "int8", "sbyte":
		return Int8, nil
	case "uint8", "byte":
		return Uint8, nil
	case "int16", "short":
		return Int16, nil
	case "uint16", "ushort":
		return Uint16, nil
	case "int32", "int":
		return Int32, nil
	case "uint32", "uint":
		return Uint32, nil
	case "int64", "long":
		return Int64, nil
	case "uint64", "ulong":
		return Uint64, nil
	default:
		return 0, fmt.Errorf("unknown enum width: %s", s)
	}
}

// Signed reports whether the width is a signed integer kind
func (w Width) Signed() bool {
	switch w {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// Bits returns the bit size of the width
func (w Width) Bits() int {
	switch w {
	case Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32:
		return 32
	default:
		return 64
	}
}

// Min returns the smallest ordinal representable by the width
func (w Width) Min() Ordinal {
	switch w {
	case Int8:
		return Signed(w, math.MinInt8)
	case Int16:
		return Signed(w, math.MinInt16)
	case Int32:
		return Signed(w, math.MinInt32)
	case Int64:
		return Signed(w, math.MinInt64)
	default:
		return Unsigned(w, 0)
	}
}

// Max returns the largest ordinal representable by the width
func (w Width) Max() Ordinal {
	switch w {
	case Int8:
		return Signed(w, math.MaxInt8)
	case Int16:
		return Signed(w, math.MaxInt16)
	case Int32:
		return Signed(w, math.MaxInt32)
	case Int64:
		return Signed(w, math.MaxInt64)
	case Uint8:
		return Unsigned(w, math.MaxUint8)
	case Uint16:
		return Unsigned(w, math.MaxUint16)
	case Uint32:
		return Unsigned(w, math.MaxUint32)
	default:
		return Unsigned(w, math.MaxUint64)
	}
}

// Ordinal is an enum's underlying value tagged with its width.
// Exactly one of the signed or unsigned halves is meaningful, selected by the width.
// Ordinals are comparable with ==.
type Ordinal struct {
	width Width
	i     int64
	u     uint64
}

// Signed creates an ordinal for a signed width.
// It panics if w is unsigned; use ParseOrdinal for untrusted input.
func Signed(w Width, v int64) Ordinal {
	if !w.Signed() {
		panic(fmt.Sprintf("enums: Signed called with unsigned width %s", w))
	}
	return Ordinal{width: w, i: v}
}

// Unsigned creates an ordinal for an unsigned width.
// It panics if w is signed; use ParseOrdinal for untrusted input.
func Unsigned(w Width, v uint64) Ordinal {
	if w.Signed() {
		panic(fmt.Sprintf("enums: Unsigned called with signed width %s", w))
	}
	return Ordinal{width: w, u: v}
}

// ParseOrdinal parses a base-10 integer literal into an ordinal of the given width.
// Literals outside the width's range, or with a fraction or exponent, are rejected.
func ParseOrdinal(w Width, literal string) (Ordinal, error) {
	if w.Signed() {
		v, err := strconv.ParseInt(literal, 10, w.Bits())
		if err != nil {
			return Ordinal{}, fmt.Errorf("invalid %s literal %q: %w", w, literal, err)
		}
		return Ordinal{width: w, i: v}, nil
	}
	v, err := strconv.ParseUint(literal, 10, w.Bits())
	if err != nil {
		return Ordinal{}, fmt.Errorf("invalid %s literal %q: %w", w, literal, err)
	}
	return Ordinal{width: w, u: v}, nil
}

// Width returns the ordinal's width
func (o Ordinal) Width() Width {
	return o.width
}

// Int64 returns the signed value. ok is false for unsigned widths.
func (o Ordinal) Int64() (v int64, ok bool) {
	return o.i, o.width.Signed()
}

// Uint64 returns the unsigned value. ok is false for signed widths.
func (o Ordinal) Uint64() (v uint64, ok bool) {
	return o.u, !o.width.Signed()
}

// String returns the ordinal as a base-10 literal, which is also its JSON number form
func (o Ordinal) String() string {
	if o.width.Signed() {
		return strconv.FormatInt(o.i, 10)
	}
	return strconv.FormatUint(o.u, 10)
}
