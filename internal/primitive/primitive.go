// Package primitive implements the NRBF primitive value codec.
//
// Each primitive kind has a fixed little-endian width except Char (one UTF-8
// scalar) and Decimal (a length-prefixed string). Values never convert between
// kinds: a Value built as Int16 reads back only as Int16.
package primitive

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robert-malhotra/go-nrbf/internal/binary"
)

// ErrInvalidType is returned for a PrimitiveTypeEnumeration byte that does
// not name a kind, or a kind that cannot carry an inline value.
var ErrInvalidType = errors.New("invalid primitive type")

// ErrInvalidValue is returned for payloads that are well-sized but not legal
// for their kind (a Boolean other than 0 or 1, malformed Decimal text).
var ErrInvalidValue = errors.New("invalid primitive value")

// Type is the PrimitiveTypeEnumeration.
type Type uint8

const (
	Boolean  Type = 1
	Byte     Type = 2
	Char     Type = 3
	Decimal  Type = 5
	Double   Type = 6
	Int16    Type = 7
	Int32    Type = 8
	Int64    Type = 9
	SByte    Type = 10
	Single   Type = 11
	TimeSpan Type = 12
	DateTime Type = 13
	UInt16   Type = 14
	UInt32   Type = 15
	UInt64   Type = 16
	Null     Type = 17
	String   Type = 18
)

var typeNames = [...]string{
	Boolean:  "Boolean",
	Byte:     "Byte",
	Char:     "Char",
	Decimal:  "Decimal",
	Double:   "Double",
	Int16:    "Int16",
	Int32:    "Int32",
	Int64:    "Int64",
	SByte:    "SByte",
	Single:   "Single",
	TimeSpan: "TimeSpan",
	DateTime: "DateTime",
	UInt16:   "UInt16",
	UInt32:   "UInt32",
	UInt64:   "UInt64",
	Null:     "Null",
	String:   "String",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("PrimitiveType(%d)", uint8(t))
}

// Valid reports whether t names a kind in the enumeration.
func (t Type) Valid() bool {
	return int(t) < len(typeNames) && typeNames[t] != ""
}

// Inline reports whether t can be carried as an inline value. Null and String
// appear in the enumeration but never as a primitive payload.
func (t Type) Inline() bool {
	return t.Valid() && t != Null && t != String
}

// ParseType maps a name produced by String back to its Type.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n != "" && n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidType, name)
}

// Size returns the fixed encoded width of t in bytes, or 0 for the variable
// width kinds (Char, Decimal) and non-inline kinds.
func (t Type) Size() int {
	switch t {
	case Boolean, Byte, SByte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Single:
		return 4
	case Int64, UInt64, Double, TimeSpan, DateTime:
		return 8
	default:
		return 0
	}
}

// MinSize returns the smallest number of bytes one value of t can occupy.
func (t Type) MinSize() int {
	if n := t.Size(); n > 0 {
		return n
	}
	// Char is at least one UTF-8 byte, Decimal at least a one-byte prefix.
	return 1
}

// DateTimeValue is the raw NRBF DateTime: 62 bits of ticks and a 2-bit kind.
type DateTimeValue struct {
	Ticks int64
	Kind  uint8
}

const (
	ticksPerSecond = 10_000_000
	// unixEpochTicks is 1970-01-01T00:00:00Z counted from 0001-01-01.
	unixEpochTicks = 621_355_968_000_000_000
)

// Time converts d to a time.Time in UTC, ignoring Kind.
func (d DateTimeValue) Time() time.Time {
	t := d.Ticks - unixEpochTicks
	sec, rem := t/ticksPerSecond, t%ticksPerSecond
	if rem < 0 {
		sec--
		rem += ticksPerSecond
	}
	return time.Unix(sec, rem*100).UTC()
}

func (d DateTimeValue) bits() uint64 {
	return uint64(d.Ticks)&(1<<62-1) | uint64(d.Kind&0x3)<<62
}

func dateTimeFromBits(b uint64) DateTimeValue {
	return DateTimeValue{Ticks: int64(b & (1<<62 - 1)), Kind: uint8(b >> 62)}
}

// Value is one typed primitive. The zero Value is invalid.
type Value struct {
	Type Type
	bits uint64
	text string
}

func NewBool(v bool) Value {
	if v {
		return Value{Type: Boolean, bits: 1}
	}
	return Value{Type: Boolean}
}

func NewByte(v uint8) Value { return Value{Type: Byte, bits: uint64(v)} }
func NewSByte(v int8) Value { return Value{Type: SByte, bits: uint64(int64(v))} }
func NewInt16(v int16) Value { return Value{Type: Int16, bits: uint64(int64(v))} }
func NewInt32(v int32) Value { return Value{Type: Int32, bits: uint64(int64(v))} }
func NewInt64(v int64) Value { return Value{Type: Int64, bits: uint64(v)} }
func NewUInt16(v uint16) Value { return Value{Type: UInt16, bits: uint64(v)} }
func NewUInt32(v uint32) Value { return Value{Type: UInt32, bits: uint64(v)} }
func NewUInt64(v uint64) Value { return Value{Type: UInt64, bits: v} }
func NewChar(v rune) Value { return Value{Type: Char, bits: uint64(v)} }

func NewSingle(v float32) Value {
	return Value{Type: Single, bits: uint64(math.Float32bits(v))}
}

func NewDouble(v float64) Value {
	return Value{Type: Double, bits: math.Float64bits(v)}
}

// NewTimeSpan builds a TimeSpan from 100ns ticks.
func NewTimeSpan(ticks int64) Value {
	return Value{Type: TimeSpan, bits: uint64(ticks)}
}

func NewDateTime(v DateTimeValue) Value {
	return Value{Type: DateTime, bits: v.bits()}
}

// NewDecimal validates and wraps decimal text such as "-12.50".
func NewDecimal(text string) (Value, error) {
	if !validDecimal(text) {
		return Value{}, fmt.Errorf("%w: decimal %q", ErrInvalidValue, text)
	}
	return Value{Type: Decimal, text: text}, nil
}

// validDecimal accepts [-]digits[.digits].
func validDecimal(s string) bool {
	s, _ = strings.CutPrefix(s, "-")
	whole, frac, dot := strings.Cut(s, ".")
	if !allDigits(whole) || (dot && !allDigits(frac)) {
		return false
	}
	// System.Decimal carries at most 29 significant digits.
	return len(whole)+len(frac) <= 29
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (v Value) Bool() bool { return v.bits != 0 }
func (v Value) Int64() int64 { return int64(v.bits) }
func (v Value) Uint64() uint64 { return v.bits }
func (v Value) Rune() rune { return rune(v.bits) }
func (v Value) Text() string { return v.text }
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Float64() float64 { return math.Float64frombits(v.bits) }
func (v Value) Ticks() int64 { return int64(v.bits) }
func (v Value) Equal(o Value) bool { return v == o }

// DateTime returns the DateTime payload.
func (v Value) DateTime() DateTimeValue {
	return dateTimeFromBits(v.bits)
}

// Duration converts a TimeSpan to a time.Duration.
func (v Value) Duration() time.Duration {
	return time.Duration(v.Ticks()) * 100
}

// Interface returns the payload as its natural Go type.
func (v Value) Interface() any {
	switch v.Type {
	case Boolean:
		return v.Bool()
	case Byte:
		return uint8(v.bits)
	case SByte:
		return int8(v.bits)
	case Int16:
		return int16(v.bits)
	case Int32:
		return int32(v.bits)
	case Int64:
		return v.Int64()
	case UInt16:
		return uint16(v.bits)
	case UInt32:
		return uint32(v.bits)
	case UInt64:
		return v.bits
	case Char:
		return string(v.Rune())
	case Single:
		return v.Float32()
	case Double:
		return v.Float64()
	case Decimal:
		return v.text
	case TimeSpan:
		return v.Duration().String()
	case DateTime:
		return v.DateTime().Time().Format(time.RFC3339Nano)
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Type {
	case Boolean:
		return strconv.FormatBool(v.Bool())
	case Byte, UInt16, UInt32, UInt64:
		return strconv.FormatUint(v.bits, 10)
	case SByte, Int16, Int32, Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case Char:
		return strconv.QuoteRune(v.Rune())
	case Single:
		return strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32)
	case Double:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case Decimal:
		return v.text + "m"
	case TimeSpan:
		return v.Duration().String()
	case DateTime:
		return v.DateTime().Time().Format(time.RFC3339Nano)
	default:
		return "<invalid>"
	}
}

// Read decodes one value of kind t.
func Read(r *binary.Reader, t Type) (Value, error) {
	switch t {
	case Boolean:
		b, err := r.ReadUint8()
		if err != nil {
			return Value{}, err
		}
		if b > 1 {
			return Value{}, fmt.Errorf("%w: boolean byte 0x%02x", ErrInvalidValue, b)
		}
		return NewBool(b == 1), nil
	case Byte:
		b, err := r.ReadUint8()
		return NewByte(b), err
	case SByte:
		b, err := r.ReadUint8()
		return NewSByte(int8(b)), err
	case Int16:
		v, err := r.ReadUint16()
		return NewInt16(int16(v)), err
	case UInt16:
		v, err := r.ReadUint16()
		return NewUInt16(v), err
	case Int32:
		v, err := r.ReadInt32()
		return NewInt32(v), err
	case UInt32:
		v, err := r.ReadUint32()
		return NewUInt32(v), err
	case Int64:
		v, err := r.ReadInt64()
		return NewInt64(v), err
	case UInt64:
		v, err := r.ReadUint64()
		return NewUInt64(v), err
	case Single:
		v, err := r.ReadFloat32()
		return NewSingle(v), err
	case Double:
		v, err := r.ReadFloat64()
		return NewDouble(v), err
	case TimeSpan:
		v, err := r.ReadInt64()
		return NewTimeSpan(v), err
	case DateTime:
		v, err := r.ReadUint64()
		return Value{Type: DateTime, bits: v}, err
	case Char:
		c, err := r.ReadChar()
		return NewChar(c), err
	case Decimal:
		s, err := r.ReadString()
		if err != nil {
			return Value{}, err
		}
		return NewDecimal(s)
	default:
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidType, t)
	}
}

// Write encodes v.
func Write(w *binary.Writer, v Value) error {
	switch v.Type {
	case Boolean, Byte, SByte:
		return w.WriteUint8(uint8(v.bits))
	case Int16, UInt16:
		return w.WriteUint16(uint16(v.bits))
	case Int32, UInt32, Single:
		return w.WriteUint32(uint32(v.bits))
	case Int64, UInt64, Double, TimeSpan, DateTime:
		return w.WriteUint64(v.bits)
	case Char:
		return w.WriteChar(v.Rune())
	case Decimal:
		return w.WriteString(v.text)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidType, v.Type)
	}
}
