// Package array models NRBF array shapes.
//
// A shape is the BinaryArrayTypeEnumeration variant together with the
// per-dimension lengths and, for the offset variants, lower bounds. Elements
// are stored flat in row-major order; Flatten and Unflatten map between
// declared indices and storage positions.
package array

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/robert-malhotra/go-nrbf/internal/binary"
)

// ErrInvalidShape is returned for an unknown array type, a rank that does
// not fit the type, negative lengths or out-of-range bounds.
var ErrInvalidShape = errors.New("invalid array shape")

// Type is the BinaryArrayTypeEnumeration.
type Type uint8

const (
	Single            Type = 0
	Jagged            Type = 1
	Rectangular       Type = 2
	SingleOffset      Type = 3
	JaggedOffset      Type = 4
	RectangularOffset Type = 5
)

var typeNames = [...]string{
	Single:            "Single",
	Jagged:            "Jagged",
	Rectangular:       "Rectangular",
	SingleOffset:      "SingleOffset",
	JaggedOffset:      "JaggedOffset",
	RectangularOffset: "RectangularOffset",
}

func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("BinaryArrayType(%d)", uint8(t))
}

// Valid reports whether t is in the enumeration.
func (t Type) Valid() bool {
	return int(t) < len(typeNames)
}

// HasBounds reports whether t is one of the offset variants, whose layout
// carries a lower bound per dimension.
func (t Type) HasBounds() bool {
	return t >= SingleOffset && t <= RectangularOffset
}

// Base returns the non-offset variant of t.
func (t Type) Base() Type {
	if t.HasBounds() {
		return t - 3
	}
	return t
}

// WithBounds returns the offset variant of t.
func (t Type) WithBounds() Type {
	if t.Valid() && !t.HasBounds() {
		return t + 3
	}
	return t
}

// Shape describes the dimensions of one array. LowerBounds is either nil
// (all zero) or has one entry per dimension.
type Shape struct {
	Type        Type
	Lengths     []int32
	LowerBounds []int32
}

// NewSingle returns the shape of a one-dimensional zero-based array.
func NewSingle(n int32) Shape {
	return Shape{Type: Single, Lengths: []int32{n}}
}

// NewJagged returns the shape of an array of n arrays.
func NewJagged(n int32) Shape {
	return Shape{Type: Jagged, Lengths: []int32{n}}
}

// NewRectangular returns a zero-based multidimensional shape.
func NewRectangular(lengths ...int32) Shape {
	return Shape{Type: Rectangular, Lengths: append([]int32(nil), lengths...)}
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s.Lengths)
}

// Bound returns the lower bound of dimension d.
func (s Shape) Bound(d int) int32 {
	if s.LowerBounds == nil {
		return 0
	}
	return s.LowerBounds[d]
}

// Count returns the product of the lengths. ok is false when the product
// does not fit an int64 or a length is negative.
func (s Shape) Count() (n int64, ok bool) {
	n = 1
	for _, l := range s.Lengths {
		if l < 0 {
			return 0, false
		}
		if l == 0 {
			return 0, true
		}
		if n > math.MaxInt64/int64(l) {
			return 0, false
		}
		n *= int64(l)
	}
	return n, true
}

// Validate checks the shape's internal consistency.
func (s Shape) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: type %d", ErrInvalidShape, uint8(s.Type))
	}
	rank := s.Rank()
	switch s.Type.Base() {
	case Single, Jagged:
		if rank != 1 {
			return fmt.Errorf("%w: %s array with rank %d", ErrInvalidShape, s.Type, rank)
		}
	case Rectangular:
		if rank < 2 {
			return fmt.Errorf("%w: %s array with rank %d", ErrInvalidShape, s.Type, rank)
		}
	}
	if s.LowerBounds != nil && len(s.LowerBounds) != rank {
		return fmt.Errorf("%w: %d lower bounds for rank %d", ErrInvalidShape, len(s.LowerBounds), rank)
	}
	for d, l := range s.Lengths {
		if l < 0 {
			return fmt.Errorf("%w: dimension %d has length %d", ErrInvalidShape, d, l)
		}
		// The last index, bound+length-1, must be representable.
		if int64(s.Bound(d))+int64(l) > math.MaxInt32+1 {
			return fmt.Errorf("%w: dimension %d bound %d overflows with length %d", ErrInvalidShape, d, s.Bound(d), l)
		}
	}
	if _, ok := s.Count(); !ok {
		return fmt.Errorf("%w: element count overflows", ErrInvalidShape)
	}
	return nil
}

func (s Shape) zeroBounds() bool {
	for _, b := range s.LowerBounds {
		if b != 0 {
			return false
		}
	}
	return true
}

// Canonical returns the shape with the offset variant chosen iff some lower
// bound is nonzero. All-zero bounds are dropped.
func (s Shape) Canonical() Shape {
	c := Shape{Type: s.Type, Lengths: s.Lengths}
	if s.zeroBounds() {
		c.Type = s.Type.Base()
		return c
	}
	c.Type = s.Type.WithBounds()
	c.LowerBounds = s.LowerBounds
	return c
}

// Equal reports whether two shapes describe the same dimensions. A nil
// LowerBounds equals an all-zero one.
func (s Shape) Equal(o Shape) bool {
	a, b := s.Canonical(), o.Canonical()
	if a.Type != b.Type || len(a.Lengths) != len(b.Lengths) {
		return false
	}
	for d := range a.Lengths {
		if a.Lengths[d] != b.Lengths[d] || a.Bound(d) != b.Bound(d) {
			return false
		}
	}
	return true
}

// Flatten maps declared indices (offset by the lower bounds) to the
// row-major storage position.
func (s Shape) Flatten(indices ...int64) (int64, error) {
	if len(indices) != s.Rank() {
		return 0, fmt.Errorf("%w: %d indices for rank %d", ErrInvalidShape, len(indices), s.Rank())
	}
	var pos int64
	for d, idx := range indices {
		i := idx - int64(s.Bound(d))
		if i < 0 || i >= int64(s.Lengths[d]) {
			return 0, fmt.Errorf("index %d out of range in dimension %d", idx, d)
		}
		pos = pos*int64(s.Lengths[d]) + i
	}
	return pos, nil
}

// Unflatten is the inverse of Flatten.
func (s Shape) Unflatten(pos int64) ([]int64, error) {
	n, ok := s.Count()
	if !ok || pos < 0 || pos >= n {
		return nil, fmt.Errorf("position %d out of range", pos)
	}
	indices := make([]int64, s.Rank())
	for d := s.Rank() - 1; d >= 0; d-- {
		l := int64(s.Lengths[d])
		indices[d] = pos%l + int64(s.Bound(d))
		pos /= l
	}
	return indices, nil
}

func (s Shape) String() string {
	var b strings.Builder
	b.WriteString(s.Type.String())
	b.WriteByte('[')
	for d, l := range s.Lengths {
		if d > 0 {
			b.WriteByte(',')
		}
		if lb := s.Bound(d); lb != 0 {
			fmt.Fprintf(&b, "%d..%d", lb, int64(lb)+int64(l)-1)
		} else {
			fmt.Fprintf(&b, "%d", l)
		}
	}
	b.WriteByte(']')
	return b.String()
}

// Read reads BinaryArrayTypeEnum, Rank, Lengths and, for offset variants,
// LowerBounds. All rank lengths come first, then all rank lower bounds;
// they are not interleaved per dimension. The result is validated and
// canonical.
func Read(r *binary.Reader) (Shape, error) {
	start := r.Pos()
	b, err := r.ReadUint8()
	if err != nil {
		return Shape{}, err
	}
	t := Type(b)
	if !t.Valid() {
		return Shape{}, &binary.ReadError{Pos: start, Consumed: 1, Err: fmt.Errorf("%w: type %d", ErrInvalidShape, b)}
	}
	rankPos := r.Pos()
	rank, err := r.ReadInt32()
	if err != nil {
		return Shape{}, err
	}
	if rank < 1 {
		return Shape{}, &binary.ReadError{Pos: rankPos, Consumed: 4, Err: fmt.Errorf("%w: rank %d", ErrInvalidShape, rank)}
	}
	fields := int64(rank)
	if t.HasBounds() {
		fields *= 2
	}
	if fields*4 > r.Remaining() {
		return Shape{}, &binary.ReadError{Pos: r.Pos(), Err: binary.ErrTruncated}
	}

	s := Shape{Type: t, Lengths: make([]int32, rank)}
	for d := range s.Lengths {
		if s.Lengths[d], err = r.ReadInt32(); err != nil {
			return Shape{}, err
		}
	}
	if t.HasBounds() {
		s.LowerBounds = make([]int32, rank)
		for d := range s.LowerBounds {
			if s.LowerBounds[d], err = r.ReadInt32(); err != nil {
				return Shape{}, err
			}
		}
	}
	if err := s.Validate(); err != nil {
		return Shape{}, &binary.ReadError{Pos: start, Consumed: int(r.Pos() - start), Err: err}
	}
	return s.Canonical(), nil
}

// Write writes the canonical form of s.
func Write(w *binary.Writer, s Shape) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c := s.Canonical()
	if err := w.WriteUint8(uint8(c.Type)); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(c.Rank())); err != nil {
		return err
	}
	for _, l := range c.Lengths {
		if err := w.WriteInt32(l); err != nil {
			return err
		}
	}
	for _, b := range c.LowerBounds {
		if err := w.WriteInt32(b); err != nil {
			return err
		}
	}
	return nil
}
