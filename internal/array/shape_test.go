package array

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-malhotra/go-nrbf/internal/binary"
)

func le32(vs ...int32) []byte {
	var buf bytes.Buffer
	w := binary.NewWriter(&buf)
	for _, v := range vs {
		_ = w.WriteInt32(v)
	}
	return buf.Bytes()
}

func TestReadRectangularOffset(t *testing.T) {
	// Rank 3: all lengths [2,3,4], then all bounds [1,0,-2].
	data := append([]byte{byte(RectangularOffset)}, le32(3, 2, 3, 4, 1, 0, -2)...)

	s, err := Read(binary.NewReader(data))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := Shape{Type: RectangularOffset, Lengths: []int32{2, 3, 4}, LowerBounds: []int32{1, 0, -2}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if n, ok := s.Count(); !ok || n != 24 {
		t.Errorf("Count() = %d, %v, want 24", n, ok)
	}

	var buf bytes.Buffer
	if err := Write(binary.NewWriter(&buf), s); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("re-encoding differs:\ngot  %x\nwant %x", buf.Bytes(), data)
	}
}

func TestReadZeroBoundsNormalized(t *testing.T) {
	data := append([]byte{byte(SingleOffset)}, le32(1, 5, 0)...)

	s, err := Read(binary.NewReader(data))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if s.Type != Single || s.LowerBounds != nil {
		t.Errorf("expected Single without bounds, got %v %v", s.Type, s.LowerBounds)
	}
}

func TestReadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"unknown type", append([]byte{6}, le32(1, 1)...), ErrInvalidShape},
		{"rank zero", append([]byte{byte(Single)}, le32(0)...), ErrInvalidShape},
		{"single rank two", append([]byte{byte(Single)}, le32(2, 1, 1)...), ErrInvalidShape},
		{"rectangular rank one", append([]byte{byte(Rectangular)}, le32(1, 4)...), ErrInvalidShape},
		{"negative length", append([]byte{byte(Single)}, le32(1, -1)...), ErrInvalidShape},
		{"bound overflow", append([]byte{byte(SingleOffset)}, le32(1, 10, math.MaxInt32)...), ErrInvalidShape},
		{"huge rank", append([]byte{byte(Rectangular)}, le32(math.MaxInt32)...), binary.ErrTruncated},
		{"missing bounds", append([]byte{byte(SingleOffset)}, le32(1, 3)...), binary.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(binary.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCountOverflow(t *testing.T) {
	s := NewRectangular(math.MaxInt32, math.MaxInt32, math.MaxInt32)
	if _, ok := s.Count(); ok {
		t.Error("expected overflow")
	}
	if err := s.Validate(); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("expected ErrInvalidShape, got %v", err)
	}

	zero := NewRectangular(math.MaxInt32, 0, math.MaxInt32)
	if n, ok := zero.Count(); !ok || n != 0 {
		t.Errorf("Count() = %d, %v, want 0", n, ok)
	}
}

func TestFlattenRowMajor(t *testing.T) {
	s := Shape{Type: RectangularOffset, Lengths: []int32{2, 3, 4}, LowerBounds: []int32{1, 0, -2}}

	tests := []struct {
		indices []int64
		pos     int64
	}{
		{[]int64{1, 0, -2}, 0},
		{[]int64{1, 0, -1}, 1},
		{[]int64{1, 1, -2}, 4},
		{[]int64{2, 0, -2}, 12},
		{[]int64{2, 2, 1}, 23},
	}

	for _, tt := range tests {
		pos, err := s.Flatten(tt.indices...)
		if err != nil || pos != tt.pos {
			t.Errorf("Flatten(%v) = %d, %v, want %d", tt.indices, pos, err, tt.pos)
			continue
		}
		back, err := s.Unflatten(pos)
		if err != nil {
			t.Fatalf("Unflatten(%d) failed: %v", pos, err)
		}
		if diff := cmp.Diff(tt.indices, back); diff != "" {
			t.Errorf("Unflatten(%d) mismatch (-want +got):\n%s", pos, diff)
		}
	}

	if _, err := s.Flatten(0, 0, 0); err == nil {
		t.Error("expected out of range error for index below lower bound")
	}
	if _, err := s.Flatten(1, 0); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("expected ErrInvalidShape for wrong rank, got %v", err)
	}
	if _, err := s.Unflatten(24); err == nil {
		t.Error("expected out of range error")
	}
}

func TestCanonicalAndEqual(t *testing.T) {
	a := Shape{Type: RectangularOffset, Lengths: []int32{2, 2}, LowerBounds: []int32{0, 0}}
	b := NewRectangular(2, 2)
	if !a.Equal(b) {
		t.Error("all-zero bounds should equal no bounds")
	}
	if c := a.Canonical(); c.Type != Rectangular || c.LowerBounds != nil {
		t.Errorf("Canonical() = %+v", c)
	}

	d := Shape{Type: Rectangular, Lengths: []int32{2, 2}, LowerBounds: []int32{0, 5}}
	if c := d.Canonical(); c.Type != RectangularOffset {
		t.Errorf("nonzero bound should select offset variant, got %v", c.Type)
	}
	if d.Equal(b) {
		t.Error("shapes with different bounds must differ")
	}
}

func TestShapeString(t *testing.T) {
	s := Shape{Type: SingleOffset, Lengths: []int32{3}, LowerBounds: []int32{-1}}
	if got := s.String(); got != "SingleOffset[-1..1]" {
		t.Errorf("String() = %q", got)
	}
	if got := NewRectangular(2, 3).String(); got != "Rectangular[2,3]" {
		t.Errorf("String() = %q", got)
	}
}
