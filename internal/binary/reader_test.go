package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestReaderReadUint8(t *testing.T) {
	r := NewReader([]byte{0x42, 0xFF})

	v, err := r.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8 failed: %v", err)
	}
	if v != 0x42 {
		t.Errorf("expected 0x42, got 0x%02x", v)
	}

	v, err = r.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8 failed: %v", err)
	}
	if v != 0xFF {
		t.Errorf("expected 0xFF, got 0x%02x", v)
	}
}

func TestReaderReadUint16(t *testing.T) {
	// Little-endian: 0x0102 stored as [0x02, 0x01]
	r := NewReader([]byte{0x02, 0x01})

	v, err := r.ReadUint16()
	if err != nil {
		t.Fatalf("ReadUint16 failed: %v", err)
	}
	if v != 0x0102 {
		t.Errorf("expected 0x0102, got 0x%04x", v)
	}
}

func TestReaderReadInt32(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(-2))
	binary.Write(&buf, binary.LittleEndian, int32(0x12345678))

	r := NewReader(buf.Bytes())

	v, err := r.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32 failed: %v", err)
	}
	if v != -2 {
		t.Errorf("expected -2, got %d", v)
	}

	v, err = r.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32 failed: %v", err)
	}
	if v != 0x12345678 {
		t.Errorf("expected 0x12345678, got 0x%08x", v)
	}
}

func TestReaderReadFloats(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, math.Float32bits(1.5))
	binary.Write(&buf, binary.LittleEndian, math.Float64bits(-0.25))

	r := NewReader(buf.Bytes())

	f32, err := r.ReadFloat32()
	if err != nil || f32 != 1.5 {
		t.Errorf("ReadFloat32 = %v, %v; want 1.5", f32, err)
	}
	f64, err := r.ReadFloat64()
	if err != nil || f64 != -0.25 {
		t.Errorf("ReadFloat64 = %v, %v; want -0.25", f64, err)
	}
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.ReadUint8(); err != nil {
		t.Fatal(err)
	}

	_, err := r.ReadUint32()
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReadError, got %T", err)
	}
	if re.Pos != 1 {
		t.Errorf("expected error position 1, got %d", re.Pos)
	}
	if r.Pos() != 1 {
		t.Errorf("failed read must not advance, pos = %d", r.Pos())
	}
}

func TestReaderReadLength(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected int
		size     int64
	}{
		{"zero", []byte{0x00}, 0, 1},
		{"one byte max", []byte{0x7F}, 127, 1},
		{"two bytes", []byte{0x80, 0x01}, 128, 2},
		{"three bytes", []byte{0xFF, 0xFF, 0x03}, 65535, 3},
		{"max int32", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x07}, math.MaxInt32, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data)
			v, err := r.ReadLength()
			if err != nil {
				t.Fatalf("ReadLength failed: %v", err)
			}
			if v != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, v)
			}
			if r.Pos() != tt.size {
				t.Errorf("expected pos %d, got %d", tt.size, r.Pos())
			}
		})
	}
}

func TestReaderReadLengthInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"fifth byte too large", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x08}, ErrInvalidLength},
		{"six bytes", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, ErrInvalidLength},
		{"truncated", []byte{0x80, 0x80}, ErrTruncated},
		{"empty", nil, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.data).ReadLength()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReaderReadString(t *testing.T) {
	data := append([]byte{0x06}, "héllo"...)

	r := NewReader(data)
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if s != "héllo" {
		t.Errorf("expected %q, got %q", "héllo", s)
	}
	if r.Remaining() != 0 {
		t.Errorf("expected all input consumed, %d left", r.Remaining())
	}
}

func TestReaderReadStringTruncated(t *testing.T) {
	// Declares 10 bytes, only 3 follow.
	r := NewReader([]byte{0xAA, 0x0A, 'a', 'b', 'c'})
	if _, err := r.ReadUint8(); err != nil {
		t.Fatal(err)
	}

	_, err := r.ReadString()
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReadError, got %T", err)
	}
	if re.Pos != 1 {
		t.Errorf("expected position 1, got %d", re.Pos)
	}
	if re.Consumed != 1 {
		t.Errorf("expected 1 byte consumed (the prefix), got %d", re.Consumed)
	}
}

func TestReaderReadStringInvalidUTF8(t *testing.T) {
	r := NewReader([]byte{0x02, 0xC3, 0x28})

	_, err := r.ReadString()
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
	var re *ReadError
	if errors.As(err, &re) && re.Consumed != 3 {
		t.Errorf("expected 3 bytes consumed, got %d", re.Consumed)
	}
}

func TestReaderReadChar(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want rune
	}{
		{"ascii", []byte("A"), 'A'},
		{"two byte", []byte("é"), 'é'},
		{"three byte", []byte("€"), '€'},
		{"four byte", []byte("𝄞"), '𝄞'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data)
			c, err := r.ReadChar()
			if err != nil {
				t.Fatalf("ReadChar failed: %v", err)
			}
			if c != tt.want {
				t.Errorf("expected %q, got %q", tt.want, c)
			}
			if r.Remaining() != 0 {
				t.Errorf("expected all input consumed")
			}
		})
	}

	if _, err := NewReader([]byte{0xFF}).ReadChar(); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("expected ErrInvalidUTF8 for 0xFF, got %v", err)
	}
	if _, err := NewReader([]byte{0xE2, 0x82}).ReadChar(); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for partial sequence, got %v", err)
	}
}
