// Package binary provides low-level binary I/O for NRBF stream parsing.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	// ErrTruncated is returned when fewer bytes remain than a field declares.
	ErrTruncated = errors.New("truncated input")

	// ErrInvalidUTF8 is returned for malformed UTF-8 string or char data.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")

	// ErrInvalidLength is returned when a 7-bit encoded length is longer than
	// five bytes or does not fit a non-negative int32.
	ErrInvalidLength = errors.New("invalid length prefix")
)

// MaxLengthPrefixBytes is the longest legal 7-bit encoded length.
const MaxLengthPrefixBytes = 5

// ReadError describes a failed read. Pos is where the failing field starts
// and Consumed is how many bytes of it were read before the failure.
type ReadError struct {
	Pos      int64
	Consumed int
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("at byte %d (consumed %d): %v", e.Pos, e.Consumed, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Reader reads little-endian NRBF fields from an in-memory buffer.
type Reader struct {
	data []byte
	pos  int64
}

// NewReader creates a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Len returns the total buffer length.
func (r *Reader) Len() int64 {
	return int64(len(r.data))
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int64 {
	if r.pos >= int64(len(r.data)) {
		return 0
	}
	return int64(len(r.data)) - r.pos
}

// truncated reports a short read of the field starting at pos.
func (r *Reader) truncated(pos int64, consumed int) error {
	return &ReadError{Pos: pos, Consumed: consumed, Err: ErrTruncated}
}

// ReadBytes reads exactly n bytes from the current position. The returned
// slice aliases the buffer; callers that keep it must copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if int64(n) > r.Remaining() {
		return nil, r.truncated(r.pos, 0)
	}
	buf := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads a signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE 754 single.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE 754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadLength reads a 7-bit encoded length: seven bits per byte, low group
// first, high bit set on every byte but the last.
func (r *Reader) ReadLength() (int, error) {
	start := r.pos
	var v uint32
	for i := 0; i < MaxLengthPrefixBytes; i++ {
		if r.Remaining() == 0 {
			r.pos = start
			return 0, r.truncated(start, i)
		}
		b := r.data[r.pos]
		r.pos++
		if i == MaxLengthPrefixBytes-1 && b > 0x07 {
			return 0, &ReadError{Pos: start, Consumed: i + 1, Err: ErrInvalidLength}
		}
		v |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			if v > math.MaxInt32 {
				return 0, &ReadError{Pos: start, Consumed: i + 1, Err: ErrInvalidLength}
			}
			return int(v), nil
		}
	}
	return 0, &ReadError{Pos: start, Consumed: MaxLengthPrefixBytes, Err: ErrInvalidLength}
}

// ReadString reads a length-prefixed UTF-8 string. The declared length is
// checked against the remaining input before any allocation.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	n, err := r.ReadLength()
	if err != nil {
		return "", err
	}
	prefix := int(r.pos - start)
	if int64(n) > r.Remaining() {
		return "", r.truncated(start, prefix)
	}
	buf := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	if !utf8.Valid(buf) {
		return "", &ReadError{Pos: start, Consumed: prefix + n, Err: ErrInvalidUTF8}
	}
	return string(buf), nil
}

// ReadChar reads one UTF-8 encoded scalar value.
func (r *Reader) ReadChar() (rune, error) {
	start := r.pos
	lead, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	width := utf8SequenceLength(lead)
	if width == 0 {
		return 0, &ReadError{Pos: start, Consumed: 1, Err: ErrInvalidUTF8}
	}
	if int64(width-1) > r.Remaining() {
		return 0, r.truncated(start, 1)
	}
	seq := r.data[start : start+int64(width)]
	r.pos = start + int64(width)
	c, size := utf8.DecodeRune(seq)
	if c == utf8.RuneError && size <= 1 {
		return 0, &ReadError{Pos: start, Consumed: width, Err: ErrInvalidUTF8}
	}
	return c, nil
}

func utf8SequenceLength(lead byte) int {
	switch {
	case lead < 0x80:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}
