// Package nrbf decodes and encodes .NET Remoting Binary Format (MS-NRBF)
// streams, the wire format of the legacy BinaryFormatter.
//
// Decoding produces a Graph: an arena of inert nodes (classes, strings,
// arrays) linked by handles. No type named by the stream is ever loaded or
// instantiated, so untrusted input can be inspected safely. Every resource
// the decoder commits is bounded by Limits, checked before allocation.
//
// Encoding linearizes a Graph back into records with a deterministic
// handle assignment, so a decoded canonical stream re-encodes byte for byte.
package nrbf

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nrbf/internal/array"
	"github.com/robert-malhotra/go-nrbf/internal/binary"
	"github.com/robert-malhotra/go-nrbf/internal/guard"
	"github.com/robert-malhotra/go-nrbf/internal/primitive"
	"github.com/robert-malhotra/go-nrbf/internal/record"
	"github.com/robert-malhotra/go-nrbf/internal/typeinfo"
)

// Common errors. Decode failures are reported as *DecodeError and encode
// failures as *EncodeError; both match these through errors.Is.
var (
	ErrTruncatedInput           = binary.ErrTruncated
	ErrInvalidUTF8              = binary.ErrInvalidUTF8
	ErrUnknownRecordTag         = record.ErrUnknownTag
	ErrUnexpectedRecordTag      = record.ErrUnexpectedTag
	ErrHandleAlreadyDefined     = record.ErrHandleAlreadyDefined
	ErrUndefinedHandleReference = record.ErrUndefinedReference
	ErrSchemaNotFound           = record.ErrSchemaNotFound
	ErrLibraryNotFound          = record.ErrLibraryNotFound
	ErrMalformed                = record.ErrMalformed
	ErrLimitExceeded            = guard.ErrLimitExceeded
	ErrInvalidLimits            = guard.ErrInvalidLimits
	ErrEncode                   = errors.New("encode error")
)

// ErrorClass groups decode and encode failures.
type ErrorClass uint8

const (
	// FormatError: malformed tag, truncated field, bad UTF-8, bad shape.
	FormatError ErrorClass = iota
	// ReferenceError: undefined or duplicate handle, schema or library.
	ReferenceError
	// LimitError: a resource ceiling was hit.
	LimitError
	// EncodeFailure: the graph cannot be represented as a stream.
	EncodeFailure
)

func (c ErrorClass) String() string {
	switch c {
	case FormatError:
		return "format"
	case ReferenceError:
		return "reference"
	case LimitError:
		return "limit"
	case EncodeFailure:
		return "encode"
	default:
		return fmt.Sprintf("ErrorClass(%d)", uint8(c))
	}
}

// DecodeError reports a fatal decode failure. Offset is the start of the
// record being read (or, for reference errors, the referencing record);
// Pos is the byte where the failing field starts.
type DecodeError struct {
	Class  ErrorClass
	Offset int64
	Pos    int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("nrbf: %s error at offset %d (byte %d): %v", e.Class, e.Offset, e.Pos, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every byte-level validity failure match ErrMalformed.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformed && e.Class == FormatError && isMalformed(e.Err)
}

var malformedErrs = []error{
	record.ErrMalformed,
	binary.ErrInvalidLength,
	primitive.ErrInvalidType,
	primitive.ErrInvalidValue,
	typeinfo.ErrInvalidBinaryType,
	array.ErrInvalidShape,
}

func isMalformed(err error) bool {
	for _, m := range malformedErrs {
		if errors.Is(err, m) {
			return true
		}
	}
	return false
}

// classify maps an internal error to its class.
func classify(err error) ErrorClass {
	switch {
	case errors.Is(err, guard.ErrLimitExceeded):
		return LimitError
	case errors.Is(err, record.ErrHandleAlreadyDefined),
		errors.Is(err, record.ErrUndefinedReference),
		errors.Is(err, record.ErrSchemaNotFound),
		errors.Is(err, record.ErrLibraryNotFound):
		return ReferenceError
	default:
		return FormatError
	}
}

// newDecodeError wraps an error from the record layer or the resolver.
func newDecodeError(err error) *DecodeError {
	de := &DecodeError{Class: classify(err), Err: err}
	var re *record.Error
	if errors.As(err, &re) {
		de.Offset, de.Pos = re.Offset, re.Offset
	}
	var be *binary.ReadError
	if errors.As(err, &be) {
		de.Pos = be.Pos
	}
	return de
}

// resolveError reports a resolution failure against the record at offset.
func resolveError(offset int64, err error) *DecodeError {
	return &DecodeError{Class: classify(err), Offset: offset, Pos: offset, Err: err}
}

// EncodeError reports a graph that cannot be encoded. Handle names the
// offending node when there is one.
type EncodeError struct {
	Handle Handle
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Handle != 0 {
		return fmt.Sprintf("nrbf: cannot encode node %d: %v", e.Handle, e.Err)
	}
	return fmt.Sprintf("nrbf: cannot encode: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

func encodeErrorf(h Handle, format string, args ...any) *EncodeError {
	return &EncodeError{Handle: h, Err: fmt.Errorf(format, args...)}
}
