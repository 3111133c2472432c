package record

import (
	"errors"
	"fmt"
)

// Stream-level errors. Byte-level failures wrap the internal/binary,
// internal/primitive, internal/typeinfo and internal/array sentinels.
var (
	ErrUnknownTag           = errors.New("unknown record tag")
	ErrUnexpectedTag        = errors.New("unexpected record tag")
	ErrHandleAlreadyDefined = errors.New("handle already defined")
	ErrUndefinedReference   = errors.New("undefined handle reference")
	ErrSchemaNotFound       = errors.New("schema not found")
	ErrLibraryNotFound      = errors.New("library not found")
	ErrMalformed            = errors.New("malformed record")
)

// Error reports a failure while reading the record that starts at Offset.
type Error struct {
	Offset int64
	Tag    Tag
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("record %s at offset %d: %v", e.Tag, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
