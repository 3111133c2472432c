// Package guard enforces the resource ceilings applied while decoding and
// encoding. Every check runs before the allocation or descent it protects.
package guard

import (
	"errors"
	"fmt"
)

// ErrLimitExceeded is matched by every *LimitError.
var ErrLimitExceeded = errors.New("limit exceeded")

// ErrInvalidLimits is returned by Limits.Validate.
var ErrInvalidLimits = errors.New("invalid limits")

// Limit names one ceiling.
type Limit string

const (
	Records       Limit = "maxRecords"
	ArrayElements Limit = "maxArrayElements"
	TotalElements Limit = "maxTotalElements"
	NestingDepth  Limit = "maxNestingDepth"
)

// LimitError reports a declared or observed value above a ceiling.
type LimitError struct {
	Limit Limit
	Max   int64
	Got   int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s exceeded: %d > %d", e.Limit, e.Got, e.Max)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// Limits holds the ceilings. All fields must be positive.
type Limits struct {
	MaxRecords       int
	MaxArrayElements int64
	MaxNestingDepth  int

	// MaxTotalElements bounds the sum of declared element counts over
	// every array in one stream.
	MaxTotalElements int64
}

const (
	DefaultMaxRecords       = 100_000
	DefaultMaxArrayElements = 1 << 20
	DefaultMaxNestingDepth  = 64
	DefaultMaxTotalElements = 1 << 21
)

// Default returns the default ceilings.
func Default() Limits {
	return Limits{
		MaxRecords:       DefaultMaxRecords,
		MaxArrayElements: DefaultMaxArrayElements,
		MaxNestingDepth:  DefaultMaxNestingDepth,
		MaxTotalElements: DefaultMaxTotalElements,
	}
}

// Validate rejects non-positive ceilings.
func (l Limits) Validate() error {
	switch {
	case l.MaxRecords <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidLimits, Records, l.MaxRecords)
	case l.MaxArrayElements <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidLimits, ArrayElements, l.MaxArrayElements)
	case l.MaxNestingDepth <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidLimits, NestingDepth, l.MaxNestingDepth)
	case l.MaxTotalElements <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidLimits, TotalElements, l.MaxTotalElements)
	}
	return nil
}

// CheckRecords fails when n records would exceed MaxRecords.
func (l Limits) CheckRecords(n int) error {
	if n > l.MaxRecords {
		return &LimitError{Limit: Records, Max: int64(l.MaxRecords), Got: int64(n)}
	}
	return nil
}

// CheckArrayElements fails when an array declares more than MaxArrayElements
// elements. A count that overflowed is passed as ok=false.
func (l Limits) CheckArrayElements(n int64, ok bool) error {
	if !ok || n > l.MaxArrayElements {
		got := n
		if !ok {
			got = -1
		}
		return &LimitError{Limit: ArrayElements, Max: l.MaxArrayElements, Got: got}
	}
	return nil
}

// CheckTotalElements fails when the running element total of a stream
// exceeds MaxTotalElements.
func (l Limits) CheckTotalElements(total int64) error {
	if total > l.MaxTotalElements {
		return &LimitError{Limit: TotalElements, Max: l.MaxTotalElements, Got: total}
	}
	return nil
}

// CheckDepth fails when the nesting depth d exceeds MaxNestingDepth.
func (l Limits) CheckDepth(d int) error {
	if d > l.MaxNestingDepth {
		return &LimitError{Limit: NestingDepth, Max: int64(l.MaxNestingDepth), Got: int64(d)}
	}
	return nil
}
