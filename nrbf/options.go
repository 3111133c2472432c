package nrbf

import (
	"io"
	"log/slog"

	"github.com/robert-malhotra/go-nrbf/internal/guard"
)

// Limits bounds what a decode may allocate. Every field must be positive.
type Limits = guard.Limits

// DefaultLimits returns the conservative defaults: 100000 records, 2^20
// elements per array, 2^21 elements over all arrays, nesting depth 64.
func DefaultLimits() Limits {
	return guard.Default()
}

// Option configures a Decoder or Encoder.
type Option func(*options)

type options struct {
	limits guard.Limits
	logger *slog.Logger
}

func defaultOptions() *options {
	return &options{
		limits: guard.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func buildOptions(opts []Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.limits.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// WithLimits replaces all limits at once.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithMaxRecords sets the maximum number of records in one stream.
func WithMaxRecords(n int) Option {
	return func(o *options) {
		o.limits.MaxRecords = n
	}
}

// WithMaxArrayElements sets the maximum element count of one array.
func WithMaxArrayElements(n int64) Option {
	return func(o *options) {
		o.limits.MaxArrayElements = n
	}
}

// WithMaxTotalElements sets the maximum element count summed over every
// array of one stream.
func WithMaxTotalElements(n int64) Option {
	return func(o *options) {
		o.limits.MaxTotalElements = n
	}
}

// WithMaxNestingDepth sets the maximum depth of records nested in value
// slots.
func WithMaxNestingDepth(n int) Option {
	return func(o *options) {
		o.limits.MaxNestingDepth = n
	}
}

// WithLogger sets the logger for diagnostics. A nil logger keeps the
// default, which discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
