package filter

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// ErrTooLarge is returned when decompressed output exceeds the size cap.
var ErrTooLarge = errors.New("decompressed input too large")

// Filter is the interface implemented by all filters.
type Filter interface {
	// Name returns the filter name used on the command line.
	Name() string

	// Decode transforms encoded data to decoded form.
	Decode(input []byte) ([]byte, error)
}

// DefaultMaxSize caps decompressed output unless a pipeline sets its own.
const DefaultMaxSize = 256 << 20

// Registry maps filter names to constructors. maxSize only matters to the
// decompressing filters.
var Registry = map[string]func(maxSize int64) Filter{
	"hex":    func(int64) Filter { return Hex{} },
	"base64": func(int64) Filter { return Base64{} },
	"utf16":  func(int64) Filter { return UTF16{} },
	"gzip":   func(n int64) Filter { return &Gzip{MaxSize: n} },
	"zstd":   func(n int64) Filter { return &Zstd{MaxSize: n} },
	"lz4":    func(n int64) Filter { return &LZ4{MaxSize: n} },
}

// Names returns the registered filter names, sorted.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a filter by name.
func New(name string, maxSize int64) (Filter, error) {
	constructor, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("unsupported filter %q (have %v)", name, Names())
	}
	return constructor(maxSize), nil
}

var magics = []struct {
	prefix []byte
	name   string
}{
	{[]byte{0x1f, 0x8b}, "gzip"},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, "zstd"},
	{[]byte{0x04, 0x22, 0x4d, 0x18}, "lz4"},
}

// Detect returns the compression filter whose magic bytes start data, or
// nil. A stream header starts with a zero byte, so it never matches.
func Detect(data []byte, maxSize int64) Filter {
	for _, m := range magics {
		if bytes.HasPrefix(data, m.prefix) {
			f, _ := New(m.name, maxSize)
			return f
		}
	}
	return nil
}
