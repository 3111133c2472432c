package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// readLimited reads r to the end, failing once more than maxSize bytes
// arrive.
func readLimited(name string, r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", name, err)
	}
	if int64(len(out)) > maxSize {
		return nil, fmt.Errorf("%s: %w: more than %d bytes", name, ErrTooLarge, maxSize)
	}
	return out, nil
}

// Gzip decompresses a gzip member stream.
type Gzip struct {
	MaxSize int64
}

func (f *Gzip) Name() string { return "gzip" }

func (f *Gzip) Decode(input []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()
	return readLimited("gzip", r, f.MaxSize)
}

// Zstd decompresses zstd frames.
type Zstd struct {
	MaxSize int64
}

func (f *Zstd) Name() string { return "zstd" }

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer r.Close()
	return readLimited("zstd", r, f.MaxSize)
}

// LZ4 decompresses lz4 frames.
type LZ4 struct {
	MaxSize int64
}

func (f *LZ4) Name() string { return "lz4" }

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	return readLimited("lz4", lz4.NewReader(bytes.NewReader(input)), f.MaxSize)
}
