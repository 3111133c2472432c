// Package filter unwraps stream bytes before decoding.
//
// BinaryFormatter payloads rarely travel raw: .resx files and ViewState
// fields carry them as base64, captures are pasted as hex, and archives
// compress them. A [Pipeline] applies text filters in the order given and
// then, unless disabled, strips any compression recognized by its magic
// bytes.
//
// # Supported Filters
//
//   - hex: hex digits, whitespace ignored, via [Hex].
//   - base64: standard base64, line breaks ignored, via [Base64].
//   - utf16: UTF-16 text to UTF-8 via golang.org/x/text, see [UTF16]. Hex
//     and base64 input with a UTF-16 byte order mark is transcoded anyway.
//   - gzip, zstd: via github.com/klauspost/compress, see [Gzip] and [Zstd].
//   - lz4: lz4 frames via github.com/pierrec/lz4/v4, see [LZ4].
//
// Decompressing filters stop with [ErrTooLarge] once the output exceeds
// their size cap.
package filter
