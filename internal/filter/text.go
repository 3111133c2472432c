package filter

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
)

func stripSpace(data []byte) []byte {
	return bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)
}

// textInput returns text with whitespace removed, transcoding it first
// when it carries a UTF-16 byte order mark.
func textInput(input []byte) ([]byte, error) {
	if hasUTF16BOM(input) {
		var err error
		if input, err = (UTF16{}).Decode(input); err != nil {
			return nil, err
		}
	}
	return stripSpace(input), nil
}

// Hex decodes hex text. Whitespace between digit pairs is allowed
// ("00 01 00" or "000100").
type Hex struct{}

func (Hex) Name() string { return "hex" }

func (Hex) Decode(input []byte) ([]byte, error) {
	cleaned, err := textInput(input)
	if err != nil {
		return nil, err
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("empty input after stripping whitespace from hex")
	}
	decoded := make([]byte, hex.DecodedLen(len(cleaned)))
	count, err := hex.Decode(decoded, cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded[:count], nil
}

// Base64 decodes standard padded base64.
type Base64 struct{}

func (Base64) Name() string { return "base64" }

func (Base64) Decode(input []byte) ([]byte, error) {
	cleaned, err := textInput(input)
	if err != nil {
		return nil, err
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(cleaned)))
	count, err := base64.StdEncoding.Decode(decoded, cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return decoded[:count], nil
}

var utf16BOM = [][]byte{{0xff, 0xfe}, {0xfe, 0xff}}

// UTF16 transcodes UTF-16 text to UTF-8. Windows tools such as PowerShell's
// Out-File write hex and base64 dumps this way. A byte order mark selects
// the endianness; without one little-endian is assumed.
type UTF16 struct{}

func (UTF16) Name() string { return "utf16" }

func (UTF16) Decode(input []byte) ([]byte, error) {
	dec := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewDecoder()
	out, err := dec.Bytes(input)
	if err != nil {
		return nil, fmt.Errorf("decode utf-16: %w", err)
	}
	return out, nil
}

// hasUTF16BOM reports whether data starts with a UTF-16 byte order mark.
func hasUTF16BOM(data []byte) bool {
	for _, bom := range utf16BOM {
		if bytes.HasPrefix(data, bom) {
			return true
		}
	}
	return false
}
