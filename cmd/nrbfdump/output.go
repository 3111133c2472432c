package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/robert-malhotra/go-nrbf/internal/export"
	"github.com/robert-malhotra/go-nrbf/nrbf"
)

func render(w io.Writer, g *nrbf.Graph, format string) error {
	if format == "text" {
		return export.Text(w, g)
	}
	doc, err := export.FromGraph(g)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		return export.JSON(w, doc)
	case "yaml":
		return export.YAML(w, doc)
	case "cbor":
		return export.CBOR(w, doc)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// fingerprint is the blake3 digest of a canonical encoding. Streams that
// decode to isomorphic graphs share a fingerprint.
func fingerprint(canonical []byte) string {
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// verifyGraph re-encodes g, decodes the result and checks that nothing was
// lost and that the canonical form is stable.
func (d *dumper) verifyGraph(out *bytes.Buffer, g *nrbf.Graph) error {
	canonical, err := d.encoder.Encode(g)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	back, err := d.decoder.Decode(canonical)
	if err != nil {
		return fmt.Errorf("verify: canonical stream does not decode: %w", err)
	}
	if err := nrbf.Isomorphic(g, back); err != nil {
		return fmt.Errorf("verify: graph changed by re-encoding: %w", err)
	}
	again, err := d.encoder.Encode(back)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !bytes.Equal(canonical, again) {
		return fmt.Errorf("verify: canonical encoding is not stable")
	}
	fmt.Fprintf(out, "verify: ok nodes=%d bytes=%d blake3=%s\n", len(g.Reachable()), len(canonical), fingerprint(canonical))
	return nil
}
