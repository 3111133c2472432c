package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/robert-malhotra/go-nrbf/nrbf"
)

func sampleStream(t *testing.T) []byte {
	t.Helper()
	g := nrbf.NewGraph()
	s := g.Add(&nrbf.StringNode{Value: "hello"})
	g.Root = g.Add(&nrbf.ClassNode{
		Name: "Greeting",
		Members: []nrbf.Member{
			{Name: "text", Type: nrbf.StringType, Value: nrbf.Ref(s)},
			{Name: "count", Type: nrbf.PrimitiveTypeOf(nrbf.Int32), Value: nrbf.Prim(nrbf.NewInt32(3))},
		},
	})
	data, err := nrbf.Encode(g)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runTool(t *testing.T, stdin []byte, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, bytes.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.bin", sampleStream(t))
	out, _, err := runTool(t, nil, path)
	if err != nil {
		t.Fatal(err)
	}
	want := "@1 Greeting\n  text: @2 \"hello\"\n  count: 3 (Int32)\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRunFormats(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.bin", sampleStream(t))
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"class": "Greeting"`},
		{"yaml", "class: Greeting"},
		{"records", "SystemClassWithMembersAndTypes"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, _, err := runTool(t, nil, "--format", tt.format, path)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output lacks %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRunStdinEncodings(t *testing.T) {
	data := sampleStream(t)
	tests := []struct {
		name  string
		flag  string
		input []byte
	}{
		{"raw", "", data},
		{"hex", "--hex", []byte(hex.EncodeToString(data) + "\n")},
		{"base64", "--base64", []byte(base64.StdEncoding.EncodeToString(data))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"-"}
			if tt.flag != "" {
				args = append([]string{tt.flag}, args...)
			}
			out, _, err := runTool(t, tt.input, args...)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(out, "@1 Greeting") {
				t.Errorf("output = %q", out)
			}
		})
	}
}

func TestRunCompressedInput(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(sampleStream(t))
	gw.Close()
	path := writeFile(t, t.TempDir(), "a.bin.gz", gz.Bytes())

	out, _, err := runTool(t, nil, path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "@1 Greeting") {
		t.Errorf("output = %q", out)
	}
	if _, _, err := runTool(t, nil, "--no-detect", path); err == nil {
		t.Error("gzip input decoded with detection disabled")
	}
	if _, _, err := runTool(t, nil, "--max-input", "8", path); err == nil {
		t.Error("input cap not applied")
	}
}

func TestRunHexThenGzip(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(sampleStream(t))
	gw.Close()

	out, _, err := runTool(t, []byte(hex.EncodeToString(gz.Bytes())), "--filter", "hex")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "@1 Greeting") {
		t.Errorf("output = %q", out)
	}
}

func TestRunVerifyAndReencode(t *testing.T) {
	dir := t.TempDir()
	data := sampleStream(t)
	path := writeFile(t, dir, "a.bin", data)
	outPath := filepath.Join(dir, "canonical.bin")

	out, _, err := runTool(t, nil, "--format", "records", "--verify", "-o", outPath, path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "verify: ok nodes=2") || !strings.Contains(out, "blake3="+fingerprint(data)) {
		t.Errorf("verify output = %q", out)
	}
	written, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(written, data) {
		t.Errorf("canonical stream differs from encoder output")
	}
}

func TestRunMultipleInputs(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.bin", sampleStream(t))
	bad := writeFile(t, dir, "bad.bin", []byte{0x00, 0x01})

	out, stderr, err := runTool(t, nil, "-j", "2", bad, good)
	if err == nil {
		t.Fatal("truncated input did not fail the run")
	}
	badAt := strings.Index(out, "== "+bad+" ==")
	goodAt := strings.Index(out, "== "+good+" ==")
	if badAt < 0 || goodAt < badAt {
		t.Errorf("outputs out of order:\n%s", out)
	}
	if !strings.Contains(out, "@1 Greeting") {
		t.Errorf("good input not printed:\n%s", out)
	}
	if !strings.Contains(stderr, "decode failed") || !strings.Contains(stderr, "class=format") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunLimits(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", sampleStream(t))
	cfg := writeFile(t, dir, "limits.yaml", []byte("limits:\n  maxRecords: 2\n"))

	if _, _, err := runTool(t, nil, "--config", cfg, path); err == nil {
		t.Error("record limit from config not applied")
	}
	if _, _, err := runTool(t, nil, "--config", cfg, "--max-records", "50", path); err != nil {
		t.Errorf("flag did not override config: %v", err)
	}
	if _, _, err := runTool(t, nil, "--max-depth", "0", path); err == nil {
		t.Error("zero depth accepted")
	}
	if _, _, err := runTool(t, nil, "--max-total-elements", "0", path); err == nil {
		t.Error("zero total element budget accepted")
	}
}

func TestRunFlagErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--hex", "--base64"},
		{"--format", "xml"},
		{"-o", "x", "a", "b"},
		{"--jobs", "0"},
		{"--no-such-flag"},
		{"--filter", "rot13"},
	} {
		if _, _, err := runTool(t, nil, args...); err == nil {
			t.Errorf("run(%v) succeeded", args)
		}
	}
}
