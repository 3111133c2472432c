// Command nrbfdump decodes .NET BinaryFormatter (MS-NRBF) streams without
// instantiating anything they name, and prints them as a tree, JSON, YAML,
// CBOR or a flat record listing.
//
// Usage:
//
//	nrbfdump [flags] [file...]
//
// With no files, or with "-", the stream is read from stdin. Inputs may be
// hex or base64 text and may be gzip, zstd or lz4 compressed.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-nrbf/internal/config"
	"github.com/robert-malhotra/go-nrbf/internal/filter"
	"github.com/robert-malhotra/go-nrbf/nrbf"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "nrbfdump: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		configPath  string
		format      string
		logLevel    string
		logJSON     bool
		hexIn       bool
		base64In    bool
		filters     []string
		noDetect    bool
		verify      bool
		reencode    string
		jobs        int
		maxInput    int64
		maxRecords  int
		maxElements int64
		maxDepth    int
		maxTotal    int64
	)

	flagSet := pflag.NewFlagSet("nrbfdump", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "limits and defaults file (.yaml or .jsonc)")
	flagSet.StringVarP(&format, "format", "f", "text", "output format: text, json, yaml, cbor or records")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flagSet.BoolVar(&logJSON, "log-json", false, "log as JSON lines")
	flagSet.BoolVar(&hexIn, "hex", false, "input is hex text")
	flagSet.BoolVar(&base64In, "base64", false, "input is base64 text")
	flagSet.StringSliceVar(&filters, "filter", nil, fmt.Sprintf("input filters applied in order, from %v", filter.Names()))
	flagSet.BoolVar(&noDetect, "no-detect", false, "do not detect and strip gzip, zstd or lz4 compression")
	flagSet.BoolVar(&verify, "verify", false, "re-encode, decode again and compare; print the blake3 fingerprint")
	flagSet.StringVarP(&reencode, "reencode", "o", "", "write the canonical encoding of the single input to this file")
	flagSet.IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "inputs decoded concurrently")
	flagSet.Int64Var(&maxInput, "max-input", filter.DefaultMaxSize, "maximum decompressed input size in bytes")
	flagSet.IntVar(&maxRecords, "max-records", 0, "override maxRecords")
	flagSet.Int64Var(&maxElements, "max-array-elements", 0, "override maxArrayElements")
	flagSet.IntVar(&maxDepth, "max-depth", 0, "override maxNestingDepth")
	flagSet.Int64Var(&maxTotal, "max-total-elements", 0, "override maxTotalElements")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return err
		}
	}
	if flagSet.Changed("format") {
		cfg.Format = format
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flagSet.Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if flagSet.Changed("max-records") {
		cfg.Limits.MaxRecords = maxRecords
	}
	if flagSet.Changed("max-array-elements") {
		cfg.Limits.MaxArrayElements = maxElements
	}
	if flagSet.Changed("max-depth") {
		cfg.Limits.MaxNestingDepth = maxDepth
	}
	if flagSet.Changed("max-total-elements") {
		cfg.Limits.MaxTotalElements = maxTotal
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch {
	case hexIn && base64In:
		return errors.New("--hex and --base64 are exclusive")
	case hexIn:
		filters = append([]string{"hex"}, filters...)
	case base64In:
		filters = append([]string{"base64"}, filters...)
	}
	if jobs < 1 {
		return fmt.Errorf("--jobs must be positive, got %d", jobs)
	}
	if maxInput < 1 {
		return fmt.Errorf("--max-input must be positive, got %d", maxInput)
	}
	pipeline, err := filter.NewPipeline(filters, !noDetect, maxInput)
	if err != nil {
		return err
	}

	paths := flagSet.Args()
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	if reencode != "" && len(paths) != 1 {
		return fmt.Errorf("--reencode needs exactly one input, got %d", len(paths))
	}

	level, _ := cfg.LogLevel()
	logger := newLogger(stderr, level, cfg.Log.JSON)

	decoder, err := nrbf.NewDecoder(nrbf.WithLimits(cfg.GuardLimits()), nrbf.WithLogger(logger))
	if err != nil {
		return err
	}
	encoder, err := nrbf.NewEncoder(nrbf.WithLogger(logger))
	if err != nil {
		return err
	}
	d := &dumper{
		decoder:  decoder,
		encoder:  encoder,
		logger:   logger,
		stdin:    stdin,
		pipeline: pipeline,
		format:   cfg.Format,
		verify:   verify,
		reencode: reencode,
	}

	// Inputs decode concurrently; output is buffered per input and
	// written in argument order.
	results := make([]result, len(paths))
	var group errgroup.Group
	group.SetLimit(jobs)
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			results[i] = d.dump(path)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, r := range results {
		if len(paths) > 1 {
			fmt.Fprintf(stdout, "== %s ==\n", paths[i])
		}
		if _, err := stdout.Write(r.out); err != nil {
			return err
		}
		if r.err != nil {
			failed++
			logFailure(logger, paths[i], r.err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(paths))
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func logFailure(logger *slog.Logger, path string, err error) {
	var de *nrbf.DecodeError
	if errors.As(err, &de) {
		logger.Error("decode failed",
			"file", path,
			"class", de.Class.String(),
			"offset", de.Offset,
			"pos", de.Pos,
			"error", de.Err)
		return
	}
	logger.Error("dump failed", "file", path, "error", err)
}

type result struct {
	out []byte
	err error
}

type dumper struct {
	decoder  *nrbf.Decoder
	encoder  *nrbf.Encoder
	logger   *slog.Logger
	stdin    io.Reader
	pipeline *filter.Pipeline
	format   string
	verify   bool
	reencode string
}

func (d *dumper) dump(path string) result {
	var out bytes.Buffer
	err := d.dumpTo(&out, path)
	return result{out: out.Bytes(), err: err}
}

func (d *dumper) dumpTo(out *bytes.Buffer, path string) error {
	data, applied, err := readInput(path, d.stdin, d.pipeline)
	if err != nil {
		return err
	}
	d.logger.Debug("read input", "file", path, "bytes", len(data), "filters", applied)

	if d.format == "records" {
		if err := d.records(out, data); err != nil {
			return err
		}
		if !d.verify && d.reencode == "" {
			return nil
		}
	}

	g, err := d.decoder.Decode(data)
	if err != nil {
		return err
	}
	if d.format != "records" {
		if err := render(out, g, d.format); err != nil {
			return err
		}
	}
	if d.verify {
		if err := d.verifyGraph(out, g); err != nil {
			return err
		}
	}
	if d.reencode != "" {
		canonical, err := d.encoder.Encode(g)
		if err != nil {
			return err
		}
		if err := os.WriteFile(d.reencode, canonical, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", d.reencode, err)
		}
		d.logger.Info("wrote canonical stream", "file", d.reencode, "bytes", len(canonical))
	}
	return nil
}

func (d *dumper) records(out *bytes.Buffer, data []byte) error {
	sums, err := d.decoder.Records(data)
	if err != nil {
		return err
	}
	for _, s := range sums {
		fmt.Fprintf(out, "%8d  %-30s %6d  %s\n", s.Offset, s.Tag, s.ID, s.Detail)
	}
	return nil
}
