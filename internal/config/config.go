// Package config loads nrbfdump settings from a YAML or JSONC file.
//
// Only fields present in the file override the defaults. Unknown fields are
// rejected so that a misspelled limit cannot silently fall back to its
// default.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-nrbf/internal/guard"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the tool configuration.
type Config struct {
	// Limits bound every decode.
	Limits LimitsConfig `yaml:"limits" json:"limits"`

	// Log configures diagnostics on stderr.
	Log LogConfig `yaml:"log" json:"log"`

	// Format is the default output format.
	Format string `yaml:"format" json:"format"`
}

type LimitsConfig struct {
	MaxRecords       int   `yaml:"maxRecords" json:"maxRecords"`
	MaxArrayElements int64 `yaml:"maxArrayElements" json:"maxArrayElements"`
	MaxNestingDepth  int   `yaml:"maxNestingDepth" json:"maxNestingDepth"`
	MaxTotalElements int64 `yaml:"maxTotalElements" json:"maxTotalElements"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" json:"level"`
	// JSON selects the slog JSON handler instead of the text handler.
	JSON bool `yaml:"json" json:"json"`
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "yaml", "cbor", "records"}

// Default returns the built-in configuration.
func Default() *Config {
	l := guard.Default()
	return &Config{
		Limits: LimitsConfig{
			MaxRecords:       l.MaxRecords,
			MaxArrayElements: l.MaxArrayElements,
			MaxNestingDepth:  l.MaxNestingDepth,
			MaxTotalElements: l.MaxTotalElements,
		},
		Log:    LogConfig{Level: "warn"},
		Format: "text",
	}
}

// LoadFile reads path over the defaults. Files ending in .json or .jsonc
// are parsed as JSON with comments; everything else as YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		cfg, err = ParseJSONC(data)
	default:
		cfg, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseYAML parses a YAML document over the defaults.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseJSONC strips comments and trailing commas, then parses the JSON over
// the defaults.
func ParseJSONC(data []byte) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GuardLimits returns the configured limits.
func (c *Config) GuardLimits() guard.Limits {
	return guard.Limits{
		MaxRecords:       c.Limits.MaxRecords,
		MaxArrayElements: c.Limits.MaxArrayElements,
		MaxNestingDepth:  c.Limits.MaxNestingDepth,
		MaxTotalElements: c.Limits.MaxTotalElements,
	}
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if err := c.GuardLimits().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("limits: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if !validFormat(c.Format) {
		errs = append(errs, fmt.Errorf("format must be one of %v, got %q", Formats, c.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func validFormat(f string) bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}
