// Package config reads the YAML configuration of the cgc tool.
//
// Example:
//
//	runtime_format: spirv
//	feature_level: sm5
//	workers: 4
//	platforms:
//	  - name: Desktop
//	    formats: [spirv, hlsl]
//	log:
//	  level: info
//	  format: text
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/shader"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the tool configuration.
type Config struct {
	RuntimeFormat       string     `yaml:"runtime_format"`
	FeatureLevel        string     `yaml:"feature_level"`
	Workers             int        `yaml:"workers"`
	EditorData          bool       `yaml:"editor_data"`
	DeferredCompilation bool       `yaml:"deferred_compilation"`
	Platforms           []Platform `yaml:"platforms"`
	Log                 Log        `yaml:"log"`
}

// Platform is a cook target.
type Platform struct {
	Name    string   `yaml:"name"`
	Formats []string `yaml:"formats"`
}

// Log configures the tool's logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the file at path. An empty path returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes data, fills in defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.RuntimeFormat == "" {
		c.RuntimeFormat = computegraph.DefaultRuntimeFormat
	}
	if c.FeatureLevel == "" {
		c.FeatureLevel = shader.FeatureLevelSM5.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = LogFormatText
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	if _, err := shader.ParseFeatureLevel(c.FeatureLevel); err != nil {
		return fmt.Errorf("%w: feature_level: %w", ErrInvalid, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalid, c.Workers)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if c.Log.Format != LogFormatText && c.Log.Format != LogFormatJSON {
		return fmt.Errorf("%w: log.format must be %s or %s, got %q", ErrInvalid, LogFormatText, LogFormatJSON, c.Log.Format)
	}

	seen := make(map[string]struct{}, len(c.Platforms))
	for i, p := range c.Platforms {
		if p.Name == "" {
			return fmt.Errorf("%w: platforms[%d] has no name", ErrInvalid, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: platform %q declared twice", ErrInvalid, p.Name)
		}
		seen[p.Name] = struct{}{}
		if slices.Contains(p.Formats, "") {
			return fmt.Errorf("%w: platform %q has an empty format", ErrInvalid, p.Name)
		}
	}
	return nil
}

// Level returns the parsed feature level.
func (c *Config) Level() shader.FeatureLevel {
	l, err := shader.ParseFeatureLevel(c.FeatureLevel)
	if err != nil {
		return shader.FeatureLevelSM5
	}
	return l
}

// GraphOptions converts the configuration to graph options.
func (c *Config) GraphOptions() []computegraph.Option {
	return []computegraph.Option{
		computegraph.WithRuntimeFormat(c.RuntimeFormat),
		computegraph.WithFeatureLevel(c.Level()),
		computegraph.WithWorkers(c.Workers),
		computegraph.WithEditorData(c.EditorData),
		computegraph.WithDeferredCompilation(c.DeferredCompilation),
	}
}

// Platform returns the named cook target.
func (c *Config) Platform(name string) (computegraph.TargetPlatform, bool) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return computegraph.TargetPlatform{Name: p.Name, Formats: slices.Clone(p.Formats)}, true
		}
	}
	return computegraph.TargetPlatform{}, false
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, err
	}
	return level, nil
}
