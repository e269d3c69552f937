package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned when a configuration file is neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Format identifies the encoding of a configuration document.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Index kinds accepted by StaticIndex and DynamicIndex.
const (
	IndexAABBTree = "aabbtree"
	IndexRTree    = "rtree"
)

// Config holds the tunables of a scene and its frame loop.
type Config struct {
	ComputeWorkers    int     `toml:"compute_workers" yaml:"compute_workers"`
	StaticIndex       string  `toml:"static_index" yaml:"static_index"`
	DynamicIndex      string  `toml:"dynamic_index" yaml:"dynamic_index"`
	AABBMargin        float32 `toml:"aabb_margin" yaml:"aabb_margin"`
	TightAreaExtents  bool    `toml:"tight_area_extents" yaml:"tight_area_extents"`
	MaxVisiblePortals int     `toml:"max_visible_portals" yaml:"max_visible_portals"`
	Profiling         bool    `toml:"profiling" yaml:"profiling"`
	ProfilerInterval  string  `toml:"profiler_interval" yaml:"profiler_interval"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		ComputeWorkers:    0,
		StaticIndex:       IndexAABBTree,
		DynamicIndex:      IndexAABBTree,
		AABBMargin:        0.1,
		MaxVisiblePortals: 4096,
		ProfilerInterval:  "1s",
	}
}

// Load reads a configuration file, choosing the decoder from the file extension
// (.toml, .yaml or .yml). Keys missing from the file keep their default values.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the decoded configuration
//   - error: read, decode or validation error, or ErrUnsupportedFormat
func Load(path string) (Config, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = FormatTOML
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document over the defaults. Unknown keys are rejected.
//
// Parameters:
//   - data: the document
//   - format: FormatTOML or FormatYAML
//
// Returns:
//   - Config: the decoded configuration
//   - error: decode or validation error, or ErrUnsupportedFormat
func Parse(data []byte, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF and keeps the defaults.
		if err := dec.Decode(&cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return Config{}, fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated and numeric fields.
//
// Returns:
//   - error: a description of the first invalid field, or nil
func (c Config) Validate() error {
	for _, idx := range []struct{ key, value string }{
		{"static_index", c.StaticIndex},
		{"dynamic_index", c.DynamicIndex},
	} {
		if idx.value != IndexAABBTree && idx.value != IndexRTree {
			return fmt.Errorf("%s: unknown index kind %q", idx.key, idx.value)
		}
	}
	if c.ComputeWorkers < 0 {
		return fmt.Errorf("compute_workers: must not be negative, got %d", c.ComputeWorkers)
	}
	if c.AABBMargin < 0 {
		return fmt.Errorf("aabb_margin: must not be negative, got %g", c.AABBMargin)
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	return nil
}

// Interval returns the parsed profiler interval.
//
// Returns:
//   - time.Duration: the interval, one second when unset
//   - error: if profiler_interval is not a valid duration
func (c Config) Interval() (time.Duration, error) {
	if c.ProfilerInterval == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(c.ProfilerInterval)
	if err != nil {
		return 0, fmt.Errorf("profiler_interval: %w", err)
	}
	return d, nil
}
