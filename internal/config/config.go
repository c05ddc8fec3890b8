// Package config loads tool configuration from YAML. Every field has a
// default so a missing file means default behavior, not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abakhtiari/loopscope/internal/causal"
	"github.com/abakhtiari/loopscope/internal/topology"
)

// Config is the top-level configuration document.
type Config struct {
	Polarity PolarityConfig `json:"polarity" yaml:"polarity"`
	Loops    LoopsConfig    `json:"loops" yaml:"loops"`
	CacheDir string         `json:"cache_dir" yaml:"cache_dir"`
}

// PolarityConfig lists the arrow discriminator values treated as negative
// and positive. Values in neither list resolve to positive with a warning.
type PolarityConfig struct {
	NegativeMarkers []string `json:"negative_markers" yaml:"negative_markers"`
	PositiveMarkers []string `json:"positive_markers" yaml:"positive_markers"`
}

// LoopsConfig bounds loop enumeration. Zero means unbounded.
type LoopsConfig struct {
	MaxLength int `json:"max_length" yaml:"max_length"`
	MaxLoops  int `json:"max_loops" yaml:"max_loops"`
	Budget    int `json:"budget" yaml:"budget"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Polarity: PolarityConfig{
			NegativeMarkers: []string{"43"},
			PositiveMarkers: []string{"", "0"},
		},
		Loops: LoopsConfig{
			MaxLength: 0,
			MaxLoops:  10000,
			Budget:    5000000,
		},
	}
}

// Load reads path and overlays it on the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Table converts the polarity lists to the resolver's lookup form.
func (c *Config) Table() topology.PolarityTable {
	t := topology.PolarityTable{
		Negative: make(map[string]bool, len(c.Polarity.NegativeMarkers)),
		Positive: make(map[string]bool, len(c.Polarity.PositiveMarkers)),
	}
	for _, v := range c.Polarity.NegativeMarkers {
		t.Negative[v] = true
	}
	for _, v := range c.Polarity.PositiveMarkers {
		t.Positive[v] = true
	}
	return t
}

// Options converts the loop bounds to enumeration options.
func (c *Config) Options() causal.Options {
	return causal.Options{
		MaxLength: c.Loops.MaxLength,
		MaxLoops:  c.Loops.MaxLoops,
		Budget:    c.Loops.Budget,
	}
}
