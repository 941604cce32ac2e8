package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/sarchlab/cachesim/timing/latency"
)

// LevelConfig describes one cache level in a hierarchy configuration.
type LevelConfig struct {
	// Name identifies the level. Defaults to L1, L2, ... by position.
	Name string `json:"name,omitempty"`
	// Lines is the number of cache lines.
	Lines int `json:"lines"`
	// Associativity is the number of lines per set. 1 is direct-mapped.
	Associativity int `json:"associativity"`
}

// HierarchyConfig holds everything needed to build a Hierarchy. It is fixed
// at construction and never changes during a run.
type HierarchyConfig struct {
	// WordSize is the number of bytes moved by Read and Write.
	WordSize int `json:"word_size"`
	// BlockSize is the number of bytes moved between adjacent levels.
	BlockSize int `json:"block_size"`
	// MemorySize is the size of the backing store in bytes.
	MemorySize uint64 `json:"memory_size"`
	// Levels are ordered from the level read by Read/Write down to the level
	// just above memory.
	Levels []LevelConfig `json:"levels"`
	// Timing holds one LevelLatency per entry of Levels plus memory costs.
	Timing *latency.TimingConfig `json:"timing"`
}

// DefaultConfig returns the reference two-level hierarchy: a direct-mapped
// L1 of 256 lines over a 2-way L2 of 512 lines, 64-byte blocks, 4-byte
// words and 64 KiB of memory.
func DefaultConfig() *HierarchyConfig {
	return &HierarchyConfig{
		WordSize:   4,
		BlockSize:  64,
		MemorySize: 1024 * 64,
		Levels: []LevelConfig{
			{Name: "L1", Lines: 256, Associativity: 1},
			{Name: "L2", Lines: 512, Associativity: 2},
		},
		Timing: latency.DefaultTimingConfig(),
	}
}

// DirectMappedConfig returns a single direct-mapped level of 256 lines over
// memory, with the default block and word sizes.
func DirectMappedConfig() *HierarchyConfig {
	config := DefaultConfig()
	config.Levels = config.Levels[:1]
	config.Timing.Levels = config.Timing.Levels[:1]
	return config
}

// LoadConfig loads a HierarchyConfig from a JSON file. Fields that are absent
// from the file keep the values of DefaultConfig.
func LoadConfig(path string) (*HierarchyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse cache config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a HierarchyConfig to a JSON file.
func (c *HierarchyConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cache config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a buildable hierarchy.
// Every failure is a *ConfigError.
func (c *HierarchyConfig) Validate() error {
	_, err := c.geometries()
	return err
}

// Clone returns a deep copy of the HierarchyConfig.
func (c *HierarchyConfig) Clone() *HierarchyConfig {
	levels := make([]LevelConfig, len(c.Levels))
	copy(levels, c.Levels)

	clone := &HierarchyConfig{
		WordSize:   c.WordSize,
		BlockSize:  c.BlockSize,
		MemorySize: c.MemorySize,
		Levels:     levels,
	}
	if c.Timing != nil {
		clone.Timing = c.Timing.Clone()
	}

	return clone
}

// LevelName returns the configured or positional name of level i.
func (c *HierarchyConfig) LevelName(i int) string {
	if c.Levels[i].Name != "" {
		return c.Levels[i].Name
	}
	return fmt.Sprintf("L%d", i+1)
}

func (c *HierarchyConfig) geometries() ([]Geometry, error) {
	if !isPowerOfTwo(c.BlockSize) {
		return nil, configErrorf("block_size",
			"must be a power of two, got %d", c.BlockSize)
	}

	if !isPowerOfTwo(c.WordSize) || c.WordSize > c.BlockSize {
		return nil, configErrorf("word_size",
			"must be a power of two no larger than block_size, got %d",
			c.WordSize)
	}

	if c.MemorySize == 0 || c.MemorySize%uint64(c.BlockSize) != 0 {
		return nil, configErrorf("memory_size",
			"must be a non-zero multiple of block_size, got %d", c.MemorySize)
	}

	if c.MemorySize > math.MaxUint32+1 {
		return nil, configErrorf("memory_size",
			"must be addressable with 32 bits, got %d", c.MemorySize)
	}

	if len(c.Levels) == 0 {
		return nil, configErrorf("levels", "must not be empty")
	}

	if err := c.validateTiming(); err != nil {
		return nil, err
	}

	names := make(map[string]bool)
	geometries := make([]Geometry, len(c.Levels))
	for i, l := range c.Levels {
		name := c.LevelName(i)
		if names[name] {
			return nil, configErrorf("levels",
				"name %q is used more than once", name)
		}
		names[name] = true

		g, err := NewGeometry(c.BlockSize, l.Lines, l.Associativity)
		if err != nil {
			cerr := err.(*ConfigError)
			cerr.Field = fmt.Sprintf("levels[%d].%s", i, cerr.Field)
			return nil, cerr
		}
		geometries[i] = g
	}

	return geometries, nil
}

func (c *HierarchyConfig) validateTiming() error {
	if c.Timing == nil {
		return configErrorf("timing", "must be set")
	}

	if len(c.Timing.Levels) != len(c.Levels) {
		return configErrorf("timing.levels",
			"has %d entries for %d cache levels",
			len(c.Timing.Levels), len(c.Levels))
	}

	if err := c.Timing.Validate(); err != nil {
		return configErrorf("timing", "is invalid: %v", err)
	}

	return nil
}
