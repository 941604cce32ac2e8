package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// LevelLatency holds the costs charged by one cache level.
type LevelLatency struct {
	// ReadLatency is charged every time a word or block is read out of the
	// level, whether the access hit or missed.
	ReadLatency uint64 `json:"read_latency"`

	// WriteLatency is charged every time a word or block is written into the
	// level.
	WriteLatency uint64 `json:"write_latency"`
}

// TimingConfig holds the cost of every kind of operation in a cache
// hierarchy. Levels are ordered from the level closest to the processor
// (index 0) to the level closest to memory.
type TimingConfig struct {
	// Levels holds per-level costs. Default: L1 1/1, L2 10/5.
	Levels []LevelLatency `json:"levels"`

	// MemoryReadLatency is charged for every block read from the backing
	// store. Default: 100.
	MemoryReadLatency uint64 `json:"memory_read_latency"`

	// MemoryWriteLatency is charged for every block written to the backing
	// store. Default: 50.
	MemoryWriteLatency uint64 `json:"memory_write_latency"`
}

// DefaultTimingConfig returns the costs of the two-level reference
// hierarchy.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		Levels: []LevelLatency{
			{ReadLatency: 1, WriteLatency: 1},
			{ReadLatency: 10, WriteLatency: 5},
		},
		MemoryReadLatency:  100,
		MemoryWriteLatency: 50,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields that are absent
// from the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all costs are valid (> 0). A zero cost would let two
// accesses share a timestamp and make LRU order ambiguous.
func (c *TimingConfig) Validate() error {
	if len(c.Levels) == 0 {
		return fmt.Errorf("levels must not be empty")
	}
	for i, l := range c.Levels {
		if l.ReadLatency == 0 {
			return fmt.Errorf("levels[%d].read_latency must be > 0", i)
		}
		if l.WriteLatency == 0 {
			return fmt.Errorf("levels[%d].write_latency must be > 0", i)
		}
	}
	if c.MemoryReadLatency == 0 {
		return fmt.Errorf("memory_read_latency must be > 0")
	}
	if c.MemoryWriteLatency == 0 {
		return fmt.Errorf("memory_write_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	levels := make([]LevelLatency, len(c.Levels))
	copy(levels, c.Levels)

	return &TimingConfig{
		Levels:             levels,
		MemoryReadLatency:  c.MemoryReadLatency,
		MemoryWriteLatency: c.MemoryWriteLatency,
	}
}
