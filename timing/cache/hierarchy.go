package cache

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/clock"
	"github.com/sarchlab/cachesim/timing/latency"
)

// LevelStats pairs a level name with its statistics.
type LevelStats struct {
	Name string
	Statistics
}

// HierarchyStats holds the statistics of every level and of memory.
type HierarchyStats struct {
	Levels []LevelStats
	Memory MemoryStats
}

// Hierarchy is a chain of cache levels terminated by a backing store, plus
// the clock that every level charges. A Hierarchy must not be used from more
// than one goroutine at a time.
type Hierarchy struct {
	config *HierarchyConfig
	clock  *clock.Clock
	table  *latency.Table
	memory *MemoryBacking
	levels []*Cache
}

// NewHierarchy validates config and builds the hierarchy with every line
// invalid and clean and the clock at zero. Configuration problems are
// reported as *ConfigError.
func NewHierarchy(config *HierarchyConfig) (*Hierarchy, error) {
	if config == nil {
		return nil, &ConfigError{Field: "config", Reason: "is missing"}
	}

	geometries, err := config.geometries()
	if err != nil {
		return nil, err
	}

	config = config.Clone()
	clk := clock.New()
	table := latency.NewTableWithConfig(config.Timing)

	h := &Hierarchy{
		config: config,
		clock:  clk,
		table:  table,
		memory: NewMemoryBacking(
			config.MemorySize,
			config.BlockSize,
			clk,
			table.MemoryRead(),
			table.MemoryWrite(),
		),
		levels: make([]*Cache, len(config.Levels)),
	}

	var lower Lower = h.memory
	for i := len(config.Levels) - 1; i >= 0; i-- {
		h.levels[i] = New(Config{
			Name:         config.LevelName(i),
			Geometry:     geometries[i],
			WordSize:     config.WordSize,
			ReadLatency:  table.LevelRead(i),
			WriteLatency: table.LevelWrite(i),
		}, clk, lower)
		lower = h.levels[i]
	}

	return h, nil
}

// Read copies the word at addr into out, which must be WordSize bytes.
func (h *Hierarchy) Read(addr uint32, out []byte) error {
	if err := h.checkAccess(addr, len(out)); err != nil {
		return err
	}

	return h.levels[0].ReadWord(uint64(addr), out)
}

// Write stores in at addr. in must be WordSize bytes.
func (h *Hierarchy) Write(addr uint32, in []byte) error {
	if err := h.checkAccess(addr, len(in)); err != nil {
		return err
	}

	return h.levels[0].WriteWord(uint64(addr), in)
}

// ReadValue reads the word at addr as a little-endian integer. Words wider
// than 8 bytes are truncated to their low 8 bytes.
func (h *Hierarchy) ReadValue(addr uint32) (uint64, error) {
	buf := make([]byte, h.config.WordSize)
	if err := h.Read(addr, buf); err != nil {
		return 0, err
	}

	return extractData(buf, 0, min(len(buf), 8)), nil
}

// WriteValue writes v at addr as a little-endian word of WordSize bytes.
func (h *Hierarchy) WriteValue(addr uint32, v uint64) error {
	buf := make([]byte, h.config.WordSize)
	storeData(buf, 0, min(len(buf), 8), v)

	return h.Write(addr, buf)
}

// ResetTime sets the clock to zero without touching cache contents.
func (h *Hierarchy) ResetTime() {
	h.clock.Reset()
}

// Time returns the accumulated cost of all operations since the last reset.
func (h *Hierarchy) Time() uint64 {
	return h.clock.Now()
}

// Clock returns the clock shared by every level.
func (h *Hierarchy) Clock() *clock.Clock {
	return h.clock
}

// Latencies returns the cost table the hierarchy charges from.
func (h *Hierarchy) Latencies() *latency.Table {
	return h.table
}

// Config returns a copy of the configuration the hierarchy was built from.
func (h *Hierarchy) Config() *HierarchyConfig {
	return h.config.Clone()
}

// WordSize returns the number of bytes moved by Read and Write.
func (h *Hierarchy) WordSize() int {
	return h.config.WordSize
}

// Levels returns the cache levels, top first.
func (h *Hierarchy) Levels() []*Cache {
	return h.levels
}

// Level returns the level with the given name.
func (h *Hierarchy) Level(name string) (*Cache, bool) {
	for _, l := range h.levels {
		if l.Name() == name {
			return l, true
		}
	}

	return nil, false
}

// Memory returns the backing store.
func (h *Hierarchy) Memory() *MemoryBacking {
	return h.memory
}

// AcceptHook registers hook on every level and on the backing store.
// Registering a hook that is already attached has no effect.
func (h *Hierarchy) AcceptHook(hook sim.Hook) {
	for _, l := range h.levels {
		l.acceptOnce(hook)
	}
	h.memory.acceptOnce(hook)
}

// Flush writes every dirty block down to memory, top level first, and leaves
// every level empty. Write-backs are charged like any other.
func (h *Hierarchy) Flush() error {
	for _, l := range h.levels {
		if err := l.Flush(); err != nil {
			return err
		}
	}

	return nil
}

// Stats returns the statistics of every level and of memory.
func (h *Hierarchy) Stats() HierarchyStats {
	stats := HierarchyStats{
		Levels: make([]LevelStats, len(h.levels)),
		Memory: h.memory.Stats(),
	}
	for i, l := range h.levels {
		stats.Levels[i] = LevelStats{Name: l.Name(), Statistics: l.Stats()}
	}

	return stats
}

// ResetStats clears the statistics of every level and of memory.
func (h *Hierarchy) ResetStats() {
	for _, l := range h.levels {
		l.ResetStats()
	}
	h.memory.ResetStats()
}

func (h *Hierarchy) checkAccess(addr uint32, n int) error {
	if n != h.config.WordSize {
		return &RangeError{
			Address: uint64(addr), Size: n, Limit: uint64(h.config.WordSize),
			Reason: "is not one word",
		}
	}

	if uint64(addr)+uint64(n) > h.config.MemorySize {
		return &RangeError{
			Address: uint64(addr), Size: n, Limit: h.config.MemorySize,
			Reason: "runs past the end of memory",
		}
	}

	return nil
}

// extractData extracts a value of the given size from a byte slice.
func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData stores a value of the given size into a byte slice.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
