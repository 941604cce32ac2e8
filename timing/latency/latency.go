// Package latency provides the operation cost model of the cache hierarchy.
//
// The cost values can be configured via TimingConfig. They are abstract time
// units, not cycles of any real machine.
package latency

// Op identifies the kind of operation being charged.
type Op int

// Operation kinds.
const (
	OpRead Op = iota
	OpWrite
)

// String returns the name of the operation.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Table provides cost lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new cost table with the default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new cost table with a custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// NumLevels returns the number of cache levels the table has costs for.
func (t *Table) NumLevels() int {
	return len(t.config.Levels)
}

// LevelCost returns the cost of the given operation on cache level i.
// Levels without an entry cost nothing.
func (t *Table) LevelCost(i int, op Op) uint64 {
	if i < 0 || i >= len(t.config.Levels) {
		return 0
	}

	switch op {
	case OpRead:
		return t.config.Levels[i].ReadLatency
	case OpWrite:
		return t.config.Levels[i].WriteLatency
	default:
		return 0
	}
}

// LevelRead returns the read cost of cache level i.
func (t *Table) LevelRead(i int) uint64 {
	return t.LevelCost(i, OpRead)
}

// LevelWrite returns the write cost of cache level i.
func (t *Table) LevelWrite(i int) uint64 {
	return t.LevelCost(i, OpWrite)
}

// MemoryCost returns the cost of the given operation on the backing store.
func (t *Table) MemoryCost(op Op) uint64 {
	switch op {
	case OpRead:
		return t.config.MemoryReadLatency
	case OpWrite:
		return t.config.MemoryWriteLatency
	default:
		return 0
	}
}

// MemoryRead returns the cost of one block read from the backing store.
func (t *Table) MemoryRead() uint64 {
	return t.MemoryCost(OpRead)
}

// MemoryWrite returns the cost of one block write to the backing store.
func (t *Table) MemoryWrite() uint64 {
	return t.MemoryCost(OpWrite)
}

// HitCost returns the cost of an access that hits in level depth-1, i.e. the
// sum of the op costs of the top depth levels. A word read that hits in L1
// costs HitCost(1, OpRead). A word read that misses L1 and hits in L2 costs
// HitCost(2, OpRead) because L2 serves the block with a read.
func (t *Table) HitCost(depth int, op Op) uint64 {
	if depth <= 0 {
		return 0
	}

	total := t.LevelCost(0, op)
	for i := 1; i < depth; i++ {
		total += t.LevelRead(i)
	}
	return total
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
