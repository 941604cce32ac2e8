package benchmarks

import (
	"fmt"

	"github.com/sarchlab/cachesim/driver"
	"github.com/sarchlab/cachesim/timing/cache"
)

// GetMicrobenchmarks returns the standard set of access-pattern benchmarks
// for config. Each benchmark targets one behaviour of the hierarchy and its
// addresses are derived from the configured geometry.
func GetMicrobenchmarks(config *cache.HierarchyConfig) []Benchmark {
	p := newPatterns(config)
	return []Benchmark{
		p.sequentialRead(),
		p.sequentialWrite(),
		p.blockStride(),
		p.temporalReuse(),
		p.topLevelConflict(),
		p.dirtyConflict(),
		p.lruPingPong(),
		p.lastLevelThrash(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 benchmarks for quick
// validation: spatial locality, conflict misses and LRU thrashing.
func GetCoreBenchmarks(config *cache.HierarchyConfig) []Benchmark {
	p := newPatterns(config)
	return []Benchmark{
		p.sequentialRead(),
		p.topLevelConflict(),
		p.lastLevelThrash(),
	}
}

// patterns derives benchmark addresses from a hierarchy configuration.
type patterns struct {
	word   uint64
	block  uint64
	memory uint64
	// levelSize and setSpan are per level. Addresses setSpan apart share a
	// set index.
	levelSize []uint64
	setSpan   []uint64
	ways      []int
}

func newPatterns(config *cache.HierarchyConfig) *patterns {
	p := &patterns{
		word:   uint64(config.WordSize),
		block:  uint64(config.BlockSize),
		memory: config.MemorySize,
	}

	for _, l := range config.Levels {
		p.levelSize = append(p.levelSize, uint64(l.Lines)*p.block)
		p.setSpan = append(p.setSpan, uint64(l.Lines/l.Associativity)*p.block)
		p.ways = append(p.ways, l.Associativity)
	}

	return p
}

func (p *patterns) last() int {
	return len(p.ways) - 1
}

// region clamps a region size to memory.
func (p *patterns) region(size uint64) uint64 {
	return min(size, p.memory)
}

// conflicting returns up to n addresses that map to set 0 of level.
func (p *patterns) conflicting(level, n int) []uint64 {
	addrs := make([]uint64, 0, n)
	for k := 0; k < n; k++ {
		addr := uint64(k) * p.setSpan[level]
		if addr+p.word > p.memory {
			break
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

// 1. Sequential Read - Tests spatial locality within blocks
func (p *patterns) sequentialRead() Benchmark {
	size := p.region(p.levelSize[0])
	return Benchmark{
		Name: "sequential_read",
		Description: fmt.Sprintf(
			"reads every word of a %d-byte region once - one miss per block", size),
		Accesses: sweep(driver.OpRead, 0, size, p.word),
	}
}

// 2. Sequential Write - Tests write-allocate and dirty lines
func (p *patterns) sequentialWrite() Benchmark {
	size := p.region(p.levelSize[0])
	return Benchmark{
		Name: "sequential_write",
		Description: fmt.Sprintf(
			"writes every word of a %d-byte region once - allocates on every block miss", size),
		Accesses: sweep(driver.OpWrite, 0, size, p.word),
	}
}

// 3. Block Stride - Tests a stream with no spatial locality
func (p *patterns) blockStride() Benchmark {
	size := p.region(4 * p.levelSize[0])
	return Benchmark{
		Name:        "block_stride",
		Description: "reads the first word of each block over four times the top level - every access misses",
		Accesses:    sweep(driver.OpRead, 0, size, p.block),
	}
}

// 4. Temporal Reuse - Tests hit cost on a warm working set
func (p *patterns) temporalReuse() Benchmark {
	size := p.region(p.levelSize[0] / 2)

	var accesses []driver.Access
	for pass := 0; pass < 8; pass++ {
		accesses = append(accesses, sweep(driver.OpRead, 0, size, p.word)...)
	}

	return Benchmark{
		Name:        "temporal_reuse",
		Description: "re-reads a warm region half the size of the top level eight times - all hits",
		Setup:       sweep(driver.OpRead, 0, size, p.word),
		Accesses:    accesses,
	}
}

// 5. Top Level Conflict - Tests conflict misses served by lower levels
func (p *patterns) topLevelConflict() Benchmark {
	addrs := p.conflicting(0, p.ways[0]+1)
	return Benchmark{
		Name:        "top_level_conflict",
		Description: "cycles reads over one more block than the top level has ways in a set",
		Setup:       repeat(driver.OpRead, addrs, 1),
		Accesses:    repeat(driver.OpRead, addrs, 64),
	}
}

// 6. Dirty Conflict - Tests write-back cost on eviction
func (p *patterns) dirtyConflict() Benchmark {
	addrs := p.conflicting(0, p.ways[0]+1)
	return Benchmark{
		Name:        "dirty_conflict",
		Description: "cycles writes over conflicting blocks - every eviction writes back",
		Accesses:    repeat(driver.OpWrite, addrs, 64),
	}
}

// 7. LRU Ping-Pong - Tests that the last level keeps a set's working set
func (p *patterns) lruPingPong() Benchmark {
	last := p.last()
	addrs := p.conflicting(last, p.ways[last])
	return Benchmark{
		Name:        "lru_ping_pong",
		Description: "alternates over as many conflicting blocks as the last level has ways - last level always hits",
		Setup:       repeat(driver.OpRead, addrs, 1),
		Accesses:    repeat(driver.OpRead, addrs, 64),
	}
}

// 8. Last Level Thrash - Tests the LRU worst case
func (p *patterns) lastLevelThrash() Benchmark {
	last := p.last()
	addrs := p.conflicting(last, p.ways[last]+1)
	return Benchmark{
		Name:        "last_level_thrash",
		Description: "cycles over one more conflicting block than the last level has ways - LRU misses every time",
		Accesses:    repeat(driver.OpRead, addrs, 32),
	}
}

// sweep accesses [base, base+size) every stride bytes.
func sweep(op driver.Op, base, size, stride uint64) []driver.Access {
	accesses := make([]driver.Access, 0, size/stride)
	for addr := base; addr < base+size; addr += stride {
		accesses = append(accesses, access(op, addr, addr))
	}
	return accesses
}

// repeat cycles over addrs the given number of rounds.
func repeat(op driver.Op, addrs []uint64, rounds int) []driver.Access {
	accesses := make([]driver.Access, 0, len(addrs)*rounds)
	for r := 0; r < rounds; r++ {
		for _, addr := range addrs {
			accesses = append(accesses, access(op, addr, uint64(r)))
		}
	}
	return accesses
}

func access(op driver.Op, addr, value uint64) driver.Access {
	a := driver.Access{Op: op, Addr: uint32(addr)}
	if op == driver.OpWrite {
		a.Value = value
	}
	return a
}
