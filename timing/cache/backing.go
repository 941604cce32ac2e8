package cache

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/cachesim/timing/clock"
)

// MemoryStats holds backing store statistics.
type MemoryStats struct {
	Reads  uint64
	Writes uint64
}

// MemoryBacking is the flat byte-addressable memory at the bottom of a
// hierarchy. It only serves whole, block-aligned blocks.
type MemoryBacking struct {
	hookable

	name      string
	storage   *mem.Storage
	size      uint64
	blockSize int

	clock        *clock.Clock
	readLatency  uint64
	writeLatency uint64

	stats MemoryStats
}

// NewMemoryBacking creates a backing store of size bytes that transfers
// blockSize bytes at a time. Reads and writes advance clk by the given
// latencies.
func NewMemoryBacking(
	size uint64,
	blockSize int,
	clk *clock.Clock,
	readLatency, writeLatency uint64,
) *MemoryBacking {
	return &MemoryBacking{
		hookable:     newHookable(),
		name:         "DRAM",
		storage:      mem.NewStorage(size),
		size:         size,
		blockSize:    blockSize,
		clock:        clk,
		readLatency:  readLatency,
		writeLatency: writeLatency,
	}
}

// Name returns the name used in events.
func (m *MemoryBacking) Name() string {
	return m.name
}

// Size returns the capacity in bytes.
func (m *MemoryBacking) Size() uint64 {
	return m.size
}

// Stats returns backing store statistics.
func (m *MemoryBacking) Stats() MemoryStats {
	return m.stats
}

// ResetStats clears backing store statistics.
func (m *MemoryBacking) ResetStats() {
	m.stats = MemoryStats{}
}

// ReadBlock returns a copy of the block at addr.
func (m *MemoryBacking) ReadBlock(addr uint64) ([]byte, error) {
	if err := m.checkBlock(addr, m.blockSize); err != nil {
		return nil, err
	}

	data, err := m.storage.Read(addr, uint64(m.blockSize))
	if err != nil {
		return nil, fmt.Errorf("memory read at 0x%x: %w", addr, err)
	}

	m.stats.Reads++
	m.clock.Advance(m.readLatency)
	m.raise(m, HookPosMemRead, Event{
		Where: m.name, Address: addr, Line: -1, Time: m.clock.Now(),
	})

	return data, nil
}

// WriteBlock stores one block at addr.
func (m *MemoryBacking) WriteBlock(addr uint64, data []byte) error {
	if err := m.checkBlock(addr, len(data)); err != nil {
		return err
	}

	if err := m.storage.Write(addr, data); err != nil {
		return fmt.Errorf("memory write at 0x%x: %w", addr, err)
	}

	m.stats.Writes++
	m.clock.Advance(m.writeLatency)
	m.raise(m, HookPosMemWrite, Event{
		Where: m.name, Address: addr, Line: -1, Time: m.clock.Now(),
	})

	return nil
}

// Load copies data into memory at addr without charging time or counting
// statistics. It is meant for preparing memory contents before a run.
func (m *MemoryBacking) Load(addr uint64, data []byte) error {
	if err := m.checkBounds(addr, len(data)); err != nil {
		return err
	}

	return m.storage.Write(addr, data)
}

// Peek returns n bytes at addr without charging time or counting
// statistics. Data still held dirty in a cache is not visible.
func (m *MemoryBacking) Peek(addr uint64, n int) ([]byte, error) {
	if err := m.checkBounds(addr, n); err != nil {
		return nil, err
	}

	return m.storage.Read(addr, uint64(n))
}

func (m *MemoryBacking) checkBlock(addr uint64, n int) error {
	if n != m.blockSize {
		return &RangeError{
			Address: addr, Size: n, Limit: m.size,
			Reason: fmt.Sprintf("is not a %d-byte block", m.blockSize),
		}
	}

	if addr%uint64(m.blockSize) != 0 {
		return &RangeError{
			Address: addr, Size: n, Limit: m.size,
			Reason: "is not block aligned",
		}
	}

	return m.checkBounds(addr, n)
}

func (m *MemoryBacking) checkBounds(addr uint64, n int) error {
	if addr > m.size || uint64(n) > m.size-addr {
		return &RangeError{
			Address: addr, Size: n, Limit: m.size,
			Reason: "runs past the end of memory",
		}
	}

	return nil
}
