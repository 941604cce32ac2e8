// Package cache provides a functional model of a multi-level write-back cache
// hierarchy over a flat backing memory.
package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/timing/clock"
)

// Config holds the parameters of one cache level.
type Config struct {
	// Name identifies the level in events and reports, e.g. "L1".
	Name string
	// Geometry is the validated shape of the level.
	Geometry Geometry
	// WordSize is the number of bytes moved by a word access.
	WordSize int
	// ReadLatency is charged for every word or block read out of the level.
	ReadLatency uint64
	// WriteLatency is charged for every word or block written into the level.
	WriteLatency uint64
}

// Line is the metadata of one cache line.
type Line struct {
	Valid bool
	Dirty bool
	Tag   uint64
	// LastUsed is the clock value of the most recent access to the line.
	// Only set-associative levels consult it.
	LastUsed uint64
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Lower is the next level in the memory hierarchy, either another cache
// level or the backing store. Addresses are block aligned and data is
// exactly one block.
type Lower interface {
	// ReadBlock fetches one block.
	ReadBlock(addr uint64) ([]byte, error)
	// WriteBlock stores one block. It must not retain data after returning.
	WriteBlock(addr uint64, data []byte) error
}

// Cache is one level of the hierarchy. Lines are grouped into sets of
// Associativity contiguous lines, and each line owns one block of storage.
type Cache struct {
	hookable

	config Config
	lines  []Line

	// Data storage - indexed by line, then byte offset
	dataStore [][]byte

	lower Lower
	clock *clock.Clock

	stats Statistics
}

// New creates a cache level with all lines invalid and clean.
func New(config Config, clk *clock.Clock, lower Lower) *Cache {
	g := config.Geometry

	dataStore := make([][]byte, g.LineCount)
	for i := range dataStore {
		dataStore[i] = make([]byte, g.BlockSize)
	}

	return &Cache{
		hookable:  newHookable(),
		config:    config,
		lines:     make([]Line, g.LineCount),
		dataStore: dataStore,
		lower:     lower,
		clock:     clk,
	}
}

// Name returns the name of the level.
func (c *Cache) Name() string {
	return c.config.Name
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Geometry returns the shape of the level.
func (c *Cache) Geometry() Geometry {
	return c.config.Geometry
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Line returns a copy of the metadata of line i.
func (c *Cache) Line(i int) Line {
	return c.lines[i]
}

// Set returns a copy of the lines of set index, in physical order.
func (c *Cache) Set(index uint64) []Line {
	first, end := c.config.Geometry.SetLines(index)
	set := make([]Line, end-first)
	copy(set, c.lines[first:end])
	return set
}

// Lookup returns the line holding addr, if any. It does not touch LRU state,
// statistics or the clock.
func (c *Cache) Lookup(addr uint64) (line int, ok bool) {
	a := c.config.Geometry.Decode(addr)
	return c.find(a)
}

// ReadWord copies the word at addr into out. out must be WordSize bytes.
func (c *Cache) ReadWord(addr uint64, out []byte) error {
	if err := c.checkWord(addr, len(out)); err != nil {
		return err
	}

	line, err := c.fetchBlock(addr)
	if err != nil {
		return err
	}

	offset := c.config.Geometry.Decode(addr).Offset
	copy(out, c.dataStore[line][offset:])

	c.stats.Reads++
	c.clock.Advance(c.config.ReadLatency)

	return nil
}

// WriteWord stores in at addr. in must be WordSize bytes. Uses
// write-allocate: on miss the block is fetched first, then written.
func (c *Cache) WriteWord(addr uint64, in []byte) error {
	if err := c.checkWord(addr, len(in)); err != nil {
		return err
	}

	line, err := c.fetchBlock(addr)
	if err != nil {
		return err
	}

	offset := c.config.Geometry.Decode(addr).Offset
	copy(c.dataStore[line][offset:], in)
	c.lines[line].Dirty = true

	c.stats.Writes++
	c.clock.Advance(c.config.WriteLatency)

	return nil
}

// ReadBlock serves a block to the level above.
func (c *Cache) ReadBlock(addr uint64) ([]byte, error) {
	line, err := c.fetchBlock(addr)
	if err != nil {
		return nil, err
	}

	data := make([]byte, c.config.Geometry.BlockSize)
	copy(data, c.dataStore[line])

	c.stats.Reads++
	c.clock.Advance(c.config.ReadLatency)

	return data, nil
}

// WriteBlock accepts a block written back by the level above. The block is
// allocated if absent and marked dirty.
func (c *Cache) WriteBlock(addr uint64, data []byte) error {
	if len(data) != c.config.Geometry.BlockSize {
		return &RangeError{
			Address: addr, Size: len(data),
			Limit:  uint64(c.config.Geometry.BlockSize),
			Reason: "is not one block",
		}
	}

	line, err := c.fetchBlock(addr)
	if err != nil {
		return err
	}

	copy(c.dataStore[line], data)
	c.lines[line].Dirty = true

	c.stats.Writes++
	c.clock.Advance(c.config.WriteLatency)

	return nil
}

// fetchBlock makes sure the block holding addr is present and returns its
// line index.
func (c *Cache) fetchBlock(addr uint64) (int, error) {
	g := c.config.Geometry
	a := g.Decode(addr)

	if line, ok := c.find(a); ok {
		c.stats.Hits++
		c.lines[line].LastUsed = c.clock.Now()
		c.raise(c, HookPosHit, c.event(addr, a, line))
		return line, nil
	}

	c.stats.Misses++
	c.raise(c, HookPosMiss, c.event(addr, a, -1))

	blockAddr := g.BlockAddress(a.Tag, a.Index)
	data, err := c.lower.ReadBlock(blockAddr)
	if err != nil {
		return 0, err
	}

	line := c.findVictim(a.Index)
	if err := c.evict(line, a.Index); err != nil {
		return 0, err
	}

	copy(c.dataStore[line], data)
	c.lines[line] = Line{
		Valid:    true,
		Dirty:    false,
		Tag:      a.Tag,
		LastUsed: c.clock.Now(),
	}

	return line, nil
}

// find scans the set of a for a valid line with a matching tag.
func (c *Cache) find(a Address) (int, bool) {
	first, end := c.config.Geometry.SetLines(a.Index)
	for i := first; i < end; i++ {
		if c.lines[i].Valid && c.lines[i].Tag == a.Tag {
			return i, true
		}
	}

	return 0, false
}

// findVictim picks the line to replace in set index: the first invalid line
// in set order, otherwise the line with the smallest LastUsed. Ties go to
// the lowest line index.
func (c *Cache) findVictim(index uint64) int {
	first, end := c.config.Geometry.SetLines(index)

	for i := first; i < end; i++ {
		if !c.lines[i].Valid {
			return i
		}
	}

	victim := first
	for i := first + 1; i < end; i++ {
		if c.lines[i].LastUsed < c.lines[victim].LastUsed {
			victim = i
		}
	}

	return victim
}

// evict clears line, writing its block to the level below first if it is
// dirty.
func (c *Cache) evict(line int, index uint64) error {
	l := c.lines[line]
	if !l.Valid {
		return nil
	}

	g := c.config.Geometry
	oldAddr := g.BlockAddress(l.Tag, index)
	evt := Event{
		Where:   c.config.Name,
		Address: oldAddr,
		Tag:     l.Tag,
		Index:   index,
		Line:    line,
		Time:    c.clock.Now(),
	}

	if l.Dirty {
		c.raise(c, HookPosWriteBack, evt)
		if err := c.lower.WriteBlock(oldAddr, c.dataStore[line]); err != nil {
			return fmt.Errorf("%s write-back of 0x%x: %w", c.config.Name, oldAddr, err)
		}
		c.stats.Writebacks++
	}

	c.stats.Evictions++
	c.raise(c, HookPosEviction, evt)
	c.lines[line] = Line{}

	return nil
}

// Invalidate marks the line holding addr invalid without writing it back.
func (c *Cache) Invalidate(addr uint64) {
	if line, ok := c.Lookup(addr); ok {
		c.lines[line] = Line{}
	}
}

// Flush writes back all dirty lines and invalidates every line.
func (c *Cache) Flush() error {
	g := c.config.Geometry
	for i := range c.lines {
		l := c.lines[i]
		if l.Valid && l.Dirty {
			index := uint64(i / g.Associativity)
			addr := g.BlockAddress(l.Tag, index)
			c.raise(c, HookPosWriteBack, Event{
				Where: c.config.Name, Address: addr, Tag: l.Tag, Index: index,
				Line: i, Time: c.clock.Now(),
			})
			if err := c.lower.WriteBlock(addr, c.dataStore[i]); err != nil {
				return fmt.Errorf("%s flush of 0x%x: %w", c.config.Name, addr, err)
			}
			c.stats.Writebacks++
		}
		c.lines[i] = Line{}
	}

	return nil
}

// Reset invalidates all cache lines without writeback and clears statistics.
func (c *Cache) Reset() {
	for i := range c.lines {
		c.lines[i] = Line{}
		clear(c.dataStore[i])
	}
	c.stats = Statistics{}
}

func (c *Cache) checkWord(addr uint64, n int) error {
	if n != c.config.WordSize {
		return &RangeError{
			Address: addr, Size: n, Limit: uint64(c.config.WordSize),
			Reason: fmt.Sprintf("is not a %d-byte word", c.config.WordSize),
		}
	}

	offset := c.config.Geometry.Decode(addr).Offset
	if offset+uint64(n) > uint64(c.config.Geometry.BlockSize) {
		return &RangeError{
			Address: addr, Size: n, Limit: c.config.Geometry.BlockAlign(addr) +
				uint64(c.config.Geometry.BlockSize),
			Reason: "straddles a block boundary",
		}
	}

	return nil
}

func (c *Cache) event(addr uint64, a Address, line int) Event {
	return Event{
		Where:   c.config.Name,
		Address: addr,
		Tag:     a.Tag,
		Index:   a.Index,
		Line:    line,
		Time:    c.clock.Now(),
	}
}
