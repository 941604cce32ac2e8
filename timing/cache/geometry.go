package cache

import "math/bits"

// Geometry describes the shape of one cache level and decodes addresses for
// it.
type Geometry struct {
	BlockSize     int
	LineCount     int
	Associativity int
	NumSets       int
	OffsetBits    uint
	IndexBits     uint
}

// Address is an address split into the fields a cache level uses.
type Address struct {
	Tag    uint64
	Index  uint64
	Offset uint64
}

// NewGeometry validates the sizes of a level and derives its bit widths.
// The block size and the number of sets must be powers of two, and the line
// count must be a multiple of the associativity.
func NewGeometry(blockSize, lineCount, associativity int) (Geometry, error) {
	if !isPowerOfTwo(blockSize) {
		return Geometry{}, configErrorf("block_size",
			"must be a power of two, got %d", blockSize)
	}

	if lineCount <= 0 {
		return Geometry{}, configErrorf("lines",
			"must be > 0, got %d", lineCount)
	}

	if associativity <= 0 {
		return Geometry{}, configErrorf("associativity",
			"must be > 0, got %d", associativity)
	}

	if lineCount%associativity != 0 {
		return Geometry{}, configErrorf("lines",
			"%d is not a multiple of associativity %d", lineCount, associativity)
	}

	numSets := lineCount / associativity
	if !isPowerOfTwo(numSets) {
		return Geometry{}, configErrorf("lines",
			"must give a power-of-two set count, got %d sets", numSets)
	}

	return Geometry{
		BlockSize:     blockSize,
		LineCount:     lineCount,
		Associativity: associativity,
		NumSets:       numSets,
		OffsetBits:    log2(blockSize),
		IndexBits:     log2(numSets),
	}, nil
}

// Decode splits addr into tag, set index and block offset.
func (g Geometry) Decode(addr uint64) Address {
	return Address{
		Tag:    addr >> (g.OffsetBits + g.IndexBits),
		Index:  (addr >> g.OffsetBits) & mask(g.IndexBits),
		Offset: addr & mask(g.OffsetBits),
	}
}

// BlockAddress rebuilds the block-aligned address of the block held with the
// given tag in the given set. It is the inverse of Decode with a zero offset.
func (g Geometry) BlockAddress(tag, index uint64) uint64 {
	return tag<<(g.OffsetBits+g.IndexBits) | index<<g.OffsetBits
}

// BlockAlign clears the offset bits of addr.
func (g Geometry) BlockAlign(addr uint64) uint64 {
	return addr &^ mask(g.OffsetBits)
}

// SetLines returns the range [first, first+Associativity) of line indices
// forming set index.
func (g Geometry) SetLines(index uint64) (first, end int) {
	first = int(index) * g.Associativity
	return first, first + g.Associativity
}

// Size returns the data capacity of the level in bytes.
func (g Geometry) Size() int {
	return g.LineCount * g.BlockSize
}

func mask(n uint) uint64 {
	return (uint64(1) << n) - 1
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) uint {
	return uint(bits.TrailingZeros64(uint64(n)))
}
