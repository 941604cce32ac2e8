package cache_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/clock"
)

func block(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, 64)
}

func newLevel(lines, associativity int, clk *clock.Clock, lower cache.Lower) *cache.Cache {
	g, err := cache.NewGeometry(64, lines, associativity)
	Expect(err).NotTo(HaveOccurred())

	return cache.New(cache.Config{
		Name:         "L1",
		Geometry:     g,
		WordSize:     4,
		ReadLatency:  1,
		WriteLatency: 2,
	}, clk, lower)
}

var _ = Describe("Cache", func() {
	var (
		mockCtrl *gomock.Controller
		lower    *MockLower
		clk      *clock.Clock
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		lower = NewMockLower(mockCtrl)
		clk = clock.New()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Describe("Construction", func() {
		It("should start with every line invalid and clean", func() {
			c := newLevel(8, 2, clk, lower)
			for i := 0; i < 8; i++ {
				Expect(c.Line(i)).To(Equal(cache.Line{}))
			}
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
		})
	})

	Describe("Direct-mapped", func() {
		var c *cache.Cache

		BeforeEach(func() {
			c = newLevel(4, 1, clk, lower)
		})

		It("should fetch the block-aligned address on a miss", func() {
			lower.EXPECT().ReadBlock(uint64(0x40)).Return(block(0xAB), nil)

			out := make([]byte, 4)
			Expect(c.ReadWord(0x47, out)).To(Succeed())
			Expect(out).To(Equal([]byte{0xAB, 0xAB, 0xAB, 0xAB}))
			Expect(clk.Now()).To(Equal(uint64(1)))

			line := c.Line(1)
			Expect(line.Valid).To(BeTrue())
			Expect(line.Dirty).To(BeFalse())
			Expect(line.Tag).To(Equal(uint64(0)))
		})

		It("should not touch the level below on a hit", func() {
			lower.EXPECT().ReadBlock(uint64(0x40)).Return(block(0), nil).Times(1)

			out := make([]byte, 4)
			Expect(c.ReadWord(0x40, out)).To(Succeed())
			Expect(c.ReadWord(0x44, out)).To(Succeed())

			stats := c.Stats()
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Reads).To(Equal(uint64(2)))
		})

		It("should write-allocate and mark the line dirty", func() {
			lower.EXPECT().ReadBlock(uint64(0)).Return(block(0), nil)

			Expect(c.WriteWord(4, []byte{1, 2, 3, 4})).To(Succeed())
			Expect(c.Line(0).Dirty).To(BeTrue())
			Expect(clk.Now()).To(Equal(uint64(2)))

			out := make([]byte, 4)
			Expect(c.ReadWord(4, out)).To(Succeed())
			Expect(out).To(Equal([]byte{1, 2, 3, 4}))
		})

		It("should write back a dirty victim before installing", func() {
			expected := block(0)
			copy(expected[8:], []byte{9, 9, 9, 9})

			gomock.InOrder(
				lower.EXPECT().ReadBlock(uint64(0)).Return(block(0), nil),
				lower.EXPECT().ReadBlock(uint64(0x100)).Return(block(7), nil),
				lower.EXPECT().WriteBlock(uint64(0), expected).Return(nil),
			)

			Expect(c.WriteWord(8, []byte{9, 9, 9, 9})).To(Succeed())

			out := make([]byte, 4)
			Expect(c.ReadWord(0x100, out)).To(Succeed())
			Expect(out).To(Equal([]byte{7, 7, 7, 7}))

			line := c.Line(0)
			Expect(line.Tag).To(Equal(uint64(1)))
			Expect(line.Dirty).To(BeFalse())
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should drop a clean victim without writing it back", func() {
			lower.EXPECT().ReadBlock(uint64(0)).Return(block(0), nil)
			lower.EXPECT().ReadBlock(uint64(0x100)).Return(block(1), nil)

			out := make([]byte, 4)
			Expect(c.ReadWord(0, out)).To(Succeed())
			Expect(c.ReadWord(0x100, out)).To(Succeed())

			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
			Expect(c.Stats().Writebacks).To(Equal(uint64(0)))
		})

		It("should leave the line untouched when the level below fails", func() {
			lower.EXPECT().ReadBlock(uint64(0)).Return(block(3), nil)
			lower.EXPECT().ReadBlock(uint64(0x100)).
				Return(nil, &cache.RangeError{Address: 0x100, Size: 64})

			out := make([]byte, 4)
			Expect(c.ReadWord(0, out)).To(Succeed())

			err := c.ReadWord(0x100, out)
			Expect(errors.Is(err, cache.ErrOutOfRange)).To(BeTrue())

			line, ok := c.Lookup(0)
			Expect(ok).To(BeTrue())
			Expect(line).To(Equal(0))
		})

		It("should reject words that straddle a block", func() {
			err := c.ReadWord(62, make([]byte, 4))
			Expect(errors.Is(err, cache.ErrOutOfRange)).To(BeTrue())
			Expect(clk.Now()).To(Equal(uint64(0)))
		})

		It("should reject buffers that are not one word", func() {
			err := c.WriteWord(0, make([]byte, 8))
			Expect(errors.Is(err, cache.ErrOutOfRange)).To(BeTrue())
		})
	})

	Describe("2-way LRU", func() {
		var c *cache.Cache

		BeforeEach(func() {
			// 4 lines, 2 ways: 2 sets. Set 0 holds tags at 0x0, 0x80, 0x100.
			c = newLevel(4, 2, clk, lower)
			lower.EXPECT().ReadBlock(gomock.Any()).
				DoAndReturn(func(addr uint64) ([]byte, error) {
					return block(byte(addr >> 7)), nil
				}).AnyTimes()
		})

		read := func(addr uint64) {
			Expect(c.ReadWord(addr, make([]byte, 4))).To(Succeed())
		}

		It("should fill invalid lines in set order", func() {
			read(0x80)
			read(0x0)

			set := c.Set(0)
			Expect(set[0].Tag).To(Equal(uint64(1)))
			Expect(set[1].Tag).To(Equal(uint64(0)))
		})

		It("should evict the least recently used line", func() {
			read(0x0)   // X
			read(0x80)  // Y
			read(0x100) // Z evicts X

			_, ok := c.Lookup(0x0)
			Expect(ok).To(BeFalse())
			_, ok = c.Lookup(0x80)
			Expect(ok).To(BeTrue())
			_, ok = c.Lookup(0x100)
			Expect(ok).To(BeTrue())
		})

		It("should refresh recency on a hit", func() {
			read(0x0)
			read(0x80)
			read(0x0)
			read(0x100)

			_, ok := c.Lookup(0x0)
			Expect(ok).To(BeTrue())
			_, ok = c.Lookup(0x80)
			Expect(ok).To(BeFalse())
		})

		It("should not disturb the other set", func() {
			read(0x40)
			read(0x0)
			read(0x80)
			read(0x100)

			_, ok := c.Lookup(0x40)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("LRU ties", func() {
		It("should evict the lowest line index when timestamps are equal", func() {
			g, err := cache.NewGeometry(64, 2, 2)
			Expect(err).NotTo(HaveOccurred())

			c := cache.New(cache.Config{
				Name: "free", Geometry: g, WordSize: 4,
			}, clk, lower)
			lower.EXPECT().ReadBlock(gomock.Any()).Return(block(0), nil).Times(3)

			out := make([]byte, 4)
			Expect(c.ReadWord(0x0, out)).To(Succeed())
			Expect(c.ReadWord(0x40, out)).To(Succeed())
			Expect(c.Line(0).LastUsed).To(Equal(c.Line(1).LastUsed))

			Expect(c.ReadWord(0x80, out)).To(Succeed())
			Expect(c.Line(0).Tag).To(Equal(uint64(2)))
			Expect(c.Line(1).Tag).To(Equal(uint64(1)))
		})
	})

	Describe("Block interface", func() {
		var c *cache.Cache

		BeforeEach(func() {
			c = newLevel(4, 1, clk, lower)
		})

		It("should serve whole blocks and charge the read cost", func() {
			lower.EXPECT().ReadBlock(uint64(0x40)).Return(block(5), nil)

			data, err := c.ReadBlock(0x40)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(block(5)))
			Expect(clk.Now()).To(Equal(uint64(1)))
		})

		It("should allocate written blocks and mark them dirty", func() {
			lower.EXPECT().ReadBlock(uint64(0x40)).Return(block(0), nil)

			Expect(c.WriteBlock(0x40, block(6))).To(Succeed())
			Expect(c.Line(1).Dirty).To(BeTrue())
			Expect(clk.Now()).To(Equal(uint64(2)))

			data, err := c.ReadBlock(0x40)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(block(6)))
		})

		It("should reject partial blocks", func() {
			err := c.WriteBlock(0x40, make([]byte, 4))
			Expect(errors.Is(err, cache.ErrOutOfRange)).To(BeTrue())
		})
	})

	Describe("Flush and Invalidate", func() {
		var c *cache.Cache

		BeforeEach(func() {
			c = newLevel(4, 1, clk, lower)
		})

		It("should write back dirty lines and empty the level", func() {
			lower.EXPECT().ReadBlock(uint64(0x80)).Return(block(0), nil)
			lower.EXPECT().ReadBlock(uint64(0xC0)).Return(block(0), nil)
			lower.EXPECT().WriteBlock(uint64(0x80), gomock.Any()).Return(nil)

			Expect(c.WriteWord(0x80, []byte{1, 1, 1, 1})).To(Succeed())
			Expect(c.ReadWord(0xC0, make([]byte, 4))).To(Succeed())

			Expect(c.Flush()).To(Succeed())
			for i := 0; i < 4; i++ {
				Expect(c.Line(i).Valid).To(BeFalse())
			}
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		})

		It("should invalidate without writing back", func() {
			lower.EXPECT().ReadBlock(uint64(0)).Return(block(0), nil).Times(2)

			Expect(c.WriteWord(0, []byte{1, 1, 1, 1})).To(Succeed())
			c.Invalidate(0)
			Expect(c.Line(0)).To(Equal(cache.Line{}))

			out := make([]byte, 4)
			Expect(c.ReadWord(0, out)).To(Succeed())
			Expect(out).To(Equal([]byte{0, 0, 0, 0}))
		})

		It("should reset lines and statistics", func() {
			lower.EXPECT().ReadBlock(uint64(0)).Return(block(0), nil)

			Expect(c.WriteWord(0, []byte{1, 1, 1, 1})).To(Succeed())
			c.Reset()

			Expect(c.Line(0)).To(Equal(cache.Line{}))
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
		})
	})
})
