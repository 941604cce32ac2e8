package cache_test

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/latency"
)

type recordedEvent struct {
	pos *sim.HookPos
	evt cache.Event
}

type recordingHook struct {
	events []recordedEvent
}

func (h *recordingHook) Func(ctx sim.HookCtx) {
	h.events = append(h.events, recordedEvent{
		pos: ctx.Pos,
		evt: ctx.Item.(cache.Event),
	})
}

func (h *recordingHook) positions() []string {
	names := make([]string, 0, len(h.events))
	for _, e := range h.events {
		names = append(names, e.evt.Where+":"+e.pos.Name)
	}
	return names
}

func mustNewHierarchy(config *cache.HierarchyConfig) *cache.Hierarchy {
	h, err := cache.NewHierarchy(config)
	Expect(err).NotTo(HaveOccurred())
	return h
}

var _ = Describe("Hierarchy", func() {
	Describe("Direct-mapped level over memory", func() {
		var h *cache.Hierarchy

		BeforeEach(func() {
			h = mustNewHierarchy(cache.DirectMappedConfig())
		})

		It("should charge only the hit cost when reading back a write", func() {
			Expect(h.WriteValue(129, 0xFFFFFFFF)).To(Succeed())
			Expect(h.Time()).To(Equal(uint64(101)))

			before := h.Time()
			v, err := h.ReadValue(129)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0xFFFFFFFF)))
			Expect(h.Time() - before).To(Equal(uint64(1)))
		})

		It("should keep lines with different indices apart", func() {
			Expect(h.WriteValue(129, 0xFFFFFFFF)).To(Succeed())
			Expect(h.WriteValue(38345, 0x12345678)).To(Succeed())

			before := h.Time()
			v, err := h.ReadValue(129)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0xFFFFFFFF)))
			Expect(h.Time() - before).To(Equal(uint64(1)))
		})

		It("should write back a dirty line evicted by a colliding tag", func() {
			Expect(h.WriteValue(129, 0xFFFFFFFF)).To(Succeed())

			// 129 + 16 KiB has the same index and the next tag.
			before := h.Time()
			Expect(h.WriteValue(129+16384, 0xA5A5A5A5)).To(Succeed())
			Expect(h.Time() - before).To(Equal(uint64(100 + 50 + 1)))

			inMemory, err := h.Memory().Peek(129, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(inMemory).To(Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF}))

			before = h.Time()
			v, err := h.ReadValue(129)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0xFFFFFFFF)))
			Expect(h.Time() - before).To(Equal(uint64(100 + 50 + 1)))

			v, err = h.ReadValue(129 + 16384)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0xA5A5A5A5)))
		})

		It("should read zero from untouched memory", func() {
			v, err := h.ReadValue(0x8000)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0)))
			Expect(h.Time()).To(Equal(uint64(101)))
		})

		It("should see data loaded into memory", func() {
			Expect(h.Memory().Load(0x200, []byte{1, 2, 3, 4})).To(Succeed())

			out := make([]byte, 4)
			Expect(h.Read(0x200, out)).To(Succeed())
			Expect(out).To(Equal([]byte{1, 2, 3, 4}))
		})
	})

	Describe("Two-level hierarchy", func() {
		var (
			h     *cache.Hierarchy
			table *latency.Table
		)

		BeforeEach(func() {
			h = mustNewHierarchy(cache.DefaultConfig())
			table = h.Latencies()
		})

		It("should charge every level on a cold read", func() {
			_, err := h.ReadValue(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Time()).To(Equal(uint64(100 + 10 + 1)))
		})

		It("should hit in L1 on a repeated read", func() {
			first, err := h.ReadValue(0x1234)
			Expect(err).NotTo(HaveOccurred())

			before := h.Time()
			second, err := h.ReadValue(0x1234)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
			Expect(h.Time() - before).To(Equal(table.HitCost(1, latency.OpRead)))
		})

		It("should hit in L2 after a clean L1 eviction", func() {
			_, err := h.ReadValue(0)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.ReadValue(16384)
			Expect(err).NotTo(HaveOccurred())

			before := h.Time()
			_, err = h.ReadValue(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Time() - before).To(Equal(table.HitCost(2, latency.OpRead)))
		})

		It("should keep written values through L1 and L2 evictions", func() {
			values := map[uint32]uint64{
				0:     16,
				16384: 32,
				32768: 64,
				49152: 128,
			}
			for _, addr := range []uint32{0, 16384, 32768, 49152} {
				Expect(h.WriteValue(addr, values[addr])).To(Succeed())
			}

			// Four tags in one 2-way L2 set push the first block out to memory.
			inMemory, err := h.Memory().Peek(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(inMemory).To(Equal([]byte{16, 0, 0, 0}))

			memReads := h.Stats().Memory.Reads
			for _, addr := range []uint32{0, 16384, 32768, 49152} {
				v, err := h.ReadValue(addr)
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal(values[addr]))
			}
			Expect(h.Stats().Memory.Reads).To(BeNumerically(">", memReads))
		})

		It("should reproduce the lab access sequence", func() {
			Expect(h.WriteValue(0, 16)).To(Succeed())
			Expect(h.Time()).To(Equal(uint64(111)))
			Expect(h.WriteValue(16384, 32)).To(Succeed())
			Expect(h.Time()).To(Equal(uint64(227)))
			Expect(h.WriteValue(32768, 64)).To(Succeed())
			Expect(h.Time()).To(Equal(uint64(493)))

			for addr, want := range map[uint32]uint64{0: 16, 16384: 32, 32768: 64} {
				v, err := h.ReadValue(addr)
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal(want))
			}
		})

		It("should evict the least recently used L2 line", func() {
			l2, ok := h.Level("L2")
			Expect(ok).To(BeTrue())

			_, err := h.ReadValue(0) // X
			Expect(err).NotTo(HaveOccurred())
			_, err = h.ReadValue(16384) // Y
			Expect(err).NotTo(HaveOccurred())
			_, err = h.ReadValue(32768) // evicts X from L2
			Expect(err).NotTo(HaveOccurred())

			_, ok = l2.Lookup(0)
			Expect(ok).To(BeFalse())
			_, ok = l2.Lookup(16384)
			Expect(ok).To(BeTrue())
			_, ok = l2.Lookup(32768)
			Expect(ok).To(BeTrue())
		})

		It("should flush dirty data down to memory", func() {
			Expect(h.WriteValue(0x100, 0xCAFEBABE)).To(Succeed())
			Expect(h.Flush()).To(Succeed())

			inMemory, err := h.Memory().Peek(0x100, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(inMemory).To(Equal([]byte{0xBE, 0xBA, 0xFE, 0xCA}))

			for _, l := range h.Levels() {
				_, ok := l.Lookup(0x100)
				Expect(ok).To(BeFalse())
			}
		})

		It("should report per-level statistics", func() {
			_, err := h.ReadValue(0)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.ReadValue(0)
			Expect(err).NotTo(HaveOccurred())

			stats := h.Stats()
			Expect(stats.Levels).To(HaveLen(2))
			Expect(stats.Levels[0].Name).To(Equal("L1"))
			Expect(stats.Levels[0].Hits).To(Equal(uint64(1)))
			Expect(stats.Levels[0].Misses).To(Equal(uint64(1)))
			Expect(stats.Levels[1].Misses).To(Equal(uint64(1)))
			Expect(stats.Memory.Reads).To(Equal(uint64(1)))

			h.ResetStats()
			Expect(h.Stats().Levels[0].Statistics).To(Equal(cache.Statistics{}))
			Expect(h.Stats().Memory).To(Equal(cache.MemoryStats{}))
		})

		It("should raise events in order", func() {
			hook := &recordingHook{}
			h.AcceptHook(hook)

			Expect(h.WriteValue(0, 1)).To(Succeed())
			Expect(hook.positions()).To(Equal([]string{
				"L1:CacheMiss", "L2:CacheMiss", "DRAM:MemRead",
			}))

			hook.events = nil
			Expect(h.WriteValue(16384, 2)).To(Succeed())
			Expect(hook.positions()).To(Equal([]string{
				"L1:CacheMiss",
				"L2:CacheMiss",
				"DRAM:MemRead",
				"L1:CacheWriteBack",
				"L2:CacheHit",
				"L1:CacheEviction",
			}))
			Expect(hook.events[3].evt.Address).To(Equal(uint64(0)))
		})

		It("should attach a hook only once", func() {
			hook := &recordingHook{}
			h.AcceptHook(hook)
			Expect(func() { h.AcceptHook(hook) }).NotTo(Panic())

			Expect(h.WriteValue(0, 1)).To(Succeed())
			Expect(hook.positions()).To(Equal([]string{
				"L1:CacheMiss", "L2:CacheMiss", "DRAM:MemRead",
			}))
		})

		It("should raise nothing without hooks", func() {
			Expect(h.WriteValue(0, 1)).To(Succeed())
			Expect(h.Time()).To(Equal(uint64(111)))
		})
	})

	Describe("Clock", func() {
		It("should never decrease and reset to zero", func() {
			h := mustNewHierarchy(cache.DefaultConfig())
			rng := rand.New(rand.NewSource(7))

			last := h.Time()
			for i := 0; i < 2000; i++ {
				addr := uint32(rng.Intn(65536/4)) * 4
				if rng.Intn(2) == 0 {
					Expect(h.WriteValue(addr, uint64(i))).To(Succeed())
				} else {
					_, err := h.ReadValue(addr)
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(h.Time()).To(BeNumerically(">", last))
				last = h.Time()
			}

			h.ResetTime()
			Expect(h.Time()).To(Equal(uint64(0)))
		})

		It("should not affect cache contents when reset", func() {
			h := mustNewHierarchy(cache.DefaultConfig())
			Expect(h.WriteValue(0x40, 5)).To(Succeed())

			h.ResetTime()
			v, err := h.ReadValue(0x40)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(5)))
			Expect(h.Time()).To(Equal(uint64(1)))
		})
	})

	Describe("Write then read", func() {
		It("should return the last written value under random traffic", func() {
			h := mustNewHierarchy(cache.DefaultConfig())
			rng := rand.New(rand.NewSource(11))
			shadow := make(map[uint32]uint64)

			for i := 0; i < 5000; i++ {
				addr := uint32(rng.Intn(65536/4)) * 4
				if rng.Intn(3) == 0 {
					v := uint64(rng.Uint32())
					Expect(h.WriteValue(addr, v)).To(Succeed())
					shadow[addr] = v
				} else {
					v, err := h.ReadValue(addr)
					Expect(err).NotTo(HaveOccurred())
					Expect(v).To(Equal(shadow[addr]))
				}
			}
		})
	})

	Describe("Out-of-range accesses", func() {
		var h *cache.Hierarchy

		BeforeEach(func() {
			h = mustNewHierarchy(cache.DefaultConfig())
		})

		It("should reject addresses past the end of memory", func() {
			err := h.Read(65534, make([]byte, 4))
			Expect(errors.Is(err, cache.ErrOutOfRange)).To(BeTrue())

			var rerr *cache.RangeError
			Expect(errors.As(err, &rerr)).To(BeTrue())
			Expect(rerr.Limit).To(Equal(uint64(65536)))

			Expect(h.Time()).To(Equal(uint64(0)))
			Expect(h.Stats().Levels[0].Misses).To(Equal(uint64(0)))
		})

		It("should accept the last word of memory", func() {
			Expect(h.WriteValue(65532, 3)).To(Succeed())
			v, err := h.ReadValue(65532)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(3)))
		})

		It("should reject words that straddle a block", func() {
			err := h.Write(62, make([]byte, 4))
			Expect(errors.Is(err, cache.ErrOutOfRange)).To(BeTrue())
			Expect(h.Time()).To(Equal(uint64(0)))
		})

		It("should reject buffers of the wrong size", func() {
			err := h.Read(0, make([]byte, 2))
			Expect(errors.Is(err, cache.ErrOutOfRange)).To(BeTrue())
		})
	})

	Describe("Construction", func() {
		It("should reject a missing configuration", func() {
			h, err := cache.NewHierarchy(nil)
			Expect(h).To(BeNil())
			Expect(errors.Is(err, cache.ErrInvalidConfig)).To(BeTrue())

			var cerr *cache.ConfigError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.Field).To(Equal("config"))
		})

		It("should reject invalid configurations", func() {
			config := cache.DefaultConfig()
			config.Levels[1].Lines = 500

			_, err := cache.NewHierarchy(config)
			Expect(errors.Is(err, cache.ErrInvalidConfig)).To(BeTrue())
		})

		It("should not share configuration with the caller", func() {
			config := cache.DefaultConfig()
			h := mustNewHierarchy(config)

			config.Levels[0].Lines = 2
			Expect(h.Config().Levels[0].Lines).To(Equal(256))
		})

		It("should build independent instances", func() {
			a := mustNewHierarchy(cache.DefaultConfig())
			b := mustNewHierarchy(cache.DefaultConfig())

			Expect(a.WriteValue(0, 9)).To(Succeed())
			v, err := b.ReadValue(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0)))
			Expect(a.Stats().Levels[0].Writes).To(Equal(uint64(1)))
			Expect(b.Stats().Levels[0].Writes).To(Equal(uint64(0)))
		})

		It("should name levels by position when unnamed", func() {
			config := cache.DefaultConfig()
			config.Levels[0].Name = ""
			config.Levels[1].Name = ""
			h := mustNewHierarchy(config)

			_, ok := h.Level("L2")
			Expect(ok).To(BeTrue())
			Expect(h.WordSize()).To(Equal(4))
		})
	})
})
