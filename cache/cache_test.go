package cache

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/coherence/geometry"
	"github.com/sarchlab/coherence/hooking"
	"github.com/sarchlab/coherence/protocol"
	"github.com/sarchlab/coherence/setlock"
)

var notFound = protocol.SnoopResult{}

func found(s protocol.State) protocol.SnoopResult {
	return protocol.SnoopResult{Found: true, State: s}
}

type recordingHook struct {
	positions []*hooking.HookPos
	accesses  []hooking.Access
}

func (h *recordingHook) Func(ctx hooking.HookCtx) {
	h.positions = append(h.positions, ctx.Pos)
	h.accesses = append(h.accesses, ctx.Item.(hooking.Access))
}

var _ = Describe("Cache", func() {
	var (
		mockCtrl *gomock.Controller
		bus      *MockBus
		geo      geometry.Geometry
		locks    *setlock.SetLock
		logBuf   *bytes.Buffer
		builder  Builder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		bus = NewMockBus(mockCtrl)
		geo = geometry.Geometry{CacheSize: 256, Associativity: 4, BlockSize: 32}
		locks = setlock.New(geo.NumSets())
		logBuf = new(bytes.Buffer)
		builder = MakeBuilder().
			WithGeometry(geo).
			WithSetLock(locks).
			WithBus(bus).
			WithLogger(log.New(logBuf, "", 0))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should refuse to build without a set lock", func() {
		Expect(func() { MakeBuilder().WithBus(bus).Build(0) }).To(Panic())
	})

	It("should refuse to build with a mismatching set lock", func() {
		Expect(func() {
			builder.WithSetLock(setlock.New(3)).Build(0)
		}).To(Panic())
	})

	It("should report the absent sentinel for unknown tags", func() {
		mesi := builder.Build(0)
		dragon := builder.WithProtocol(protocol.Dragon).Build(1)

		Expect(mesi.State(0, 1)).To(Equal(protocol.Invalid))
		Expect(dragon.State(0, 1)).To(Equal(protocol.NotFound))

		_, ok := mesi.Lookup(0, 1)
		Expect(ok).To(BeFalse())
	})

	It("should ignore SetState on absent lines", func() {
		c := builder.Build(0)

		c.SetState(0, 1, protocol.Modified)

		Expect(c.NumLines(0)).To(BeZero())
	})

	It("should skip operations on out-of-range sets", func() {
		c := builder.Build(0)

		cycles, err := c.Read(geo.NumSets(), 1)

		Expect(err).To(MatchError(setlock.ErrIndexOutOfRange))
		Expect(cycles).To(BeZero())
		Expect(c.Stats()).To(Equal(Stats{}))
	})

	It("should invoke hooks around an access", func() {
		c := builder.Build(2)
		hook := &recordingHook{}
		c.AcceptHook(hook)
		bus.EXPECT().BusRead(2, 1, 4).Return(notFound)

		_, err := c.Read(1, 4)

		Expect(err).NotTo(HaveOccurred())
		Expect(hook.positions).To(Equal([]*hooking.HookPos{
			hooking.HookPosBeforeAccess, hooking.HookPosAfterAccess,
		}))
		Expect(hook.accesses[1]).To(Equal(hooking.Access{
			PID: 2, Kind: protocol.Read, SetIndex: 1, Tag: 4,
			Hit: false, Cycles: MemoryCycles,
		}))
	})

	Context("MESI", func() {
		var c *Cache

		BeforeEach(func() {
			c = builder.WithProtocol(protocol.MESI).Build(0)
		})

		It("should fetch from memory on a cold read", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(notFound)

			cycles, err := c.Read(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(100)))
			Expect(c.State(1, 5)).To(Equal(protocol.Exclusive))
			Expect(c.Stats()).To(Equal(Stats{
				Misses: 1, DataTraffic: 1, PrivateAccesses: 1,
			}))
		})

		It("should fetch from another cache when it has the block", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(found(protocol.Exclusive))

			cycles, err := c.Read(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(16)))
			Expect(c.State(1, 5)).To(Equal(protocol.Shared))
			Expect(c.Stats().SharedAccesses).To(Equal(uint64(1)))
		})

		It("should hit without bus traffic", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(notFound)
			_, _ = c.Read(1, 5)

			cycles, err := c.Read(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(1)))
			Expect(c.Stats().PrivateAccesses).To(Equal(uint64(2)))
			Expect(c.Stats().Misses).To(Equal(uint64(1)))
		})

		It("should upgrade an exclusive line silently", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(notFound)
			_, _ = c.Read(1, 5)

			cycles, err := c.Write(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(1)))
			Expect(c.State(1, 5)).To(Equal(protocol.Modified))
		})

		It("should invalidate other copies when writing a shared line", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(found(protocol.Shared))
			_, _ = c.Read(1, 5)
			bus.EXPECT().BusUpdate(0, 1, 5).Return(2)

			cycles, err := c.Write(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(1 + 2*2)))
			Expect(c.State(1, 5)).To(Equal(protocol.Modified))
			Expect(c.Stats().Updates).To(Equal(uint64(2)))
		})

		It("should write miss from memory", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(notFound)

			cycles, err := c.Write(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(100)))
			Expect(c.State(1, 5)).To(Equal(protocol.Modified))
			Expect(c.Stats().PrivateAccesses).To(Equal(uint64(1)))
		})

		It("should write miss from another cache and invalidate", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(found(protocol.Modified))
			bus.EXPECT().BusUpdate(0, 1, 5).Return(1)

			cycles, err := c.Write(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(16 + 2)))
			Expect(c.State(1, 5)).To(Equal(protocol.Modified))
			Expect(c.Stats()).To(Equal(Stats{
				Misses: 1, DataTraffic: 1, Updates: 1, SharedAccesses: 1,
			}))
		})

		It("should treat a stale line as a miss and free its way", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(notFound).Times(2)
			_, _ = c.Read(1, 5)
			c.SetState(1, 5, protocol.Invalid)

			cycles, err := c.Read(1, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(100)))
			Expect(c.NumLines(1)).To(Equal(1))
			Expect(c.Stats().Misses).To(Equal(uint64(2)))
		})

		It("should evict the least recently used line", func() {
			bus.EXPECT().BusRead(0, 0, gomock.Any()).Return(notFound).Times(5)

			for tag := 0; tag < 5; tag++ {
				_, err := c.Read(0, tag)
				Expect(err).NotTo(HaveOccurred())
				Expect(c.NumLines(0)).To(BeNumerically("<=", 4))
			}

			_, ok := c.Lookup(0, 0)
			Expect(ok).To(BeFalse())
			for tag := 1; tag < 5; tag++ {
				_, ok := c.Lookup(0, tag)
				Expect(ok).To(BeTrue())
			}
		})

		It("should keep recently used lines", func() {
			bus.EXPECT().BusRead(0, 0, gomock.Any()).Return(notFound).Times(5)
			for tag := 0; tag < 4; tag++ {
				_, _ = c.Read(0, tag)
			}
			_, _ = c.Read(0, 0)

			_, _ = c.Read(0, 4)

			_, ok := c.Lookup(0, 0)
			Expect(ok).To(BeTrue())
			_, ok = c.Lookup(0, 1)
			Expect(ok).To(BeFalse())
		})

		It("should write back a modified victim", func() {
			bus.EXPECT().BusRead(0, 0, gomock.Any()).Return(notFound).Times(5)
			_, _ = c.Write(0, 0)
			for tag := 1; tag < 4; tag++ {
				_, _ = c.Read(0, tag)
			}
			before := c.Stats().DataTraffic

			cycles, err := c.Read(0, 4)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(100 + 100)))
			Expect(c.Stats().DataTraffic - before).To(Equal(uint64(2)))
		})

		It("should evict a clean victim for free", func() {
			bus.EXPECT().BusRead(0, 0, gomock.Any()).Return(notFound).Times(5)
			for tag := 0; tag < 4; tag++ {
				_, _ = c.Read(0, tag)
			}
			before := c.Stats().DataTraffic

			cycles, err := c.Read(0, 4)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(100)))
			Expect(c.Stats().DataTraffic - before).To(Equal(uint64(1)))
		})

		It("should report a line in a foreign state as an invariant violation", func() {
			bus.EXPECT().BusRead(0, 1, 5).Return(notFound)
			_, _ = c.Read(1, 5)
			c.SetState(1, 5, protocol.SharedModified)

			_, err := c.Read(1, 5)

			Expect(err).To(MatchError(ErrProtocolInvariant))
			Expect(logBuf.String()).To(ContainSubstring("impossible state"))
		})
	})

	Context("Dragon", func() {
		var c *Cache

		BeforeEach(func() {
			c = builder.WithProtocol(protocol.Dragon).Build(0)
		})

		It("should fetch from memory on a cold read", func() {
			bus.EXPECT().BusRead(0, 2, 3).Return(notFound)

			cycles, err := c.Read(2, 3)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(100)))
			Expect(c.State(2, 3)).To(Equal(protocol.ExclusiveClean))
		})

		It("should share on a read miss when another cache has the block", func() {
			bus.EXPECT().BusRead(0, 2, 3).Return(found(protocol.DragonModified))

			cycles, err := c.Read(2, 3)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(16)))
			Expect(c.State(2, 3)).To(Equal(protocol.SharedClean))
			Expect(c.Stats().SharedAccesses).To(Equal(uint64(1)))
		})

		It("should upgrade an exclusive clean line silently", func() {
			bus.EXPECT().BusRead(0, 2, 3).Return(notFound)
			_, _ = c.Read(2, 3)

			cycles, err := c.Write(2, 3)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(1)))
			Expect(c.State(2, 3)).To(Equal(protocol.DragonModified))
		})

		It("should take ownership of a shared line no one else holds", func() {
			bus.EXPECT().BusRead(0, 2, 3).Return(found(protocol.SharedClean))
			_, _ = c.Read(2, 3)
			bus.EXPECT().BusRead(0, 2, 3).Return(notFound)

			cycles, err := c.Write(2, 3)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(1)))
			Expect(c.State(2, 3)).To(Equal(protocol.DragonModified))
			Expect(c.Stats().PrivateAccesses).To(Equal(uint64(1)))
		})

		It("should update other copies when writing a shared line", func() {
			bus.EXPECT().BusRead(0, 2, 3).Return(found(protocol.SharedClean)).Times(2)
			_, _ = c.Read(2, 3)
			bus.EXPECT().BusUpdate(0, 2, 3).Return(2)

			cycles, err := c.Write(2, 3)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(1 + 2*16)))
			Expect(c.State(2, 3)).To(Equal(protocol.SharedModified))
			Expect(c.Stats()).To(Equal(Stats{
				Misses: 1, DataTraffic: 3, Updates: 2, SharedAccesses: 2,
			}))
		})

		It("should write miss from another cache and update", func() {
			bus.EXPECT().BusRead(0, 2, 3).Return(found(protocol.DragonModified))
			bus.EXPECT().BusUpdate(0, 2, 3).Return(1)

			cycles, err := c.Write(2, 3)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(16 + 16)))
			Expect(c.State(2, 3)).To(Equal(protocol.SharedModified))
			Expect(c.Stats()).To(Equal(Stats{
				Misses: 1, DataTraffic: 2, Updates: 1, SharedAccesses: 1,
			}))
		})

		It("should write back a shared modified victim", func() {
			bus.EXPECT().BusRead(0, 0, 0).Return(found(protocol.DragonModified))
			bus.EXPECT().BusUpdate(0, 0, 0).Return(0)
			bus.EXPECT().BusRead(0, 0, gomock.Any()).Return(notFound).Times(4)
			_, _ = c.Write(0, 0)
			for tag := 1; tag < 4; tag++ {
				_, _ = c.Read(0, tag)
			}

			cycles, err := c.Read(0, 4)

			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(100 + 100)))
		})

		It("should fail loudly on a line that is present but invalid", func() {
			bus.EXPECT().BusRead(0, 2, 3).Return(notFound)
			_, _ = c.Read(2, 3)
			c.SetState(2, 3, protocol.Invalid)

			cycles, err := c.Write(2, 3)

			var invErr *InvariantError
			Expect(err).To(BeAssignableToTypeOf(invErr))
			Expect(err).To(MatchError(ErrProtocolInvariant))
			Expect(cycles).To(BeZero())
			Expect(c.NumLines(2)).To(BeZero())
			Expect(locks.Lock(2)).To(Succeed())
			Expect(locks.Unlock(2)).To(Succeed())
		})
	})
})
