package core

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/coherence/cache"
	"github.com/sarchlab/coherence/geometry"
	"github.com/sarchlab/coherence/setlock"
	"github.com/sarchlab/coherence/trace"
)

var _ = Describe("Core", func() {
	var (
		mockCtrl  *gomock.Controller
		c         *MockCache
		g         geometry.Geometry
		logBuffer *bytes.Buffer
		core      *Core
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		c = NewMockCache(mockCtrl)
		g = geometry.Default()
		logBuffer = new(bytes.Buffer)
		core = New(1, c, g, log.New(logBuffer, "", 0))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should replay reads, writes and compute records", func() {
		setIndex, tag := g.Decode(0x817ba0)
		c.EXPECT().Read(setIndex, tag).Return(uint64(100), nil)
		c.EXPECT().Write(setIndex, tag).Return(uint64(1), nil)
		c.EXPECT().Stats().Return(cache.Stats{Misses: 1})

		err := core.Run(trace.NewReader(strings.NewReader(
			"0 817ba0\n2 a\n1 817ba0\n")))

		Expect(err).NotTo(HaveOccurred())
		s := core.Snapshot()
		Expect(s.PID).To(Equal(1))
		Expect(s.Compute).To(Equal(uint64(10)))
		Expect(s.MemInstr).To(Equal(uint64(2)))
		Expect(s.Idle).To(Equal(uint64(101)))
		Expect(s.Total).To(Equal(uint64(111)))
		Expect(s.MissRate()).To(Equal(0.5))
	})

	It("should include stalls credited by other cores", func() {
		c.EXPECT().Stats().Return(cache.Stats{})

		core.AddIdleCycles(100)
		err := core.Run(trace.NewReader(strings.NewReader("2 5\n")))

		Expect(err).NotTo(HaveOccurred())
		Expect(core.Snapshot().Total).To(Equal(uint64(105)))
	})

	It("should stop on a malformed record", func() {
		c.EXPECT().Read(gomock.Any(), gomock.Any()).Return(uint64(1), nil)

		err := core.Run(trace.NewReader(strings.NewReader(
			"0 10\n7 10\n0 20\n")))

		Expect(err).To(MatchError(trace.ErrMalformedRecord))
		Expect(logBuffer.String()).To(ContainSubstring("ERROR: core 1"))
	})

	It("should skip accesses rejected by the set lock", func() {
		gomock.InOrder(
			c.EXPECT().Read(gomock.Any(), gomock.Any()).
				Return(uint64(0), setlock.ErrIndexOutOfRange),
			c.EXPECT().Read(gomock.Any(), gomock.Any()).
				Return(uint64(1), nil),
		)

		err := core.Run(trace.NewReader(strings.NewReader("0 10\n0 20\n")))

		Expect(err).NotTo(HaveOccurred())
		Expect(logBuffer.String()).To(ContainSubstring("skipping read"))
	})

	It("should stop on a protocol invariant violation", func() {
		c.EXPECT().Write(gomock.Any(), gomock.Any()).
			Return(uint64(0), cache.ErrProtocolInvariant)

		err := core.Run(trace.NewReader(strings.NewReader("1 10\n1 20\n")))

		Expect(err).To(MatchError(cache.ErrProtocolInvariant))
	})

	It("should stop when the trace cannot be read", func() {
		src := NewMockRequestSource(mockCtrl)
		readErr := errors.New("disk on fire")
		src.EXPECT().Next().Return(trace.Request{}, readErr)

		err := core.Run(src)

		Expect(err).To(MatchError(readErr))
	})

	It("should report progress", func() {
		src := NewMockRequestSource(mockCtrl)
		calls := 0
		src.EXPECT().Next().DoAndReturn(func() (trace.Request, error) {
			calls++
			if calls > progressBatch+3 {
				return trace.Request{}, io.EOF
			}
			return trace.Request{Kind: trace.Compute, Operand: 1}, nil
		}).AnyTimes()

		var reports []uint64
		core.SetProgressFunc(func(n uint64) {
			reports = append(reports, n)
		})

		Expect(core.Run(src)).To(Succeed())
		Expect(reports).To(Equal([]uint64{progressBatch, 3}))
	})
})
