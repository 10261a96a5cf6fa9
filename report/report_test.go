package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coherence/bus"
	"github.com/sarchlab/coherence/cache"
	"github.com/sarchlab/coherence/config"
	"github.com/sarchlab/coherence/core"
	"github.com/sarchlab/coherence/datarecording"
	"github.com/sarchlab/coherence/protocol"
	"github.com/sarchlab/coherence/trace"
)

func sampleSummary() Summary {
	cfg := config.Default()
	cfg.Protocol = protocol.Dragon
	cfg.Benchmark = trace.Bodytrack

	snapshots := []core.Snapshot{
		{
			PID: 0, Total: 300, Compute: 100, MemInstr: 4, Idle: 200,
			Cache: cache.Stats{
				Misses: 1, DataTraffic: 2, Updates: 3,
				PrivateAccesses: 3, SharedAccesses: 0,
			},
		},
		{
			PID: 1, Total: 101, Compute: 1, MemInstr: 2, Idle: 100,
			Cache: cache.Stats{
				Misses: 2, DataTraffic: 1, Updates: 0,
				PrivateAccesses: 0, SharedAccesses: 1,
			},
		},
	}

	return NewSummary(cfg, snapshots, bus.Stats{Reads: 3, Updates: 2})
}

var _ = Describe("Summary", func() {
	var s Summary

	BeforeEach(func() {
		s = sampleSummary()
	})

	It("should aggregate the cores", func() {
		Expect(s.Cores).To(HaveLen(2))
		Expect(s.Cores[0].MissRate).To(Equal(0.25))
		Expect(s.Cores[1].MissRate).To(Equal(1.0))
		Expect(s.DataTrafficBytes).To(Equal(uint64(3 * 32)))
		Expect(s.Updates).To(Equal(uint64(3)))
		Expect(s.AvgTotal).To(Equal(uint64(200)))
		Expect(s.AvgIdle).To(Equal(uint64(150)))
		Expect(s.AvgMissRate).To(Equal(0.625))
	})

	It("should not divide by zero without memory instructions", func() {
		empty := NewSummary(config.Default(),
			[]core.Snapshot{{PID: 0, Compute: 5, Total: 5}}, bus.Stats{})

		Expect(empty.Cores[0].MissRate).To(BeZero())
		Expect(empty.AvgMissRate).To(BeZero())
	})

	It("should write the eight sections", func() {
		buf := new(bytes.Buffer)

		n, err := s.WriteTo(buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(buf.Len())))

		out := buf.String()
		Expect(out).To(HavePrefix("Input: Dragon_bodytrack_4096_2_32\n"))
		for _, title := range []string{
			"1. Overall execution cycle per core",
			"2. Number of compute cycles per core",
			"3. Number of load/store instructions per core",
			"4. Number of idle cycles per core",
			"5. Data cache miss rate for each core",
			"6. Amount of Data traffic in bytes on the bus",
			"7. Number of invalidations or updates on the bus",
			"8. Distribution of accesses to private data versus shared data",
		} {
			Expect(out).To(ContainSubstring("------------------------------\n" +
				title + "\n"))
		}
		Expect(out).To(ContainSubstring(
			"1. Overall execution cycle per core\nCore 0: 300\nCore 1: 101\n"))
		Expect(out).To(ContainSubstring("Core 0: 0.25\n"))
		Expect(out).To(ContainSubstring(
			"6. Amount of Data traffic in bytes on the bus\n96\n"))
		Expect(out).To(ContainSubstring(
			"Core 1: Private accesses = 0 | Shared accesses = 1\n"))
		Expect(out).To(HaveSuffix("================== END ==================\n" +
			"=========================================\n"))
	})

	It("should never clobber an existing log", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "results")

		first, err := s.WriteLog(dir)
		Expect(err).NotTo(HaveOccurred())
		second, err := s.WriteLog(dir)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(Equal(filepath.Join(dir, "Dragon_bodytrack_4096_2_32_1.log")))
		Expect(second).To(Equal(filepath.Join(dir, "Dragon_bodytrack_4096_2_32_2.log")))

		content, err := os.ReadFile(second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(HavePrefix("Input: "))
	})

	It("should append analysis rows", func() {
		path := filepath.Join(GinkgoT().TempDir(), "Dragon_bodytrack.csv")

		Expect(s.AppendAnalysis(path)).To(Succeed())
		Expect(s.AppendAnalysis(path)).To(Succeed())

		content, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(Equal("4096,2,32,64,8,200,150,0.625,3"))
	})

	It("should record the run in the database", func() {
		path := filepath.Join(GinkgoT().TempDir(), "runs")
		recorder, err := datarecording.New(path)
		Expect(err).NotTo(HaveOccurred())

		runID, err := s.Record(recorder)
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(RunsTable, RunEntry{})
		runs, _, err := reader.Query(context.Background(), RunsTable,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))

		run := runs[0].(*RunEntry)
		Expect(run.RunID).To(Equal(runID))
		Expect(run.Arguments).To(Equal("Dragon_bodytrack_4096_2_32"))
		Expect(run.BusReads).To(Equal(uint64(3)))

		reader.MapTable(CoreStatsTable, CoreStatsEntry{})
		cores, count, err := reader.Query(context.Background(), CoreStatsTable,
			datarecording.QueryParams{
				Where: "RunID = ?",
				Args:  []any{runID},
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
		Expect(cores[1].(*CoreStatsEntry).Idle).To(Equal(uint64(100)))
	})
})
