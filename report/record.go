package report

import (
	"errors"

	"github.com/rs/xid"

	"github.com/sarchlab/coherence/datarecording"
)

// Tables written by Record.
const (
	RunsTable      = "runs"
	CoreStatsTable = "core_stats"
)

// RunEntry is a row of the runs table.
type RunEntry struct {
	RunID            string
	Arguments        string
	Protocol         string
	Benchmark        string
	CacheSize        int
	Associativity    int
	BlockSize        int
	Optimize         bool
	AvgTotal         uint64
	AvgIdle          uint64
	AvgMissRate      float64
	DataTrafficBytes uint64
	Updates          uint64
	BusReads         uint64
	BusUpdates       uint64
	BusStalls        uint64
}

// CoreStatsEntry is a row of the core_stats table.
type CoreStatsEntry struct {
	RunID           string
	PID             int
	Total           uint64
	Compute         uint64
	MemInstr        uint64
	Idle            uint64
	Misses          uint64
	MissRate        float64
	DataTraffic     uint64
	Updates         uint64
	PrivateAccesses uint64
	SharedAccesses  uint64
}

// Record writes the summary to the recorder under a new run ID, which it
// returns.
func (s Summary) Record(recorder datarecording.DataRecorder) (string, error) {
	err := errors.Join(
		recorder.CreateTable(RunsTable, RunEntry{}),
		recorder.CreateTable(CoreStatsTable, CoreStatsEntry{}),
	)
	if err != nil {
		return "", err
	}

	runID := xid.New().String()
	cfg := s.Config

	err = recorder.InsertData(RunsTable, RunEntry{
		RunID:            runID,
		Arguments:        cfg.Arguments(),
		Protocol:         cfg.Protocol.String(),
		Benchmark:        string(cfg.Benchmark),
		CacheSize:        cfg.CacheSize,
		Associativity:    cfg.Associativity,
		BlockSize:        cfg.BlockSize,
		Optimize:         cfg.Optimize,
		AvgTotal:         s.AvgTotal,
		AvgIdle:          s.AvgIdle,
		AvgMissRate:      s.AvgMissRate,
		DataTrafficBytes: s.DataTrafficBytes,
		Updates:          s.Updates,
		BusReads:         s.Bus.Reads,
		BusUpdates:       s.Bus.Updates,
		BusStalls:        s.Bus.Stalls,
	})
	if err != nil {
		return "", err
	}

	for _, c := range s.Cores {
		err = recorder.InsertData(CoreStatsTable, CoreStatsEntry{
			RunID:           runID,
			PID:             c.PID,
			Total:           c.Total,
			Compute:         c.Compute,
			MemInstr:        c.MemInstr,
			Idle:            c.Idle,
			Misses:          c.Misses,
			MissRate:        c.MissRate,
			DataTraffic:     c.DataTraffic,
			Updates:         c.Updates,
			PrivateAccesses: c.PrivateAccesses,
			SharedAccesses:  c.SharedAccesses,
		})
		if err != nil {
			return "", err
		}
	}

	return runID, recorder.Flush()
}
