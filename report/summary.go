// Package report aggregates the counters of a finished run and writes them
// out as a log file, an analysis CSV row and database rows.
package report

import (
	"github.com/sarchlab/coherence/bus"
	"github.com/sarchlab/coherence/config"
	"github.com/sarchlab/coherence/core"
)

// CoreSummary is what one core did during the run.
type CoreSummary struct {
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

// Summary is the outcome of a run.
type Summary struct {
	Config config.Config
	Cores  []CoreSummary
	Bus    bus.Stats

	// DataTrafficBytes is the number of bytes moved on the bus by all
	// cores.
	DataTrafficBytes uint64
	Updates          uint64

	AvgTotal    uint64
	AvgIdle     uint64
	AvgMissRate float64
}

// NewSummary aggregates the snapshots of the cores of a run.
func NewSummary(
	cfg config.Config,
	snapshots []core.Snapshot,
	busStats bus.Stats,
) Summary {
	s := Summary{
		Config: cfg,
		Bus:    busStats,
	}

	var total, idle uint64
	var missRate float64

	for _, snap := range snapshots {
		c := CoreSummary{
			PID:             snap.PID,
			Total:           snap.Total,
			Compute:         snap.Compute,
			MemInstr:        snap.MemInstr,
			Idle:            snap.Idle,
			Misses:          snap.Cache.Misses,
			MissRate:        snap.MissRate(),
			DataTraffic:     snap.Cache.DataTraffic,
			Updates:         snap.Cache.Updates,
			PrivateAccesses: snap.Cache.PrivateAccesses,
			SharedAccesses:  snap.Cache.SharedAccesses,
		}
		s.Cores = append(s.Cores, c)

		total += c.Total
		idle += c.Idle
		missRate += c.MissRate
		s.DataTrafficBytes += c.DataTraffic * uint64(cfg.BlockSize)
		s.Updates += c.Updates
	}

	if n := len(snapshots); n > 0 {
		s.AvgTotal = total / uint64(n)
		s.AvgIdle = idle / uint64(n)
		s.AvgMissRate = missRate / float64(n)
	}

	return s
}
