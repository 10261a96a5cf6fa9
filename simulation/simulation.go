// Package simulation assembles the machine of a run and replays one trace per
// core on it, with every core running in its own goroutine.
package simulation

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/sarchlab/coherence/bus"
	"github.com/sarchlab/coherence/cache"
	"github.com/sarchlab/coherence/config"
	"github.com/sarchlab/coherence/core"
	"github.com/sarchlab/coherence/report"
	"github.com/sarchlab/coherence/setlock"
)

// A Simulation is one machine: a set lock, a bus, and a cache and a core per
// processor.
type Simulation struct {
	config  config.Config
	logger  *log.Logger
	setLock *setlock.SetLock
	bus     *bus.Bus
	caches  []*cache.Cache
	cores   []*core.Core
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() config.Config {
	return s.config
}

// Cores returns the cores, indexed by pid.
func (s *Simulation) Cores() []*core.Core {
	return s.cores
}

// Caches returns the caches, indexed by pid.
func (s *Simulation) Caches() []*cache.Cache {
	return s.caches
}

// Run replays sources[pid] on core pid, all cores in parallel, and returns
// when every core is done. The errors of the cores that stopped early are
// joined.
func (s *Simulation) Run(sources []core.RequestSource) error {
	if len(sources) != len(s.cores) {
		return fmt.Errorf("%d traces for %d cores", len(sources), len(s.cores))
	}

	errs := make([]error, len(s.cores))

	var wg sync.WaitGroup
	for pid, c := range s.cores {
		pid, c := pid, c
		wg.Add(1)

		go func() {
			defer wg.Done()
			errs[pid] = c.Run(sources[pid])
		}()
	}

	wg.Wait()

	return errors.Join(errs...)
}

// RunTraces replays the benchmark traces found under the trace directory of
// the configuration.
func (s *Simulation) RunTraces() error {
	var (
		closers []io.Closer
		sources []core.RequestSource
	)

	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for pid := range s.cores {
		f, r, err := s.config.Benchmark.Open(s.config.TraceDir, pid)
		if err != nil {
			return err
		}

		closers = append(closers, f)
		sources = append(sources, r)
	}

	return s.Run(sources)
}

// Snapshots returns the counters of the cores. It must only be called when
// the cores are not running.
func (s *Simulation) Snapshots() []core.Snapshot {
	snapshots := make([]core.Snapshot, 0, len(s.cores))
	for _, c := range s.cores {
		snapshots = append(snapshots, c.Snapshot())
	}

	return snapshots
}

// BusStats returns the transaction counters of the bus.
func (s *Simulation) BusStats() bus.Stats {
	return s.bus.Stats()
}

// Summary aggregates the outcome of the run.
func (s *Simulation) Summary() report.Summary {
	return report.NewSummary(s.config, s.Snapshots(), s.BusStats())
}
