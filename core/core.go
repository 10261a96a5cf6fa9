// Package core drives one simulated processor: it replays a trace against the
// processor's private cache and accounts the cycles the processor spends.
package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/sarchlab/coherence/cache"
	"github.com/sarchlab/coherence/geometry"
	"github.com/sarchlab/coherence/setlock"
	"github.com/sarchlab/coherence/trace"
)

// progressBatch is the number of records a core replays between two progress
// reports.
const progressBatch = 4096

// Cache is the private cache a core issues its memory accesses to.
type Cache interface {
	Read(setIndex, tag int) (uint64, error)
	Write(setIndex, tag int) (uint64, error)
	Stats() cache.Stats
}

// RequestSource supplies the records a core replays.
type RequestSource interface {
	Next() (trace.Request, error)
}

// ProgressFunc receives the number of records replayed since the previous
// call.
type ProgressFunc func(n uint64)

// Snapshot holds the counters of a core after its run.
type Snapshot struct {
	PID      int
	Total    uint64
	Compute  uint64
	MemInstr uint64
	Idle     uint64
	Cache    cache.Stats
}

// A Core replays one trace.
type Core struct {
	pid      int
	cache    Cache
	geometry geometry.Geometry
	logger   *log.Logger
	progress ProgressFunc

	compute  uint64
	memInstr uint64

	// Other cores credit stall cycles through the bus.
	idle atomic.Uint64
}

// New creates the core pid, issuing its accesses to c.
func New(pid int, c Cache, g geometry.Geometry, logger *log.Logger) *Core {
	return &Core{
		pid:      pid,
		cache:    c,
		geometry: g,
		logger:   logger,
	}
}

// PID returns the ID of the core.
func (c *Core) PID() int {
	return c.pid
}

// SetProgressFunc registers a function notified while the trace is replayed.
func (c *Core) SetProgressFunc(f ProgressFunc) {
	c.progress = f
}

// AddIdleCycles accounts cycles the core stalls. It is safe for concurrent
// use.
func (c *Core) AddIdleCycles(n uint64) {
	c.idle.Add(n)
}

// Run replays the requests of src until it is exhausted. A malformed record,
// a read failure or a protocol invariant violation stops the core. Accesses
// rejected by the set lock are logged and skipped.
func (c *Core) Run(src RequestSource) error {
	var pending uint64
	defer func() {
		c.reportProgress(pending)
	}()

	for {
		req, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			c.logger.Printf("ERROR: core %d: %v", c.pid, err)
			return fmt.Errorf("core %d: %w", c.pid, err)
		}

		err = c.execute(req)
		if err != nil {
			return err
		}

		pending++
		if pending == progressBatch {
			c.reportProgress(pending)
			pending = 0
		}
	}
}

func (c *Core) execute(req trace.Request) error {
	if req.Kind == trace.Compute {
		c.compute += req.Operand
		return nil
	}

	c.memInstr++
	setIndex, tag := c.geometry.Decode(req.Operand)

	var (
		cycles uint64
		err    error
	)

	if req.Kind == trace.Read {
		cycles, err = c.cache.Read(setIndex, tag)
	} else {
		cycles, err = c.cache.Write(setIndex, tag)
	}

	c.idle.Add(cycles)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, setlock.ErrIndexOutOfRange):
		c.logger.Printf("ERROR: core %d: skipping %s of 0x%x: %v",
			c.pid, req.Kind, req.Operand, err)
		return nil
	default:
		c.logger.Printf("ERROR: core %d: %v", c.pid, err)
		return fmt.Errorf("core %d: %w", c.pid, err)
	}
}

func (c *Core) reportProgress(n uint64) {
	if c.progress != nil && n > 0 {
		c.progress(n)
	}
}

// Snapshot returns the counters of the core. It must only be called when no
// core is running.
func (c *Core) Snapshot() Snapshot {
	idle := c.idle.Load()

	return Snapshot{
		PID:      c.pid,
		Total:    c.compute + idle,
		Compute:  c.compute,
		MemInstr: c.memInstr,
		Idle:     idle,
		Cache:    c.cache.Stats(),
	}
}

// MissRate returns the fraction of memory instructions that missed.
func (s Snapshot) MissRate() float64 {
	if s.MemInstr == 0 {
		return 0
	}

	return float64(s.Cache.Misses) / float64(s.MemInstr)
}
