// Package cache implements the private, set-associative, LRU-managed cache of
// a simulated core, with the MESI and Dragon coherence protocols.
package cache

import (
	"log"
	"sync/atomic"

	"github.com/sarchlab/coherence/cache/internal/tagging"
	"github.com/sarchlab/coherence/geometry"
	"github.com/sarchlab/coherence/hooking"
	"github.com/sarchlab/coherence/protocol"
	"github.com/sarchlab/coherence/setlock"
)

// Bus is the shared bus a cache issues its transactions on.
type Bus interface {
	// BusRead asks the other caches for a copy of the block.
	BusRead(pid, setIndex, tag int) protocol.SnoopResult

	// BusUpdate invalidates (MESI) or updates (Dragon) every other copy of
	// the block and returns how many caches were affected.
	BusUpdate(pid, setIndex, tag int) int
}

// Stats are the counters of a cache.
type Stats struct {
	Misses          uint64
	DataTraffic     uint64
	Updates         uint64
	PrivateAccesses uint64
	SharedAccesses  uint64
}

// A Cache is the private cache of one core.
//
// Read and Write are called by the owning core only. Lookup, State and
// SetState are called by the bus on behalf of other cores; they do not lock
// because the requesting core already holds the lock of the set.
type Cache struct {
	hooking.HookableBase

	pid          int
	protocol     protocol.Protocol
	geometry     geometry.Geometry
	tags         tagging.Tags
	victimFinder tagging.VictimFinder
	setLock      *setlock.SetLock
	bus          Bus
	rules        coherenceRules
	logger       *log.Logger

	misses          uint64
	updates         uint64
	privateAccesses uint64
	sharedAccesses  uint64

	// Remote cores account write-backs they force on this cache.
	dataTraffic atomic.Uint64
}

// PID returns the ID of the core that owns the cache.
func (c *Cache) PID() int {
	return c.pid
}

// Protocol returns the coherence protocol of the cache.
func (c *Cache) Protocol() protocol.Protocol {
	return c.protocol
}

// Read performs a processor read and returns the number of cycles it takes.
func (c *Cache) Read(setIndex, tag int) (uint64, error) {
	return c.access(protocol.Read, setIndex, tag)
}

// Write performs a processor write and returns the number of cycles it takes.
func (c *Cache) Write(setIndex, tag int) (uint64, error) {
	return c.access(protocol.Write, setIndex, tag)
}

func (c *Cache) access(
	kind protocol.AccessKind,
	setIndex, tag int,
) (uint64, error) {
	err := c.setLock.Lock(setIndex)
	if err != nil {
		return 0, err
	}
	defer c.unlock(setIndex)

	access := hooking.Access{
		PID:      c.pid,
		Kind:     kind,
		SetIndex: setIndex,
		Tag:      tag,
	}
	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosBeforeAccess,
		Item:   access,
	})

	access.Cycles, access.Hit, access.Err = c.serve(kind, setIndex, tag)

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosAfterAccess,
		Item:   access,
	})

	return access.Cycles, access.Err
}

func (c *Cache) unlock(setIndex int) {
	err := c.setLock.Unlock(setIndex)
	if err != nil {
		c.logger.Printf("ERROR: core %d: %v", c.pid, err)
	}
}

func (c *Cache) serve(
	kind protocol.AccessKind,
	setIndex, tag int,
) (cycles uint64, hit bool, err error) {
	block, found := c.tags.Lookup(setIndex, tag)
	if found {
		if !c.protocol.Owns(block.State) {
			c.tags.Invalidate(block)
			err = c.invariantError(block)
			c.logger.Printf("ERROR: %v", err)

			return 0, false, err
		}

		if !c.rules.isStale(block.State) {
			return c.hit(kind, block), true, nil
		}

		// Invalidated by another core; the way is free again.
		c.tags.Invalidate(block)
	}

	return c.miss(kind, setIndex, tag), false, nil
}

func (c *Cache) hit(kind protocol.AccessKind, block tagging.Block) uint64 {
	var cycles uint64

	if kind == protocol.Read {
		cycles = c.rules.readHit(c, &block)
	} else {
		cycles = c.rules.writeHit(c, &block)
	}

	c.tags.Update(block)
	c.tags.Visit(block)

	return cycles
}

func (c *Cache) miss(kind protocol.AccessKind, setIndex, tag int) uint64 {
	cycles := c.evictIfFull(setIndex)

	c.misses++
	c.dataTraffic.Add(1)

	var (
		state protocol.State
		cost  uint64
	)

	if kind == protocol.Read {
		state, cost = c.rules.readMiss(c, setIndex, tag)
	} else {
		state, cost = c.rules.writeMiss(c, setIndex, tag)
	}

	block := c.victimFinder.FindVictim(c.tags, setIndex)
	block.Tag = tag
	block.State = state
	block.IsValid = true
	c.tags.Update(block)
	c.tags.Visit(block)

	return cycles + cost
}

// evictIfFull makes room for one line in the set and returns the cycles spent
// writing the evicted line back.
func (c *Cache) evictIfFull(setIndex int) uint64 {
	victim := c.victimFinder.FindVictim(c.tags, setIndex)
	if !victim.IsValid {
		return 0
	}

	c.tags.Invalidate(victim)

	if victim.State.IsDirty() {
		c.dataTraffic.Add(1)
		return WriteBackCycles
	}

	return 0
}

// Lookup reports whether the cache holds a line for the tag and, if so, its
// state. Stale MESI lines are reported as present in the Invalid state.
func (c *Cache) Lookup(setIndex, tag int) (protocol.State, bool) {
	block, found := c.tags.Lookup(setIndex, tag)
	if !found {
		return 0, false
	}

	return block.State, true
}

// State returns the state of the line holding the tag, or the absent sentinel
// of the protocol if there is no such line.
func (c *Cache) State(setIndex, tag int) protocol.State {
	state, found := c.Lookup(setIndex, tag)
	if !found {
		return c.protocol.Absent()
	}

	return state
}

// SetState changes the state of the line holding the tag. It does nothing if
// there is no such line.
func (c *Cache) SetState(setIndex, tag int, state protocol.State) {
	block, found := c.tags.Lookup(setIndex, tag)
	if !found {
		return
	}

	block.State = state
	c.tags.Update(block)
}

// AddTraffic accounts data transfers this cache performs on behalf of a bus
// transaction issued by another core.
func (c *Cache) AddTraffic(n uint64) {
	c.dataTraffic.Add(n)
}

// NumLines returns the number of lines held in the set.
func (c *Cache) NumLines(setIndex int) int {
	return c.tags.Size(setIndex)
}

// Stats returns the counters. It must only be called when no core is running.
func (c *Cache) Stats() Stats {
	return Stats{
		Misses:          c.misses,
		DataTraffic:     c.dataTraffic.Load(),
		Updates:         c.updates,
		PrivateAccesses: c.privateAccesses,
		SharedAccesses:  c.sharedAccesses,
	}
}

func (c *Cache) countAccess(state protocol.State) {
	if state.IsPrivate() {
		c.privateAccesses++
	} else {
		c.sharedAccesses++
	}
}
