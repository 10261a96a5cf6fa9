package cache

import (
	"github.com/sarchlab/coherence/cache/internal/tagging"
	"github.com/sarchlab/coherence/protocol"
)

type mesiRules struct{}

func (mesiRules) isStale(state protocol.State) bool {
	return state == protocol.Invalid
}

func (mesiRules) readHit(c *Cache, block *tagging.Block) uint64 {
	c.countAccess(block.State)
	return HitCycles
}

func (mesiRules) writeHit(c *Cache, block *tagging.Block) uint64 {
	switch block.State {
	case protocol.Modified:
		c.privateAccesses++
	case protocol.Exclusive:
		c.privateAccesses++
		block.State = protocol.Modified
	case protocol.Shared:
		c.sharedAccesses++
		block.State = protocol.Modified

		// Only the invalidation is sent, not the word.
		invalidations := uint64(c.bus.BusUpdate(c.pid, block.SetID, block.Tag))
		c.updates += invalidations

		return HitCycles + 2*invalidations
	}

	return HitCycles
}

func (mesiRules) readMiss(
	c *Cache,
	setIndex, tag int,
) (protocol.State, uint64) {
	if !c.bus.BusRead(c.pid, setIndex, tag).Found {
		c.privateAccesses++
		return protocol.Exclusive, MemoryCycles
	}

	c.sharedAccesses++

	return protocol.Shared, c.transferCycles()
}

func (mesiRules) writeMiss(
	c *Cache,
	setIndex, tag int,
) (protocol.State, uint64) {
	if !c.bus.BusRead(c.pid, setIndex, tag).Found {
		c.privateAccesses++
		return protocol.Modified, MemoryCycles
	}

	cycles := c.transferCycles()

	invalidations := uint64(c.bus.BusUpdate(c.pid, setIndex, tag))
	c.updates += invalidations
	c.sharedAccesses++

	return protocol.Modified, cycles + 2*invalidations
}
