package cache

import (
	"github.com/sarchlab/coherence/cache/internal/tagging"
	"github.com/sarchlab/coherence/protocol"
)

// dragonRules never invalidate; other copies are updated instead.
type dragonRules struct{}

func (dragonRules) isStale(protocol.State) bool {
	return false
}

func (dragonRules) readHit(c *Cache, block *tagging.Block) uint64 {
	c.countAccess(block.State)
	return HitCycles
}

func (dragonRules) writeHit(c *Cache, block *tagging.Block) uint64 {
	switch block.State {
	case protocol.DragonModified:
		c.privateAccesses++
	case protocol.ExclusiveClean:
		c.privateAccesses++
		block.State = protocol.DragonModified
	case protocol.SharedClean, protocol.SharedModified:
		if !c.bus.BusRead(c.pid, block.SetID, block.Tag).Found {
			c.privateAccesses++
			block.State = protocol.DragonModified

			return HitCycles
		}

		c.sharedAccesses++
		block.State = protocol.SharedModified

		updates := uint64(c.bus.BusUpdate(c.pid, block.SetID, block.Tag))
		c.updates += updates
		c.dataTraffic.Add(updates)

		return HitCycles + updates*c.transferCycles()
	}

	return HitCycles
}

func (dragonRules) readMiss(
	c *Cache,
	setIndex, tag int,
) (protocol.State, uint64) {
	if !c.bus.BusRead(c.pid, setIndex, tag).Found {
		c.privateAccesses++
		return protocol.ExclusiveClean, MemoryCycles
	}

	c.sharedAccesses++

	return protocol.SharedClean, c.transferCycles()
}

func (dragonRules) writeMiss(
	c *Cache,
	setIndex, tag int,
) (protocol.State, uint64) {
	if !c.bus.BusRead(c.pid, setIndex, tag).Found {
		c.privateAccesses++
		return protocol.DragonModified, MemoryCycles
	}

	cycles := c.transferCycles()

	updates := uint64(c.bus.BusUpdate(c.pid, setIndex, tag))
	c.updates += updates
	c.dataTraffic.Add(updates)
	c.sharedAccesses++

	return protocol.SharedModified, cycles + updates*c.transferCycles()
}
