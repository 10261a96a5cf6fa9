package tagging

// A VictimFinder decides which block should hold a newly fetched line.
type VictimFinder interface {
	FindVictim(tags Tags, setID int) Block
}

// LRUVictimFinder picks an empty way if there is one, and the least recently
// used block otherwise.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the block to replace. The returned block is still valid
// when the set is full; the caller must evict it.
func (e *LRUVictimFinder) FindVictim(tags Tags, setID int) Block {
	set := tags.GetSet(setID)

	for _, wayID := range set.LRUQueue {
		block := set.Blocks[wayID]
		if !block.IsValid {
			return block
		}
	}

	return set.Blocks[set.LRUQueue[0]]
}
