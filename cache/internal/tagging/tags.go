// Package tagging keeps the tag arrays of a cache: one fixed-size arena of
// ways per set and the recency order of those ways.
package tagging

import (
	"github.com/sarchlab/coherence/protocol"
)

// Tags is the tag array of one cache.
type Tags interface {
	NumSets() int
	NumWays() int
	Lookup(setID, tag int) (Block, bool)
	Update(block Block)
	Visit(block Block)
	Invalidate(block Block)
	GetSet(setID int) *Set
	Size(setID int) int
	Reset()
}

// NewTags creates a tag array with numSets sets of numWays ways each.
func NewTags(numSets, numWays int) Tags {
	t := &tagArrayImpl{
		numSets: numSets,
		numWays: numWays,
	}

	t.Reset()

	return t
}

// A Block is one way of a set. A block that does not hold a line has IsValid
// false. IsValid says nothing about the coherence state: a MESI line that was
// invalidated by another core is still a valid block in the Invalid state
// until its owner notices.
type Block struct {
	Tag     int
	State   protocol.State
	SetID   int
	WayID   int
	IsValid bool
}

// A Set is the ways a block can be stored at, with the ways ordered from the
// least recently used to the most recently used.
type Set struct {
	Blocks   []Block
	LRUQueue []int
}

type tagArrayImpl struct {
	numSets int
	numWays int
	sets    []Set
}

func (t *tagArrayImpl) NumSets() int {
	return t.numSets
}

func (t *tagArrayImpl) NumWays() int {
	return t.numWays
}

// GetSet returns the set of the given index.
func (t *tagArrayImpl) GetSet(setID int) *Set {
	return &t.sets[setID]
}

// Lookup finds the block holding the tag in the set.
func (t *tagArrayImpl) Lookup(setID, tag int) (Block, bool) {
	set := &t.sets[setID]
	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return Block{}, false
}

// Update writes the block information back into its way.
func (t *tagArrayImpl) Update(block Block) {
	t.sets[block.SetID].Blocks[block.WayID] = block
}

// Visit moves the block to the most recently used end of the queue.
func (t *tagArrayImpl) Visit(block Block) {
	set := &t.sets[block.SetID]

	pos := -1
	for i, wayID := range set.LRUQueue {
		if wayID == block.WayID {
			pos = i
			break
		}
	}

	if pos < 0 {
		return
	}

	copy(set.LRUQueue[pos:], set.LRUQueue[pos+1:])
	set.LRUQueue[len(set.LRUQueue)-1] = block.WayID
}

// Invalidate frees the way of the block.
func (t *tagArrayImpl) Invalidate(block Block) {
	way := &t.sets[block.SetID].Blocks[block.WayID]
	way.IsValid = false
	way.Tag = 0
	way.State = 0
}

// Size returns the number of lines held by the set.
func (t *tagArrayImpl) Size(setID int) int {
	n := 0
	for _, block := range t.sets[setID].Blocks {
		if block.IsValid {
			n++
		}
	}

	return n
}

// Reset empties every set.
func (t *tagArrayImpl) Reset() {
	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		t.sets[i].Blocks = make([]Block, t.numWays)
		t.sets[i].LRUQueue = make([]int, t.numWays)

		for j := 0; j < t.numWays; j++ {
			t.sets[i].Blocks[j] = Block{SetID: i, WayID: j}
			t.sets[i].LRUQueue[j] = j
		}
	}
}
