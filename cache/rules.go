package cache

import (
	"errors"
	"fmt"

	"github.com/sarchlab/coherence/cache/internal/tagging"
	"github.com/sarchlab/coherence/protocol"
)

// Cycle costs.
const (
	HitCycles       = 1
	MemoryCycles    = 100
	WriteBackCycles = 100
)

// ErrProtocolInvariant is wrapped by InvariantError.
var ErrProtocolInvariant = errors.New("protocol invariant violated")

// InvariantError reports a line found in a state its protocol cannot produce.
// It means the state machine and the line bookkeeping have diverged.
type InvariantError struct {
	PID      int
	Protocol protocol.Protocol
	SetIndex int
	Tag      int
	State    protocol.State
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf(
		"core %d: %s line for tag %d in set %d is in impossible state %s",
		e.PID, e.Protocol, e.Tag, e.SetIndex, e.State)
}

func (e *InvariantError) Unwrap() error {
	return ErrProtocolInvariant
}

func (c *Cache) invariantError(block tagging.Block) error {
	return &InvariantError{
		PID:      c.pid,
		Protocol: c.protocol,
		SetIndex: block.SetID,
		Tag:      block.Tag,
		State:    block.State,
	}
}

// coherenceRules are the protocol-specific state transitions. The cache holds
// the set lock whenever a rule runs. Hit rules change the block in place; the
// cache writes it back.
type coherenceRules interface {
	isStale(state protocol.State) bool
	readHit(c *Cache, block *tagging.Block) uint64
	writeHit(c *Cache, block *tagging.Block) uint64
	readMiss(c *Cache, setIndex, tag int) (protocol.State, uint64)
	writeMiss(c *Cache, setIndex, tag int) (protocol.State, uint64)
}

func rulesFor(p protocol.Protocol) coherenceRules {
	switch p {
	case protocol.MESI:
		return mesiRules{}
	case protocol.Dragon:
		return dragonRules{}
	default:
		panic(fmt.Sprintf("unknown protocol %s", p))
	}
}

// transferCycles is the cost of moving one block between two caches.
func (c *Cache) transferCycles() uint64 {
	return uint64(2 * c.geometry.WordsPerBlock())
}
