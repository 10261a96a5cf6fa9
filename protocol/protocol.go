// Package protocol defines the coherence protocols supported by the simulator
// and the cache-line states each of them uses.
package protocol

import (
	"fmt"
	"strings"
)

// Protocol selects the coherence protocol used by every cache in a run.
type Protocol int

// The supported protocols.
const (
	MESI Protocol = iota
	Dragon
)

func (p Protocol) String() string {
	switch p {
	case MESI:
		return "MESI"
	case Dragon:
		return "Dragon"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// Parse converts a protocol name into a Protocol. Matching is exact on the
// canonical names, "MESI" and "Dragon", as accepted on the command line.
func Parse(name string) (Protocol, error) {
	switch name {
	case "MESI":
		return MESI, nil
	case "Dragon":
		return Dragon, nil
	}

	return 0, fmt.Errorf(
		"unknown protocol %s, only MESI and Dragon are supported", name)
}

// State is the coherence state of a cache line.
type State uint8

// MESI states.
const (
	Modified State = iota + 1
	Exclusive
	Shared
	Invalid
)

// Dragon states.
const (
	ExclusiveClean State = iota + 16
	SharedClean
	SharedModified
	DragonModified

	// NotFound is only ever returned as the absent sentinel of a Dragon cache.
	// No line is stored in this state.
	NotFound
)

var stateNames = map[State]string{
	Modified:       "M",
	Exclusive:      "E",
	Shared:         "S",
	Invalid:        "I",
	ExclusiveClean: "Ed",
	SharedClean:    "Sc",
	SharedModified: "Sm",
	DragonModified: "Md",
	NotFound:       "NotFound",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return fmt.Sprintf("State(%d)", uint8(s))
	}

	return name
}

// Absent returns the sentinel state a cache of the given protocol reports for
// a tag it does not hold.
func (p Protocol) Absent() State {
	if p == Dragon {
		return NotFound
	}

	return Invalid
}

// Owns reports whether the state belongs to the protocol's state set. The
// absent sentinel is not owned.
func (p Protocol) Owns(s State) bool {
	switch p {
	case MESI:
		return s >= Modified && s <= Invalid
	case Dragon:
		return s >= ExclusiveClean && s <= DragonModified
	default:
		return false
	}
}

// IsDirty reports whether evicting a line in this state requires a write-back.
func (s State) IsDirty() bool {
	return s == Modified || s == DragonModified || s == SharedModified
}

// IsPrivate reports whether an access hitting a line in this state counts as
// an access to private data.
func (s State) IsPrivate() bool {
	switch s {
	case Modified, Exclusive, DragonModified, ExclusiveClean:
		return true
	default:
		return false
	}
}

// SnoopResult is the answer of a bus read. Found is false when no other cache
// holds a valid copy of the block, in which case State is meaningless.
type SnoopResult struct {
	Found bool
	State State
}

// AccessKind identifies the local processor operation that touches a cache.
type AccessKind int

// The processor operations.
const (
	Read AccessKind = iota
	Write
)

func (k AccessKind) String() string {
	if k == Write {
		return "write"
	}

	return "read"
}

// ParseAccessKind is the inverse of AccessKind.String.
func ParseAccessKind(s string) (AccessKind, error) {
	switch strings.ToLower(s) {
	case "read":
		return Read, nil
	case "write":
		return Write, nil
	}

	return 0, fmt.Errorf("unknown access kind %q", s)
}
