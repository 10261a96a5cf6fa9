// Package bus implements the shared snooping bus that connects the private
// caches of a run.
package bus

import (
	"fmt"
	"sync"

	"github.com/sarchlab/coherence/protocol"
)

// StallCycles is the number of cycles a core stalls when it must give up a
// dirty block to serve another core's transaction.
const StallCycles = 100

// Snooper is the view the bus has of a cache. The bus only calls it while the
// requesting core holds the lock of the set involved.
type Snooper interface {
	// Lookup reports the state of the line holding the tag, if any.
	Lookup(setIndex, tag int) (protocol.State, bool)

	// SetState changes the state of the line holding the tag, if any.
	SetState(setIndex, tag int, state protocol.State)

	// AddTraffic accounts a block the cache puts on the bus.
	AddTraffic(n uint64)
}

// StallRecorder is the core an attached cache belongs to. AddIdleCycles is
// called from the goroutine of the requesting core and must be safe for
// concurrent use.
type StallRecorder interface {
	AddIdleCycles(n uint64)
}

// Stats counts the transactions a bus carried.
type Stats struct {
	Reads         uint64
	Updates       uint64
	RemoteHits    uint64
	LinesAffected uint64
	Stalls        uint64
}

type port struct {
	snooper Snooper
	core    StallRecorder
}

// A Bus broadcasts the transactions of one core to all the other caches.
type Bus struct {
	lock     sync.Mutex
	protocol protocol.Protocol
	optimize bool
	rules    snoopRules
	ports    []port
	stats    Stats
}

// New creates a bus for the protocol. With optimize set, MESI invalidations
// of modified lines do not stall the core that loses the line.
func New(p protocol.Protocol, optimize bool) *Bus {
	return &Bus{
		protocol: p,
		optimize: optimize,
		rules:    rulesFor(p),
	}
}

// Connect attaches a cache and the core that owns it. Caches are scanned in
// the order they are connected; the returned index is the core's pid.
func (b *Bus) Connect(snooper Snooper, core StallRecorder) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.ports = append(b.ports, port{snooper: snooper, core: core})

	return len(b.ports) - 1
}

// NumPorts returns the number of caches attached.
func (b *Bus) NumPorts() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.ports)
}

// Protocol returns the protocol of the bus.
func (b *Bus) Protocol() protocol.Protocol {
	return b.protocol
}

// BusRead looks for another copy of the block. The first cache, in pid order,
// holding a valid copy supplies it and has its copy downgraded.
func (b *Bus) BusRead(pid, setIndex, tag int) protocol.SnoopResult {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.stats.Reads++

	for i, p := range b.ports {
		if i == pid {
			continue
		}

		state, found := p.snooper.Lookup(setIndex, tag)
		if !found || !b.rules.isValid(state) {
			continue
		}

		newState, writeBack := b.rules.onRead(state)
		if writeBack {
			p.snooper.AddTraffic(1)
			p.core.AddIdleCycles(StallCycles)
			b.stats.Stalls++
		}

		p.snooper.SetState(setIndex, tag, newState)
		b.stats.RemoteHits++

		return protocol.SnoopResult{Found: true, State: state}
	}

	return protocol.SnoopResult{}
}

// BusUpdate applies a write of the block to every other cache holding a valid
// copy and returns how many caches were affected.
func (b *Bus) BusUpdate(pid, setIndex, tag int) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.stats.Updates++

	count := 0
	for i, p := range b.ports {
		if i == pid {
			continue
		}

		state, found := p.snooper.Lookup(setIndex, tag)
		if !found || !b.rules.isValid(state) {
			continue
		}

		count++

		newState, stall := b.rules.onUpdate(state, b.optimize)
		p.snooper.SetState(setIndex, tag, newState)

		if stall {
			p.core.AddIdleCycles(StallCycles)
			b.stats.Stalls++
		}
	}

	b.stats.LinesAffected += uint64(count)

	return count
}

// Stats returns the transaction counters.
func (b *Bus) Stats() Stats {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.stats
}

// snoopRules are the reactions of a remote cache to bus transactions.
type snoopRules interface {
	isValid(state protocol.State) bool

	// onRead returns the new state of a copy that supplies a block and
	// whether supplying it requires a write-back.
	onRead(state protocol.State) (newState protocol.State, writeBack bool)

	// onUpdate returns the new state of a copy hit by an update and whether
	// its core stalls.
	onUpdate(
		state protocol.State,
		optimize bool,
	) (newState protocol.State, stall bool)
}

func rulesFor(p protocol.Protocol) snoopRules {
	switch p {
	case protocol.MESI:
		return mesiSnoop{}
	case protocol.Dragon:
		return dragonSnoop{}
	default:
		panic(fmt.Sprintf("unknown protocol %s", p))
	}
}
