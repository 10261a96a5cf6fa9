package cache

import (
	"fmt"
	"log"
	"os"

	"github.com/sarchlab/coherence/cache/internal/tagging"
	"github.com/sarchlab/coherence/geometry"
	"github.com/sarchlab/coherence/protocol"
	"github.com/sarchlab/coherence/setlock"
)

// Builder can build caches.
type Builder struct {
	protocol protocol.Protocol
	geometry geometry.Geometry
	setLock  *setlock.SetLock
	bus      Bus
	logger   *log.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		protocol: protocol.MESI,
		geometry: geometry.Default(),
		logger:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// WithProtocol sets the coherence protocol of the cache.
func (b Builder) WithProtocol(p protocol.Protocol) Builder {
	b.protocol = p
	return b
}

// WithGeometry sets the size, associativity and block size of the cache.
func (b Builder) WithGeometry(g geometry.Geometry) Builder {
	b.geometry = g
	return b
}

// WithSetLock sets the lock array shared by all the caches of the run.
func (b Builder) WithSetLock(l *setlock.SetLock) Builder {
	b.setLock = l
	return b
}

// WithBus sets the bus the cache snoops on.
func (b Builder) WithBus(bus Bus) Builder {
	b.bus = bus
	return b
}

// WithLogger sets the logger that reports errors.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build builds the cache of core pid.
func (b Builder) Build(pid int) *Cache {
	b.mustBeValid()

	numSets := b.geometry.NumSets()

	return &Cache{
		pid:          pid,
		protocol:     b.protocol,
		geometry:     b.geometry,
		tags:         tagging.NewTags(numSets, b.geometry.Associativity),
		victimFinder: tagging.NewLRUVictimFinder(),
		setLock:      b.setLock,
		bus:          b.bus,
		rules:        rulesFor(b.protocol),
		logger:       b.logger,
	}
}

func (b Builder) mustBeValid() {
	err := b.geometry.Validate()
	if err != nil {
		panic(err)
	}

	if b.setLock == nil {
		panic("cache must share a set lock")
	}

	if b.setLock.NumSets() != b.geometry.NumSets() {
		panic(fmt.Sprintf("set lock has %d locks, cache has %d sets",
			b.setLock.NumSets(), b.geometry.NumSets()))
	}

	if b.bus == nil {
		panic("cache must be connected to a bus")
	}
}
