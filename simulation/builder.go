package simulation

import (
	"log"

	"github.com/sarchlab/coherence/bus"
	"github.com/sarchlab/coherence/cache"
	"github.com/sarchlab/coherence/config"
	"github.com/sarchlab/coherence/core"
	"github.com/sarchlab/coherence/hooking"
	"github.com/sarchlab/coherence/setlock"
)

// Builder can build simulations.
type Builder struct {
	config config.Config
	logger *log.Logger
	hooks  []hooking.Hook
}

// MakeBuilder creates a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: config.Default(),
	}
}

// WithConfig sets the configuration of the run.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.config = cfg
	return b
}

// WithLogger sets the logger the components report errors to.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithHook attaches a hook to every cache.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks, hook)
	return b
}

// Build creates the simulation. It fails if the configuration is not valid.
func (b Builder) Build() (*Simulation, error) {
	err := b.config.Validate()
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	g := b.config.Geometry()
	s := &Simulation{
		config:  b.config,
		logger:  logger,
		setLock: setlock.New(g.NumSets()).WithLogger(logger),
		bus:     bus.New(b.config.Protocol, b.config.Optimize),
	}

	cacheBuilder := cache.MakeBuilder().
		WithProtocol(b.config.Protocol).
		WithGeometry(g).
		WithSetLock(s.setLock).
		WithBus(s.bus).
		WithLogger(logger)

	for i := 0; i < b.config.NumCores; i++ {
		c := cacheBuilder.Build(i)
		for _, h := range b.hooks {
			c.AcceptHook(h)
		}

		p := core.New(i, c, g, logger)

		pid := s.bus.Connect(c, p)
		if pid != i {
			panic("bus port does not match core pid")
		}

		s.caches = append(s.caches, c)
		s.cores = append(s.cores, p)
	}

	return s, nil
}
