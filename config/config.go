// Package config holds the parameters of one simulation run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sarchlab/coherence/geometry"
	"github.com/sarchlab/coherence/protocol"
	"github.com/sarchlab/coherence/trace"
)

// ErrInvalidConfig is wrapped by every error Validate and Parse return.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that provide defaults for the file locations.
const (
	EnvTraceDir  = "COHERENCE_TRACE_DIR"
	EnvResultDir = "COHERENCE_RESULT_DIR"
	EnvSQLite    = "COHERENCE_SQLITE"
)

// DefaultNumCores is the number of cores of the simulated machine.
const DefaultNumCores = 4

// Config describes a run.
type Config struct {
	Protocol      protocol.Protocol
	Benchmark     trace.Benchmark
	CacheSize     int
	Associativity int
	BlockSize     int
	Optimize      bool
	NumCores      int

	TraceDir     string
	ResultDir    string
	SQLitePath   string
	AnalysisCSV  string
	OperationLog string

	Monitor     bool
	MonitorPort int
	OpenBrowser bool
}

// Default returns a MESI run of blackscholes on the default geometry, reading
// traces from the working directory and writing logs to results/.
func Default() Config {
	g := geometry.Default()

	return Config{
		Protocol:      protocol.MESI,
		Benchmark:     trace.Blackscholes,
		CacheSize:     g.CacheSize,
		Associativity: g.Associativity,
		BlockSize:     g.BlockSize,
		NumCores:      DefaultNumCores,
		TraceDir:      ".",
		ResultDir:     "results",
	}
}

// LoadEnv reads the file locations from the environment, after loading the
// given .env files. Missing .env files are ignored. Variables already set in
// the environment take precedence over the files.
func (c *Config) LoadEnv(envFiles ...string) error {
	var existing []string
	for _, f := range envFiles {
		_, err := os.Stat(f)
		if err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) > 0 {
		err := godotenv.Load(existing...)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if v, ok := os.LookupEnv(EnvTraceDir); ok {
		c.TraceDir = v
	}

	if v, ok := os.LookupEnv(EnvResultDir); ok {
		c.ResultDir = v
	}

	if v, ok := os.LookupEnv(EnvSQLite); ok {
		c.SQLitePath = v
	}

	return nil
}

// Geometry returns the shape of the private caches.
func (c Config) Geometry() geometry.Geometry {
	return geometry.Geometry{
		CacheSize:     c.CacheSize,
		Associativity: c.Associativity,
		BlockSize:     c.BlockSize,
	}
}

// Validate checks that the run can be simulated.
func (c Config) Validate() error {
	if c.Protocol != protocol.MESI && c.Protocol != protocol.Dragon {
		return fmt.Errorf("%w: unknown protocol %s", ErrInvalidConfig, c.Protocol)
	}

	_, err := trace.ParseBenchmark(string(c.Benchmark))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	err = c.Geometry().Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.NumCores <= 0 {
		return fmt.Errorf("%w: need at least one core, got %d",
			ErrInvalidConfig, c.NumCores)
	}

	if c.Monitor && (c.MonitorPort < 0 || c.MonitorPort > 65535) {
		return fmt.Errorf("%w: invalid monitor port %d",
			ErrInvalidConfig, c.MonitorPort)
	}

	return nil
}

// Arguments names the run after its parameters, for example
// MESI_bodytrack_4096_2_32, with a _true suffix for optimized runs.
func (c Config) Arguments() string {
	name := fmt.Sprintf("%s_%s_%d_%d_%d",
		c.Protocol, c.Benchmark, c.CacheSize, c.Associativity, c.BlockSize)

	if c.Optimize {
		name += "_true"
	}

	return name
}

// ParseArgs fills the run selectors from the positional command-line
// arguments: a protocol and a benchmark, optionally followed by the cache
// size, the associativity and the block size, optionally followed by "true"
// for optimized MESI.
func (c *Config) ParseArgs(args []string) error {
	if len(args) != 2 && len(args) != 5 && len(args) != 6 {
		return fmt.Errorf("%w: %d argument(s) doesn't match format",
			ErrInvalidConfig, len(args))
	}

	p, err := protocol.Parse(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	b, err := trace.ParseBenchmark(args[1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c.Protocol = p
	c.Benchmark = b

	if len(args) == 2 {
		return nil
	}

	sizes := make([]int, 3)
	for i, arg := range args[2:5] {
		sizes[i], err = strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", ErrInvalidConfig, arg)
		}
	}

	c.CacheSize, c.Associativity, c.BlockSize = sizes[0], sizes[1], sizes[2]

	if len(args) == 6 {
		if args[5] != "true" {
			return fmt.Errorf("%w: expected \"true\" to optimize, got %q",
				ErrInvalidConfig, args[5])
		}

		c.Optimize = true
	}

	return nil
}
