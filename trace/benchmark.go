package trace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Benchmark names a set of per-core traces.
type Benchmark string

// The benchmarks shipped with the simulator.
const (
	Blackscholes Benchmark = "blackscholes"
	Bodytrack    Benchmark = "bodytrack"
	Fluidanimate Benchmark = "fluidanimate"
)

// Benchmarks lists the known benchmarks.
var Benchmarks = []Benchmark{Blackscholes, Bodytrack, Fluidanimate}

// ParseBenchmark checks that name is a known benchmark.
func ParseBenchmark(name string) (Benchmark, error) {
	for _, b := range Benchmarks {
		if string(b) == name {
			return b, nil
		}
	}

	return "", fmt.Errorf("unknown benchmark %s, only blackscholes, "+
		"bodytrack and fluidanimate are supported", name)
}

// Path returns where the trace of core pid is stored under dir.
func (b Benchmark) Path(dir string, pid int) string {
	name := string(b)

	return filepath.Join(dir, name+"_four", fmt.Sprintf("%s_%d.data", name, pid))
}

// Open opens the trace of core pid. The caller closes the returned file.
func (b Benchmark) Open(dir string, pid int) (*os.File, *Reader, error) {
	f, err := os.Open(b.Path(dir, pid))
	if err != nil {
		return nil, nil, err
	}

	return f, NewReader(f), nil
}

// Count returns the number of records in the trace of core pid.
func (b Benchmark) Count(dir string, pid int) (uint64, error) {
	f, err := os.Open(b.Path(dir, pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return CountRecords(f)
}
