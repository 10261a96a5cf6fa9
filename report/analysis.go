package report

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/sarchlab/coherence/geometry"
)

// AppendAnalysis appends one row describing the run to the CSV file at path.
// The columns are the cache size, the associativity, the block size, the
// number of sets, the number of words per block, the average total cycles,
// the average idle cycles, the average miss rate and the number of
// invalidations or updates.
func (s Summary) AppendAnalysis(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	g := s.Config.Geometry()
	w := csv.NewWriter(f)

	err = w.Write([]string{
		strconv.Itoa(g.CacheSize),
		strconv.Itoa(g.Associativity),
		strconv.Itoa(g.BlockSize),
		strconv.Itoa(g.NumSets()),
		strconv.Itoa(g.BlockSize / geometry.WordSize),
		strconv.FormatUint(s.AvgTotal, 10),
		strconv.FormatUint(s.AvgIdle, 10),
		formatRate(s.AvgMissRate),
		strconv.FormatUint(s.Updates, 10),
	})
	if err != nil {
		f.Close()
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
