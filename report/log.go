package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const (
	sectionRule = "------------------------------"
	headerRule  = "========================================="
)

// WriteTo writes the summary in the layout of the result log files.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}

	cw.printf("Input: %s\n", s.Config.Arguments())
	cw.printf("%s\n", headerRule)

	s.perCore(cw, "1. Overall execution cycle per core",
		func(c CoreSummary) string { return strconv.FormatUint(c.Total, 10) })
	s.perCore(cw, "2. Number of compute cycles per core",
		func(c CoreSummary) string { return strconv.FormatUint(c.Compute, 10) })
	s.perCore(cw, "3. Number of load/store instructions per core",
		func(c CoreSummary) string { return strconv.FormatUint(c.MemInstr, 10) })
	s.perCore(cw, "4. Number of idle cycles per core",
		func(c CoreSummary) string { return strconv.FormatUint(c.Idle, 10) })
	s.perCore(cw, "5. Data cache miss rate for each core",
		func(c CoreSummary) string { return formatRate(c.MissRate) })

	cw.section("6. Amount of Data traffic in bytes on the bus")
	cw.printf("%d\n", s.DataTrafficBytes)

	cw.section("7. Number of invalidations or updates on the bus")
	cw.printf("%d\n", s.Updates)

	s.perCore(cw, "8. Distribution of accesses to private data versus shared data",
		func(c CoreSummary) string {
			return fmt.Sprintf("Private accesses = %d | Shared accesses = %d",
				c.PrivateAccesses, c.SharedAccesses)
		})

	cw.printf("================== END ==================\n")
	cw.printf("%s\n", headerRule)

	if cw.err != nil {
		return cw.n, cw.err
	}

	return cw.n, cw.w.Flush()
}

func (s Summary) perCore(
	cw *countingWriter,
	title string,
	value func(CoreSummary) string,
) {
	cw.section(title)

	for _, c := range s.Cores {
		cw.printf("Core %d: %s\n", c.PID, value(c))
	}
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'g', 6, 64)
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (cw *countingWriter) printf(format string, args ...any) {
	if cw.err != nil {
		return
	}

	n, err := fmt.Fprintf(cw.w, format, args...)
	cw.n += int64(n)
	cw.err = err
}

func (cw *countingWriter) section(title string) {
	cw.printf("%s\n%s\n", sectionRule, title)
}

// WriteLog writes the summary to <dir>/<arguments>_<n>.log, where n is the
// smallest positive integer that does not clobber an existing log, and
// returns the path of the file.
func (s Summary) WriteLog(dir string) (string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", err
	}

	base := filepath.Join(dir, s.Config.Arguments())

	for index := 1; ; index++ {
		path := base + "_" + strconv.Itoa(index) + ".log"

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}

		if err != nil {
			return "", err
		}

		_, err = s.WriteTo(f)

		return path, errors.Join(err, f.Close())
	}
}
