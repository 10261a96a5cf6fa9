package hooking

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// AccessLogger records every completed access into a CSV file, in the order
// the accesses completed. Since hooks run while the set lock is held, the
// order of the lines of one set is the order the SetLock granted.
type AccessLogger struct {
	lock       sync.Mutex
	path       string
	file       *os.File
	writer     *bufio.Writer
	seq        uint64
	start      time.Time
	bufferSize int
	pending    []accessRecord
}

type accessRecord struct {
	seq    uint64
	nanos  int64
	access Access
}

// NewAccessLogger creates a logger that writes to path. An empty path picks a
// unique name.
func NewAccessLogger(path string) *AccessLogger {
	return &AccessLogger{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the CSV file. It fails if the file already exists.
func (l *AccessLogger) Init() error {
	if l.path == "" {
		l.path = "coherence_ops_" + xid.New().String() + ".csv"
	}

	_, err := os.Stat(l.path)
	if err == nil {
		return fmt.Errorf("file %s already exists", l.path)
	}

	file, err := os.Create(l.path)
	if err != nil {
		return err
	}

	l.file = file
	l.writer = bufio.NewWriter(file)
	l.start = time.Now()

	fmt.Fprintf(l.writer, "Seq, Time, Core, Kind, Set, Tag, Hit, Cycles\n")

	atexit.Register(func() {
		err := l.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to close %s: %v\n", l.path, err)
		}
	})

	return nil
}

// Path returns the file the logger writes to.
func (l *AccessLogger) Path() string {
	return l.path
}

// Func records completed accesses.
func (l *AccessLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosAfterAccess {
		return
	}

	access, ok := ctx.Access()
	if !ok {
		return
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	l.seq++
	l.pending = append(l.pending, accessRecord{
		seq:    l.seq,
		nanos:  time.Since(l.start).Nanoseconds(),
		access: access,
	})

	if len(l.pending) >= l.bufferSize {
		l.flush()
	}
}

// Flush writes the buffered records to the file.
func (l *AccessLogger) Flush() {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.flush()
}

func (l *AccessLogger) flush() {
	if l.writer == nil {
		return
	}

	for _, r := range l.pending {
		fmt.Fprintf(l.writer, "%d, %d, %d, %s, %d, %d, %t, %d\n",
			r.seq,
			r.nanos,
			r.access.PID,
			r.access.Kind,
			r.access.SetIndex,
			r.access.Tag,
			r.access.Hit,
			r.access.Cycles,
		)
	}

	l.pending = nil
}

// Close flushes the records and closes the file. Closing twice is harmless.
func (l *AccessLogger) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.file == nil {
		return nil
	}

	l.flush()

	err := l.writer.Flush()
	if err != nil {
		return err
	}

	err = l.file.Close()
	l.file = nil
	l.writer = nil

	return err
}
