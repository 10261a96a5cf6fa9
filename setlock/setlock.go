// Package setlock provides the set-indexed lock array that orders every memory
// operation targeting the same cache set, across all cores of a run.
//
// A single SetLock is shared by all caches. While a core holds the lock of a
// set, no other core can start a read or a write on that set, so the bus may
// inspect and change the lines of that set in remote caches without further
// locking.
package setlock

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrIndexOutOfRange is returned when a set index has no lock.
var ErrIndexOutOfRange = errors.New("lock index out of range")

// SetLock holds one mutex per cache set.
type SetLock struct {
	mutexes []sync.Mutex
	logger  *log.Logger
}

// New creates a SetLock for numSets sets.
func New(numSets int) *SetLock {
	if numSets < 0 {
		numSets = 0
	}

	return &SetLock{
		mutexes: make([]sync.Mutex, numSets),
	}
}

// WithLogger sets the logger that reports out-of-range indices.
func (l *SetLock) WithLogger(logger *log.Logger) *SetLock {
	l.logger = logger
	return l
}

// NumSets returns the number of locks.
func (l *SetLock) NumSets() int {
	return len(l.mutexes)
}

// Lock blocks until the lock of the set is acquired. An out-of-range index is
// reported and nothing is locked.
func (l *SetLock) Lock(setIndex int) error {
	if err := l.check(setIndex, "acquire"); err != nil {
		return err
	}

	l.mutexes[setIndex].Lock()

	return nil
}

// Unlock releases the lock of the set.
func (l *SetLock) Unlock(setIndex int) error {
	if err := l.check(setIndex, "release"); err != nil {
		return err
	}

	l.mutexes[setIndex].Unlock()

	return nil
}

func (l *SetLock) check(setIndex int, action string) error {
	if setIndex >= 0 && setIndex < len(l.mutexes) {
		return nil
	}

	err := fmt.Errorf("%w: trying to %s lock %d of %d",
		ErrIndexOutOfRange, action, setIndex, len(l.mutexes))

	if l.logger != nil {
		l.logger.Printf("ERROR: %v", err)
	}

	return err
}
