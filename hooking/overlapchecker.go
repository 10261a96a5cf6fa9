package hooking

import (
	"fmt"
	"sync"
)

// OverlapChecker verifies that no two accesses to the same set are ever in
// flight at the same time. It counts the accesses it has seen so that callers
// can tell the check actually ran.
type OverlapChecker struct {
	lock       sync.Mutex
	inFlight   map[int]int
	violations []string
	numChecked uint64
}

// NewOverlapChecker creates an OverlapChecker.
func NewOverlapChecker() *OverlapChecker {
	return &OverlapChecker{
		inFlight: make(map[int]int),
	}
}

// Func tracks the accesses in flight per set.
func (c *OverlapChecker) Func(ctx HookCtx) {
	access, ok := ctx.Access()
	if !ok {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	switch ctx.Pos {
	case HookPosBeforeAccess:
		c.inFlight[access.SetIndex]++
		if c.inFlight[access.SetIndex] > 1 {
			c.violations = append(c.violations, fmt.Sprintf(
				"core %d entered set %d while %d access(es) were in flight",
				access.PID, access.SetIndex,
				c.inFlight[access.SetIndex]-1))
		}
	case HookPosAfterAccess:
		c.inFlight[access.SetIndex]--
		c.numChecked++
	}
}

// Violations returns a description of every overlap detected.
func (c *OverlapChecker) Violations() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.violations...)
}

// NumChecked returns the number of completed accesses observed.
func (c *OverlapChecker) NumChecked() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.numChecked
}
