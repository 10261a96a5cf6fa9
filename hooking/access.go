package hooking

import (
	"github.com/sarchlab/coherence/protocol"
)

// HookPosBeforeAccess triggers after a cache acquired the lock of the target
// set and before it looks the tag up. The item is an Access with only the
// request fields set.
var HookPosBeforeAccess = &HookPos{Name: "BeforeAccess"}

// HookPosAfterAccess triggers when an access completed, before the set lock
// is released. The item is the completed Access.
var HookPosAfterAccess = &HookPos{Name: "AfterAccess"}

// Access describes one processor read or write served by a cache.
type Access struct {
	PID      int
	Kind     protocol.AccessKind
	SetIndex int
	Tag      int
	Hit      bool
	Cycles   uint64
	Err      error
}
