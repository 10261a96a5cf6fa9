// Package hooking lets observers attach to the caches of a run and see every
// processor access as it is performed.
package hooking

import "fmt"

// HookPos names a point in the life of an access where hooks fire.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	return p.Name
}

// HookCtx is what a hook sees when it fires. Domain is the cache serving the
// access and Item is the Access itself.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
}

// Access returns the access carried by the context. It reports false when the
// item is not an Access.
func (ctx HookCtx) Access() (Access, bool) {
	access, ok := ctx.Item.(Access)
	return access, ok
}

// Hookable is a cache, or anything else, that observers can attach to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// Hook observes accesses.
//
// Hooks attached to caches are invoked concurrently by the core goroutines,
// while the set lock of the access is held. They must be safe for concurrent
// use and must not block on another access of the same set.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase keeps the hooks of a Hookable. Hooks must all be attached
// before the run starts; the list is read without locking afterwards.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of attached hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns the attached hooks in attach order.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook attaches a hook. Attaching the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, attached := range h.hookList {
		if attached == hook {
			panic(fmt.Sprintf("hook %T attached twice", hook))
		}
	}

	h.hookList = append(h.hookList, hook)
}

// InvokeHook fires every attached hook with ctx, in attach order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}
