package jobs

import (
	"github.com/joeycumines/go-jobs/internal/fiber"
)

type (
	// fiberSlot is an entry in the fixed fiber arena. While in use, a slot
	// is owned by the worker that it is current on, otherwise it is either
	// free, on a wait list, or on a ready stack.
	fiberSlot struct {
		ctx *fiber.Context
		// the job being executed, used to route the fiber once it is ready
		job job
		// the worker that is running, or was last running, this fiber
		worker *worker
		// the worker whose CPU the fiber's thread was last pinned to
		pinned *worker
		index  int
	}

	// fiberPool is a fixed capacity arena of fibers, with a free list of
	// handle indices. It has no synchronisation of its own, see Scheduler.mu.
	fiberPool struct {
		// creates the context for a slot, on first use
		newContext func(slot *fiberSlot) *fiber.Context
		slots      []fiberSlot
		free       stack[int32]
		created    int
	}
)

func newFiberPool(capacity int, newContext func(slot *fiberSlot) *fiber.Context) *fiberPool {
	x := fiberPool{
		newContext: newContext,
		slots:      make([]fiberSlot, capacity),
		free:       make(stack[int32], 0, capacity),
	}
	// lowest indices are handed out first
	for i := capacity - 1; i >= 0; i-- {
		x.slots[i].index = i
		x.free.push(int32(i))
	}
	return &x
}

// tryAcquire pops a free fiber, creating its context if it was never used.
func (x *fiberPool) tryAcquire() (*fiberSlot, bool) {
	i, ok := x.free.pop()
	if !ok {
		return nil, false
	}
	slot := &x.slots[i]
	if slot.ctx == nil {
		slot.ctx = x.newContext(slot)
		x.created++
	}
	return slot, true
}

// release returns a fiber that is no longer running a job, and which has
// been (or is being) switched away from.
func (x *fiberPool) release(slot *fiberSlot) {
	x.free.push(int32(slot.index))
}

func (x *fiberPool) available() int {
	return x.free.len()
}

func (x *fiberPool) capacity() int {
	return len(x.slots)
}

// destroy tears down every context that was created, calling fn for each
// first. The pool must not be used afterwards.
func (x *fiberPool) destroy(fn func(slot *fiberSlot)) {
	for i := range x.slots {
		slot := &x.slots[i]
		if slot.ctx == nil {
			continue
		}
		if fn != nil {
			fn(slot)
		}
		slot.ctx.Destroy()
	}
}
