// Package fiber implements explicitly switched execution contexts, on top of
// goroutines.
//
// A Context is a goroutine that only runs while it "holds" the execution
// token. SwitchTo hands the token to another Context and parks the caller
// until the token is handed back, so a chain of contexts that only ever
// switch between one another behaves like a single thread of execution. The
// scheduler builds workers out of such chains.
//
// All of the unsafe-by-convention behavior (parking, handing over, and
// tearing down contexts) is confined to this package.
package fiber

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type (
	// Context is a cooperatively scheduled execution context. Instances must
	// be created via New or Current.
	Context struct {
		// resume receives exactly one value per switch into this context,
		// it is buffered so the sender never waits on the receiver to park
		resume chan struct{}
		// kill is closed by Destroy
		kill chan struct{}
		// exited is closed once the backing goroutine returns (New only)
		exited chan struct{}
		once   sync.Once
		id     atomic.Uint64
		thread bool
	}
)

// New creates a Context that will run entry, on its own goroutine, the first
// time something switches to it. The entry function must never return
// without switching away, or the execution token is lost; in practice entry
// should end by switching to another context, e.g. the primary context it
// was started from.
func New(entry func()) *Context {
	if entry == nil {
		panic(`fiber: nil entry`)
	}
	c := newContext()
	c.exited = make(chan struct{})
	go c.run(entry)
	return c
}

// Current returns a Context representing the calling goroutine, e.g. the
// primary context of a worker thread. It is not started by New, and Destroy
// will only affect it while it is suspended in SwitchTo.
func Current() *Context {
	c := newContext()
	c.thread = true
	c.id.Store(GoroutineID())
	return c
}

func newContext() *Context {
	return &Context{
		resume: make(chan struct{}, 1),
		kill:   make(chan struct{}),
	}
}

func (c *Context) run(entry func()) {
	defer close(c.exited)
	select {
	case <-c.kill:
		return
	case <-c.resume:
	}
	c.id.Store(GoroutineID())
	entry()
}

// SwitchTo transfers execution from c, which must be the calling (running)
// context, to the target, blocking until some other context switches back
// to c. Any memory written before the call is visible to the target.
//
// If c is destroyed while suspended, the calling goroutine exits, via
// runtime.Goexit (deferred calls are run).
func (c *Context) SwitchTo(to *Context) {
	if to == c {
		panic(`fiber: switch to self`)
	}
	to.wake()
	c.park()
}

// Resume hands the execution token to c without suspending the caller,
// e.g. to start a context from a goroutine that isn't itself a Context.
func (c *Context) Resume() {
	c.wake()
}

func (c *Context) wake() {
	select {
	case c.resume <- struct{}{}:
	default:
		panic(`fiber: context resumed twice`)
	}
}

func (c *Context) park() {
	select {
	case <-c.resume:
	case <-c.kill:
		runtime.Goexit()
	}
}

// Destroy releases the context. A suspended context is terminated, and a
// context that was never started will never run. It is safe to call more
// than once. Destroy does not wait, see Done.
func (c *Context) Destroy() {
	c.once.Do(func() { close(c.kill) })
}

// Done returns a channel that is closed once the backing goroutine has
// exited. For contexts created via Current it returns nil.
func (c *Context) Done() <-chan struct{} {
	if c.thread {
		return nil
	}
	return c.exited
}

// GoroutineID returns the id of the goroutine that is running c, or 0 if it
// has not started yet.
func (c *Context) GoroutineID() uint64 {
	return c.id.Load()
}

// GoroutineID returns the current goroutine's ID.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
