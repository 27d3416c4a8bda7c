package jobs

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-jobs/internal/affinity"
	"github.com/joeycumines/go-jobs/internal/fiber"
)

// wakeInterval is the period between repeated wakeups of a worker, while
// waiting for it to observe that it has finished.
const wakeInterval = 10 * time.Millisecond

type (
	// worker is a logical thread of execution: a primary context, plus
	// whichever fiber it is currently running. Exactly one fiber runs per
	// worker at any instant.
	worker struct {
		sched *Scheduler
		// guarded by Scheduler.queueMu
		ready stack[*fiberSlot]
		// guarded by Scheduler.queueMu
		jobs stack[job]
		// the fiber currently running on this worker, guarded by Scheduler.mu
		current *fiberSlot
		// the context the worker was started from, resumed once finished
		primary *fiber.Context
		// condition on Scheduler.queueMu, signaled when there may be work
		wake *sync.Cond
		// condition on Scheduler.mu, signaled when a backup worker is
		// enabled (or finished)
		gate *sync.Cond
		done chan struct{}
		// index into Scheduler.workers, or Scheduler.backups if backup
		index int
		// the CPU the worker is pinned to, or -1
		cpu int
		// written under Scheduler.mu, read anywhere
		enabled atomic.Bool
		// written under both Scheduler.mu and Scheduler.queueMu
		finished atomic.Bool
		backup   bool
	}
)

func newWorker(s *Scheduler, index int, backup bool, cpu int) *worker {
	return &worker{
		sched:  s,
		wake:   sync.NewCond(&s.queueMu),
		gate:   sync.NewCond(&s.mu),
		done:   make(chan struct{}),
		index:  index,
		cpu:    cpu,
		backup: backup,
	}
}

// run is the primary context of the worker, it switches to the first fiber,
// and returns once the worker has finished.
func (w *worker) run(first *fiberSlot) {
	defer close(w.done)

	w.primary = fiber.Current()

	w.sched.mu.Lock()
	first.worker = w
	w.current = first
	// the lock is released by the fiber
	w.primary.SwitchTo(first.ctx)
}

// wakeup signals the worker that there may be work available.
func (w *worker) wakeup() {
	w.wake.Signal()
}

// search pops the next unit of work, in priority order: this worker's ready
// fibers, this worker's jobs, global ready fibers, global jobs. It sleeps if
// there is nothing to do. It returns false if the worker has finished, or if
// it is a backup worker that needs to re-check its gate.
func (w *worker) search() (next *fiberSlot, j job, ok bool) {
	s := w.sched
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for {
		if w.finished.Load() {
			return nil, job{}, false
		}
		// a disabled backup leaves the work for another worker
		if w.backup && !w.enabled.Load() {
			return nil, job{}, false
		}
		if next, ok = w.ready.pop(); ok {
			return next, job{}, true
		}
		if j, ok = w.jobs.pop(); ok {
			return nil, j, true
		}
		if next, ok = s.ready.pop(); ok {
			return next, job{}, true
		}
		if j, ok = s.jobs.pop(); ok {
			return nil, j, true
		}
		w.wake.Wait()
		if w.backup {
			return nil, job{}, false
		}
	}
}

// join wakes the worker (repeatedly) until it exits, returning false if
// done is closed first.
func (w *worker) join(done <-chan struct{}) bool {
	ticker := time.NewTicker(wakeInterval)
	defer ticker.Stop()
	for {
		w.wake.Broadcast()
		w.gate.Broadcast()
		select {
		case <-w.done:
			return true
		case <-done:
			return false
		case <-ticker.C:
		}
	}
}

// manage is the entry point of every fiber: the worker run loop. It is
// entered holding Scheduler.mu, handed over by whatever switched to it.
func (s *Scheduler) manage(self *fiberSlot) {
	s.fibers.Store(fiber.GoroutineID(), self)
	if s.pinning() {
		// the thread is discarded when the fiber is destroyed
		runtime.LockOSThread()
	}
	s.mu.Unlock()

	s.resumed(self)
	w := self.worker

	for !w.finished.Load() {
		if w.backup {
			s.mu.Lock()
			for !w.enabled.Load() && !w.finished.Load() {
				w.gate.Wait()
			}
			s.mu.Unlock()
		}

		next, j, ok := w.search()
		if !ok {
			continue
		}

		if next != nil {
			s.mu.Lock()
			s.pool.release(self)
			next.worker = w
			w.current = next
			s.stats.fiberSwitches.Add(1)
			// the lock is released by next
			self.ctx.SwitchTo(next.ctx)
			// resumed from the free list, by a worker that is waiting, or
			// starting (possibly not the same one)
			s.mu.Unlock()
			s.resumed(self)
			w = self.worker
			continue
		}

		s.execute(self, j)
		// the job may have waited, and been resumed by another worker
		w = self.worker
	}

	self.ctx.SwitchTo(w.primary)
}

// execute runs a job to completion on the current fiber.
func (s *Scheduler) execute(self *fiberSlot, j job) {
	if j.fn == nil {
		return
	}
	self.job = j
	j.fn(j.data)
	self.job = job{}
	s.stats.jobsExecuted.Add(1)
	if j.signal != nil {
		s.trigger(j.signal, false)
	}
}

// resumed is called by a fiber each time it starts running on a worker,
// re-pinning its thread if it has migrated.
func (s *Scheduler) resumed(self *fiberSlot) {
	w := self.worker
	if w.current != self {
		invariantf(`fiber %d resumed on worker %d, which has another current fiber`, self.index, w.index)
	}
	if !s.pinning() || self.pinned == w {
		return
	}
	self.pinned = w
	var err error
	if w.cpu >= 0 {
		err = affinity.Pin(w.cpu)
	} else {
		err = affinity.Reset(s.cpus)
	}
	if err != nil && s.allow(`pin`) {
		s.logger.Warning().
			Err(err).
			Int(`worker`, w.index).
			Bool(`backup`, w.backup).
			Int(`cpu`, w.cpu).
			Log(`jobs: failed to set thread affinity`)
	}
}
