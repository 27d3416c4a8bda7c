package jobs

import (
	"sync/atomic"
	"time"
)

type (
	// Signal is a counting completion token. Its counter is incremented for
	// each job submitted with it, and decremented as each completes. Waiting
	// on a signal blocks until the counter is zero ("green").
	//
	// The zero value is a green signal, ready to use. A Signal must not be
	// copied after first use, and must be used with a single Scheduler.
	Signal struct {
		counter    atomic.Int32
		generation atomic.Uint32
	}

	// Mutex provides mutual exclusion between jobs, suspending the waiting
	// fiber rather than blocking the worker. It is a Signal restricted to a
	// counter of 0 (unlocked) or 1 (locked).
	//
	// The zero value is an unlocked mutex. A Mutex must not be copied after
	// first use.
	Mutex struct {
		signal Signal
		owner  atomic.Pointer[fiberSlot]
	}
)

// Counter returns the number of outstanding jobs (or 1 if set red).
func (x *Signal) Counter() int32 {
	return x.counter.Load()
}

// Green returns true if the counter is zero, i.e. Wait would not block.
func (x *Signal) Green() bool {
	return x.counter.Load() == 0
}

// Generation identifies the most recent transition of the signal from green
// to red. It is intended for diagnostics only.
func (x *Signal) Generation() uint32 {
	return x.generation.Load()
}

// Locked returns true if the mutex is held.
func (x *Mutex) Locked() bool {
	return x.signal.counter.Load() != 0
}

// Wait blocks until the signal's counter reaches zero. On a worker, the
// calling fiber is suspended, and the worker continues with other work.
// Elsewhere (e.g. the goroutine that created the scheduler) it polls the
// counter, sleeping between checks, with no deadline.
func (s *Scheduler) Wait(signal *Signal) {
	s.wait(signal, false)
}

// SetRed sets the counter of a green signal to 1. It has no effect if the
// signal is already red. Combine with SetGreen to build one-shot events.
func (s *Scheduler) SetRed(signal *Signal) {
	s.setRed(signal)
}

// SetGreen forces the counter to 0, waking every waiter. It must only be
// used with signals that are manually set red, or mutexes.
func (s *Scheduler) SetGreen(signal *Signal) {
	if signal == nil {
		invariantf(`nil signal`)
	}
	if c := signal.counter.Load(); c > 1 {
		invariantf(`set green on a counting signal (counter %d)`, c)
	}
	s.trigger(signal, true)
}

// Enter acquires the mutex, spinning for a bounded number of attempts before
// suspending the calling fiber until the mutex is released. It must only be
// called from within a job, and is not reentrant.
func (s *Scheduler) Enter(mutex *Mutex) {
	self := s.currentFiber()
	if self == nil {
		invariantf(`mutex enter from outside a worker`)
	}
	if mutex.owner.Load() == self {
		invariantf(`mutex enter while already held by the calling fiber`)
	}
	for {
		for range s.opts.mutexSpin {
			if s.setRed(&mutex.signal) {
				mutex.owner.Store(self)
				return
			}
		}
		s.wait(&mutex.signal, true)
	}
}

// Exit releases the mutex, waking any fibers suspended in Enter. It must only
// be called from within a job.
func (s *Scheduler) Exit(mutex *Mutex) {
	if s.currentFiber() == nil {
		invariantf(`mutex exit from outside a worker`)
	}
	mutex.owner.Store(nil)
	s.SetGreen(&mutex.signal)
}

func (s *Scheduler) setRed(signal *Signal) bool {
	if signal == nil {
		invariantf(`nil signal`)
	}
	if c := signal.counter.Load(); c > 1 {
		invariantf(`set red on a counting signal (counter %d)`, c)
	}
	if signal.counter.CompareAndSwap(0, 1) {
		signal.generation.Store(s.generation.Add(1))
		return true
	}
	return false
}

// increment registers a submitted job with the signal.
func (s *Scheduler) increment(signal *Signal) {
	s.mu.Lock()
	if signal.counter.Add(1) == 1 {
		signal.generation.Store(s.generation.Add(1))
	}
	s.mu.Unlock()
}

// trigger decrements the counter (or zeroes it), and on reaching zero moves
// all waiting fibers onto ready stacks, waking the relevant workers. It
// returns true if any fibers were woken.
func (s *Scheduler) trigger(signal *Signal, zero bool) bool {
	s.mu.Lock()
	if zero {
		signal.counter.Store(0)
	} else {
		n := signal.counter.Add(-1)
		if n < 0 {
			signal.counter.Store(0)
			s.mu.Unlock()
			invariantf(`signal counter underflow`)
		}
		if n > 0 {
			s.mu.Unlock()
			return false
		}
	}
	waiters := s.waiters[signal]
	delete(s.waiters, signal)
	s.mu.Unlock()

	if len(waiters) == 0 {
		return false
	}

	var (
		wakeAll bool
		pinned  []*worker
	)
	s.queueMu.Lock()
	for _, slot := range waiters {
		if slot.job.worker == AnyWorker {
			s.ready.push(slot)
			wakeAll = true
			continue
		}
		w := s.workers[slot.job.worker]
		w.ready.push(slot)
		pinned = append(pinned, w)
	}
	s.queueMu.Unlock()

	if wakeAll {
		s.wakeAll()
	} else {
		for _, w := range pinned {
			w.wakeup()
		}
	}

	if b := s.logger.Trace(); b.Enabled() {
		b.Uint64(`generation`, uint64(signal.generation.Load())).
			Int(`waiters`, len(waiters)).
			Bool(`any_worker`, wakeAll).
			Log(`jobs: signal triggered`)
	}

	return true
}

// wait implements Wait, and the suspending half of Enter.
func (s *Scheduler) wait(signal *Signal, mutex bool) {
	if signal == nil {
		invariantf(`nil signal`)
	}
	if signal.counter.Load() == 0 {
		return
	}

	self := s.currentFiber()

	s.mu.Lock()
	if signal.counter.Load() == 0 {
		s.mu.Unlock()
		return
	}

	if self == nil {
		s.poll(signal)
		return
	}

	// acquired before registering, as it may release the lock (stall)
	next := s.acquireFiber()
	if signal.counter.Load() == 0 {
		s.pool.release(next)
		s.mu.Unlock()
		return
	}

	s.waiters[signal] = append(s.waiters[signal], self)

	w := self.worker
	next.worker = w
	w.current = next

	if mutex {
		s.stats.mutexWaits.Add(1)
	} else {
		s.stats.fiberWaits.Add(1)
	}
	if b := s.logger.Trace(); b.Enabled() {
		b.Int(`fiber`, self.index).
			Int(`worker`, w.index).
			Uint64(`generation`, uint64(signal.generation.Load())).
			Bool(`mutex`, mutex).
			Log(`jobs: fiber waiting`)
	}

	// the lock is released by next, and handed back by whoever resumes us
	self.ctx.SwitchTo(next.ctx)
	s.mu.Unlock()

	s.resumed(self)
}

// poll is the fallback for callers that aren't running on a worker, it must
// be called with s.mu held, and releases it.
func (s *Scheduler) poll(signal *Signal) {
	s.stats.busyPolls.Add(1)
	if s.allow(`poll`) {
		s.logger.Debug().
			Uint64(`generation`, uint64(signal.generation.Load())).
			Log(`jobs: polling signal from outside a worker`)
	}
	for signal.counter.Load() > 0 {
		s.mu.Unlock()
		time.Sleep(s.opts.pollInterval)
		s.mu.Lock()
	}
	s.mu.Unlock()
}
