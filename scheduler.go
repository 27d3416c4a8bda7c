package jobs

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-jobs/internal/affinity"
	"github.com/joeycumines/go-jobs/internal/fiber"
	"github.com/joeycumines/logiface"
)

// Scheduler runs jobs on a fixed set of workers, on top of a fixed pool of
// fibers. Instances must be created via New, and should be stopped via
// Shutdown.
//
// Lock order is always mu before queueMu. The mu lock is handed across fiber
// switches: it is acquired by the fiber switching away, and released by the
// fiber switched to.
type Scheduler struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	opts    *schedulerOptions
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter

	// "state" lock: fiber pool, wait lists, signal transitions, backup flags
	mu      sync.Mutex
	pool    *fiberPool
	waiters map[*Signal][]*fiberSlot
	backups []*worker
	// enabled backups, most recently enabled last
	enabledBackups []*worker
	// copy of backups, for reading without mu
	backupsView atomic.Pointer[[]*worker]

	// "queue" lock: job queues and ready stacks, including per worker
	queueMu sync.Mutex
	jobs    stack[job]
	ready   stack[*fiberSlot]

	// immutable after New
	workers []*worker
	// CPUs available for pinning, empty if pinning is disabled
	cpus []int

	// goroutine id -> *fiberSlot, for fibers of this scheduler
	fibers sync.Map

	generation atomic.Uint32
	closed     atomic.Bool
	stats      counters
}

// DefaultWorkerCount is the number of workers used if New is given 0, the
// number of logical CPUs usable by the process (GOMAXPROCS), capped at 255.
func DefaultWorkerCount() uint8 {
	return uint8(min(runtime.GOMAXPROCS(0), 255))
}

// New initializes a Scheduler, starting workerCount workers, or
// DefaultWorkerCount workers if workerCount is 0. Workers that fail to start
// (e.g. due to an exhausted fiber pool) only reduce parallelism, ErrNoWorkers
// is returned if none could be started.
func New(workerCount uint8, opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		opts:    cfg,
		logger:  cfg.logger,
		limiter: newLimiter(),
		waiters: make(map[*Signal][]*fiberSlot),
	}
	s.pool = newFiberPool(cfg.fiberCapacity, s.newFiberContext)
	s.backupsView.Store(new([]*worker))

	if cfg.pinning && affinity.Supported {
		if cpus, err := affinity.CPUs(); err != nil {
			s.logger.Warning().
				Err(err).
				Log(`jobs: cpu pinning disabled`)
		} else {
			s.cpus = cpus
		}
	}

	count := int(workerCount)
	if count == 0 {
		count = int(DefaultWorkerCount())
	}

	var firsts []*fiberSlot
	for i := range count {
		first, ok := s.pool.tryAcquire()
		if !ok {
			s.logger.Err().
				Int(`worker`, i).
				Int(`fiber_capacity`, s.pool.capacity()).
				Log(`jobs: worker failed to start`)
			continue
		}
		w := newWorker(s, len(s.workers), false, affinity.Select(s.cpus, i))
		w.enabled.Store(true)
		s.workers = append(s.workers, w)
		firsts = append(firsts, first)
	}

	if len(s.workers) == 0 {
		return nil, ErrNoWorkers
	}

	for i, w := range s.workers {
		go w.run(firsts[i])
	}

	s.logger.Info().
		Int(`workers`, len(s.workers)).
		Int(`fiber_capacity`, s.pool.capacity()).
		Bool(`pinning`, s.pinning()).
		Log(`jobs: scheduler started`)

	return s, nil
}

// Shutdown stops every worker and backup worker, waiting for them to exit,
// then destroys all fibers. Jobs that are queued but not started are
// discarded, and the caller must ensure that no job is still suspended.
//
// If ctx is done before every worker has exited, ctx.Err() is returned and
// the fibers are left intact. Subsequent calls return ErrClosed, and calling
// Shutdown from within a job returns ErrReentrantShutdown.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if s.currentFiber() != nil {
		return ErrReentrantShutdown
	}
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	s.mu.Lock()
	backups := s.backups
	s.queueMu.Lock()
	for _, w := range backups {
		w.finished.Store(true)
	}
	for _, w := range s.workers {
		w.finished.Store(true)
	}
	s.queueMu.Unlock()
	s.mu.Unlock()

	for _, w := range append(backups[:len(backups):len(backups)], s.workers...) {
		if !w.join(ctx.Done()) {
			s.logger.Err().
				Err(ctx.Err()).
				Int(`worker`, w.index).
				Bool(`backup`, w.backup).
				Log(`jobs: shutdown abandoned`)
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.pool.destroy(func(slot *fiberSlot) {
		if id := slot.ctx.GoroutineID(); id != 0 {
			s.fibers.Delete(id)
		}
	})
	s.mu.Unlock()

	s.logger.Info().
		Int(`workers`, len(s.workers)).
		Int(`backup_workers`, len(backups)).
		Log(`jobs: scheduler stopped`)

	return nil
}

// Run submits a job that may run on any worker. If signal is not nil, its
// counter is incremented now, and decremented once fn returns.
func (s *Scheduler) Run(data any, fn TaskFunc, signal *Signal) error {
	return s.submit(data, fn, signal, AnyWorker)
}

// RunOnWorker submits a job that will only run on the given worker. The
// index wraps around the worker count, and AnyWorker behaves like Run.
func (s *Scheduler) RunOnWorker(data any, fn TaskFunc, signal *Signal, worker int) error {
	return s.submit(data, fn, signal, worker)
}

func (s *Scheduler) submit(data any, fn TaskFunc, signal *Signal, worker int) error {
	if fn == nil {
		panic(`jobs: nil task`)
	}
	if worker < AnyWorker {
		panic(`jobs: invalid worker index`)
	}
	if s.closed.Load() {
		return ErrClosed
	}

	j := job{
		fn:     fn,
		data:   data,
		signal: signal,
		worker: worker,
	}
	if worker != AnyWorker {
		j.worker = worker % len(s.workers)
	}

	if signal != nil {
		s.increment(signal)
	}

	if j.worker != AnyWorker {
		w := s.workers[j.worker]
		s.queueMu.Lock()
		w.jobs.push(j)
		s.queueMu.Unlock()
		w.wakeup()
		return nil
	}

	s.queueMu.Lock()
	s.jobs.push(j)
	s.queueMu.Unlock()
	s.wakeAll()
	return nil
}

// wakeAll wakes every worker, and every enabled backup worker.
func (s *Scheduler) wakeAll() {
	for _, w := range s.workers {
		w.wakeup()
	}
	for _, w := range *s.backupsView.Load() {
		if w.enabled.Load() {
			w.wakeup()
		}
	}
}

// EnableBackupWorker toggles one backup worker. Enabling reuses a disabled
// backup worker if there is one, otherwise starts a new (unpinned) one.
// Disabling parks the most recently enabled backup worker, it is kept for
// reuse. Backup workers run any-worker jobs, and guarantee progress when
// every worker is occupied by jobs waiting on one another.
//
// Disabling when no backup worker is enabled is a programming error. Calls
// after Shutdown are ignored.
func (s *Scheduler) EnableBackupWorker(enable bool) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return
	}

	if !enable {
		n := len(s.enabledBackups)
		if n == 0 {
			s.mu.Unlock()
			invariantf(`no backup worker to disable`)
		}
		w := s.enabledBackups[n-1]
		s.enabledBackups[n-1] = nil
		s.enabledBackups = s.enabledBackups[:n-1]
		w.enabled.Store(false)
		s.mu.Unlock()
		// so it leaves the job search for the gate
		w.wakeup()
		s.logger.Debug().
			Int(`backup`, w.index).
			Log(`jobs: backup worker disabled`)
		return
	}

	for _, w := range s.backups {
		if !w.enabled.Load() {
			w.enabled.Store(true)
			s.enabledBackups = append(s.enabledBackups, w)
			w.gate.Broadcast()
			s.mu.Unlock()
			w.wakeup()
			s.logger.Debug().
				Int(`backup`, w.index).
				Log(`jobs: backup worker enabled`)
			return
		}
	}

	first, ok := s.pool.tryAcquire()
	if !ok {
		s.mu.Unlock()
		s.logger.Err().
			Int(`fiber_capacity`, s.pool.capacity()).
			Log(`jobs: backup worker failed to start`)
		return
	}
	w := newWorker(s, len(s.backups), true, -1)
	w.enabled.Store(true)
	s.backups = append(s.backups, w)
	s.enabledBackups = append(s.enabledBackups, w)
	view := append([]*worker(nil), s.backups...)
	s.backupsView.Store(&view)
	s.mu.Unlock()

	go w.run(first)

	s.logger.Debug().
		Int(`backup`, w.index).
		Log(`jobs: backup worker started`)
}

// WorkerCount returns the number of (non-backup) workers.
func (s *Scheduler) WorkerCount() uint8 {
	return uint8(len(s.workers))
}

// ActiveWorkerCount returns the number of workers able to run any-worker
// jobs, i.e. the worker count plus enabled backup workers.
func (s *Scheduler) ActiveWorkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers) + len(s.enabledBackups)
}

// CurrentWorker returns the index of the worker running the caller, and true,
// if called from within a job. Jobs running on backup workers report
// AnyWorker.
func (s *Scheduler) CurrentWorker() (int, bool) {
	self := s.currentFiber()
	if self == nil {
		return AnyWorker, false
	}
	if self.worker.backup {
		return AnyWorker, true
	}
	return self.worker.index, true
}

// currentFiber returns the fiber of this scheduler that the calling goroutine
// is running, or nil.
func (s *Scheduler) currentFiber() *fiberSlot {
	if v, ok := s.fibers.Load(fiber.GoroutineID()); ok {
		return v.(*fiberSlot)
	}
	return nil
}

// newFiberContext creates the execution context for a slot of the pool.
func (s *Scheduler) newFiberContext(slot *fiberSlot) *fiber.Context {
	return fiber.New(func() { s.manage(slot) })
}

// acquireFiber takes a fiber from the pool, stalling until one is available.
// It must be called with s.mu held, which it may temporarily release.
func (s *Scheduler) acquireFiber() *fiberSlot {
	for {
		if slot, ok := s.pool.tryAcquire(); ok {
			return slot
		}
		s.stats.poolStalls.Add(1)
		if s.allow(`pool`) {
			s.logger.Err().
				Int(`fiber_capacity`, s.pool.capacity()).
				Log(`jobs: fiber pool exhausted`)
		}
		s.mu.Unlock()
		time.Sleep(s.opts.pollInterval)
		s.mu.Lock()
	}
}

func (s *Scheduler) pinning() bool {
	return len(s.cpus) != 0
}
