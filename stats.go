package jobs

import (
	"sync/atomic"
)

type (
	// Stats is a point in time snapshot of scheduler state and counters,
	// intended for diagnostics. Counters are cumulative.
	Stats struct {
		Workers              int
		BackupWorkers        int
		EnabledBackupWorkers int
		FiberCapacity        int
		// FibersCreated is the number of pool slots that have been used at
		// least once.
		FibersCreated int
		FreeFibers    int
		JobsExecuted  uint64
		// FiberSwitches counts resumptions of ready (previously waiting)
		// fibers.
		FiberSwitches uint64
		FiberWaits    uint64
		MutexWaits    uint64
		// BusyPolls counts waits from outside any worker.
		BusyPolls uint64
		// PoolStalls counts failed attempts to acquire a fiber.
		PoolStalls uint64
	}

	counters struct {
		jobsExecuted  atomic.Uint64
		fiberSwitches atomic.Uint64
		fiberWaits    atomic.Uint64
		mutexWaits    atomic.Uint64
		busyPolls     atomic.Uint64
		poolStalls    atomic.Uint64
	}
)

// Stats returns a snapshot of the scheduler's state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Workers:              len(s.workers),
		BackupWorkers:        len(s.backups),
		EnabledBackupWorkers: len(s.enabledBackups),
		FiberCapacity:        s.pool.capacity(),
		FibersCreated:        s.pool.created,
		FreeFibers:           s.pool.available(),
		JobsExecuted:         s.stats.jobsExecuted.Load(),
		FiberSwitches:        s.stats.fiberSwitches.Load(),
		FiberWaits:           s.stats.fiberWaits.Load(),
		MutexWaits:           s.stats.mutexWaits.Load(),
		BusyPolls:            s.stats.busyPolls.Load(),
		PoolStalls:           s.stats.poolStalls.Load(),
	}
}
