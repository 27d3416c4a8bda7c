// Package jobs implements a cooperative job scheduler: a fixed set of workers
// that run short-lived jobs on top of a fixed pool of fibers, with counting
// synchronisation primitives ([Signal], [Mutex]) that suspend the waiting
// fiber rather than blocking its worker.
//
// # Architecture
//
// A [Scheduler] owns N workers, each a logical thread that runs exactly one
// fiber at a time. A fiber is a goroutine that only runs when it holds the
// worker's token, handed over explicitly on every switch. Jobs are executed
// directly on the worker's current fiber. When a job waits on a red signal,
// its fiber is parked on the signal's wait list, and the worker continues on
// a spare fiber from the pool. Once the signal turns green, the parked
// fibers are moved onto ready stacks, and resumed by whichever worker picks
// them up next.
//
// Each worker searches for work in the following order:
//  1. Its own ready fibers
//  2. Its own jobs (submitted via [Scheduler.RunOnWorker])
//  3. Global ready fibers
//  4. Global jobs (submitted via [Scheduler.Run])
//
// All queues are LIFO.
//
// # Backup Workers
//
// Jobs that wait on each other can exhaust every worker. Backup workers
// ([Scheduler.EnableBackupWorker]) are unpinned extra workers, that only run
// any-worker jobs, and may be toggled at runtime.
//
// # Thread Safety
//
//   - [Scheduler.Run], [Scheduler.RunOnWorker], [Scheduler.Wait],
//     [Scheduler.SetRed] and [Scheduler.SetGreen] are safe to call from any
//     goroutine
//   - [Scheduler.Wait] polls, when called from outside a job
//   - [Scheduler.Enter] and [Scheduler.Exit] may only be called from within a
//     job
//
// Misuse, such as a signal counter that would go negative, panics with an
// [*InvariantError].
//
// # CPU Pinning
//
// On Linux, workers are pinned to one CPU each, chosen from the CPUs the
// process may run on. Fibers lock their goroutine to an OS thread, and are
// re-pinned when resumed by a different worker. See [WithCPUPinning].
//
// # Usage
//
//	sched, err := jobs.New(0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sched.Shutdown(context.Background())
//
//	var done jobs.Signal
//	for i := range 10 {
//	    _ = sched.Run(i, func(data any) {
//	        fmt.Println(data)
//	    }, &done)
//	}
//	sched.Wait(&done)
package jobs
