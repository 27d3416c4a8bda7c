package main

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-jobs"
	"golang.org/x/sync/errgroup"
)

type scenario struct {
	name string
	run  func(sched *jobs.Scheduler, cfg Config) error
}

var scenarios = []scenario{
	{`fan_out`, fanOut},
	{`tree`, tree},
	{`mutex`, mutex},
	{`backup`, backup},
}

// fanOut submits jobs from several goroutines at once, spread across every
// worker and the global queue, then waits on all of them.
func fanOut(sched *jobs.Scheduler, cfg Config) error {
	var (
		done      jobs.Signal
		count     atomic.Int64
		misplaced atomic.Int64
	)
	workers := int(sched.WorkerCount())
	var g errgroup.Group
	for i := range cfg.FanOut.Submitters {
		n := cfg.FanOut.Jobs / cfg.FanOut.Submitters
		if i < cfg.FanOut.Jobs%cfg.FanOut.Submitters {
			n++
		}
		g.Go(func() error {
			for j := range n {
				worker := j%(workers+1) - 1
				if err := sched.RunOnWorker(worker, func(data any) {
					if w := data.(int); w != jobs.AnyWorker {
						if index, _ := sched.CurrentWorker(); index != w {
							misplaced.Add(1)
						}
					}
					count.Add(1)
				}, &done, worker); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sched.Wait(&done)
	if n := count.Load(); n != int64(cfg.FanOut.Jobs) {
		return fmt.Errorf(`executed %d jobs, want %d`, n, cfg.FanOut.Jobs)
	}
	if n := misplaced.Load(); n != 0 {
		return fmt.Errorf(`%d jobs ran on the wrong worker`, n)
	}
	return nil
}

// tree spawns a tree of jobs, where every inner job waits on its children.
func tree(sched *jobs.Scheduler, cfg Config) error {
	var count atomic.Int64
	var spawn func(level int)
	spawn = func(level int) {
		count.Add(1)
		if level == cfg.Tree.Depth {
			return
		}
		var children jobs.Signal
		for range cfg.Tree.Fanout {
			if err := sched.Run(level+1, func(data any) { spawn(data.(int)) }, &children); err != nil {
				panic(err)
			}
		}
		sched.Wait(&children)
	}

	var done jobs.Signal
	if err := sched.Run(0, func(data any) { spawn(data.(int)) }, &done); err != nil {
		return err
	}
	sched.Wait(&done)

	var want, width int64 = 0, 1
	for range cfg.Tree.Depth + 1 {
		want += width
		width *= int64(cfg.Tree.Fanout)
	}
	if n := count.Load(); n != want {
		return fmt.Errorf(`executed %d jobs, want %d`, n, want)
	}
	return nil
}

// mutex increments an unsynchronised counter from contending jobs.
func mutex(sched *jobs.Scheduler, cfg Config) error {
	var (
		done    jobs.Signal
		m       jobs.Mutex
		counter int
	)
	for range cfg.Mutex.Jobs {
		if err := sched.Run(nil, func(any) {
			for range cfg.Mutex.Rounds {
				sched.Enter(&m)
				counter++
				sched.Exit(&m)
			}
		}, &done); err != nil {
			return err
		}
	}
	sched.Wait(&done)
	if want := cfg.Mutex.Jobs * cfg.Mutex.Rounds; counter != want {
		return fmt.Errorf(`counter is %d, want %d`, counter, want)
	}
	return nil
}

// backup enables backup workers, runs jobs that may use them, then disables
// them again.
func backup(sched *jobs.Scheduler, cfg Config) error {
	base := sched.ActiveWorkerCount()
	for range cfg.Backup.Workers {
		sched.EnableBackupWorker(true)
	}
	if n := sched.ActiveWorkerCount(); n != base+cfg.Backup.Workers {
		return fmt.Errorf(`%d active workers after enabling, want %d`, n, base+cfg.Backup.Workers)
	}

	var (
		done  jobs.Signal
		count atomic.Int64
	)
	jobCount := 100 * (base + cfg.Backup.Workers)
	for range jobCount {
		if err := sched.Run(nil, func(any) { count.Add(1) }, &done); err != nil {
			return err
		}
	}
	sched.Wait(&done)
	if n := count.Load(); n != int64(jobCount) {
		return fmt.Errorf(`executed %d jobs, want %d`, n, jobCount)
	}

	for range cfg.Backup.Workers {
		sched.EnableBackupWorker(false)
	}
	if n := sched.ActiveWorkerCount(); n != base {
		return fmt.Errorf(`%d active workers after disabling, want %d`, n, base)
	}
	return nil
}
