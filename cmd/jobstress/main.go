// Command jobstress drives a jobs.Scheduler through a set of scenarios
// (fan-out, nested waits, mutex contention, backup workers), verifying the
// results, and logging scheduler statistics as JSON.
//
// Usage:
//
//	jobstress [-config jobstress.toml] [-workers N] [-jobs N] ...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/go-jobs"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	logger := newLogger(stderr, cfg.LogLevel)

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Log(fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		logger.Warning().Err(err).Log(`jobstress: failed to set GOMAXPROCS`)
	}

	if limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroup),
	); err != nil {
		logger.Debug().Err(err).Log(`jobstress: memory limit not set`)
	} else {
		logger.Debug().Int64(`limit`, limit).Log(`jobstress: memory limit set`)
	}

	if err := stress(context.Background(), cfg, logger); err != nil {
		logger.Err().Err(err).Log(`jobstress: failed`)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, level string) *logiface.Logger[logiface.Event] {
	// validated by parseFlags
	lvl, _ := parseLevel(level)
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(lvl),
	).Logger()
}

// stress starts a scheduler, runs every scenario, then shuts it down.
func stress(ctx context.Context, cfg Config, logger *logiface.Logger[logiface.Event]) (err error) {
	sched, err := jobs.New(
		cfg.Workers,
		jobs.WithLogger(logger),
		jobs.WithFiberCapacity(cfg.FiberCapacity),
		jobs.WithPollInterval(cfg.PollInterval.Duration),
		jobs.WithMutexSpin(cfg.MutexSpin),
		jobs.WithCPUPinning(cfg.Pinning),
	)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout.Duration)
		defer cancel()
		if e := sched.Shutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf(`jobstress: shutdown: %w`, e)
		}
	}()

	for _, sc := range scenarios {
		if err := sc.run(sched, cfg); err != nil {
			return fmt.Errorf(`jobstress: %s: %w`, sc.name, err)
		}
		stats := sched.Stats()
		logger.Info().
			Str(`scenario`, sc.name).
			Uint64(`jobs_executed`, stats.JobsExecuted).
			Uint64(`fiber_waits`, stats.FiberWaits).
			Uint64(`mutex_waits`, stats.MutexWaits).
			Uint64(`fiber_switches`, stats.FiberSwitches).
			Int(`fibers_created`, stats.FibersCreated).
			Log(`jobstress: scenario passed`)
	}

	return nil
}
