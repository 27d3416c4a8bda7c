package jobs

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// DefaultFiberCapacity is the default size of the fiber pool, which
	// bounds the number of jobs that may be suspended at once (plus one
	// fiber per worker).
	DefaultFiberCapacity = 512

	// DefaultPollInterval is the default sleep between checks, when Wait is
	// called from a goroutine that isn't running on a worker.
	DefaultPollInterval = time.Millisecond

	// DefaultMutexSpin is the default number of attempts Enter makes to
	// acquire a Mutex, before suspending.
	DefaultMutexSpin = 400
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger        *logiface.Logger[logiface.Event]
	fiberCapacity int
	pollInterval  time.Duration
	mutexSpin     int
	pinning       bool
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithLogger configures structured logging. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithFiberCapacity sets the fixed capacity of the fiber pool. Each worker
// (including backup workers) needs one fiber to start, and each suspended
// job holds one more. A capacity smaller than the worker count results in
// fewer workers.
func WithFiberCapacity(capacity int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if capacity < 0 {
			return fmt.Errorf(`jobs: invalid fiber capacity: %d`, capacity)
		}
		opts.fiberCapacity = capacity
		return nil
	}}
}

// WithCPUPinning sets whether worker threads are pinned to a single CPU
// each. Enabled by default; has no effect on platforms without support.
func WithCPUPinning(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.pinning = enabled
		return nil
	}}
}

// WithPollInterval sets the sleep between checks of a signal, when waiting
// from outside the scheduler's workers.
func WithPollInterval(interval time.Duration) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if interval <= 0 {
			return fmt.Errorf(`jobs: invalid poll interval: %s`, interval)
		}
		opts.pollInterval = interval
		return nil
	}}
}

// WithMutexSpin sets the number of acquire attempts Enter makes before
// suspending the calling fiber. Must be at least 1.
func WithMutexSpin(spin int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if spin < 1 {
			return fmt.Errorf(`jobs: invalid mutex spin: %d`, spin)
		}
		opts.mutexSpin = spin
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		fiberCapacity: DefaultFiberCapacity,
		pollInterval:  DefaultPollInterval,
		mutexSpin:     DefaultMutexSpin,
		pinning:       true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
