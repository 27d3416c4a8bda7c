package jobs

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrClosed is returned when operations are attempted on a scheduler
	// that has been shut down.
	ErrClosed = errors.New(`jobs: scheduler has been shut down`)

	// ErrNoWorkers is returned by New if not a single worker could be
	// started.
	ErrNoWorkers = errors.New(`jobs: no worker could be started`)

	// ErrReentrantShutdown is returned when Shutdown is called from within a
	// job.
	ErrReentrantShutdown = errors.New(`jobs: cannot call Shutdown from within a job`)
)

// InvariantError is the panic value used for misuse of the scheduler, e.g.
// a signal counter that would go negative. These are programming errors, and
// are never returned.
type InvariantError struct {
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.Message == `` {
		return `jobs: invariant violated`
	}
	return `jobs: invariant violated: ` + e.Message
}

func invariantf(format string, args ...any) {
	panic(&InvariantError{Message: fmt.Sprintf(format, args...)})
}
