// Package affinity restricts OS threads to logical CPUs.
//
// All functions operate on the calling OS thread, so callers must hold it via
// runtime.LockOSThread, for the effect to be meaningful.
package affinity

import (
	"errors"
)

// ErrUnsupported is returned by Pin and Reset on platforms without thread
// affinity support.
var ErrUnsupported = errors.New(`affinity: unsupported platform`)

// Select maps an index (e.g. a worker number) onto one of the given CPUs,
// wrapping around, or returns -1 if cpus is empty.
func Select(cpus []int, index int) int {
	if len(cpus) == 0 || index < 0 {
		return -1
	}
	return cpus[index%len(cpus)]
}
