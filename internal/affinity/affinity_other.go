//go:build !linux

package affinity

import (
	"runtime"
)

// Supported indicates if Pin and Reset are implemented.
const Supported = false

// CPUs returns 0 to runtime.NumCPU()-1.
func CPUs() ([]int, error) {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus, nil
}

func Pin(int) error { return ErrUnsupported }

func Reset([]int) error { return ErrUnsupported }
