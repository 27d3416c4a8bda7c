//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Supported indicates if Pin and Reset are implemented.
const Supported = true

// matches CPU_SETSIZE, the capacity of unix.CPUSet
const maxCPUs = 1024

// CPUs returns the logical CPUs the calling thread is allowed to run on, in
// ascending order.
func CPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf(`affinity: get: %w`, err)
	}
	cpus := make([]int, 0, set.Count())
	for cpu := 0; len(cpus) < cap(cpus) && cpu < maxCPUs; cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

// Pin restricts the calling thread to a single CPU.
func Pin(cpu int) error {
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf(`affinity: pin cpu %d: %w`, cpu, err)
	}
	return nil
}

// Reset allows the calling thread to run on any of the given CPUs.
func Reset(cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	var set unix.CPUSet
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf(`affinity: reset: %w`, err)
	}
	return nil
}
