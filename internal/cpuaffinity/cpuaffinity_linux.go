//go:build linux

// Package cpuaffinity pins the calling goroutine's OS thread to a set
// of CPUs, the Go rendition of original_source/src/thread.hpp's
// thread_affinity (pthread_setaffinity_np over a cpu_set_t).
//
// golang.org/x/sys/unix is this module's sole third-party dependency;
// it previously drove zero-copy splice(2)/tee(2) forwarding for a
// connection proxy this harness has no use for (see DESIGN.md). Here
// it drives sched_setaffinity(2) instead.
package cpuaffinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its current OS thread and
// restricts that thread to the given CPU indices. Callers must not
// have other goroutines relying on this OS thread afterward.
func Pin(cpus []int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("cpuaffinity: sched_setaffinity %v: %w", cpus, err)
	}
	return nil
}
