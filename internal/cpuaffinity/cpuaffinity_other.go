//go:build !linux

package cpuaffinity

import "errors"

// Pin is unsupported outside Linux; the harness's Non-goals exclude
// portability beyond POSIX with per-thread CPU affinity, so
// callers treat a non-nil error here as "pin unavailable on this
// platform" rather than fatal.
func Pin(cpus []int) error {
	return errors.New("cpuaffinity: CPU pinning is only supported on linux")
}
