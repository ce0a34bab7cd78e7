//go:build linux

// Package netconf reads host networking limits the CLI uses as
// defaults, the Go-native equivalent of original_source reading
// /proc/sys/net/core/somaxconn for the bulk-connect budget default.
package netconf

import (
	"os"
	"strconv"
	"strings"
)

// DefaultBacklog is used when the sysctl can't be read (non-Linux,
// sandboxed /proc).
const DefaultBacklog = 128

// somaxconnPath is net.core.somaxconn as exposed under /proc on Linux;
// there is no BSD-style sysctl(3) syscall wrapper for it in
// golang.org/x/sys/unix, so we read the proc file directly.
const somaxconnPath = "/proc/sys/net/core/somaxconn"

// ListenBacklogMax returns the kernel's maximum listen(2) backlog,
// net.core.somaxconn, or DefaultBacklog if it can't be determined.
func ListenBacklogMax() int {
	raw, err := os.ReadFile(somaxconnPath)
	if err != nil {
		return DefaultBacklog
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || n <= 0 {
		return DefaultBacklog
	}
	return n
}
