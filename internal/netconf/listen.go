//go:build unix

package netconf

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Listen opens a TCP listener on addr with SO_REUSEADDR set before
// bind, the Go-native equivalent of original_source/src/tcp.hpp's
// acceptor constructor (reuse_address(true) then bind then listen).
// Without it, repeated short benchmark runs against the same port hit
// TIME_WAIT and fail to rebind.
func Listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			err := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return setErr
		},
	}
	return lc.Listen(context.Background(), "tcp", addr)
}
