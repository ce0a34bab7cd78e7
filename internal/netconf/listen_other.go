//go:build !unix

package netconf

import "net"

// Listen opens a plain TCP listener; SO_REUSEADDR tuning is a
// unix-only concern here.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
