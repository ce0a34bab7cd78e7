// Package echoserver implements the line-reversal protocol both server
// executables serve: read up to and including the line separator,
// return a byte-for-byte response of equal length ending in the same
// separator (the reference behaviour reverses the line excluding the
// separator). The wire protocol is otherwise opaque; the
// client never parses response content.
package echoserver

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	"github.com/mkevac/tcpblast/internal/logging"
	"github.com/mkevac/tcpblast/internal/netbuf"
	"github.com/mkevac/tcpblast/internal/payload"
)

// IdleTimeout is the per-connection inactivity timeout both servers
// enforce.
const IdleTimeout = 300 * time.Second

// reverse returns a line's bytes with the separator kept last and the
// rest reversed in place, matching the reference server's byte-for-byte
// equal-length, equal-ending response.
func reverse(line []byte) []byte {
	n := len(line)
	if n == 0 {
		return line
	}
	out := make([]byte, n)
	body := line[:n-1]
	for i, b := range body {
		out[len(body)-1-i] = b
	}
	out[n-1] = payload.LineSeparator
	return out
}

// HandleSync serves one connection to completion using blocking reads
// with a per-read deadline, the synchronous server's collaborator
// (grounded on original_source/src/tcp.hpp's deadline-driven
// recv_some/send_some, re-expressed with net.Conn.SetReadDeadline
// instead of a timerfd+ppoll pair).
func HandleSync(conn net.Conn, log *logging.Logger) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(IdleTimeout)); err != nil {
			log.Warn("set deadline: %s: %s", conn.RemoteAddr(), err)
			return
		}

		line, err := r.ReadBytes(payload.LineSeparator)
		if err != nil {
			handleReadError(conn, log, line, err)
			return
		}

		if _, err := conn.Write(reverse(line)); err != nil {
			log.Warn("write: %s: %s", conn.RemoteAddr(), err)
			return
		}
	}
}

// HandleAsync serves one connection using a growable receive buffer so
// multiple pipelined requests in a single read are each answered in
// order — the async server's collaborator, using netbuf.Buffer instead
// of bufio.Reader's fixed internal buffer so an unusually long line
// never stalls waiting for a bigger read.
func HandleAsync(conn net.Conn, log *logging.Logger) {
	defer conn.Close()

	var buf netbuf.Buffer
	for {
		if err := conn.SetReadDeadline(time.Now().Add(IdleTimeout)); err != nil {
			log.Warn("set deadline: %s: %s", conn.RemoteAddr(), err)
			return
		}

		buf.Reserve(4096)
		n, err := conn.Read(buf.Available())
		if n > 0 {
			buf.Advance(n)
			for {
				line, ok := takeLine(&buf)
				if !ok {
					break
				}
				if _, werr := conn.Write(reverse(line)); werr != nil {
					log.Warn("write: %s: %s", conn.RemoteAddr(), werr)
					return
				}
			}
		}
		if err != nil {
			handleReadError(conn, log, remainder(&buf), err)
			return
		}
	}
}

// takeLine pops one complete line (including the separator) off the
// front of buf, if one is present.
func takeLine(buf *netbuf.Buffer) ([]byte, bool) {
	data := buf.Bytes()
	for i, b := range data {
		if b == payload.LineSeparator {
			line := make([]byte, i+1)
			copy(line, data[:i+1])
			buf.Drain(i + 1)
			return line, true
		}
	}
	return nil, false
}

func remainder(buf *netbuf.Buffer) []byte {
	return buf.Bytes()
}

func handleReadError(conn net.Conn, log *logging.Logger, residual []byte, err error) {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		log.Warn("operation timeout: %s", conn.RemoteAddr())
		return
	}
	if errors.Is(err, io.EOF) {
		if len(residual) > 0 {
			log.Warn("protocol violation: %s", conn.RemoteAddr())
		}
		return
	}
	log.Warn("read: %s: %s", conn.RemoteAddr(), err)
}
