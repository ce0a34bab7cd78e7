// Package session implements a single pipelined TCP connection: one
// outstanding write and one outstanding read at a time, coupled so
// that a completed send hands its request off to the receive
// pipeline without copying the payload.
//
// Generalized from a goroutine-per-connection style, where one
// goroutine owns the whole connection, to one goroutine owning exactly
// the in-flight write and one owning exactly the in-flight read, so
// sends and receives pipeline independently.
package session

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mkevac/tcpblast/internal/payload"
)

// request is a pending roundtrip: a payload block awaiting send, or
// already sent and awaiting its matching receive.
type request struct {
	block    payload.Block
	callback func(error)
}

// Session is one TCP connection pipelining independent send and
// receive queues. Session's own state (the queues and busy flags) is
// guarded by a mutex because, unlike the single-threaded reactor of
// the C++ original, each in-flight read and write runs on its own
// goroutine here; the mutex replaces the original's "only the reactor
// thread touches this" invariant.
type Session struct {
	addr        string
	dialTimeout time.Duration

	mu        sync.Mutex
	conn      net.Conn
	sendQueue []*request
	recvQueue []*request
	sendBusy  bool
	recvBusy  bool
}

// New returns a session that will dial addr when Connect is called.
func New(addr string, dialTimeout time.Duration) *Session {
	return &Session{addr: addr, dialTimeout: dialTimeout}
}

// Connect establishes the TCP connection and disables Nagle's
// algorithm. It is a one-shot attempt; any error is fatal to the
// session (and to the process).
func (s *Session) Connect(cb func(error)) {
	go func() {
		d := net.Dialer{Timeout: s.dialTimeout}
		conn, err := d.Dial("tcp", s.addr)
		if err != nil {
			cb(fmt.Errorf("session: connect %s: %w", s.addr, err))
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			if err := tc.SetNoDelay(true); err != nil {
				cb(fmt.Errorf("session: setnodelay %s: %w", s.addr, err))
				return
			}
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		cb(nil)
	}()
}

// RoundTrip enqueues a send of block; cb fires once the matching
// response of the same byte length has been fully received. Requests
// submitted to the same session complete in submission order.
func (s *Session) RoundTrip(block payload.Block, cb func(error)) {
	req := &request{block: block, callback: cb}
	s.mu.Lock()
	if !s.sendBusy {
		s.sendBusy = true
		s.mu.Unlock()
		s.send(req)
		return
	}
	s.sendQueue = append(s.sendQueue, req)
	s.mu.Unlock()
}

func (s *Session) send(req *request) {
	go func() {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		if _, err := conn.Write(req.block.Data); err != nil {
			req.callback(fmt.Errorf("session: write %s: %w", s.addr, err))
			return
		}
		s.handoffRecv(req)
		s.promoteSend()
	}()
}

func (s *Session) promoteSend() {
	s.mu.Lock()
	if len(s.sendQueue) == 0 {
		s.sendBusy = false
		s.mu.Unlock()
		return
	}
	next := s.sendQueue[0]
	s.sendQueue = s.sendQueue[1:]
	s.mu.Unlock()
	s.send(next)
}

func (s *Session) handoffRecv(req *request) {
	s.mu.Lock()
	if !s.recvBusy {
		s.recvBusy = true
		s.mu.Unlock()
		s.recv(req)
		return
	}
	s.recvQueue = append(s.recvQueue, req)
	s.mu.Unlock()
}

func (s *Session) recv(req *request) {
	go func() {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		buf := make([]byte, len(req.block.Data))
		if _, err := io.ReadFull(conn, buf); err != nil {
			req.callback(fmt.Errorf("session: read %s: %w", s.addr, err))
			return
		}
		req.callback(nil)
		s.promoteRecv()
	}()
}

func (s *Session) promoteRecv() {
	s.mu.Lock()
	if len(s.recvQueue) == 0 {
		s.recvBusy = false
		s.mu.Unlock()
		return
	}
	next := s.recvQueue[0]
	s.recvQueue = s.recvQueue[1:]
	s.mu.Unlock()
	s.recv(next)
}

// Close releases the underlying connection, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// InFlight reports the number of requests currently held by the
// session (queued plus in-flight on the wire), for tests.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sendQueue) + len(s.recvQueue)
	if s.sendBusy {
		n++
	}
	if s.recvBusy {
		n++
	}
	return n
}
