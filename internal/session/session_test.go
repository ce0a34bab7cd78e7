package session

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mkevac/tcpblast/internal/payload"
)

// echoLoopback starts a listener that writes every line it reads back
// unchanged (an equal-length response, like the echo servers' protocol,
// which is enough to exercise Session's read/write pipelining) and
// returns its address.
func echoLoopback(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadBytes('\n')
					if err != nil {
						return
					}
					if _, err := c.Write(line); err != nil {
						return
					}
				}
			}(c)
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestRoundTripCompletes(t *testing.T) {
	addr, stop := echoLoopback(t)
	defer stop()

	s := New(addr, time.Second)
	defer s.Close()

	connected := make(chan error, 1)
	s.Connect(func(err error) { connected <- err })
	if err := <-connected; err != nil {
		t.Fatalf("Connect: %s", err)
	}

	done := make(chan error, 1)
	s.RoundTrip(payload.Block{Data: []byte("hello\n")}, func(err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RoundTrip: %s", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RoundTrip: timed out")
	}
}

// TestRoundTripsCompleteInSubmissionOrder exercises invariant #1/#2:
// requests pipelined on one session complete in the order submitted.
func TestRoundTripsCompleteInSubmissionOrder(t *testing.T) {
	addr, stop := echoLoopback(t)
	defer stop()

	s := New(addr, time.Second)
	defer s.Close()

	connected := make(chan error, 1)
	s.Connect(func(err error) { connected <- err })
	if err := <-connected; err != nil {
		t.Fatalf("Connect: %s", err)
	}

	const n = 20
	var (
		mu        sync.Mutex
		completed []int
	)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		i := i
		s.RoundTrip(payload.Block{Data: []byte("x\n")}, func(err error) {
			if err != nil {
				t.Errorf("RoundTrip %d: %s", i, err)
			}
			mu.Lock()
			completed = append(completed, i)
			if len(completed) == n {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RoundTrips: timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range completed {
		if v != i {
			t.Fatalf("completion order: %v, want 0..%d in order", completed, n-1)
		}
	}
}

func TestInFlightZeroBeforeAnyRoundTrip(t *testing.T) {
	addr, stop := echoLoopback(t)
	defer stop()

	s := New(addr, time.Second)
	defer s.Close()

	connected := make(chan error, 1)
	s.Connect(func(err error) { connected <- err })
	<-connected

	if got := s.InFlight(); got != 0 {
		t.Fatalf("InFlight before any RoundTrip: got %d, want 0", got)
	}
}

func TestConnectErrorOnUnreachableAddr(t *testing.T) {
	s := New("127.0.0.1:1", 100*time.Millisecond)
	done := make(chan error, 1)
	s.Connect(func(err error) { done <- err })
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Connect to unreachable addr: expected error, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect: timed out")
	}
}
