package dispatcher

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkevac/tcpblast/internal/payload"
)

// listenLoopback starts a listener that accepts and immediately parks
// connections open (never closing them), so bulk-connect attempts
// succeed without needing a real echo server.
func listenLoopback(t *testing.T) (net.Listener, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	var conns []net.Conn
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	return ln, func() {
		close(done)
		ln.Close()
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
	}
}

func TestBulkConnectConnectsEverySession(t *testing.T) {
	ln, cleanup := listenLoopback(t)
	defer cleanup()

	addrs := make([]string, 20)
	for i := range addrs {
		addrs[i] = ln.Addr().String()
	}
	d := New(addrs, time.Second, 1)
	defer d.Close()

	done := make(chan error, 1)
	d.BulkConnect(4, func(err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("BulkConnect: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("BulkConnect: timed out")
	}
}

// TestBulkConnectBudgetBound exercises testable property S9: the
// number of simultaneously outstanding connect attempts never exceeds
// the configured budget. A slow-accepting listener widens the window
// in which an over-budget implementation would be caught.
func TestBulkConnectBudgetBound(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	defer ln.Close()

	const budget = 3
	var (
		outstanding int64
		maxSeen     int64
	)

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			cur := atomic.AddInt64(&outstanding, 1)
			for {
				old := atomic.LoadInt64(&maxSeen)
				if cur <= old || atomic.CompareAndSwapInt64(&maxSeen, old, cur) {
					break
				}
			}
			go func(c net.Conn) {
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&outstanding, -1)
				c.Close()
			}(c)
		}
	}()

	addrs := make([]string, 30)
	for i := range addrs {
		addrs[i] = ln.Addr().String()
	}
	d := New(addrs, time.Second, 2)

	done := make(chan error, 1)
	d.BulkConnect(budget, func(err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("BulkConnect: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("BulkConnect: timed out")
	}

	if got := atomic.LoadInt64(&maxSeen); got > budget {
		t.Errorf("peak outstanding connects = %d, want <= %d", got, budget)
	}
}

func TestBulkConnectEmptyDispatcherCompletesImmediately(t *testing.T) {
	d := New(nil, time.Second, 1)
	done := make(chan error, 1)
	d.BulkConnect(4, func(err error) { done <- err })
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("BulkConnect on empty dispatcher: %s", err)
		}
	case <-time.After(time.Second):
		t.Fatal("BulkConnect on empty dispatcher: timed out")
	}
}

func TestRoundTripNoSessionsErrors(t *testing.T) {
	d := New(nil, time.Second, 1)
	done := make(chan error, 1)
	d.RoundTrip(payload.Block{Data: []byte("x\n")}, func(err error) { done <- err })
	if err := <-done; err == nil {
		t.Fatal("RoundTrip on empty dispatcher: expected error, got nil")
	}
}
