// Package dispatcher owns a worker's sessions: it bulk-connects them
// with bounded in-flight connect attempts and routes each roundtrip to
// a uniformly random session.
package dispatcher

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mkevac/tcpblast/internal/payload"
	"github.com/mkevac/tcpblast/internal/session"
)

// Dispatcher is owned exclusively by one worker; RoundTrip must only
// be called from that worker's own goroutine (it draws from an
// unsynchronized *rand.Rand).
type Dispatcher struct {
	sessions []*session.Session
	rng      *rand.Rand
}

// New builds a dispatcher over one session per address in addrs.
func New(addrs []string, dialTimeout time.Duration, seed int64) *Dispatcher {
	sessions := make([]*session.Session, len(addrs))
	for i, addr := range addrs {
		sessions[i] = session.New(addr, dialTimeout)
	}
	return &Dispatcher{
		sessions: sessions,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// BulkConnect establishes every session with at most budget connect
// attempts outstanding at once, calling done exactly once: with nil
// once every session has connected, or with the first error
// encountered (any later results are discarded).
//
// Sessions are walked in reverse index order and new connects started
// while fewer than budget are outstanding, so that a worker with many
// sessions doesn't open them all in one stampede.
func (d *Dispatcher) BulkConnect(budget int, done func(error)) {
	if len(d.sessions) == 0 {
		done(nil)
		return
	}
	if budget < 1 {
		budget = 1
	}

	var (
		mu          sync.Mutex
		once        sync.Once
		outstanding int
		next        = len(d.sessions) - 1
	)

	var kick func()
	kick = func() {
		mu.Lock()
		for next >= 0 && outstanding < budget {
			i := next
			next--
			outstanding++
			mu.Unlock()

			d.sessions[i].Connect(func(err error) {
				if err != nil {
					once.Do(func() { done(err) })
					return
				}
				mu.Lock()
				outstanding--
				finished := next < 0 && outstanding == 0
				mu.Unlock()
				if finished {
					once.Do(func() { done(nil) })
				} else {
					kick()
				}
			})

			mu.Lock()
		}
		mu.Unlock()
	}
	kick()
}

// RoundTrip picks a session uniformly at random and forwards block to
// it. Random selection, rather than round-robin, avoids adversarial
// alignment between the worker's pacing tick and a session's busy
// state.
func (d *Dispatcher) RoundTrip(block payload.Block, cb func(error)) {
	if len(d.sessions) == 0 {
		cb(fmt.Errorf("dispatcher: no sessions configured"))
		return
	}
	i := d.rng.Intn(len(d.sessions))
	d.sessions[i].RoundTrip(block, cb)
}

// Len reports the session count, the pacer's concurrency threshold.
func (d *Dispatcher) Len() int {
	return len(d.sessions)
}

// Close closes every session's connection.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, s := range d.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
