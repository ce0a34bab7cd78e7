// Package worker implements the driver loop: one per CPU,
// tying a pacer, a dispatcher, and a payload generator together into a
// self-pacing request stream.
package worker

import (
	"time"

	"github.com/mkevac/tcpblast/internal/cpuaffinity"
	"github.com/mkevac/tcpblast/internal/dispatcher"
	"github.com/mkevac/tcpblast/internal/logging"
	"github.com/mkevac/tcpblast/internal/pacer"
	"github.com/mkevac/tcpblast/internal/payload"
)

// DialTimeout bounds a single session's connect attempt.
const DialTimeout = 5 * time.Second

// resultBacklog sizes the channel completions are delivered on; it
// only needs to absorb bursts between driver loop iterations, not
// steady-state depth.
const resultBacklog = 4096

// Config configures one worker.
type Config struct {
	CPU            int
	Addrs          []string
	RatePerSecond  float64
	BulkConnectMax int
	MessageRange   int
	Reporter       pacer.Reporter
	Logger         *logging.Logger
	RandomSeed     int64

	// Base is the time origin shared by every worker's pacer and by
	// the controller's timeline. It must be the same value across all
	// workers: the controller only drains a bucket once every worker
	// has contributed an update that reaches it, so workers seeded
	// from independent clock reads never share a bucket edge.
	Base time.Time
}

// Worker is one driver: a reactor goroutine driving pacer → dispatcher
// against its own sessions, pinned to one CPU.
type Worker struct {
	cfg        Config
	dispatcher *dispatcher.Dispatcher
	pacer      *pacer.Pacer
	gen        *payload.Generator
}

type completion struct {
	err   error
	start time.Time
}

// New builds a worker from cfg. The payload generator and dispatcher
// are constructed eagerly; sessions aren't dialed until Run calls
// BulkConnect.
func New(cfg Config) (*Worker, error) {
	gen, err := payload.New(cfg.MessageRange)
	if err != nil {
		return nil, err
	}
	d := dispatcher.New(cfg.Addrs, DialTimeout, cfg.RandomSeed)
	return &Worker{
		cfg:        cfg,
		dispatcher: d,
		gen:        gen,
	}, nil
}

// Run pins the calling goroutine to the worker's CPU, bulk-connects
// its sessions, then runs the driver loop until a fatal error logs and
// terminates the process. Run never returns on the success path: the
// harness runs until killed.
func (w *Worker) Run() {
	if err := cpuaffinity.Pin([]int{w.cfg.CPU}); err != nil {
		w.cfg.Logger.Warn("cpu affinity: %s", err)
	}

	connected := make(chan error, 1)
	w.dispatcher.BulkConnect(w.cfg.BulkConnectMax, func(err error) {
		connected <- err
	})
	if err := <-connected; err != nil {
		w.cfg.Logger.Fatal("bulk-connect: %s", err)
		return
	}

	w.pacer = pacer.New(w.cfg.RatePerSecond, w.dispatcher.Len(), w.cfg.Reporter, w.cfg.Base)

	resultCh := make(chan completion, resultBacklog)
	nextDue := time.Now()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		now := time.Now()
		for !nextDue.After(now) {
			start := now
			w.dispatcher.RoundTrip(w.gen.Next(), func(err error) {
				resultCh <- completion{err: err, start: start}
			})
			nextDue = nextDue.Add(w.pacer.Initiated(now))
		}

		timer.Reset(dueIn(nextDue))
		select {
		case <-timer.C:
		case r := <-resultCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			w.handleCompletion(r)
		}
	}
}

func dueIn(nextDue time.Time) time.Duration {
	d := time.Until(nextDue)
	if d < 0 {
		return 0
	}
	return d
}

func (w *Worker) handleCompletion(r completion) {
	if r.err != nil {
		w.cfg.Logger.Fatal("fatal session error: %s", r.err)
		return
	}
	now := time.Now()
	w.pacer.Completed(now, now.Sub(r.start))
}
