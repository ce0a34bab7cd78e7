// Package pacer implements the per-worker rate governor: it decides
// the delay before the next request and records completion latency,
// pushing an activity window to a shared Reporter on the first
// completion that arrives at least 100ms after the previous push.
//
// A Pacer belongs to exactly one worker goroutine; Initiated and
// Completed must only ever be called from that goroutine, so the
// struct itself needs no synchronization.
package pacer

import "time"

// minReportGap is the pacer's own local reporting cadence — much
// finer than the controller's 5s report interval, so the controller
// can apportion mass across its boundaries without requiring workers
// to synchronize with each other.
const minReportGap = 100 * time.Millisecond

// Reporter receives merged per-worker activity windows. *stats.Controller
// implements this.
type Reporter interface {
	Update(from, to time.Time, completedCount int, latencySum time.Duration, deltaPending int, deltaAwaiting time.Duration)
}

// Pacer tracks one worker's target rate, in-flight load, and latency
// since its last report.
type Pacer struct {
	rate      float64 // target requests/second
	threshold float64 // concurrency threshold t (the worker's session count)
	reporter  Reporter

	baseTime time.Time

	nPending int
	sPending time.Duration // sum of (submit_time - baseTime) over in-flight requests

	nCompletedWindow int
	sCompletedWindow time.Duration

	nPrev         int
	sPrevAwaiting time.Duration
	lastReport    time.Time
}

// New returns a pacer targeting rate requests/second, with threshold
// (typically the worker's session count) as its concurrency reference
// point, reporting to reporter starting from base.
func New(rate float64, threshold int, reporter Reporter, base time.Time) *Pacer {
	return &Pacer{
		rate:       rate,
		threshold:  float64(threshold),
		reporter:   reporter,
		baseTime:   base,
		lastReport: base,
	}
}

// Initiated records a new request starting at now and returns the
// interval to wait before the next one. Below the concurrency
// threshold the interval is exactly 1/rate; above it, the interval
// grows linearly with the excess, providing back-pressure without a
// hard cap.
func (p *Pacer) Initiated(now time.Time) time.Duration {
	tau := time.Duration(float64(time.Second) / p.rate)

	p.nPending++
	p.sPending += now.Sub(p.baseTime)

	if p.threshold > 0 && float64(p.nPending) > p.threshold {
		factor := 1 + float64(p.nPending)/p.threshold
		return time.Duration(float64(tau) * factor)
	}
	return tau
}

// Completed records a request that started elapsed ago and completed
// at now. Every ≥100ms it also pushes the accumulated activity window
// to the reporter and resets the window.
func (p *Pacer) Completed(now time.Time, elapsed time.Duration) {
	p.nPending--
	p.sPending -= now.Sub(p.baseTime) - elapsed

	p.nCompletedWindow++
	p.sCompletedWindow += elapsed

	if now.Sub(p.lastReport) < minReportGap {
		return
	}

	// awaiting is the exact area under the in-flight curve over
	// [baseTime, now); subtracting the previous snapshot yields the
	// area over just the window that's closing.
	awaiting := time.Duration(p.nPending)*now.Sub(p.baseTime) - p.sPending

	p.reporter.Update(
		p.lastReport, now,
		p.nCompletedWindow, p.sCompletedWindow,
		p.nPending-p.nPrev, awaiting-p.sPrevAwaiting,
	)

	p.nCompletedWindow = 0
	p.sCompletedWindow = 0
	p.nPrev = p.nPending
	p.sPrevAwaiting = awaiting
	p.lastReport = now
}

// Pending reports the current in-flight count, for tests.
func (p *Pacer) Pending() int {
	return p.nPending
}
