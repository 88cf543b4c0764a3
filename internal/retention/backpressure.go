package retention

import (
	"sync"
	"sync/atomic"
	"time"
)

// Backpressure adapts the artifact sweep concurrency to recent object storage
// behavior, so a retention cycle does not pile parallel deletes onto a store
// that is already failing them.
//
// When the deletion failure rate in the sliding window exceeds the threshold,
// concurrency is halved. When deletions recover, concurrency ramps back up.
// A cycle with a large backlog pauses entirely while the failure rate is
// high; small backlogs are always processed so the controller keeps getting
// fresh outcomes to recover on.
type Backpressure struct {
	maxConcurrency int32
	minConcurrency int32
	threshold      float64
	window         time.Duration

	concurrency atomic.Int32

	mu       sync.Mutex
	attempts []deleteOutcome
}

type deleteOutcome struct {
	at time.Time
	ok bool
}

// NewBackpressure creates a controller for sweep concurrency between min and
// max. threshold is the failure rate that triggers backoff; window is how
// long deletion outcomes count against it.
func NewBackpressure(max, min int, threshold float64, window time.Duration) *Backpressure {
	if max <= 0 {
		max = 8
	}
	if min <= 0 {
		min = 1
	}
	if min > max {
		min = max
	}
	if threshold <= 0 {
		threshold = 0.05
	}
	if window <= 0 {
		window = 10 * time.Minute
	}

	bp := &Backpressure{
		maxConcurrency: int32(max),
		minConcurrency: int32(min),
		threshold:      threshold,
		window:         window,
	}
	bp.concurrency.Store(int32(max))
	return bp
}

// RecordSuccess records one successful artifact deletion.
func (bp *Backpressure) RecordSuccess() {
	bp.record(1, 0)
}

// RecordFailure records one failed artifact deletion.
func (bp *Backpressure) RecordFailure() {
	bp.record(0, 1)
}

// RecordSweep records the outcome of a whole sweep in one pass.
func (bp *Backpressure) RecordSweep(deleted, failed int) {
	bp.record(deleted, failed)
}

func (bp *Backpressure) record(deleted, failed int) {
	now := time.Now()
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for i := 0; i < deleted; i++ {
		bp.attempts = append(bp.attempts, deleteOutcome{at: now, ok: true})
	}
	for i := 0; i < failed; i++ {
		bp.attempts = append(bp.attempts, deleteOutcome{at: now, ok: false})
	}
}

// FailureRate returns the deletion failure rate within the sliding window.
func (bp *Backpressure) FailureRate() float64 {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	rate, _ := bp.failureRateLocked()
	return rate
}

// failureRateLocked computes the failure rate and the number of outcomes
// still inside the window. Caller must hold bp.mu.
func (bp *Backpressure) failureRateLocked() (float64, int) {
	bp.pruneWindowLocked()

	if len(bp.attempts) == 0 {
		return 0, 0
	}

	failures := 0
	for _, a := range bp.attempts {
		if !a.ok {
			failures++
		}
	}
	return float64(failures) / float64(len(bp.attempts)), len(bp.attempts)
}

// pruneWindowLocked drops outcomes older than the window. Caller must hold
// bp.mu.
func (bp *Backpressure) pruneWindowLocked() {
	cutoff := time.Now().Add(-bp.window)
	i := 0
	for i < len(bp.attempts) && bp.attempts[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		bp.attempts = bp.attempts[i:]
	}
}

// AdjustConcurrency recalculates the sweep concurrency from the recent
// failure rate. Call at the start of each retention cycle.
//
//   - rate above the threshold: halve (aggressive backoff)
//   - zero failures with recent history: double (fast recovery)
//   - rate below half the threshold: grow by 50%, at least +1
//   - rate below the threshold: +1
//   - rate exactly at the threshold: hold
func (bp *Backpressure) AdjustConcurrency() {
	bp.mu.Lock()
	rate, observed := bp.failureRateLocked()
	bp.mu.Unlock()

	current := bp.concurrency.Load()

	switch {
	case rate > bp.threshold:
		next := current / 2
		if next < bp.minConcurrency {
			next = bp.minConcurrency
		}
		bp.concurrency.Store(next)
	case rate == 0 && observed > 0:
		next := current * 2
		if next > bp.maxConcurrency {
			next = bp.maxConcurrency
		}
		bp.concurrency.Store(next)
	case rate < bp.threshold/2:
		delta := current / 2
		if delta < 1 {
			delta = 1
		}
		next := current + delta
		if next > bp.maxConcurrency {
			next = bp.maxConcurrency
		}
		bp.concurrency.Store(next)
	case rate < bp.threshold:
		next := current + 1
		if next > bp.maxConcurrency {
			next = bp.maxConcurrency
		}
		bp.concurrency.Store(next)
	}
}

// ShouldPause reports whether a retention cycle should be skipped: a large
// backlog combined with a high failure rate means more parallel deletes will
// only cascade. Backlogs small enough to clear in one cycle always run, so
// the controller keeps observing outcomes and can recover.
func (bp *Backpressure) ShouldPause(pendingRuns int) bool {
	if pendingRuns == 0 {
		return false
	}
	if int32(pendingRuns) <= bp.maxConcurrency {
		return false
	}
	return bp.FailureRate() > bp.threshold
}

// Concurrency returns the current allowed sweep concurrency.
func (bp *Backpressure) Concurrency() int {
	return int(bp.concurrency.Load())
}

// BackpressureStats is a snapshot of the controller state.
type BackpressureStats struct {
	Concurrency      int
	FailureRate      float64
	OutcomesInWindow int
	FailuresInWindow int
}

// Stats returns the controller state for logging.
func (bp *Backpressure) Stats() BackpressureStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	rate, observed := bp.failureRateLocked()
	failures := 0
	for _, a := range bp.attempts {
		if !a.ok {
			failures++
		}
	}

	return BackpressureStats{
		Concurrency:      int(bp.concurrency.Load()),
		FailureRate:      rate,
		OutcomesInWindow: observed,
		FailuresInWindow: failures,
	}
}
