package retention

import (
	"testing"
	"time"
)

func TestBackpressure_InitialState(t *testing.T) {
	bp := NewBackpressure(8, 1, 0.05, time.Minute)

	if got := bp.Concurrency(); got != 8 {
		t.Errorf("initial concurrency = %d, want 8", got)
	}
	if got := bp.FailureRate(); got != 0 {
		t.Errorf("initial failure rate = %v, want 0", got)
	}
}

func TestBackpressure_Defaults(t *testing.T) {
	bp := NewBackpressure(0, 0, 0, 0)

	if got := bp.Concurrency(); got != 8 {
		t.Errorf("default max concurrency = %d, want 8", got)
	}

	bp.RecordSweep(0, 4)
	for i := 0; i < 10; i++ {
		bp.AdjustConcurrency()
	}
	if got := bp.Concurrency(); got != 1 {
		t.Errorf("default min concurrency = %d, want 1", got)
	}
}

func TestBackpressure_FailureRateTracking(t *testing.T) {
	bp := NewBackpressure(8, 1, 0.05, time.Minute)

	bp.RecordSuccess()
	bp.RecordSuccess()
	bp.RecordSuccess()
	bp.RecordFailure()

	if got := bp.FailureRate(); got != 0.25 {
		t.Errorf("failure rate = %v, want 0.25", got)
	}
}

func TestBackpressure_BackoffOnHighFailureRate(t *testing.T) {
	bp := NewBackpressure(8, 1, 0.5, time.Minute)

	bp.RecordSweep(4, 6)
	bp.AdjustConcurrency()
	if got := bp.Concurrency(); got != 4 {
		t.Errorf("concurrency after backoff = %d, want 4", got)
	}

	bp.AdjustConcurrency()
	if got := bp.Concurrency(); got != 2 {
		t.Errorf("concurrency after second backoff = %d, want 2", got)
	}
}

func TestBackpressure_RampUpOnLowFailureRate(t *testing.T) {
	bp := NewBackpressure(8, 1, 0.5, time.Minute)

	// Drive concurrency down, then dilute the failures with successes
	// until the rate sits below half the threshold.
	bp.RecordSweep(0, 4)
	bp.AdjustConcurrency()
	bp.AdjustConcurrency()
	if got := bp.Concurrency(); got != 2 {
		t.Fatalf("concurrency after backoff = %d, want 2", got)
	}
	bp.RecordSweep(20, 0)

	bp.AdjustConcurrency()
	if got := bp.Concurrency(); got != 3 {
		t.Errorf("concurrency after ramp = %d, want 3", got)
	}
}

func TestBackpressure_DoublesOnCleanWindow(t *testing.T) {
	bp := NewBackpressure(8, 1, 0.5, 40*time.Millisecond)

	bp.RecordSweep(0, 4)
	bp.AdjustConcurrency()
	bp.AdjustConcurrency()
	if got := bp.Concurrency(); got != 2 {
		t.Fatalf("concurrency after backoff = %d, want 2", got)
	}

	// Let the failures age out, then record a clean sweep.
	time.Sleep(60 * time.Millisecond)
	bp.RecordSweep(5, 0)

	bp.AdjustConcurrency()
	if got := bp.Concurrency(); got != 4 {
		t.Errorf("concurrency after clean window = %d, want 4", got)
	}
}

func TestBackpressure_MinConcurrencyFloor(t *testing.T) {
	bp := NewBackpressure(8, 2, 0.05, time.Minute)

	bp.RecordSweep(0, 10)
	for i := 0; i < 6; i++ {
		bp.AdjustConcurrency()
	}
	if got := bp.Concurrency(); got != 2 {
		t.Errorf("concurrency = %d, want floor of 2", got)
	}
}

func TestBackpressure_MaxConcurrencyCeiling(t *testing.T) {
	bp := NewBackpressure(4, 1, 0.05, time.Minute)

	bp.RecordSweep(10, 0)
	for i := 0; i < 6; i++ {
		bp.AdjustConcurrency()
	}
	if got := bp.Concurrency(); got != 4 {
		t.Errorf("concurrency = %d, want ceiling of 4", got)
	}
}

func TestBackpressure_ShouldPause(t *testing.T) {
	bp := NewBackpressure(4, 1, 0.05, time.Minute)

	if bp.ShouldPause(0) {
		t.Error("empty backlog should not pause")
	}

	bp.RecordSweep(0, 10)
	if bp.ShouldPause(4) {
		t.Error("backlog within the concurrency ceiling should not pause")
	}
	if !bp.ShouldPause(100) {
		t.Error("large backlog with failing deletes should pause")
	}

	healthy := NewBackpressure(4, 1, 0.05, time.Minute)
	healthy.RecordSweep(10, 0)
	if healthy.ShouldPause(100) {
		t.Error("large backlog with healthy deletes should not pause")
	}
}

func TestBackpressure_WindowExpiry(t *testing.T) {
	bp := NewBackpressure(8, 1, 0.05, 30*time.Millisecond)

	bp.RecordFailure()
	bp.RecordFailure()
	if got := bp.FailureRate(); got != 1.0 {
		t.Fatalf("failure rate = %v, want 1.0", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := bp.FailureRate(); got != 0 {
		t.Errorf("failure rate after window expiry = %v, want 0", got)
	}
}

func TestBackpressure_Stats(t *testing.T) {
	bp := NewBackpressure(8, 1, 0.05, time.Minute)
	bp.RecordSweep(3, 1)

	stats := bp.Stats()
	if stats.Concurrency != 8 {
		t.Errorf("stats concurrency = %d, want 8", stats.Concurrency)
	}
	if stats.OutcomesInWindow != 4 {
		t.Errorf("outcomes in window = %d, want 4", stats.OutcomesInWindow)
	}
	if stats.FailuresInWindow != 1 {
		t.Errorf("failures in window = %d, want 1", stats.FailuresInWindow)
	}
	if stats.FailureRate != 0.25 {
		t.Errorf("stats failure rate = %v, want 0.25", stats.FailureRate)
	}
}
