package temporal

import (
	"math"
	"testing"
	"time"

	"github.com/pathsight/pathsight/pkg/types"
)

func TestSessionStats(t *testing.T) {
	sessions := []types.Session{
		mkSession("u1", 0, tbase, 2*time.Minute, "session_started", "search", "payment_success"),
		mkSession("u1", 1, tbase.Add(time.Hour), time.Minute, "browse"),
		mkSession("u2", 0, tbase.Add(30*time.Minute), time.Minute, "search", "search"),
	}
	terminals := []types.TerminalEvent{{Name: "payment_success"}}

	stats, warnings := testAnalyzer().sessionStats(sessions, terminals)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if stats.TotalSessions != 3 {
		t.Errorf("total = %d, want 3", stats.TotalSessions)
	}
	if got := stats.BounceRate; math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("bounce rate = %v, want 1/3", got)
	}
	// Only the first session reaches payment_success.
	if got := stats.IncompleteRate; math.Abs(got-2.0/3) > 1e-12 {
		t.Errorf("incomplete rate = %v, want 2/3", got)
	}

	if got := stats.EventsPerSession; got.Count != 3 || got.Min != 1 || got.Max != 3 || got.Mean != 2 {
		t.Errorf("events per session = %+v", got)
	}
	// Session 0 spans 4 minutes, session 1 is instantaneous, session 2 spans 1.
	if got := stats.DurationMinutes; got.Max != 4 || got.Min != 0 {
		t.Errorf("duration minutes = %+v", got)
	}
	if got := stats.SessionsPerUser; got.Count != 2 || got.Mean != 1.5 {
		t.Errorf("sessions per user = %+v", got)
	}

	// Ties sort by name.
	wantFirst := []string{"browse", "search", "session_started"}
	for i, w := range wantFirst {
		if stats.CommonFirstEvents[i].Name != w {
			t.Errorf("first events[%d] = %s, want %s", i, stats.CommonFirstEvents[i].Name, w)
		}
	}
	wantLast := []string{"browse", "payment_success", "search"}
	for i, w := range wantLast {
		if stats.CommonLastEvents[i].Name != w {
			t.Errorf("last events[%d] = %s, want %s", i, stats.CommonLastEvents[i].Name, w)
		}
	}

	// All 3 sessions reach step 1, two reach step 2, one reaches step 3.
	wantSurvival := []float64{1.0, 2.0 / 3, 1.0 / 3}
	if len(stats.SurvivalCurve) != len(wantSurvival) {
		t.Fatalf("survival curve length = %d, want %d", len(stats.SurvivalCurve), len(wantSurvival))
	}
	for i, w := range wantSurvival {
		p := stats.SurvivalCurve[i]
		if p.Step != i+1 || math.Abs(p.Surviving-w) > 1e-12 {
			t.Errorf("survival[%d] = %+v, want step %d surviving %v", i, p, i+1, w)
		}
	}
	// 1/3 of sessions drop at steps 2 and 3.
	if len(stats.CriticalDropoffs) != 2 {
		t.Errorf("critical dropoffs = %+v, want steps 2 and 3", stats.CriticalDropoffs)
	}
}

func TestSessionStatsEmpty(t *testing.T) {
	stats, warnings := testAnalyzer().sessionStats(nil, nil)
	if stats.TotalSessions != 0 {
		t.Errorf("total = %d, want 0", stats.TotalSessions)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one skip notice", warnings)
	}
}

func TestSurvivalCurveCapped(t *testing.T) {
	names := make([]string, 40)
	for i := range names {
		names[i] = "step"
	}
	sessions := []types.Session{mkSession("u1", 0, tbase, time.Second, names...)}

	curve, drops := survivalCurve(sessions)
	if len(curve) != maxSurvivalSteps {
		t.Errorf("curve length = %d, want %d", len(curve), maxSurvivalSteps)
	}
	for _, p := range curve {
		if p.Surviving != 1.0 {
			t.Errorf("step %d surviving = %v, want 1.0", p.Step, p.Surviving)
		}
	}
	if len(drops) != 0 {
		t.Errorf("unexpected dropoffs: %+v", drops)
	}
}

func TestTopCounts(t *testing.T) {
	counts := map[string]int64{"c": 5, "a": 5, "b": 9, "d": 1}

	got := TopCounts(counts, 3, 20)
	wantNames := []string{"b", "a", "c"}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	for i, w := range wantNames {
		if got[i].Name != w {
			t.Errorf("entry %d = %s, want %s", i, got[i].Name, w)
		}
	}
	if got[0].Share != 0.45 {
		t.Errorf("share = %v, want 0.45", got[0].Share)
	}
}
