package markov

import (
	"math"
	"testing"
	"time"

	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/pkg/types"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func mkSession(user string, id int64, names ...string) types.Session {
	events := make([]types.Event, len(names))
	for i, n := range names {
		events[i] = types.Event{
			UserID:    user,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Name:      n,
			SessionID: id,
		}
	}
	return types.Session{UserID: user, ID: id, Events: events}
}

func testAnalyzer() *Analyzer {
	return NewAnalyzer(config.DefaultConfig().Analysis)
}

func TestBuildModelWithinSessions(t *testing.T) {
	// One user, three marker-delimited sessions. Markers are ordinary states
	// and pairs never cross session boundaries.
	sessions := []types.Session{
		mkSession("u1", 0, "Session Started", "search", "search"),
		mkSession("u1", 1, "Journey Started", "select_seat"),
		mkSession("u1", 2, "Journey Ended"),
	}

	m := BuildModel(sessions)

	if m.total != 3 {
		t.Errorf("total transitions = %d, want 3", m.total)
	}
	if m.pairs != 3 {
		t.Errorf("observed pairs = %d, want 3", m.pairs)
	}
	if got := len(m.States()); got != 5 {
		t.Errorf("states = %d, want 5", got)
	}

	if p := m.Probability("search", "search"); p != 1.0 {
		t.Errorf("P(search|search) = %v, want 1.0", p)
	}
	if p := m.Probability("Session Started", "search"); p != 1.0 {
		t.Errorf("P(search|Session Started) = %v, want 1.0", p)
	}
	// The last event of session 0 and the first of session 1 never pair up.
	if p := m.Probability("search", "Journey Started"); p != 0 {
		t.Errorf("cross-session P = %v, want 0", p)
	}
	if p := m.Probability("never", "seen"); p != 0 {
		t.Errorf("unseen P = %v, want 0", p)
	}
}

func TestAnalyzeFlowDiagnostics(t *testing.T) {
	sessions := []types.Session{
		mkSession("u1", 0, "Session Started", "search", "search"),
		mkSession("u1", 1, "Journey Started", "select_seat"),
		mkSession("u1", 2, "Journey Ended"),
	}

	_, analysis := testAnalyzer().Analyze(sessions)

	if analysis.States != 5 || analysis.ObservedPairs != 3 || analysis.TotalTransitions != 3 {
		t.Errorf("counts = %d/%d/%d, want 5/3/3",
			analysis.States, analysis.ObservedPairs, analysis.TotalTransitions)
	}

	// select_seat and Journey Ended never precede anything.
	wantDead := []string{"Journey Ended", "select_seat"}
	if len(analysis.DeadEnds) != 2 || analysis.DeadEnds[0] != wantDead[0] || analysis.DeadEnds[1] != wantDead[1] {
		t.Errorf("dead ends = %v, want %v", analysis.DeadEnds, wantDead)
	}

	// search closes 1 of its 2 occurrences, exactly at the threshold, so it
	// stays out. The two single-occurrence closers are in.
	if len(analysis.HighExitEvents) != 2 {
		t.Fatalf("high exits = %+v, want 2 entries", analysis.HighExitEvents)
	}
	if analysis.HighExitEvents[0].Name != "Journey Ended" || analysis.HighExitEvents[1].Name != "select_seat" {
		t.Errorf("high exits = %+v, want Journey Ended then select_seat", analysis.HighExitEvents)
	}
	if analysis.HighExitEvents[0].ExitRatio != 1.0 {
		t.Errorf("exit ratio = %v, want 1.0", analysis.HighExitEvents[0].ExitRatio)
	}

	if len(analysis.CyclicGroups) != 0 {
		t.Errorf("cyclic groups = %v, want none", analysis.CyclicGroups)
	}
}

func TestTopTransitionsOrdering(t *testing.T) {
	sessions := []types.Session{
		mkSession("u1", 0, "a", "b", "a", "b", "a", "c"),
		mkSession("u2", 0, "b", "c"),
	}
	// Pair counts: a->b 2, b->a 2, a->c 1, b->c 1.

	m := BuildModel(sessions)
	got := m.topTransitions(3)

	if len(got) != 3 {
		t.Fatalf("got %d transitions, want 3", len(got))
	}
	if got[0].From != "a" || got[0].To != "b" || got[0].Count != 2 {
		t.Errorf("top[0] = %+v, want a->b count 2", got[0])
	}
	if got[1].From != "b" || got[1].To != "a" || got[1].Count != 2 {
		t.Errorf("top[1] = %+v, want b->a count 2", got[1])
	}
	if got[2].From != "a" || got[2].To != "c" || got[2].Count != 1 {
		t.Errorf("top[2] = %+v, want a->c count 1", got[2])
	}

	// a precedes 3 times: twice to b, once to c.
	if want := 2.0 / 3; math.Abs(got[0].Probability-want) > 1e-12 {
		t.Errorf("P(b|a) = %v, want %v", got[0].Probability, want)
	}
}

func TestCyclicGroups(t *testing.T) {
	sessions := []types.Session{
		// A three-state loop walked twice.
		mkSession("u1", 0, "browse", "filter", "sort", "browse", "filter", "sort", "browse"),
		// A two-state loop, below the member floor.
		mkSession("u2", 0, "x", "y", "x", "y", "x"),
	}

	_, analysis := testAnalyzer().Analyze(sessions)

	if len(analysis.CyclicGroups) != 1 {
		t.Fatalf("cyclic groups = %v, want exactly one", analysis.CyclicGroups)
	}
	want := []string{"browse", "filter", "sort"}
	got := analysis.CyclicGroups[0]
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("group = %v, want %v", got, want)
	}
}

func TestCyclicGroupsRespectEdgeThreshold(t *testing.T) {
	// The loop-closing edge c->a carries 1 of c's 150 exits, under the 0.01
	// probability floor, so no cycle survives.
	sessions := []types.Session{
		mkSession("u1", 0, "a", "b", "c"),
		mkSession("u1", 1, "c", "a"),
	}
	for i := 0; i < 149; i++ {
		sessions = append(sessions, mkSession("u2", int64(i), "c", "d"))
	}

	_, analysis := testAnalyzer().Analyze(sessions)
	if len(analysis.CyclicGroups) != 0 {
		t.Errorf("cyclic groups = %v, want none", analysis.CyclicGroups)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	m, analysis := testAnalyzer().Analyze(nil)

	if analysis.States != 0 || analysis.TotalTransitions != 0 {
		t.Errorf("analysis = %+v, want zero counts", analysis)
	}
	if len(analysis.MostCommon) != 0 || len(analysis.DeadEnds) != 0 {
		t.Error("expected empty diagnostics")
	}
	if p := m.Probability("a", "b"); p != 0 {
		t.Errorf("P on empty model = %v, want 0", p)
	}
}
