package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/pkg/types"
)

// tbase is a Monday morning.
var tbase = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func testAnalyzer() *Analyzer {
	return NewAnalyzer(config.DefaultConfig().Analysis)
}

func evt(user string, ts time.Time, name string) types.Event {
	return types.Event{UserID: user, Timestamp: ts, Name: name, Category: types.CategoryApplication}
}

// mkSession builds a session whose events are step apart, starting at start.
func mkSession(user string, id int64, start time.Time, step time.Duration, names ...string) types.Session {
	events := make([]types.Event, len(names))
	for i, n := range names {
		events[i] = evt(user, start.Add(time.Duration(i)*step), n)
		events[i].SessionID = id
	}
	return types.Session{UserID: user, ID: id, Events: events}
}

func TestAnalyzeWiring(t *testing.T) {
	sessions := []types.Session{
		mkSession("u1", 0, tbase, time.Minute, "search", "select_seat", "payment_success"),
		mkSession("u1", 1, tbase.Add(time.Hour), time.Minute, "search"),
		mkSession("u2", 0, tbase.Add(30*time.Minute), time.Minute, "browse"),
	}
	var events []types.Event
	for _, s := range sessions {
		events = append(events, s.Events...)
	}

	a := testAnalyzer().WithStrategy(&StaticStrategy{Names: []string{"payment_success"}})
	terminals := a.DetectTerminals(events, sessions)

	res, err := a.Analyze(context.Background(), events, sessions, terminals)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.Sessions.TotalSessions != 3 {
		t.Errorf("total sessions = %d, want 3", res.Sessions.TotalSessions)
	}
	if len(res.Sessions.TerminalEvents) != 1 || res.Sessions.TerminalEvents[0].Name != "payment_success" {
		t.Errorf("terminal events = %+v, want [payment_success]", res.Sessions.TerminalEvents)
	}

	// u2 has a single event, so velocity skips it and warns.
	found := false
	for _, w := range res.Warnings {
		if w == "velocity analysis skipped 1 users with fewer than 2 events" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing single-event-user warning, got %v", res.Warnings)
	}

	if res.TimePatterns.InterEventGapSeconds == nil {
		t.Fatal("inter-event gaps missing")
	}
	if got := res.TimePatterns.InterEventGapSeconds.Count; got != 3 {
		t.Errorf("gap samples = %d, want 3", got)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := mkSession("u1", 0, tbase, time.Minute, "a", "b", "c")
	_, err := testAnalyzer().Analyze(ctx, s.Events, []types.Session{s}, nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestAnalyzeEmptyStream(t *testing.T) {
	res, err := testAnalyzer().Analyze(context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Sessions.TotalSessions != 0 {
		t.Errorf("total sessions = %d, want 0", res.Sessions.TotalSessions)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected degradation warnings for empty stream")
	}
	if res.TimePatterns.Periodicity != nil || res.TimePatterns.Velocity != nil {
		t.Error("expected nil periodicity and velocity for empty stream")
	}
}
