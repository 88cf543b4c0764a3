package profiler

import (
	"testing"
	"time"

	"github.com/pathsight/pathsight/pkg/types"
)

func TestBasicStats(t *testing.T) {
	events := []types.Event{
		evt("u1", 0, "search"),
		evt("u1", 10*time.Minute, "search"),
		evt("u1", 20*time.Minute, "checkout"),
		evt("u2", 12*time.Hour, "search"),
		evt("u2", 36*time.Hour, "select_seat"),
	}

	stats := basicStats(events)
	if stats.TotalEvents != 5 {
		t.Errorf("total = %d, want 5", stats.TotalEvents)
	}
	if stats.UniqueUsers != 2 {
		t.Errorf("users = %d, want 2", stats.UniqueUsers)
	}
	if stats.UniqueEventNames != 3 {
		t.Errorf("names = %d, want 3", stats.UniqueEventNames)
	}

	if !stats.DateRange.Start.Equal(base) {
		t.Errorf("start = %v", stats.DateRange.Start)
	}
	if !stats.DateRange.End.Equal(base.Add(36 * time.Hour)) {
		t.Errorf("end = %v", stats.DateRange.End)
	}
	if stats.DateRange.Days != 1.5 {
		t.Errorf("days = %v, want 1.5", stats.DateRange.Days)
	}

	if stats.EventsPerUser.Mean != 2.5 {
		t.Errorf("events per user mean = %v, want 2.5", stats.EventsPerUser.Mean)
	}
	if stats.EventsPerUser.Min != 2 || stats.EventsPerUser.Max != 3 {
		t.Errorf("events per user range = [%v, %v], want [2, 3]",
			stats.EventsPerUser.Min, stats.EventsPerUser.Max)
	}

	if len(stats.TopEvents) != 3 {
		t.Fatalf("top events = %d, want 3", len(stats.TopEvents))
	}
	if stats.TopEvents[0].Name != "search" || stats.TopEvents[0].Count != 3 {
		t.Errorf("top event = %+v", stats.TopEvents[0])
	}
	if stats.TopEvents[0].Share != 0.6 {
		t.Errorf("top share = %v, want 0.6", stats.TopEvents[0].Share)
	}
}

func TestBasicStatsEmpty(t *testing.T) {
	stats := basicStats(nil)
	if stats.TotalEvents != 0 || stats.UniqueUsers != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.TopEvents != nil {
		t.Errorf("unexpected top events: %+v", stats.TopEvents)
	}
}
