package profiler

import (
	"github.com/pathsight/pathsight/internal/temporal"
	"github.com/pathsight/pathsight/pkg/types"
)

const topEventCount = 10

// basicStats summarizes the raw stream before any session logic applies:
// totals, the observed date span, the per-user volume distribution, the most
// frequent events and the keyword classification of event names.
func basicStats(events []types.Event) types.BasicStats {
	stats := types.BasicStats{TotalEvents: int64(len(events))}
	if len(events) == 0 {
		return stats
	}

	users := make(map[string]int64)
	names := make(map[string]int64)
	min, max := events[0].Timestamp, events[0].Timestamp
	for i := range events {
		users[events[i].UserID]++
		names[events[i].Name]++
		ts := events[i].Timestamp
		if ts.Before(min) {
			min = ts
		}
		if ts.After(max) {
			max = ts
		}
	}

	stats.UniqueUsers = int64(len(users))
	stats.UniqueEventNames = int64(len(names))
	stats.DateRange = types.DateRange{
		Start: min,
		End:   max,
		Days:  max.Sub(min).Hours() / 24,
	}

	perUser := make([]float64, 0, len(users))
	for _, c := range users {
		perUser = append(perUser, float64(c))
	}
	stats.EventsPerUser = temporal.Summarize(perUser)
	stats.TopEvents = temporal.TopCounts(names, topEventCount, float64(len(events)))
	stats.EventClasses = classifyEvents(names)
	return stats
}
