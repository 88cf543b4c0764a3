package temporal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pathsight/pathsight/pkg/types"
)

const (
	// peakHourCount caps the peak-hours list.
	peakHourCount = 3

	dateLayout = "2006-01-02"
)

func (a *Analyzer) timePatterns(ctx context.Context, events []types.Event) (types.TimePatterns, []string, error) {
	tp := types.TimePatterns{DayOfWeekCounts: make(map[string]int64)}
	if len(events) == 0 {
		return tp, []string{"empty stream; time patterns skipped"}, nil
	}

	dayCounts := make(map[string]int64)
	userDays := make(map[string]map[string]struct{})
	for i := range events {
		ts := events[i].Timestamp
		tp.HourlyCounts[ts.Hour()]++
		tp.DayOfWeekCounts[ts.Weekday().String()]++
		if isWeekend(ts.Weekday()) {
			tp.WeekendEvents++
		} else {
			tp.WeekdayEvents++
		}

		day := ts.Format(dateLayout)
		dayCounts[day]++
		days := userDays[events[i].UserID]
		if days == nil {
			days = make(map[string]struct{})
			userDays[events[i].UserID] = days
		}
		days[day] = struct{}{}
	}

	tp.PeakHours = peakHours(tp.HourlyCounts)

	perDay := make([]float64, 0, len(dayCounts))
	for _, c := range dayCounts {
		perDay = append(perDay, float64(c))
	}
	tp.EventsPerDay = Summarize(perDay)

	activeDays := make([]float64, 0, len(userDays))
	for _, days := range userDays {
		activeDays = append(activeDays, float64(len(days)))
	}
	tp.ActiveDaysPerUser = Summarize(activeDays)

	var warnings []string
	series, err := a.perUserSeries(ctx, events)
	if err != nil {
		return tp, nil, err
	}
	if len(series.gaps) > 0 {
		gaps := Summarize(series.gaps)
		tp.InterEventGapSeconds = &gaps
	} else {
		warnings = append(warnings, "no user has two or more events; inter-event gaps skipped")
	}
	if len(series.velocities) > 0 {
		tp.Velocity = &types.VelocityStats{
			WindowMinutes:   a.cfg.VelocityWindowMinutes,
			EventsPerMinute: Summarize(series.velocities),
		}
	}
	if series.singleEventUsers > 0 {
		warnings = append(warnings, fmt.Sprintf("velocity analysis skipped %d users with fewer than 2 events", series.singleEventUsers))
	}

	periodicity, pWarnings := a.periodicity(events)
	tp.Periodicity = periodicity
	warnings = append(warnings, pWarnings...)
	return tp, warnings, nil
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// peakHours returns the busiest hours of day, count descending with hour
// ascending as the tiebreak. Hours with no events are omitted.
func peakHours(hourly [24]int64) []types.HourCount {
	out := make([]types.HourCount, 0, len(hourly))
	for h, c := range hourly {
		if c > 0 {
			out = append(out, types.HourCount{Hour: h, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	if len(out) > peakHourCount {
		out = out[:peakHourCount]
	}
	return out
}
