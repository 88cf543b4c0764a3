package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pathsight/pathsight/pkg/types"
)

const summaryHighExits = 5

// Summary renders the report as a plain-text console digest: headline
// volumes, session shape, time-of-day peaks, exit hotspots and the event
// classification.
func Summary(rep *types.Report) string {
	var b strings.Builder
	divider := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nPROFILE SUMMARY\n%s\n", divider, divider)
	fmt.Fprintf(&b, "Run:       %s\n", rep.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if rep.Source != "" {
		fmt.Fprintf(&b, "Source:    %s\n", rep.Source)
	}

	bs := rep.BasicStats
	fmt.Fprintf(&b, "\nBasic Statistics:\n")
	fmt.Fprintf(&b, "  Total Events:    %d\n", bs.TotalEvents)
	fmt.Fprintf(&b, "  Unique Events:   %d\n", bs.UniqueEventNames)
	fmt.Fprintf(&b, "  Unique Users:    %d\n", bs.UniqueUsers)
	fmt.Fprintf(&b, "  Date Range:      %.1f days\n", bs.DateRange.Days)
	fmt.Fprintf(&b, "  Avg Events/User: %.1f\n", bs.EventsPerUser.Mean)

	ss := rep.Sessions
	fmt.Fprintf(&b, "\nSessions:\n")
	fmt.Fprintf(&b, "  Total Sessions:       %d\n", ss.TotalSessions)
	fmt.Fprintf(&b, "  Avg Session Length:   %.1f events\n", ss.EventsPerSession.Mean)
	fmt.Fprintf(&b, "  Avg Session Duration: %.1f minutes\n", ss.DurationMinutes.Mean)
	fmt.Fprintf(&b, "  Bounce Rate:          %.1f%%\n", ss.BounceRate*100)

	tp := rep.TimePatterns
	fmt.Fprintf(&b, "\nTime Patterns:\n")
	fmt.Fprintf(&b, "  Peak Hours:     %s\n", formatPeakHours(tp.PeakHours))
	fmt.Fprintf(&b, "  Avg Events/Day: %.1f\n", tp.EventsPerDay.Mean)

	if len(rep.Transitions.HighExitEvents) > 0 {
		fmt.Fprintf(&b, "\nHigh Exit Events (top %d):\n", summaryHighExits)
		for i, he := range rep.Transitions.HighExitEvents {
			if i == summaryHighExits {
				break
			}
			fmt.Fprintf(&b, "  %s: %.1f%% exit rate\n", he.Name, he.ExitRatio*100)
		}
	}

	if len(bs.EventClasses) > 0 {
		fmt.Fprintf(&b, "\nEvent Classification:\n")
		classes := make([]string, 0, len(bs.EventClasses))
		for name := range bs.EventClasses {
			classes = append(classes, name)
		}
		sort.Strings(classes)
		for _, name := range classes {
			cls := bs.EventClasses[name]
			fmt.Fprintf(&b, "  %s: %d events (%d types)\n", name, cls.EventCount, cls.UniqueEvents)
		}
	}

	if len(rep.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings:\n")
		for _, w := range rep.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	return b.String()
}

func formatPeakHours(peaks []types.HourCount) string {
	if len(peaks) == 0 {
		return "none"
	}
	parts := make([]string, len(peaks))
	for i, p := range peaks {
		parts[i] = fmt.Sprintf("%02d:00", p.Hour)
	}
	return strings.Join(parts, ", ")
}
