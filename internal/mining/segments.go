package mining

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pathsight/pathsight/pkg/types"
)

// Segment labels, in reporting order. Rules are checked in the same order and
// the first match wins, so a high-repetition user is a struggler even when
// their volume would also qualify them as an explorer.
const (
	segmentStrugglers   = "strugglers"
	segmentQuickBookers = "quick_bookers"
	segmentExplorers    = "explorers"
	segmentOthers       = "others"
)

var segmentDescriptions = map[string]string{
	segmentStrugglers:   "high repetition and stuck patterns suggest friction",
	segmentQuickBookers: "low event volume with high diversity: decisive, goal-directed users",
	segmentExplorers:    "high event volume with high diversity: extensive browsing before acting",
	segmentOthers:       "no dominant behavioral trait",
}

type userFeatures struct {
	events     float64
	diversity  float64
	repetition float64
}

// segmentUsers buckets users into behavioral cohorts using quantile rules
// over per-user features. A user is a struggler when their consecutive-repeat
// ratio exceeds the 75th percentile, a quick booker when they emit fewer
// events than the 33rd percentile with above-median diversity, and an
// explorer when they emit more events than the 67th percentile with
// above-median diversity. Everyone else lands in others.
func segmentUsers(sessions []types.Session) []types.UserSegment {
	features := collectUserFeatures(sessions)
	if len(features) == 0 {
		return nil
	}

	events := make([]float64, 0, len(features))
	diversity := make([]float64, 0, len(features))
	repetition := make([]float64, 0, len(features))
	for _, f := range features {
		events = append(events, f.events)
		diversity = append(diversity, f.diversity)
		repetition = append(repetition, f.repetition)
	}
	sort.Float64s(events)
	sort.Float64s(diversity)
	sort.Float64s(repetition)

	repP75 := stat.Quantile(0.75, stat.LinInterp, repetition, nil)
	eventsP33 := stat.Quantile(0.33, stat.LinInterp, events, nil)
	eventsP67 := stat.Quantile(0.67, stat.LinInterp, events, nil)
	diversityMedian := stat.Quantile(0.5, stat.LinInterp, diversity, nil)

	type agg struct {
		count      int64
		events     float64
		diversity  float64
		repetition float64
	}
	buckets := make(map[string]*agg, 4)

	for _, f := range features {
		var label string
		switch {
		case f.repetition > repP75:
			label = segmentStrugglers
		case f.events < eventsP33 && f.diversity > diversityMedian:
			label = segmentQuickBookers
		case f.events > eventsP67 && f.diversity > diversityMedian:
			label = segmentExplorers
		default:
			label = segmentOthers
		}
		b := buckets[label]
		if b == nil {
			b = &agg{}
			buckets[label] = b
		}
		b.count++
		b.events += f.events
		b.diversity += f.diversity
		b.repetition += f.repetition
	}

	total := float64(len(features))
	segments := make([]types.UserSegment, 0, len(buckets))
	for _, label := range []string{segmentStrugglers, segmentQuickBookers, segmentExplorers, segmentOthers} {
		b := buckets[label]
		if b == nil {
			continue
		}
		n := float64(b.count)
		segments = append(segments, types.UserSegment{
			Label:      label,
			Count:      b.count,
			Percentage: n / total * 100,
			Traits: types.SegmentTraits{
				AvgEvents:     b.events / n,
				AvgDiversity:  b.diversity / n,
				AvgRepetition: b.repetition / n,
			},
			Description: segmentDescriptions[label],
		})
	}
	return segments
}

// collectUserFeatures folds each user's sessions into one feature vector.
// Sessions arrive ordered by (user, session id), so the repeat counter can
// carry the previous event name across a user's session boundaries the same
// way it would over their raw time-ordered stream.
func collectUserFeatures(sessions []types.Session) map[string]*userFeatures {
	type acc struct {
		total   int64
		names   map[string]struct{}
		repeats int64
		prev    string
	}
	users := make(map[string]*acc)

	for _, s := range sessions {
		a := users[s.UserID]
		if a == nil {
			a = &acc{names: make(map[string]struct{})}
			users[s.UserID] = a
		}
		for i := range s.Events {
			name := s.Events[i].Name
			a.total++
			a.names[name] = struct{}{}
			if a.prev == name {
				a.repeats++
			}
			a.prev = name
		}
	}

	features := make(map[string]*userFeatures, len(users))
	for id, a := range users {
		if a.total == 0 {
			continue
		}
		features[id] = &userFeatures{
			events:     float64(a.total),
			diversity:  float64(len(a.names)) / float64(a.total),
			repetition: float64(a.repeats) / float64(a.total),
		}
	}
	return features
}
