package temporal

import (
	"sort"

	"github.com/pathsight/pathsight/pkg/types"
)

const (
	// maxSurvivalSteps caps the survival curve length.
	maxSurvivalSteps = 30

	// criticalDropThreshold flags survival-curve steps that lose more than
	// this fraction of sessions.
	criticalDropThreshold = 0.05

	// topEndpointEvents caps the common first/last event lists.
	topEndpointEvents = 10
)

func (a *Analyzer) sessionStats(sessions []types.Session, terminals []types.TerminalEvent) (types.SessionStats, []string) {
	stats := types.SessionStats{TerminalEvents: terminals}
	if len(sessions) == 0 {
		return stats, []string{"no sessions reconstructed; session statistics skipped"}
	}

	terminalNames := make(map[string]struct{}, len(terminals))
	for _, t := range terminals {
		terminalNames[t.Name] = struct{}{}
	}

	lengths := make([]float64, 0, len(sessions))
	durations := make([]float64, 0, len(sessions))
	perUser := make(map[string]int64)
	firstCounts := make(map[string]int64)
	lastCounts := make(map[string]int64)

	var bounced, incomplete int64
	for _, s := range sessions {
		lengths = append(lengths, float64(s.Len()))
		durations = append(durations, s.Duration().Minutes())
		perUser[s.UserID]++
		firstCounts[s.First()]++
		lastCounts[s.Last()]++
		if s.Len() == 1 {
			bounced++
		}
		if !reachesTerminal(s, terminalNames) {
			incomplete++
		}
	}

	userSessions := make([]float64, 0, len(perUser))
	for _, c := range perUser {
		userSessions = append(userSessions, float64(c))
	}

	total := float64(len(sessions))
	stats.TotalSessions = int64(len(sessions))
	stats.EventsPerSession = Summarize(lengths)
	stats.DurationMinutes = Summarize(durations)
	stats.SessionsPerUser = Summarize(userSessions)
	stats.BounceRate = float64(bounced) / total
	stats.IncompleteRate = float64(incomplete) / total
	stats.CommonFirstEvents = TopCounts(firstCounts, topEndpointEvents, total)
	stats.CommonLastEvents = TopCounts(lastCounts, topEndpointEvents, total)
	stats.SurvivalCurve, stats.CriticalDropoffs = survivalCurve(sessions)
	return stats, nil
}

// reachesTerminal reports whether any event of the session is in the terminal
// set. An empty set means no session can complete.
func reachesTerminal(s types.Session, terminals map[string]struct{}) bool {
	for i := range s.Events {
		if _, ok := terminals[s.Events[i].Name]; ok {
			return true
		}
	}
	return false
}

// survivalCurve reports, for each event step up to maxSurvivalSteps, the
// fraction of sessions reaching at least that many events, plus the steps
// where the curve drops by more than criticalDropThreshold.
func survivalCurve(sessions []types.Session) ([]types.SurvivalPoint, []types.SurvivalDrop) {
	maxLen := 0
	for _, s := range sessions {
		if s.Len() > maxLen {
			maxLen = s.Len()
		}
	}
	steps := maxLen
	if steps > maxSurvivalSteps {
		steps = maxSurvivalSteps
	}
	if steps == 0 {
		return nil, nil
	}

	// reaching[k] counts sessions with at least k+1 events.
	reaching := make([]int64, steps)
	for _, s := range sessions {
		n := s.Len()
		if n > steps {
			n = steps
		}
		for k := 0; k < n; k++ {
			reaching[k]++
		}
	}

	total := float64(len(sessions))
	curve := make([]types.SurvivalPoint, steps)
	var drops []types.SurvivalDrop
	prev := 1.0
	for k := 0; k < steps; k++ {
		surviving := float64(reaching[k]) / total
		curve[k] = types.SurvivalPoint{Step: k + 1, Surviving: surviving}
		if drop := prev - surviving; drop > criticalDropThreshold {
			drops = append(drops, types.SurvivalDrop{Step: k + 1, Drop: drop})
		}
		prev = surviving
	}
	return curve, drops
}

// TopCounts converts a count map into the top-n EventCount list, ordered by
// count descending with name ascending as the tiebreak.
func TopCounts(counts map[string]int64, n int, total float64) []types.EventCount {
	out := make([]types.EventCount, 0, len(counts))
	for name, count := range counts {
		ec := types.EventCount{Name: name, Count: count}
		if total > 0 {
			ec.Share = float64(count) / total
		}
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
