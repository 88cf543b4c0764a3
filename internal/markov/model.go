// Package markov builds a first-order transition model over within-session
// event pairs and derives flow diagnostics from it: frequent transitions,
// dead-end states, high-exit events and cyclic groups.
package markov

import (
	"sort"

	"go.uber.org/zap"

	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/pkg/types"
)

// Model is an empirical first-order Markov chain over event names. Pairs are
// counted within sessions only; no transition crosses a session boundary.
// Lifecycle markers are ordinary states.
type Model struct {
	counts    map[string]map[string]int64
	outTotals map[string]int64
	occur     map[string]int64
	lastOf    map[string]int64
	pairs     int64
	total     int64
}

// BuildModel counts consecutive event pairs across the given sessions.
func BuildModel(sessions []types.Session) *Model {
	m := &Model{
		counts:    make(map[string]map[string]int64),
		outTotals: make(map[string]int64),
		occur:     make(map[string]int64),
		lastOf:    make(map[string]int64),
	}
	for _, s := range sessions {
		for i := range s.Events {
			m.occur[s.Events[i].Name]++
		}
		if s.Len() > 0 {
			m.lastOf[s.Last()]++
		}
		for i := 1; i < s.Len(); i++ {
			from, to := s.Events[i-1].Name, s.Events[i].Name
			row := m.counts[from]
			if row == nil {
				row = make(map[string]int64)
				m.counts[from] = row
			}
			if row[to] == 0 {
				m.pairs++
			}
			row[to]++
			m.outTotals[from]++
			m.total++
		}
	}
	return m
}

// Probability returns the empirical P(to | from). Unseen pairs are 0.
func (m *Model) Probability(from, to string) float64 {
	out := m.outTotals[from]
	if out == 0 {
		return 0
	}
	return float64(m.counts[from][to]) / float64(out)
}

// States returns every observed event name, sorted.
func (m *Model) States() []string {
	states := make([]string, 0, len(m.occur))
	for s := range m.occur {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Analyzer derives the transition report section from session streams.
type Analyzer struct {
	cfg config.AnalysisConfig
	log *zap.Logger
}

// NewAnalyzer creates a transition analyzer.
func NewAnalyzer(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{cfg: cfg, log: logging.Named("markov")}
}

// Analyze builds the model and derives all flow diagnostics. The model is
// returned alongside the report section for callers that need raw
// probability lookups.
func (a *Analyzer) Analyze(sessions []types.Session) (*Model, types.TransitionAnalysis) {
	m := BuildModel(sessions)
	analysis := types.TransitionAnalysis{
		States:           int64(len(m.occur)),
		ObservedPairs:    m.pairs,
		TotalTransitions: m.total,
		EdgeThreshold:    a.cfg.EdgeProbabilityThreshold,
		MostCommon:       m.topTransitions(a.cfg.TopTransitions),
		DeadEnds:         m.deadEnds(),
		HighExitEvents:   m.highExits(a.cfg.HighExitThreshold),
		CyclicGroups:     m.cyclicGroups(a.cfg.EdgeProbabilityThreshold),
	}
	a.log.Debug("transition analysis complete",
		zap.Int64("states", analysis.States),
		zap.Int64("observed_pairs", analysis.ObservedPairs),
		zap.Int("cyclic_groups", len(analysis.CyclicGroups)))
	return m, analysis
}

// topTransitions returns the n most frequent pairs, count descending with
// (from, to) as the tiebreak.
func (m *Model) topTransitions(n int) []types.Transition {
	out := make([]types.Transition, 0, m.pairs)
	for from, row := range m.counts {
		for to, count := range row {
			out = append(out, types.Transition{
				From:        from,
				To:          to,
				Count:       count,
				Probability: float64(count) / float64(m.outTotals[from]),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// deadEnds returns states that never precede another event, sorted.
func (m *Model) deadEnds() []string {
	var out []string
	for s := range m.occur {
		if m.outTotals[s] == 0 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// highExits returns events whose session-final share of occurrences exceeds
// the threshold, strongest first.
func (m *Model) highExits(threshold float64) []types.HighExitEvent {
	var out []types.HighExitEvent
	for s, last := range m.lastOf {
		total := m.occur[s]
		if total == 0 {
			continue
		}
		ratio := float64(last) / float64(total)
		if ratio > threshold {
			out = append(out, types.HighExitEvent{
				Name:       s,
				ExitRatio:  ratio,
				LastCount:  last,
				TotalCount: total,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExitRatio != out[j].ExitRatio {
			return out[i].ExitRatio > out[j].ExitRatio
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// cyclicGroups returns strongly connected components with more than two
// members in the probability-thresholded transition graph. Members and groups
// come out sorted so output is stable across runs.
func (m *Model) cyclicGroups(minProbability float64) [][]string {
	graph := make(map[string][]string)
	for from, row := range m.counts {
		out := float64(m.outTotals[from])
		for to, count := range row {
			if float64(count)/out > minProbability {
				graph[from] = append(graph[from], to)
			}
		}
	}
	for from := range graph {
		sort.Strings(graph[from])
	}

	var groups [][]string
	for _, comp := range stronglyConnected(graph) {
		if len(comp) > 2 {
			sort.Strings(comp)
			groups = append(groups, comp)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
