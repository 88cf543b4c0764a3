package temporal

import (
	"sort"
	"strings"

	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/pkg/types"
)

// EventSignals carries the per-event-name statistics examined by terminal
// detection strategies.
type EventSignals struct {
	Name      string
	Count     int64
	Share     float64 // Count over total events
	LastCount int64   // sessions this name closes
	LastRatio float64 // LastCount over Count
}

// Strategy selects the terminal-event set from per-name signals. The set
// feeds the incomplete-session rate and dropout-tail analysis.
type Strategy interface {
	Terminals(signals []EventSignals) []types.TerminalEvent
}

// ComputeSignals derives per-name occurrence and session-final statistics
// from the stream. Output is sorted by name.
func ComputeSignals(events []types.Event, sessions []types.Session) []EventSignals {
	counts := make(map[string]int64)
	for i := range events {
		counts[events[i].Name]++
	}
	lasts := make(map[string]int64)
	for _, s := range sessions {
		if s.Len() > 0 {
			lasts[s.Last()]++
		}
	}

	total := float64(len(events))
	signals := make([]EventSignals, 0, len(counts))
	for name, count := range counts {
		sig := EventSignals{
			Name:      name,
			Count:     count,
			LastCount: lasts[name],
		}
		if total > 0 {
			sig.Share = float64(count) / total
		}
		if count > 0 {
			sig.LastRatio = float64(sig.LastCount) / float64(count)
		}
		signals = append(signals, sig)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].Name < signals[j].Name })
	return signals
}

// HeuristicStrategy classifies a name as terminal when any of three signals
// fires: overall share below the rarity threshold, session-final ratio above
// the positional threshold, or a success keyword in the name. Best-effort
// classification, not ground truth.
type HeuristicStrategy struct {
	RarityThreshold    float64
	LastRatioThreshold float64
	Keywords           []string
}

// NewHeuristicStrategy builds the heuristic from analysis configuration.
func NewHeuristicStrategy(cfg config.AnalysisConfig) *HeuristicStrategy {
	keywords := make([]string, len(cfg.TerminalSuccessKeywords))
	for i, k := range cfg.TerminalSuccessKeywords {
		keywords[i] = strings.ToLower(k)
	}
	return &HeuristicStrategy{
		RarityThreshold:    cfg.TerminalRarityThreshold,
		LastRatioThreshold: cfg.TerminalLastRatioThreshold,
		Keywords:           keywords,
	}
}

func (h *HeuristicStrategy) Terminals(signals []EventSignals) []types.TerminalEvent {
	var out []types.TerminalEvent
	for _, s := range signals {
		kw := h.keywordMatch(s.Name)
		rare := s.Share < h.RarityThreshold
		positional := s.LastRatio > h.LastRatioThreshold
		if rare || positional || kw {
			out = append(out, types.TerminalEvent{
				Name:         s.Name,
				Rarity:       s.Share,
				LastRatio:    s.LastRatio,
				KeywordMatch: kw,
			})
		}
	}
	return out
}

func (h *HeuristicStrategy) keywordMatch(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range h.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// StaticStrategy pins the terminal set to configured names, reporting
// observed signals where the name occurs in the stream.
type StaticStrategy struct {
	Names []string
}

func (s *StaticStrategy) Terminals(signals []EventSignals) []types.TerminalEvent {
	byName := make(map[string]EventSignals, len(signals))
	for _, sig := range signals {
		byName[sig.Name] = sig
	}
	out := make([]types.TerminalEvent, 0, len(s.Names))
	for _, name := range s.Names {
		sig := byName[name]
		out = append(out, types.TerminalEvent{
			Name:      name,
			Rarity:    sig.Share,
			LastRatio: sig.LastRatio,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
