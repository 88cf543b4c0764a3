// Package mining extracts frequent contiguous event subsequences from
// reconstructed sessions, plus two friction signals derived from the same
// sequences (back-to-back repetition runs and the trailing paths of sessions
// that never reached a terminal event) and a rule-based behavioral
// segmentation of users.
package mining

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/pkg/types"
)

const (
	// dropoutTailMin and dropoutTailMax bound the trailing window lengths
	// counted for abandoned sessions.
	dropoutTailMin = 2
	dropoutTailMax = 3

	// maxDropoutTails caps the reported tail list.
	maxDropoutTails = 30

	// maxRepetitionEvents caps the reported repetition list.
	maxRepetitionEvents = 20

	// keySep joins window members into map keys. Event names never contain
	// control characters after ingest trimming.
	keySep = "\x00"
)

// Miner runs sequential pattern mining over session event sequences.
// Ordering is significant throughout: (A,B) and (B,A) are distinct patterns.
type Miner struct {
	cfg config.AnalysisConfig
	log *zap.Logger
}

// NewMiner creates a pattern miner.
func NewMiner(cfg config.AnalysisConfig) *Miner {
	return &Miner{cfg: cfg, log: logging.Named("mining")}
}

// Mine slides windows of every configured length across each session's
// sequence, keeps patterns whose session support meets the minimum ratio, and
// derives repetition and dropout diagnostics from the same sequences.
// terminals marks completed sessions; only sessions without any terminal
// event contribute dropout tails.
func (m *Miner) Mine(sessions []types.Session, terminals []types.TerminalEvent) types.PatternAnalysis {
	analysis := types.PatternAnalysis{TotalSessions: int64(len(sessions))}
	if len(sessions) == 0 {
		return analysis
	}

	sequences := make([][]string, len(sessions))
	for i, s := range sessions {
		sequences[i] = m.sequence(s)
	}

	analysis.MinSupportCount = minSupportCount(m.cfg.MinSupportRatio, len(sessions))
	analysis.Patterns = m.frequentPatterns(sequences, analysis.MinSupportCount)
	analysis.Repetitions = repetitions(sequences)

	terminalNames := make(map[string]struct{}, len(terminals))
	for _, t := range terminals {
		terminalNames[t.Name] = struct{}{}
	}
	analysis.DropoutTails = dropoutTails(sequences, terminalNames)
	analysis.UserSegments = segmentUsers(sessions)

	m.log.Debug("pattern mining complete",
		zap.Int64("sessions", analysis.TotalSessions),
		zap.Int64("min_support_count", analysis.MinSupportCount),
		zap.Int("patterns", len(analysis.Patterns)))
	return analysis
}

// sequence returns the session's event names, dropping lifecycle markers when
// boundary events are excluded by configuration.
func (m *Miner) sequence(s types.Session) []string {
	if m.cfg.IncludeBoundaryEvents {
		return s.Names()
	}
	names := make([]string, 0, s.Len())
	for i := range s.Events {
		if !s.Events[i].IsSystem() {
			names = append(names, s.Events[i].Name)
		}
	}
	return names
}

// minSupportCount converts the support ratio into an absolute session count.
// The small slack keeps exact-boundary ratios on the retained side.
func minSupportCount(ratio float64, sessions int) int64 {
	count := int64(math.Ceil(ratio*float64(sessions) - 1e-9))
	if count < 1 {
		count = 1
	}
	return count
}

type patternAgg struct {
	seq         []string
	support     int64
	occurrences int64
	lastSession int
}

func (m *Miner) frequentPatterns(sequences [][]string, minSupport int64) []types.Pattern {
	aggs := make(map[string]*patternAgg)
	for si, seq := range sequences {
		maxLen := m.cfg.MaxSequenceLength
		if len(seq) < maxLen {
			maxLen = len(seq)
		}
		for length := m.cfg.MinSequenceLength; length <= maxLen; length++ {
			for i := 0; i+length <= len(seq); i++ {
				window := seq[i : i+length]
				key := strings.Join(window, keySep)
				agg := aggs[key]
				if agg == nil {
					agg = &patternAgg{
						seq:         append([]string(nil), window...),
						lastSession: -1,
					}
					aggs[key] = agg
				}
				agg.occurrences++
				if agg.lastSession != si {
					agg.support++
					agg.lastSession = si
				}
			}
		}
	}

	total := float64(len(sequences))
	patterns := make([]types.Pattern, 0, len(aggs))
	for _, agg := range aggs {
		if agg.support < minSupport {
			continue
		}
		patterns = append(patterns, types.Pattern{
			Sequence:     agg.seq,
			Length:       len(agg.seq),
			SupportCount: agg.support,
			SupportRatio: float64(agg.support) / total,
			Occurrences:  agg.occurrences,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].SupportCount != patterns[j].SupportCount {
			return patterns[i].SupportCount > patterns[j].SupportCount
		}
		if patterns[i].Length != patterns[j].Length {
			return patterns[i].Length > patterns[j].Length
		}
		return lessSeq(patterns[i].Sequence, patterns[j].Sequence)
	})
	if len(patterns) > m.cfg.TopPatterns {
		patterns = patterns[:m.cfg.TopPatterns]
	}
	return patterns
}

type repAgg struct {
	sessions    int64
	lastSession int
	runs        int64
	runLenSum   int64
	maxRun      int64
}

// repetitions finds back-to-back runs of a single event within sequences.
// A run of length n counts once, whatever its length.
func repetitions(sequences [][]string) []types.Repetition {
	aggs := make(map[string]*repAgg)
	for si, seq := range sequences {
		i := 0
		for i < len(seq) {
			j := i + 1
			for j < len(seq) && seq[j] == seq[i] {
				j++
			}
			if runLen := int64(j - i); runLen > 1 {
				a := aggs[seq[i]]
				if a == nil {
					a = &repAgg{lastSession: -1}
					aggs[seq[i]] = a
				}
				if a.lastSession != si {
					a.sessions++
					a.lastSession = si
				}
				a.runs++
				a.runLenSum += runLen
				if runLen > a.maxRun {
					a.maxRun = runLen
				}
			}
			i = j
		}
	}

	out := make([]types.Repetition, 0, len(aggs))
	for name, a := range aggs {
		out = append(out, types.Repetition{
			Name:             name,
			SessionsAffected: a.sessions,
			MeanRunLength:    float64(a.runLenSum) / float64(a.runs),
			MaxRunLength:     a.maxRun,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionsAffected != out[j].SessionsAffected {
			return out[i].SessionsAffected > out[j].SessionsAffected
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > maxRepetitionEvents {
		out = out[:maxRepetitionEvents]
	}
	return out
}

// dropoutTails counts the trailing 2- and 3-event windows of sessions that
// never reached a terminal event.
func dropoutTails(sequences [][]string, terminals map[string]struct{}) []types.DropoutTail {
	counts := make(map[string]int64)
	tails := make(map[string][]string)
	for _, seq := range sequences {
		if len(seq) < dropoutTailMin || containsAnyName(seq, terminals) {
			continue
		}
		for length := dropoutTailMin; length <= dropoutTailMax && length <= len(seq); length++ {
			tail := seq[len(seq)-length:]
			key := strings.Join(tail, keySep)
			counts[key]++
			if _, ok := tails[key]; !ok {
				tails[key] = append([]string(nil), tail...)
			}
		}
	}

	out := make([]types.DropoutTail, 0, len(counts))
	for key, c := range counts {
		out = append(out, types.DropoutTail{Sequence: tails[key], Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if len(out[i].Sequence) != len(out[j].Sequence) {
			return len(out[i].Sequence) > len(out[j].Sequence)
		}
		return lessSeq(out[i].Sequence, out[j].Sequence)
	})
	if len(out) > maxDropoutTails {
		out = out[:maxDropoutTails]
	}
	return out
}

func containsAnyName(seq []string, names map[string]struct{}) bool {
	if len(names) == 0 {
		return false
	}
	for _, n := range seq {
		if _, ok := names[n]; ok {
			return true
		}
	}
	return false
}

// lessSeq is a lexicographic comparison over name slices of equal length.
func lessSeq(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
