package markov

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pathsight/pathsight/pkg/types"
)

var statePool = []string{"search", "view", "add_to_cart", "checkout", "Session Started"}

func sessionsFromIndexes(idxs []int) []types.Session {
	// Cut the index stream into small sessions of up to 4 events.
	var sessions []types.Session
	for start := 0; start < len(idxs); start += 4 {
		end := start + 4
		if end > len(idxs) {
			end = len(idxs)
		}
		names := make([]string, 0, end-start)
		for _, idx := range idxs[start:end] {
			names = append(names, statePool[idx%len(statePool)])
		}
		sessions = append(sessions, mkSession("u1", int64(len(sessions)), names...))
	}
	return sessions
}

func TestProbabilityRowsNormalize(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("outgoing probabilities sum to 1", prop.ForAll(
		func(idxs []int) bool {
			m := BuildModel(sessionsFromIndexes(idxs))
			for from, row := range m.counts {
				var sum float64
				for to := range row {
					sum += m.Probability(from, to)
				}
				if math.Abs(sum-1.0) > 1e-9 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.Property("dead ends have no outgoing mass", prop.ForAll(
		func(idxs []int) bool {
			m := BuildModel(sessionsFromIndexes(idxs))
			for _, dead := range m.deadEnds() {
				for _, to := range m.States() {
					if m.Probability(dead, to) != 0 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.Property("transition totals match pair counts", prop.ForAll(
		func(idxs []int) bool {
			m := BuildModel(sessionsFromIndexes(idxs))
			var sum int64
			for _, row := range m.counts {
				for _, c := range row {
					sum += c
				}
			}
			return sum == m.total
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
