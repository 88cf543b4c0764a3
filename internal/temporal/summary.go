package temporal

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pathsight/pathsight/pkg/types"
)

// Summarize computes the standard distribution summary over a sample. The
// input slice is sorted in place. Empty samples yield a zero summary;
// single-element samples report a zero standard deviation so the result
// always marshals to valid JSON.
func Summarize(sample []float64) types.DistributionSummary {
	if len(sample) == 0 {
		return types.DistributionSummary{}
	}
	sort.Float64s(sample)

	s := types.DistributionSummary{
		Count:  int64(len(sample)),
		Mean:   stat.Mean(sample, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sample, nil),
		Min:    sample[0],
		Max:    sample[len(sample)-1],
		Percentiles: types.Percentiles{
			P10: stat.Quantile(0.10, stat.LinInterp, sample, nil),
			P25: stat.Quantile(0.25, stat.LinInterp, sample, nil),
			P50: stat.Quantile(0.50, stat.LinInterp, sample, nil),
			P75: stat.Quantile(0.75, stat.LinInterp, sample, nil),
			P90: stat.Quantile(0.90, stat.LinInterp, sample, nil),
			P95: stat.Quantile(0.95, stat.LinInterp, sample, nil),
			P99: stat.Quantile(0.99, stat.LinInterp, sample, nil),
		},
	}
	if len(sample) > 1 {
		s.Std = stat.StdDev(sample, nil)
	}
	return s
}
