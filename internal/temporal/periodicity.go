package temporal

import (
	"fmt"
	"math/cmplx"
	"sort"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/pathsight/pathsight/pkg/types"
)

const (
	dailyLag  = 24
	weeklyLag = 168

	// dominantPeriodCount caps the reported spectral peaks.
	dominantPeriodCount = 5
)

// periodicity buckets the stream into an hourly count series covering the
// full observed span and derives dominant periods from the Fourier power
// spectrum, plus daily and weekly autocorrelation.
func (a *Analyzer) periodicity(events []types.Event) (*types.Periodicity, []string) {
	series := hourlySeries(events)
	if len(series) < 2 {
		return nil, []string{"stream spans fewer than two hourly buckets; periodicity skipped"}
	}

	p := &types.Periodicity{
		BucketHours:     1,
		Buckets:         len(series),
		DominantPeriods: dominantPeriods(series),
	}

	var warnings []string
	if ac, ok := autocorrelation(series, dailyLag); ok {
		p.DailyAutocorrelation = &ac
	} else {
		warnings = append(warnings, fmt.Sprintf("series too short or flat for lag-%d autocorrelation", dailyLag))
	}
	if len(series) > weeklyLag {
		if ac, ok := autocorrelation(series, weeklyLag); ok {
			p.WeeklyAutocorrelation = &ac
		}
	}
	return p, warnings
}

// hourlySeries returns per-hour event counts from the first to the last
// observed hour, empty hours included.
func hourlySeries(events []types.Event) []float64 {
	if len(events) == 0 {
		return nil
	}
	min, max := events[0].Timestamp, events[0].Timestamp
	for i := 1; i < len(events); i++ {
		ts := events[i].Timestamp
		if ts.Before(min) {
			min = ts
		}
		if ts.After(max) {
			max = ts
		}
	}

	start := min.Truncate(time.Hour)
	end := max.Truncate(time.Hour)
	series := make([]float64, int(end.Sub(start)/time.Hour)+1)
	for i := range events {
		idx := events[i].Timestamp.Truncate(time.Hour).Sub(start) / time.Hour
		series[idx]++
	}
	return series
}

// dominantPeriods returns the strongest spectral peaks by power, skipping the
// DC component. The period of bin i is the series length over i, in hours.
func dominantPeriods(series []float64) []types.PeriodPower {
	n := len(series)
	coeffs := fourier.NewFFT(n).Coefficients(nil, series)

	type bin struct {
		idx   int
		power float64
	}
	bins := make([]bin, 0, len(coeffs))
	for i := 1; i < len(coeffs); i++ {
		mag := cmplx.Abs(coeffs[i])
		if power := mag * mag; power > 0 {
			bins = append(bins, bin{idx: i, power: power})
		}
	}
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].power != bins[j].power {
			return bins[i].power > bins[j].power
		}
		return bins[i].idx < bins[j].idx
	})
	if len(bins) > dominantPeriodCount {
		bins = bins[:dominantPeriodCount]
	}

	periods := make([]types.PeriodPower, len(bins))
	for i, b := range bins {
		periods[i] = types.PeriodPower{
			Hours: float64(n) / float64(b.idx),
			Power: b.power,
		}
	}
	return periods
}

// autocorrelation computes the lag autocorrelation of the series. It reports
// false when the overlap is too short or either segment has zero variance,
// where the statistic is undefined.
func autocorrelation(series []float64, lag int) (float64, bool) {
	if len(series) < lag+2 {
		return 0, false
	}
	head := series[:len(series)-lag]
	tail := series[lag:]
	if stat.Variance(head, nil) == 0 || stat.Variance(tail, nil) == 0 {
		return 0, false
	}
	return stat.Correlation(head, tail, nil), true
}
