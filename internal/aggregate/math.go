// Package aggregate holds the in-process passes of the aggregation engine:
// cohort retention, churn, latency percentiles, review scoring and forecasting.
// Everything here is a pure function of rows already fetched from the store.
package aggregate

import (
	"math"
	"sort"
)

// Round2 rounds to two decimal places, halves away from zero
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0
func Percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(float64(part) / float64(whole) * 100)
}

// Percentile returns the q-quantile (0..1) of values using linear interpolation
// between closest ranks. values is not modified. An empty input yields 0.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return percentileSorted(sorted, q)
}

func percentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}

	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
