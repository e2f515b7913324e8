package anomaly

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StandardScale applies z-score normalization with the population standard
// deviation. A constant column scales to all zeros.
func StandardScale(values []float64) []float64 {
	result := make([]float64, len(values))
	if len(values) == 0 {
		return result
	}

	mean, stdDev := stat.PopMeanStdDev(values, nil)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return result
	}
	for i, v := range values {
		result[i] = (v - mean) / stdDev
	}
	return result
}

// median of the values, averaging the middle pair for even lengths
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// percentile returns the value at p (0..1) of sorted values with linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
