package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// mean returns 0 for an empty sample
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// ratePercent is 100*num/den, or 0 when den is 0
func ratePercent(num, den []float64) float64 {
	d := floats.Sum(den)
	if d == 0 {
		return 0
	}
	return floats.Sum(num) / d * 100
}

// Round2 rounds half away from zero to two decimal places
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type distinct map[string]struct{}

func (d distinct) add(s string) { d[s] = struct{}{} }
