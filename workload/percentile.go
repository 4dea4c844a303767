package workload

import (
	"math"
	"sort"
	"time"
)

// Percentile returns the p-th percentile (0..100) of an ascending slice using linear
// interpolation between the closest ranks, rank = p/100 * (n-1).
// An empty slice yields 0, a single sample yields that sample.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))

	if lowerIdx == upperIdx {
		return sorted[lowerIdx]
	}

	lower := sorted[lowerIdx]
	upper := sorted[upperIdx]

	return lower + (upper-lower)*(rank-float64(lowerIdx))
}

// sortedMilliseconds converts durations to float64 milliseconds in ascending order.
func sortedMilliseconds(durations []time.Duration) []float64 {
	ms := make([]float64, len(durations))
	for i, d := range durations {
		ms[i] = toMilliseconds(d)
	}
	sort.Float64s(ms)

	return ms
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
