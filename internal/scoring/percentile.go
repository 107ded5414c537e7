package scoring

import (
	"math"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the q-th percentile (0 <= q <= 100) of values using
// linear interpolation between closest ranks. An empty input yields 0.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return percentileSorted(sorted, q)
}

func percentileSorted(sorted []float64, q float64) float64 {
	q = math.Max(0, math.Min(100, q))
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Median is the 50th percentile.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// Mean returns the arithmetic mean, 0 for an empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return Finite(stat.Mean(values, nil))
}

// Ladder computes every percentile of PercentileLadder, keyed "p<q>".
func Ladder(values []float64) map[string]float64 {
	out := make(map[string]float64, len(PercentileLadder))
	if len(values) == 0 {
		return out
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	for _, q := range PercentileLadder {
		out[LadderKey(q)] = percentileSorted(sorted, q)
	}
	return out
}

func LadderKey(q float64) string {
	return "p" + strconv.FormatFloat(q, 'f', -1, 64)
}
