package pog

import (
	"sort"
)

const DefaultNakamotoThreshold = 0.51

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Gini returns the Gini coefficient of a distribution of non-negative
// values: 0 is perfect equality, (n-1)/n is a single holder.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	sorted := sortedCopy(values)
	total := sum(sorted)
	if total <= 0 {
		return 0.0
	}

	// G = 2 * sum(i * x_i) / (n * sum(x)) - (n + 1) / n, with x ascending.
	weighted := 0.0
	for i, v := range sorted {
		weighted += float64(i+1) * v
	}
	return 2.0*weighted/(float64(n)*total) - float64(n+1)/float64(n)
}

// Herfindahl returns the Herfindahl-Hirschman index of the shares implied by
// the values: the sum of squared shares, in [1/n, 1].
func Herfindahl(values []float64) float64 {
	total := sum(values)
	if total <= 0 {
		return 0.0
	}
	h := 0.0
	for _, v := range values {
		s := v / total
		h += s * s
	}
	return h
}

// NakamotoCoefficient returns the minimum number of holders whose combined
// share reaches the threshold.
func NakamotoCoefficient(values []float64, threshold float64) int {
	total := sum(values)
	if total <= 0 {
		return 0
	}
	sorted := sortedCopy(values)

	// Take the largest holders first.
	cumulative := 0.0
	for i := len(sorted) - 1; i >= 0; i-- {
		cumulative += sorted[i] / total
		if cumulative >= threshold {
			return len(sorted) - i
		}
	}
	return len(sorted)
}

// LorenzCurve returns the points of the Lorenz curve of the values: the
// cumulative share of the total held by the poorest fraction x of holders.
// Both slices start at 0 and end at 1.
func LorenzCurve(values []float64) ([]float64, []float64) {
	n := len(values)
	xs := make([]float64, n+1)
	ys := make([]float64, n+1)
	if n == 0 {
		return []float64{0}, []float64{0}
	}

	sorted := sortedCopy(values)
	total := sum(sorted)
	cumulative := 0.0
	for i, v := range sorted {
		cumulative += v
		xs[i+1] = float64(i+1) / float64(n)
		if total > 0 {
			ys[i+1] = cumulative / total
		} else {
			ys[i+1] = xs[i+1]
		}
	}
	return xs, ys
}

// Summary statistics of a set of path lengths.
type PathStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Median float64 `json:"median"`
}

func PathStatistics(lengths []int) PathStats {
	if len(lengths) == 0 {
		return PathStats{}
	}
	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	n := len(sorted)
	median := float64(sorted[n/2])
	if n%2 == 0 {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2.0
	}

	return PathStats{
		Count:  n,
		Mean:   MeanLength(sorted),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: median,
	}
}

// ShareValues returns the values of a share map in node order.
func ShareValues(shares map[NodeID]float64) []float64 {
	out := make([]float64, 0, len(shares))
	for _, node := range SortedNodes(shares) {
		out = append(out, shares[node])
	}
	return out
}
