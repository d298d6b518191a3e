package sim

import (
	"fmt"
	"math"

	"github.com/liamzebedee/pogsim/core/pog"
)

const maxGiniLambda = 20.0

func exponentialProfile(n int, lambda float64) []float64 {
	stakes := make([]float64, n)
	for i := range stakes {
		stakes[i] = math.Exp(-lambda * float64(i) / float64(n))
	}
	return stakes
}

// scaleToMean rescales values so they average 1.
func scaleToMean(values []float64) []float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return values
	}
	scale := float64(len(values)) / total
	for i := range values {
		values[i] *= scale
	}
	return values
}

// StakesByGini returns n stakes averaging 1 whose Gini coefficient
// approximates target. Stakes follow exp(-lambda * i / n), with lambda found
// by bisection.
func StakesByGini(n int, target float64) []float64 {
	if n <= 0 {
		return []float64{}
	}

	var lambda float64
	switch {
	case target < 0.01:
		lambda = 0
	case target > 0.99:
		lambda = maxGiniLambda
	default:
		low, high := 0.0, maxGiniLambda
		for i := 0; i < 30; i++ {
			mid := (low + high) / 2
			if pog.Gini(exponentialProfile(n, mid)) < target {
				low = mid
			} else {
				high = mid
			}
		}
		lambda = (low + high) / 2
	}

	return scaleToMean(exponentialProfile(n, lambda))
}

// ZipfStakes returns n stakes averaging 1 with stake(i) proportional to
// 1 / (i+1)^s.
func ZipfStakes(n int, s float64) []float64 {
	if n <= 0 {
		return []float64{}
	}
	stakes := make([]float64, n)
	for i := range stakes {
		stakes[i] = 1.0 / math.Pow(float64(i+1), s)
	}
	return scaleToMean(stakes)
}

// NodesFromStakes builds a node table named node-0..node-(n-1). Hash power
// mirrors stake.
func NodesFromStakes(stakes []float64) []pog.Node {
	nodes := make([]pog.Node, len(stakes))
	for i, s := range stakes {
		nodes[i] = pog.Node{
			ID:        fmt.Sprintf("node-%d", i),
			Stake:     s,
			HashPower: s,
		}
	}
	return nodes
}
