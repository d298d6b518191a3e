package pog

import (
	"math"
	"sort"
)

// The outcome of combining contribution and stake for one epoch.
type VirtualStake struct {
	// The blended weight of each node before re-normalization.
	Weights map[NodeID]float64

	// The selection probability of each node. Sums to 1.
	Probabilities map[NodeID]float64
}

// NormalizeStake converts real stakes into shares summing to 1. When the total
// stake is zero the uniform distribution is returned.
func NormalizeStake(stakes map[NodeID]float64) (map[NodeID]float64, error) {
	for node, s := range stakes {
		if badFloat(s) || s < 0 {
			return nil, invalid("stake of %s must be non-negative, got %v", node, s)
		}
	}
	return normalizeWeights(stakes), nil
}

func sameNodes(a, b map[NodeID]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for node := range a {
		if _, ok := b[node]; !ok {
			return false
		}
	}
	return true
}

func copyShares(m map[NodeID]float64) map[NodeID]float64 {
	out := make(map[NodeID]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CombineVirtualStake blends the normalized contribution share hatC with the
// normalized stake share hatS:
//
//	S_v(n) = omega * hatC(n) + (1 - omega) * hatS(n)
//
// and re-normalizes the result into selection probabilities. Both inputs must
// cover the same node set.
func CombineVirtualStake(hatC, hatS map[NodeID]float64, omega float64) (VirtualStake, error) {
	if badFloat(omega) || omega < 0 || 1 < omega {
		return VirtualStake{}, invalid("omega must be in [0, 1], got %v", omega)
	}
	if !sameNodes(hatC, hatS) {
		return VirtualStake{}, ErrNodeSetMismatch
	}
	for node, c := range hatC {
		if badFloat(c) || c < 0 {
			return VirtualStake{}, invalid("contribution share of %s must be non-negative, got %v", node, c)
		}
		if s := hatS[node]; badFloat(s) || s < 0 {
			return VirtualStake{}, invalid("stake share of %s must be non-negative, got %v", node, s)
		}
	}

	// The endpoints are the inputs themselves.
	if omega == 0 {
		return VirtualStake{Weights: copyShares(hatS), Probabilities: copyShares(hatS)}, nil
	}
	if omega == 1 {
		return VirtualStake{Weights: copyShares(hatC), Probabilities: copyShares(hatC)}, nil
	}

	weights := make(map[NodeID]float64, len(hatC))
	for node, c := range hatC {
		weights[node] = omega*c + (1-omega)*hatS[node]
	}
	return VirtualStake{Weights: weights, Probabilities: normalizeWeights(weights)}, nil
}

// phi(s) = max(0, 1/2 - s). Nodes holding half the stake or more get no boost.
func phi(s float64) float64 {
	return math.Max(0, 0.5-s)
}

// BoostedStake returns the virtual stake of a node holding stake share s and
// contribution share c under aggression multiplier K:
//
//	S_v = s * (1 + K * c * phi(s))
func BoostedStake(s float64, c float64, K float64) float64 {
	return s * (1 + K*c*phi(s))
}

// CombineBoosted applies BoostedStake to every node and normalizes.
func CombineBoosted(hatC, hatS map[NodeID]float64, K float64) (VirtualStake, error) {
	if badFloat(K) || K < 0 {
		return VirtualStake{}, invalid("k must be non-negative, got %v", K)
	}
	if !sameNodes(hatC, hatS) {
		return VirtualStake{}, ErrNodeSetMismatch
	}

	weights := make(map[NodeID]float64, len(hatS))
	for node, s := range hatS {
		if badFloat(s) || s < 0 {
			return VirtualStake{}, invalid("stake share of %s must be non-negative, got %v", node, s)
		}
		weights[node] = BoostedStake(s, hatC[node], K)
	}
	return VirtualStake{Weights: weights, Probabilities: normalizeWeights(weights)}, nil
}

// normalizeWeights divides by the total, summing in a fixed node order so the
// result does not depend on map iteration. A zero total falls back to uniform.
func normalizeWeights(weights map[NodeID]float64) map[NodeID]float64 {
	nodes := SortedNodes(weights)
	total := 0.0
	for _, node := range nodes {
		total += weights[node]
	}
	if total <= 0 {
		return uniform(weights)
	}
	out := make(map[NodeID]float64, len(weights))
	for _, node := range nodes {
		out[node] = weights[node] / total
	}
	return out
}

// SortedNodes returns the keys of m in ascending order.
func SortedNodes[V any](m map[NodeID]V) []NodeID {
	nodes := make([]NodeID, 0, len(m))
	for node := range m {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}
