package pog

import (
	"math"
)

type SaturationParams struct {
	KSat  float64
	KBase float64
}

func NewSaturationParams(kSat float64, kBase float64) (SaturationParams, error) {
	if badFloat(kSat) || kSat <= 0 {
		return SaturationParams{}, invalid("k_sat must be positive, got %v", kSat)
	}
	if badFloat(kBase) || kBase <= 0 {
		return SaturationParams{}, invalid("k_base must be positive, got %v", kBase)
	}
	return SaturationParams{KSat: kSat, KBase: kBase}, nil
}

// Saturate applies sat(raw) = KSat * ln(1 + raw / KBase).
//
// sat is increasing and concave with sat(0) = 0, which bounds the marginal
// benefit of inflating relay volume.
func (p SaturationParams) Saturate(raw float64) float64 {
	return p.KSat * math.Log1p(raw/p.KBase)
}

// NormalizeContribution saturates every raw score and normalizes the result
// into a share summing to 1 over the supplied nodes.
//
// When no node has any saturated score the uniform distribution is returned.
func NormalizeContribution(raw map[NodeID]float64, p SaturationParams) (map[NodeID]float64, error) {
	if _, err := NewSaturationParams(p.KSat, p.KBase); err != nil {
		return nil, err
	}

	saturated := make(map[NodeID]float64, len(raw))
	for node, score := range raw {
		if badFloat(score) || score < 0 {
			return nil, invalid("raw score of %s must be non-negative, got %v", node, score)
		}
		saturated[node] = p.Saturate(score)
	}
	return normalizeWeights(saturated), nil
}

func uniform[V any](nodes map[NodeID]V) map[NodeID]float64 {
	out := make(map[NodeID]float64, len(nodes))
	if len(nodes) == 0 {
		return out
	}
	share := 1.0 / float64(len(nodes))
	for node := range nodes {
		out[node] = share
	}
	return out
}
