package pog

// ContributionWeight returns alpha_k(L), the share of a path's score credited
// to the relayer at position k (1-indexed from the source) on a path of
// length L.
//
//	alpha_k(L) = 2(L - k + 1) / (L(L + 1))
//
// Earlier relayers weigh more, and the weights of a path sum to 1.
func ContributionWeight(k int, L int) float64 {
	if L <= 0 || k <= 0 || k > L {
		return 0.0
	}
	return 2.0 * float64(L-k+1) / float64(L*(L+1))
}

// LengthDiscount returns the multiplier applied to the base score of a path
// of length L under the given discount policy and threshold.
func LengthDiscount(d Discount, L int, ntd float64) float64 {
	switch d {
	case DiscountQuadratic:
		return PenaltyFactor(float64(L), ntd)
	case DiscountHyperbolic:
		// 1 / (1 + L - NTD) beyond the threshold.
		if ntd <= 0 || float64(L) <= ntd {
			return 1.0
		}
		return 1.0 / (1.0 + float64(L) - ntd)
	default:
		return 1.0
	}
}

// The scorer accumulates raw contribution scores over one epoch.
//
// Accumulation is plain summation, so the order in which paths are scored
// never affects the final raw scores.
type Scorer struct {
	raw      map[NodeID]float64
	discount Discount

	// Accepted and dropped path counters for the current epoch.
	accepted int
	dropped  int
}

func NewScorer(discount Discount) *Scorer {
	if discount == "" {
		discount = DiscountNone
	}
	return &Scorer{
		raw:      make(map[NodeID]float64),
		discount: discount,
	}
}

// ScorePath credits each relayer of the path with alpha_k(L) * base.
// ntd is the threshold used by the discount policy; it is ignored when the
// scorer has no discount. Degenerate paths are dropped and report false.
func (s *Scorer) ScorePath(p Path, ntd float64) (bool, error) {
	if badFloat(p.BaseScore) || p.BaseScore < 0 {
		return false, invalid("base score must be non-negative, got %v", p.BaseScore)
	}
	if p.Degenerate() {
		s.dropped++
		return false, nil
	}

	L := p.Len()
	base := p.BaseScore
	if base == 0 {
		base = 1.0 / float64(L)
	}
	base *= LengthDiscount(s.discount, L, ntd)

	for i, node := range p.Relayers {
		s.raw[node] += ContributionWeight(i+1, L) * base
	}
	s.accepted++
	return true, nil
}

// Track makes a node known to the scorer with a zero score, so that it takes
// part in normalization even without any relay activity.
func (s *Scorer) Track(node NodeID) {
	if _, ok := s.raw[node]; !ok {
		s.raw[node] = 0
	}
}

// Scores returns a copy of the accumulated raw scores.
func (s *Scorer) Scores() map[NodeID]float64 {
	out := make(map[NodeID]float64, len(s.raw))
	for k, v := range s.raw {
		out[k] = v
	}
	return out
}

func (s *Scorer) Accepted() int { return s.accepted }
func (s *Scorer) Dropped() int  { return s.dropped }

// Reset zeroes all accumulators at an epoch boundary. Known nodes stay known.
func (s *Scorer) Reset() {
	for k := range s.raw {
		s.raw[k] = 0
	}
	s.accepted = 0
	s.dropped = 0
}

// SybilChainScore is the summed raw weight of a chain of n nodes appended
// after h honest relayers on a single path, i.e. sum alpha_k(h+n) for
// k in (h, h+n].
func SybilChainScore(honest int, n int) float64 {
	L := honest + n
	total := 0.0
	for k := honest + 1; k <= L; k++ {
		total += ContributionWeight(k, L)
	}
	return total
}
