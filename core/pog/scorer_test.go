package pog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContributionWeightSumsToOne(t *testing.T) {
	assert := assert.New(t)

	for L := 1; L <= 64; L++ {
		total := 0.0
		for k := 1; k <= L; k++ {
			total += ContributionWeight(k, L)
		}
		assert.InDelta(1.0, total, 1e-12, "L=%d", L)
	}
}

func TestContributionWeightDecreasesAlongPath(t *testing.T) {
	assert := assert.New(t)

	L := 10
	for k := 1; k < L; k++ {
		assert.Greater(ContributionWeight(k, L), ContributionWeight(k+1, L))
	}
}

func TestContributionWeightOutOfRange(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, ContributionWeight(0, 3))
	assert.Equal(0.0, ContributionWeight(4, 3))
	assert.Equal(0.0, ContributionWeight(1, 0))
	assert.Equal(0.0, ContributionWeight(-1, -1))
}

func TestScorePathRegression(t *testing.T) {
	assert := assert.New(t)

	scorer := NewScorer(DiscountNone)
	ok, err := scorer.ScorePath(Path{Relayers: []NodeID{"A", "B", "C"}}, 0)
	assert.Nil(err)
	assert.True(ok)

	// alpha = (1/2, 1/3, 1/6), base = 1/3.
	scores := scorer.Scores()
	assert.InDelta(1.0/6.0, scores["A"], 1e-12)
	assert.InDelta(1.0/9.0, scores["B"], 1e-12)
	assert.InDelta(1.0/18.0, scores["C"], 1e-12)
	assert.Equal(1, scorer.Accepted())
	assert.Equal(0, scorer.Dropped())
}

func TestScorePathBaseScoreOverride(t *testing.T) {
	assert := assert.New(t)

	scorer := NewScorer(DiscountNone)
	_, err := scorer.ScorePath(Path{Relayers: []NodeID{"A", "B"}, BaseScore: 3}, 0)
	assert.Nil(err)

	// alpha = (2/3, 1/3).
	scores := scorer.Scores()
	assert.InDelta(2.0, scores["A"], 1e-12)
	assert.InDelta(1.0, scores["B"], 1e-12)
}

func TestScorePathDegenerate(t *testing.T) {
	assert := assert.New(t)

	scorer := NewScorer(DiscountNone)

	ok, err := scorer.ScorePath(Path{}, 0)
	assert.Nil(err)
	assert.False(ok)

	ok, err = scorer.ScorePath(Path{Relayers: []NodeID{"A"}, Proposer: "A"}, 0)
	assert.Nil(err)
	assert.False(ok)

	assert.Equal(0, scorer.Accepted())
	assert.Equal(2, scorer.Dropped())
	assert.Empty(scorer.Scores())

	// A single relayer delivering to another proposer is a valid path.
	ok, err = scorer.ScorePath(Path{Relayers: []NodeID{"A"}, Proposer: "B"}, 0)
	assert.Nil(err)
	assert.True(ok)
	assert.InDelta(1.0, scorer.Scores()["A"], 1e-12)
}

func TestScorePathInvalidBaseScore(t *testing.T) {
	assert := assert.New(t)

	scorer := NewScorer(DiscountNone)

	_, err := scorer.ScorePath(Path{Relayers: []NodeID{"A"}, BaseScore: -1}, 0)
	assert.True(errors.Is(err, ErrInvalidParameter))

	_, err = scorer.ScorePath(Path{Relayers: []NodeID{"A"}, BaseScore: math.NaN()}, 0)
	assert.True(errors.Is(err, ErrInvalidParameter))

	assert.Empty(scorer.Scores())
}

func TestScorerOrderIndependent(t *testing.T) {
	assert := assert.New(t)

	paths := []Path{
		{Relayers: []NodeID{"A", "B", "C"}},
		{Relayers: []NodeID{"C", "A"}},
		{Relayers: []NodeID{"B"}, Proposer: "D"},
		{Relayers: []NodeID{"D", "C", "B", "A"}, BaseScore: 2},
	}

	forward := NewScorer(DiscountNone)
	for _, p := range paths {
		forward.ScorePath(p, 0)
	}
	backward := NewScorer(DiscountNone)
	for i := len(paths) - 1; i >= 0; i-- {
		backward.ScorePath(paths[i], 0)
	}

	a := forward.Scores()
	b := backward.Scores()
	assert.Equal(len(a), len(b))
	for node, score := range a {
		assert.InDelta(score, b[node], 1e-12, node)
	}
}

func TestScorerResetKeepsNodes(t *testing.T) {
	assert := assert.New(t)

	scorer := NewScorer(DiscountNone)
	scorer.Track("Z")
	scorer.ScorePath(Path{Relayers: []NodeID{"A", "B"}}, 0)
	scorer.Reset()

	scores := scorer.Scores()
	assert.Equal(map[NodeID]float64{"A": 0, "B": 0, "Z": 0}, scores)
	assert.Equal(0, scorer.Accepted())
}

func TestScoresReturnsCopy(t *testing.T) {
	assert := assert.New(t)

	scorer := NewScorer(DiscountNone)
	scorer.ScorePath(Path{Relayers: []NodeID{"A"}, Proposer: "B"}, 0)
	scores := scorer.Scores()
	scores["A"] = 100

	assert.InDelta(1.0, scorer.Scores()["A"], 1e-12)
}

func TestScorePathQuadraticDiscount(t *testing.T) {
	assert := assert.New(t)

	scorer := NewScorer(DiscountQuadratic)

	// L = 4 against NTD = 2: base = 1/4 * (2/4)^2.
	scorer.ScorePath(Path{Relayers: []NodeID{"A", "B", "C", "D"}}, 2)
	scores := scorer.Scores()
	assert.InDelta(ContributionWeight(1, 4)*0.25*0.25, scores["A"], 1e-12)

	// Within the threshold there is no discount.
	scorer.Reset()
	scorer.ScorePath(Path{Relayers: []NodeID{"A", "B"}}, 2)
	assert.InDelta(ContributionWeight(1, 2)*0.5, scorer.Scores()["A"], 1e-12)
}

func TestLengthDiscountHyperbolic(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1.0, LengthDiscount(DiscountHyperbolic, 3, 6))
	assert.Equal(1.0, LengthDiscount(DiscountHyperbolic, 10, 0))
	assert.InDelta(1.0/5.0, LengthDiscount(DiscountHyperbolic, 10, 6), 1e-12)
	assert.Equal(1.0, LengthDiscount(DiscountNone, 100, 1))
}

func TestSybilChainScore(t *testing.T) {
	assert := assert.New(t)

	// Positions 3..5 of a length 5 path: (3 + 2 + 1) * 2 / 30.
	assert.InDelta(0.4, SybilChainScore(2, 3), 1e-12)

	// Appending more Sybils to the same honest prefix dilutes each one.
	perNode := func(n int) float64 { return SybilChainScore(3, n) / float64(n) }
	assert.Greater(perNode(1), perNode(5))
	assert.Greater(perNode(5), perNode(20))
}
