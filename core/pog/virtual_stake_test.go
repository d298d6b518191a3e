package pog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testHatC = map[NodeID]float64{"A": 0.5, "B": 0.3, "C": 0.2}
	testHatS = map[NodeID]float64{"A": 0.1, "B": 0.1, "C": 0.8}
)

func TestCombineVirtualStakeEndpoints(t *testing.T) {
	assert := assert.New(t)

	vs, err := CombineVirtualStake(testHatC, testHatS, 0)
	assert.Nil(err)
	assert.Equal(testHatS, vs.Probabilities)

	vs, err = CombineVirtualStake(testHatC, testHatS, 1)
	assert.Nil(err)
	assert.Equal(testHatC, vs.Probabilities)

	// The result does not alias the input.
	vs.Probabilities["A"] = 0
	assert.Equal(0.5, testHatC["A"])
}

func TestCombineVirtualStakeMix(t *testing.T) {
	assert := assert.New(t)

	vs, err := CombineVirtualStake(testHatC, testHatS, 0.8)
	assert.Nil(err)
	assert.InDelta(0.8*0.5+0.2*0.1, vs.Weights["A"], 1e-12)
	assert.InDelta(0.8*0.2+0.2*0.8, vs.Weights["C"], 1e-12)
	assert.InDelta(1.0, sumShares(vs.Probabilities), 1e-12)
	for node := range testHatC {
		assert.GreaterOrEqual(vs.Probabilities[node], 0.0)
	}
}

func TestCombineVirtualStakeErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := CombineVirtualStake(testHatC, map[NodeID]float64{"A": 1}, 0.5)
	assert.True(errors.Is(err, ErrNodeSetMismatch))

	_, err = CombineVirtualStake(testHatC, map[NodeID]float64{"A": 0.5, "B": 0.5, "D": 0}, 0.5)
	assert.True(errors.Is(err, ErrNodeSetMismatch))

	for _, omega := range []float64{-0.1, 1.1, math.NaN()} {
		_, err = CombineVirtualStake(testHatC, testHatS, omega)
		assert.True(errors.Is(err, ErrInvalidParameter), "omega=%v", omega)
	}
}

func TestNormalizeStake(t *testing.T) {
	assert := assert.New(t)

	hatS, err := NormalizeStake(map[NodeID]float64{"A": 3, "B": 1})
	assert.Nil(err)
	assert.Equal(0.75, hatS["A"])
	assert.Equal(0.25, hatS["B"])

	hatS, err = NormalizeStake(map[NodeID]float64{"A": 0, "B": 0})
	assert.Nil(err)
	assert.Equal(0.5, hatS["A"])

	_, err = NormalizeStake(map[NodeID]float64{"A": -1})
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestBoostedStake(t *testing.T) {
	assert := assert.New(t)

	// phi(0.2) = 0.3.
	assert.InDelta(0.2*(1+4*0.5*0.3), BoostedStake(0.2, 0.5, 4), 1e-12)

	// No boost at half the stake or above.
	assert.Equal(0.6, BoostedStake(0.6, 1, 4))
	assert.Equal(0.5, BoostedStake(0.5, 1, 4))

	// No boost without contribution or aggression.
	assert.Equal(0.2, BoostedStake(0.2, 0, 4))
	assert.Equal(0.2, BoostedStake(0.2, 1, 0))
}

func TestCombineBoosted(t *testing.T) {
	assert := assert.New(t)

	vs, err := CombineBoosted(testHatC, testHatS, 4)
	assert.Nil(err)
	assert.InDelta(1.0, sumShares(vs.Probabilities), 1e-12)

	// Small stakers with contribution gain relative to pure stake.
	assert.Greater(vs.Probabilities["A"], testHatS["A"])
	assert.Less(vs.Probabilities["C"], testHatS["C"])

	_, err = CombineBoosted(testHatC, testHatS, -1)
	assert.True(errors.Is(err, ErrInvalidParameter))
}
