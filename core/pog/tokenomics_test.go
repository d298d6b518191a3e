package pog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistributeRewards(t *testing.T) {
	assert := assert.New(t)

	split, err := DistributeRewards(1000, 100, 1.0, 0.5)
	assert.Nil(err)
	assert.Equal(Amount(500), split.MinerFeeIncome)
	assert.Equal(Amount(600), split.MinerTotalRevenue)
	assert.Equal(Amount(500), split.NetworkPool)

	split, err = DistributeRewards(1000, 100, 0.25, 0.5)
	assert.Nil(err)
	assert.Equal(Amount(125), split.MinerFeeIncome)
	assert.Equal(Amount(875), split.NetworkPool)
}

func TestDistributeRewardsConservesFees(t *testing.T) {
	assert := assert.New(t)

	for _, fees := range []Amount{0, 1, 7, 999, 123_456_789, 50 * OneCoin} {
		for _, penalty := range []float64{0, 0.01, 1.0 / 3.0, 0.25, 0.999, 1} {
			for _, share := range []float64{0, 0.5, 0.7, 1} {
				split, err := DistributeRewards(fees, OneCoin, penalty, share)
				assert.Nil(err)
				assert.Equal(fees, split.MinerFeeIncome+split.NetworkPool)
				assert.Equal(OneCoin+split.MinerFeeIncome, split.MinerTotalRevenue)
			}
		}
	}
}

func TestDistributeRewardsDecreasesWithPathLength(t *testing.T) {
	assert := assert.New(t)

	ntd := 6.0
	prev, _ := DistributeRewards(OneCoin, 0, PenaltyFactor(ntd, ntd), 0.5)
	for avg := 7.0; avg <= 20; avg++ {
		split, err := DistributeRewards(OneCoin, 0, PenaltyFactor(avg, ntd), 0.5)
		assert.Nil(err)
		assert.Less(split.MinerFeeIncome, prev.MinerFeeIncome)
		assert.Greater(split.NetworkPool, prev.NetworkPool)
		prev = split
	}
}

func TestDistributeRewardsInvalid(t *testing.T) {
	assert := assert.New(t)

	for _, penalty := range []float64{-0.1, 1.5, math.NaN()} {
		_, err := DistributeRewards(100, 0, penalty, 0.5)
		assert.True(errors.Is(err, ErrInvalidParameter))
	}
	for _, share := range []float64{-0.1, 1.01, math.Inf(1)} {
		_, err := DistributeRewards(100, 0, 1, share)
		assert.True(errors.Is(err, ErrInvalidParameter))
	}
}

func TestBlockRewardAt(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Amount(50*OneCoin), BlockRewardAt(1_000_000, 50*OneCoin, 0))
	assert.Equal(Amount(50*OneCoin), BlockRewardAt(99, 50*OneCoin, 100))
	assert.Equal(Amount(25*OneCoin), BlockRewardAt(100, 50*OneCoin, 100))
	assert.Equal(Amount(12.5*OneCoin), BlockRewardAt(250, 50*OneCoin, 100))
	assert.Equal(Amount(0), BlockRewardAt(100*100, 50*OneCoin, 100))
}
