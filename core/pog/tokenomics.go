package pog

import (
	"math"
)

// The payouts of one block.
type RewardSplit struct {
	// The proposer's share of the fees, after the penalty.
	MinerFeeIncome Amount `json:"miner_fee_income"`

	// Block reward plus fee income.
	MinerTotalRevenue Amount `json:"miner_total_revenue"`

	// Fees not paid to the proposer.
	NetworkPool Amount `json:"network_pool"`
}

// DistributeRewards splits the fees of a block between its proposer and the
// network pool under penalty factor P:
//
//	minerFeeIncome = floor(feeShare * totalFees * P)
//	networkPool    = totalFees - minerFeeIncome
//
// so that minerFeeIncome + networkPool == totalFees exactly.
func DistributeRewards(totalFees Amount, blockReward Amount, penalty float64, feeShare float64) (RewardSplit, error) {
	if badFloat(penalty) || penalty < 0 || 1 < penalty {
		return RewardSplit{}, invalid("penalty must be in [0, 1], got %v", penalty)
	}
	if badFloat(feeShare) || feeShare < 0 || 1 < feeShare {
		return RewardSplit{}, invalid("fee share must be in [0, 1], got %v", feeShare)
	}

	// Compute the proposer's fee income.
	income := Amount(math.Floor(feeShare * penalty * float64(totalFees)))
	if income > totalFees {
		income = totalFees
	}

	return RewardSplit{
		MinerFeeIncome:    income,
		MinerTotalRevenue: blockReward + income,
		NetworkPool:       totalFees - income,
	}, nil
}

// BlockRewardAt returns the block reward at a given height. The reward halves
// every halvingInterval blocks. An interval of 0 means a constant reward.
func BlockRewardAt(height int64, initial Amount, halvingInterval int64) Amount {
	if halvingInterval <= 0 || height < 0 {
		return initial
	}

	// Calculate the number of halvings.
	numHalvings := height / halvingInterval
	if numHalvings >= 64 {
		return 0
	}
	return initial >> uint(numHalvings)
}
