package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/liamzebedee/pogsim/core/pog"
)

//
// NTD dynamics under a long-range attack.
//

type NTDDynamicsParams struct {
	Epochs      int
	AttackStart int
	AttackEnd   int // inclusive

	TxPerEpoch   int
	TrueDiameter float64
	HonestMean   float64
	HonestStd    float64

	AttackLenMin float64
	AttackLenMax float64
	AttackRatio  float64

	Step float64
	Seed int64
}

func DefaultNTDDynamicsParams() NTDDynamicsParams {
	return NTDDynamicsParams{
		Epochs:       100,
		AttackStart:  20,
		AttackEnd:    50,
		TxPerEpoch:   1000,
		TrueDiameter: 6,
		HonestMean:   6,
		HonestStd:    1.5,
		AttackLenMin: 15,
		AttackLenMax: 20,
		AttackRatio:  0.1,
		Step:         1.0,
		Seed:         42,
	}
}

type NTDDynamicsRow struct {
	Epoch        int
	NTD          float64
	Target       float64
	TrueDiameter float64
	HonestAvg    float64
	AllAvg       float64
	AttackActive bool
	MaxObserved  float64
	Penalty      float64
}

// NTDDynamics simulates the NTD tracking honest traffic whose path lengths are
// normally distributed, while a share of the traffic during the attack window
// takes uniformly long paths.
func NTDDynamics(p NTDDynamicsParams) ([]NTDDynamicsRow, error) {
	if p.Epochs < 0 || p.TxPerEpoch <= 0 {
		return nil, fmt.Errorf("%w: epochs and tx per epoch must be positive", pog.ErrInvalidParameter)
	}
	if p.AttackRatio < 0 || 1 < p.AttackRatio {
		return nil, fmt.Errorf("%w: attack ratio must be in [0, 1], got %v", pog.ErrInvalidParameter, p.AttackRatio)
	}
	ntd, err := pog.NewNTDController(p.Step)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(p.Seed))

	rows := make([]NTDDynamicsRow, 0, p.Epochs)
	for epoch := 0; epoch < p.Epochs; epoch++ {
		honestCount := p.TxPerEpoch
		attackCount := 0
		if p.AttackStart <= epoch && epoch <= p.AttackEnd {
			honestCount = int(float64(p.TxPerEpoch) * (1 - p.AttackRatio))
			attackCount = p.TxPerEpoch - honestCount
		}

		// Honest lengths, clipped to [1, diameter + 2].
		honestSum, allSum, maxObserved := 0.0, 0.0, 0.0
		for i := 0; i < honestCount; i++ {
			l := rng.NormFloat64()*p.HonestStd + p.HonestMean
			l = math.Max(1, math.Min(p.TrueDiameter+2, l))
			honestSum += l
			maxObserved = math.Max(maxObserved, l)
		}
		allSum = honestSum

		// Attack lengths.
		for i := 0; i < attackCount; i++ {
			l := p.AttackLenMin + rng.Float64()*(p.AttackLenMax-p.AttackLenMin)
			allSum += l
			maxObserved = math.Max(maxObserved, l)
		}

		honestAvg := 0.0
		if honestCount > 0 {
			honestAvg = honestSum / float64(honestCount)
		}
		allAvg := allSum / float64(honestCount+attackCount)

		penalty := ntd.Penalty(allAvg)
		ntd.Retarget(allAvg)

		rows = append(rows, NTDDynamicsRow{
			Epoch:        epoch,
			NTD:          ntd.Current,
			Target:       ntd.Target,
			TrueDiameter: p.TrueDiameter,
			HonestAvg:    honestAvg,
			AllAvg:       allAvg,
			AttackActive: attackCount > 0,
			MaxObserved:  maxObserved,
			Penalty:      penalty,
		})
	}
	return rows, nil
}

func NTDDynamicsTable(rows []NTDDynamicsRow) *Table {
	t := NewTable("epoch", "ntd", "ntd_target", "true_diameter", "honest_avg", "all_paths_avg", "attack_active", "max_observed", "penalty")
	for _, r := range rows {
		t.Append(r.Epoch, r.NTD, r.Target, r.TrueDiameter, r.HonestAvg, r.AllAvg, r.AttackActive, r.MaxObserved, r.Penalty)
	}
	return t
}

//
// Sybil long-chain defense.
//

type SybilRow struct {
	Honest           int
	SybilCount       int
	PathLength       int
	RawScore         float64
	Penalty          float64
	PropagationScore float64
}

// SybilPropagation computes the score an attacker collects by splitting into
// 1..maxSybils identities appended after honest relayers on one path, with
// the NTD penalty applied to the whole path.
func SybilPropagation(honest int, maxSybils int, ntd float64) ([]SybilRow, error) {
	if honest < 0 || maxSybils < 1 {
		return nil, fmt.Errorf("%w: honest must be >= 0 and max sybils >= 1", pog.ErrInvalidParameter)
	}

	rows := make([]SybilRow, 0, maxSybils)
	for n := 1; n <= maxSybils; n++ {
		L := honest + n
		raw := pog.SybilChainScore(honest, n)
		penalty := pog.PenaltyFactor(float64(L), ntd)
		rows = append(rows, SybilRow{
			Honest:           honest,
			SybilCount:       n,
			PathLength:       L,
			RawScore:         raw,
			Penalty:          penalty,
			PropagationScore: raw * penalty,
		})
	}
	return rows, nil
}

func SybilTable(rows []SybilRow) *Table {
	t := NewTable("honest", "sybil_count", "path_length", "raw_score", "penalty_factor", "propagation_score")
	for _, r := range rows {
		t.Append(r.Honest, r.SybilCount, r.PathLength, r.RawScore, r.Penalty, r.PropagationScore)
	}
	return t
}

//
// Spam saturation defense.
//

type SpamParams struct {
	Honest       int
	BaseRawScore float64
	KSat         float64
	KBase        float64
	Omega        float64
	BlockReward  float64
	FeeRate      float64
	Multipliers  []float64
}

func DefaultSpamParams() SpamParams {
	return SpamParams{
		Honest:       99,
		BaseRawScore: 100,
		KSat:         1,
		KBase:        1,
		Omega:        1,
		BlockReward:  1,
		FeeRate:      0.00001,
		Multipliers:  pog.Linspace(1, 50, 100),
	}
}

type SpamRow struct {
	Multiplier float64

	// Selection share of the attacker with and without saturation.
	Share       float64
	LinearShare float64

	Cost      float64
	Revenue   float64
	NetProfit float64
}

const spamAttacker = "attacker"

// SpamSaturation sweeps the attacker's relay volume as a multiple of an
// honest node's, all nodes holding equal stake.
func SpamSaturation(p SpamParams) ([]SpamRow, error) {
	if p.Honest < 1 {
		return nil, fmt.Errorf("%w: at least one honest node is required", pog.ErrInvalidParameter)
	}
	sat, err := pog.NewSaturationParams(p.KSat, p.KBase)
	if err != nil {
		return nil, err
	}

	stakes := map[pog.NodeID]float64{spamAttacker: 1}
	for i := 0; i < p.Honest; i++ {
		stakes[fmt.Sprintf("honest-%d", i)] = 1
	}
	hatS, err := pog.NormalizeStake(stakes)
	if err != nil {
		return nil, err
	}

	rows := make([]SpamRow, 0, len(p.Multipliers))
	for _, m := range p.Multipliers {
		raw := make(map[pog.NodeID]float64, len(stakes))
		for id := range stakes {
			raw[id] = p.BaseRawScore
		}
		raw[spamAttacker] = p.BaseRawScore * m

		hatC, err := pog.NormalizeContribution(raw, sat)
		if err != nil {
			return nil, err
		}
		vs, err := pog.CombineVirtualStake(hatC, hatS, p.Omega)
		if err != nil {
			return nil, err
		}

		// Without saturation the share is proportional to volume.
		linear := (p.BaseRawScore * m) / (p.BaseRawScore*m + float64(p.Honest)*p.BaseRawScore)

		share := vs.Probabilities[spamAttacker]
		cost := p.BaseRawScore * m * p.FeeRate
		revenue := share * p.BlockReward
		rows = append(rows, SpamRow{
			Multiplier:  m,
			Share:       share,
			LinearShare: linear,
			Cost:        cost,
			Revenue:     revenue,
			NetProfit:   revenue - cost,
		})
	}
	return rows, nil
}

func SpamTable(rows []SpamRow) *Table {
	t := NewTable("multiplier", "share_log", "share_linear", "cost", "revenue", "net_profit")
	for _, r := range rows {
		t.Append(r.Multiplier, r.Share, r.LinearShare, r.Cost, r.Revenue, r.NetProfit)
	}
	return t
}

//
// Proposer revenue against path length.
//

type RevenueParams struct {
	NTD         float64
	MaxLength   int
	TxCount     int
	TxFee       pog.Amount
	BlockReward pog.Amount
	FeeShare    float64
}

func DefaultRevenueParams() RevenueParams {
	return RevenueParams{
		NTD:         6,
		MaxLength:   30,
		TxCount:     2000,
		TxFee:       50_000,
		BlockReward: 1 * pog.OneCoin,
		FeeShare:    0.5,
	}
}

type RevenueRow struct {
	Length    int
	TxCount   int
	TotalFees pog.Amount
	Penalty   float64
	Reward    pog.RewardSplit
}

// ProposerRevenue evaluates the reward split of a full block whose
// transactions all travelled paths of length 1..MaxLength.
func ProposerRevenue(p RevenueParams) ([]RevenueRow, error) {
	if p.MaxLength < 1 || p.TxCount < 0 {
		return nil, fmt.Errorf("%w: max length must be positive", pog.ErrInvalidParameter)
	}

	fees := p.TxFee * pog.Amount(p.TxCount)
	rows := make([]RevenueRow, 0, p.MaxLength)
	for l := 1; l <= p.MaxLength; l++ {
		penalty := pog.PenaltyFactor(float64(l), p.NTD)
		split, err := pog.DistributeRewards(fees, p.BlockReward, penalty, p.FeeShare)
		if err != nil {
			return nil, err
		}
		rows = append(rows, RevenueRow{
			Length:    l,
			TxCount:   p.TxCount,
			TotalFees: fees,
			Penalty:   penalty,
			Reward:    split,
		})
	}
	return rows, nil
}

func RevenueTable(rows []RevenueRow) *Table {
	t := NewTable("length", "tx_count", "total_fees", "penalty_factor", "miner_fee_income", "miner_total_revenue", "network_pool")
	for _, r := range rows {
		t.Append(r.Length, r.TxCount, r.TotalFees, r.Penalty, r.Reward.MinerFeeIncome, r.Reward.MinerTotalRevenue, r.Reward.NetworkPool)
	}
	return t
}

//
// Random relay traffic for driver runs.
//

type TrafficParams struct {
	Epochs        int
	PathsPerEpoch int
	MinLength     int
	MaxLength     int

	// Long-range traffic: within [AttackStart, AttackEnd] a share of the paths
	// is AttackLength long.
	AttackStart  int
	AttackEnd    int
	AttackRatio  float64
	AttackLength int

	Seed int64
}

func DefaultTrafficParams() TrafficParams {
	return TrafficParams{
		Epochs:        50,
		PathsPerEpoch: 200,
		MinLength:     1,
		MaxLength:     6,
		AttackStart:   -1,
		AttackEnd:     -1,
		Seed:          1,
	}
}

// GenerateTraffic draws random relay paths over the node table. Each path has
// a random proposer and distinct relayers that exclude it.
func GenerateTraffic(nodes []pog.Node, p TrafficParams) ([]pog.Path, error) {
	if len(nodes) < 2 {
		return nil, fmt.Errorf("%w: traffic needs at least two nodes", pog.ErrInvalidParameter)
	}
	if p.MinLength < 1 || p.MaxLength < p.MinLength {
		return nil, fmt.Errorf("%w: path lengths must satisfy 1 <= min <= max", pog.ErrInvalidParameter)
	}
	if p.Epochs < 0 || p.PathsPerEpoch < 0 {
		return nil, fmt.Errorf("%w: epochs and paths per epoch must be non-negative, got %d, %d", pog.ErrInvalidParameter, p.Epochs, p.PathsPerEpoch)
	}
	if p.AttackLength < 0 {
		return nil, fmt.Errorf("%w: attack length must be non-negative, got %d", pog.ErrInvalidParameter, p.AttackLength)
	}
	if math.IsNaN(p.AttackRatio) || p.AttackRatio < 0 || 1 < p.AttackRatio {
		return nil, fmt.Errorf("%w: attack ratio must be in [0, 1], got %v", pog.ErrInvalidParameter, p.AttackRatio)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	ids := make([]pog.NodeID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	maxRelayers := len(ids) - 1

	paths := make([]pog.Path, 0, p.Epochs*p.PathsPerEpoch)
	for epoch := 0; epoch < p.Epochs; epoch++ {
		attack := p.AttackStart <= epoch && epoch <= p.AttackEnd && p.AttackRatio > 0
		for i := 0; i < p.PathsPerEpoch; i++ {
			L := p.MinLength + rng.Intn(p.MaxLength-p.MinLength+1)
			if attack && rng.Float64() < p.AttackRatio {
				L = p.AttackLength
			}
			if L > maxRelayers {
				L = maxRelayers
			}

			// Pick a proposer and relayers from a random permutation.
			perm := rng.Perm(len(ids))
			proposer := ids[perm[0]]
			relayers := make([]pog.NodeID, L)
			for k := 0; k < L; k++ {
				relayers[k] = ids[perm[k+1]]
			}

			paths = append(paths, pog.Path{
				Epoch:    int64(epoch),
				Relayers: relayers,
				Proposer: proposer,
			})
		}
	}
	return paths, nil
}
