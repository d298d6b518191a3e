package sim

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"

	"github.com/liamzebedee/pogsim/core"
	"github.com/liamzebedee/pogsim/core/pog"
)

// One row of the per-epoch node table.
type NodeRow struct {
	Epoch                  int64      `json:"epoch"`
	Node                   pog.NodeID `json:"node"`
	RawScore               float64    `json:"raw_score"`
	NormalizedContribution float64    `json:"normalized_contribution"`
	VirtualStake           float64    `json:"virtual_stake"`
	SelectionProbability   float64    `json:"selection_probability"`
}

// The outcome of one epoch.
type EpochReport struct {
	Epoch int64 `json:"epoch"`

	// The NTD after this epoch's update, and the target it moved toward.
	NTDCurrent float64 `json:"ntd_current"`
	NTDTarget  float64 `json:"ntd_target"`

	// The NTD the penalty was computed against.
	NTDApplied float64 `json:"ntd_applied"`

	AvgPathLength  float64 `json:"avg_path_length"`
	Penalty        float64 `json:"penalty"`
	AttackDetected bool    `json:"attack_detected"`

	Proposer    pog.NodeID      `json:"proposer"`
	TotalFees   pog.Amount      `json:"total_fees"`
	BlockReward pog.Amount      `json:"block_reward"`
	Reward      pog.RewardSplit `json:"reward"`

	// Accepted and dropped path counts.
	Paths   int `json:"paths"`
	Dropped int `json:"dropped"`

	Nodes []NodeRow `json:"nodes"`
}

type Option func(d *Driver)

func WithLogger(l *log.Logger) Option {
	return func(d *Driver) { d.log = l }
}

func WithTelemetry(t *Telemetry) Option {
	return func(d *Driver) { d.telemetry = t }
}

// Driver runs the epoch pipeline over a fixed node table:
//
//	paths -> scorer -> saturation -> virtual stake -> proposer -> rewards -> NTD
type Driver struct {
	cfg   pog.Config
	nodes map[pog.NodeID]pog.Node

	sat    pog.SaturationParams
	scorer *pog.Scorer
	ntd    *pog.NTDController
	rng    *rand.Rand

	epoch   int64
	started bool
	lengths []int

	reports   []EpochReport
	proposals map[pog.NodeID]int

	// Called after every epoch.
	OnEpoch func(r EpochReport)

	log       *log.Logger
	telemetry *Telemetry
}

func NewDriver(cfg pog.Config, nodes []pog.Node, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty node table", pog.ErrInvalidParameter)
	}

	table := make(map[pog.NodeID]pog.Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: empty node id", pog.ErrInvalidParameter)
		}
		if _, ok := table[n.ID]; ok {
			return nil, fmt.Errorf("%w: %s", pog.ErrDuplicateNode, n.ID)
		}
		if n.Stake < 0 || n.HashPower < 0 {
			return nil, fmt.Errorf("%w: node %s has negative stake or hash power", pog.ErrInvalidParameter, n.ID)
		}
		table[n.ID] = n
	}

	sat, err := pog.NewSaturationParams(cfg.KSat, cfg.KBase)
	if err != nil {
		return nil, err
	}
	ntd, err := pog.NewNTDController(cfg.NTDStep)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:       cfg,
		nodes:     table,
		sat:       sat,
		scorer:    pog.NewScorer(cfg.PathDiscount),
		ntd:       ntd,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		proposals: make(map[pog.NodeID]int),
		log:       core.NewLogger("sim", "driver"),
	}
	for id := range table {
		d.scorer.Track(id)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Epoch returns the epoch currently accumulating paths.
func (d *Driver) Epoch() int64 { return d.epoch }

// NTD returns the NTD controller.
func (d *Driver) NTD() *pog.NTDController { return d.ntd }

// Reports returns every epoch report produced so far.
func (d *Driver) Reports() []EpochReport { return d.reports }

// Proposals returns the number of epochs each node was selected.
func (d *Driver) Proposals() map[pog.NodeID]int {
	out := make(map[pog.NodeID]int, len(d.nodes))
	for id := range d.nodes {
		out[id] = d.proposals[id]
	}
	return out
}

// Observe scores one path into the current epoch. A path from a later epoch
// closes every epoch before it first.
func (d *Driver) Observe(p pog.Path) error {
	if !d.started {
		d.epoch = p.Epoch
		d.started = true
	}
	if p.Epoch < d.epoch {
		return fmt.Errorf("%w: path epoch %d, current epoch %d", pog.ErrEpochRegression, p.Epoch, d.epoch)
	}

	// Check all nodes are known.
	for _, id := range p.Relayers {
		if _, ok := d.nodes[id]; !ok {
			return fmt.Errorf("%w: relayer %q", pog.ErrUnknownNode, id)
		}
	}
	if p.Proposer != "" {
		if _, ok := d.nodes[p.Proposer]; !ok {
			return fmt.Errorf("%w: proposer %q", pog.ErrUnknownNode, p.Proposer)
		}
	}
	if math.IsNaN(p.BaseScore) || math.IsInf(p.BaseScore, 0) || p.BaseScore < 0 {
		return fmt.Errorf("%w: base score must be non-negative, got %v", pog.ErrInvalidParameter, p.BaseScore)
	}

	// Close the epochs before this path.
	for d.epoch < p.Epoch {
		if _, err := d.EndEpoch(); err != nil {
			return err
		}
	}

	accepted, err := d.scorer.ScorePath(p, d.ntd.Current)
	if err != nil {
		return err
	}
	if accepted {
		d.lengths = append(d.lengths, p.Len())
	}
	return nil
}

func (d *Driver) stakeShares() (map[pog.NodeID]float64, error) {
	stakes := make(map[pog.NodeID]float64, len(d.nodes))
	for id, n := range d.nodes {
		stakes[id] = n.Stake
	}
	return pog.NormalizeStake(stakes)
}

func (d *Driver) hashPowerShares() (map[pog.NodeID]float64, error) {
	power := make(map[pog.NodeID]float64, len(d.nodes))
	for id, n := range d.nodes {
		power[id] = n.HashPower
	}
	return pog.NormalizeStake(power)
}

// virtualStake computes the selection distribution for the configured mode.
func (d *Driver) virtualStake(hatC map[pog.NodeID]float64) (pog.VirtualStake, error) {
	switch d.cfg.Mode {
	case pog.ModePoS:
		hatS, err := d.stakeShares()
		return pog.VirtualStake{Weights: hatS, Probabilities: hatS}, err
	case pog.ModePoW:
		hatH, err := d.hashPowerShares()
		return pog.VirtualStake{Weights: hatH, Probabilities: hatH}, err
	}

	hatS, err := d.stakeShares()
	if err != nil {
		return pog.VirtualStake{}, err
	}
	if d.cfg.Model == pog.ModelBoost {
		return pog.CombineBoosted(hatC, hatS, d.cfg.K)
	}
	return pog.CombineVirtualStake(hatC, hatS, d.cfg.Omega)
}

// EndEpoch closes the current epoch and returns its report.
func (d *Driver) EndEpoch() (EpochReport, error) {
	d.started = true
	raw := d.scorer.Scores()

	// Normalize contribution.
	hatC, err := pog.NormalizeContribution(raw, d.sat)
	if err != nil {
		return EpochReport{}, err
	}

	// Combine with stake.
	vs, err := d.virtualStake(hatC)
	if err != nil {
		return EpochReport{}, err
	}

	// Sample the proposer.
	sampler, err := pog.NewSamplerFromSource(vs.Probabilities, d.rng)
	if err != nil {
		return EpochReport{}, err
	}
	proposer := sampler.Pick()

	// Compute the rewards under the current NTD.
	ntdApplied := d.ntd.Current
	avg := pog.MeanLength(d.lengths)
	penalty := d.ntd.Penalty(avg)
	detected := len(d.lengths) > 0 && ntdApplied > 0 && d.ntd.Detect(avg)

	fees := d.cfg.TxFee * pog.Amount(len(d.lengths))
	blockReward := pog.BlockRewardAt(d.epoch, d.cfg.BlockReward, d.cfg.HalvingInterval)
	split, err := pog.DistributeRewards(fees, blockReward, penalty, d.cfg.FeeShareRatio)
	if err != nil {
		return EpochReport{}, err
	}

	// Retarget the NTD.
	d.ntd.Update(d.lengths)

	report := EpochReport{
		Epoch:          d.epoch,
		NTDCurrent:     d.ntd.Current,
		NTDTarget:      d.ntd.Target,
		NTDApplied:     ntdApplied,
		AvgPathLength:  avg,
		Penalty:        penalty,
		AttackDetected: detected,
		Proposer:       proposer,
		TotalFees:      fees,
		BlockReward:    blockReward,
		Reward:         split,
		Paths:          d.scorer.Accepted(),
		Dropped:        d.scorer.Dropped(),
	}
	for _, id := range pog.SortedNodes(d.nodes) {
		report.Nodes = append(report.Nodes, NodeRow{
			Epoch:                  d.epoch,
			Node:                   id,
			RawScore:               raw[id],
			NormalizedContribution: hatC[id],
			VirtualStake:           vs.Weights[id],
			SelectionProbability:   vs.Probabilities[id],
		})
	}

	if detected {
		d.log.Printf("epoch=%d long-range signal avg_path_length=%.2f ntd=%.0f penalty=%.4f\n", d.epoch, avg, ntdApplied, penalty)
	}

	d.proposals[proposer]++
	d.reports = append(d.reports, report)
	if d.telemetry != nil {
		d.telemetry.ObserveEpoch(report)
	}
	if d.OnEpoch != nil {
		d.OnEpoch(report)
	}

	// Reset the accumulators.
	d.scorer.Reset()
	d.lengths = d.lengths[:0]
	d.epoch++

	return report, nil
}

// Run processes a batch of paths in epoch order, from the first epoch to the
// last including empty ones, and returns the reports of those epochs.
func (d *Driver) Run(paths []pog.Path) ([]EpochReport, error) {
	if len(paths) == 0 {
		return []EpochReport{}, nil
	}

	sorted := make([]pog.Path, len(paths))
	copy(sorted, paths)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Epoch < sorted[j].Epoch
	})

	start := len(d.reports)
	d.log.Printf("running %d paths over epochs %d..%d\n", len(sorted), sorted[0].Epoch, sorted[len(sorted)-1].Epoch)

	for _, p := range sorted {
		if err := d.Observe(p); err != nil {
			return nil, err
		}
	}
	if _, err := d.EndEpoch(); err != nil {
		return nil, err
	}

	return d.reports[start:], nil
}
