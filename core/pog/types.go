package pog

// NodeID identifies a node. It is opaque to the model.
type NodeID = string

// A node of the simulated network, as supplied by the stake table.
type Node struct {
	ID NodeID `json:"id"`

	// Real economic stake. Must be non-negative.
	Stake float64 `json:"stake"`

	// Hash power, only consulted by the proof-of-work baseline.
	HashPower float64 `json:"hash_power"`
}

// A path is the relay route of one transaction, as observed by the block
// proposer that included it.
//
// Relayers are ordered from the transaction source towards the proposer and
// never include the proposer itself. The path length L is len(Relayers).
type Path struct {
	Epoch int64 `json:"epoch"`

	// Relaying nodes, source first.
	Relayers []NodeID `json:"relayers"`

	// The proposer that received the transaction. Optional.
	Proposer NodeID `json:"proposer"`

	// Per-path base score. When zero, the default of 1/L is used.
	BaseScore float64 `json:"base_score"`
}

// Len returns the path length L.
func (p Path) Len() int {
	return len(p.Relayers)
}

// Degenerate paths contribute nothing: an empty route, or a route whose only
// relayer is also its destination.
func (p Path) Degenerate() bool {
	if len(p.Relayers) == 0 {
		return true
	}
	if len(p.Relayers) == 1 && p.Proposer != "" && p.Relayers[0] == p.Proposer {
		return true
	}
	return false
}

// Amount is a fixed-precision quantity of coins, in base units.
type Amount = uint64

// OneCoin is the number of base units in one coin.
// Coin amounts are fixed-precision - they have 8 decimal places.
const OneCoin = 100_000_000

// CoinsToAmount converts a decimal coin value to base units, rounding down.
func CoinsToAmount(coins float64) Amount {
	if coins <= 0 {
		return 0
	}
	return Amount(coins * OneCoin)
}

// AmountToCoins converts base units to a decimal coin value.
func AmountToCoins(a Amount) float64 {
	return float64(a) / OneCoin
}
