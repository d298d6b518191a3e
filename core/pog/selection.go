package pog

import (
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/liamzebedee/pogsim/core"
	"github.com/mroth/weightedrand/v2"
)

// Probabilities are converted to integer weights at this resolution. A
// positive probability below 1/samplerResolution still gets weight 1, so its
// draw rate is rounded up to that floor instead of down to zero.
const samplerResolution = 1_000_000_000

// Sampler draws proposers from a selection distribution using a seeded RNG.
// The same distribution and seed always yield the same sequence of draws.
type Sampler struct {
	chooser *weightedrand.Chooser[NodeID, uint64]
	rng     *rand.Rand
}

// NewSampler builds a sampler over the probabilities. Every node with a
// positive probability can be drawn; zero-probability nodes never are.
func NewSampler(probabilities map[NodeID]float64, seed int64) (*Sampler, error) {
	return NewSamplerFromSource(probabilities, rand.New(rand.NewSource(seed)))
}

// NewSamplerFromSource builds a sampler drawing from an existing RNG, so that
// a run can share one stream across epochs.
func NewSamplerFromSource(probabilities map[NodeID]float64, rng *rand.Rand) (*Sampler, error) {
	// Build choices in a fixed order.
	choices := []weightedrand.Choice[NodeID, uint64]{}
	for _, node := range SortedNodes(probabilities) {
		p := probabilities[node]
		if badFloat(p) || p < 0 {
			return nil, invalid("probability of %s must be non-negative, got %v", node, p)
		}
		if p == 0 {
			continue
		}
		weight := uint64(math.Round(p * samplerResolution))
		if weight == 0 {
			weight = 1
		}
		choices = append(choices, weightedrand.NewChoice(node, weight))
	}

	if len(choices) == 0 {
		return nil, ErrNoProposer
	}

	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return nil, err
	}
	return &Sampler{chooser: chooser, rng: rng}, nil
}

// Pick draws one proposer.
func (s *Sampler) Pick() NodeID {
	return s.chooser.PickSource(s.rng)
}

// CombineSeeds XORs the participants' seed contributions and hashes the
// result, RANDAO style.
func CombineSeeds(seeds [][32]byte) [32]byte {
	var mix [32]byte
	for _, seed := range seeds {
		for i := range mix {
			mix[i] ^= seed[i]
		}
	}
	return core.Hash(mix[:])
}

// SeedInt64 derives an RNG seed from a 32-byte seed.
func SeedInt64(seed [32]byte) int64 {
	return int64(binary.BigEndian.Uint64(seed[0:8]))
}

// EpochSeed derives the seed for an epoch from a run seed, so every epoch
// draws from an independent but reproducible stream.
func EpochSeed(runSeed int64, epoch int64) int64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(runSeed))
	binary.BigEndian.PutUint64(buf[8:16], uint64(epoch))
	return SeedInt64(core.Hash(buf[:]))
}
