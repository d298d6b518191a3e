package sim

import (
	"testing"

	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/stretchr/testify/assert"
)

func total(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

func TestStakesByGini(t *testing.T) {
	assert := assert.New(t)

	for _, target := range []float64{0.1, 0.3, 0.5} {
		stakes := StakesByGini(100, target)
		assert.Len(stakes, 100)
		assert.InDelta(target, pog.Gini(stakes), 0.01, "target=%v", target)
		assert.InDelta(100.0, total(stakes), 1e-9)
	}

	equal := StakesByGini(10, 0)
	for _, s := range equal {
		assert.InDelta(1.0, s, 1e-12)
	}

	assert.Empty(StakesByGini(0, 0.5))
}

func TestZipfStakes(t *testing.T) {
	assert := assert.New(t)

	stakes := ZipfStakes(50, 1.5)
	assert.InDelta(50.0, total(stakes), 1e-9)
	for i := 1; i < len(stakes); i++ {
		assert.Less(stakes[i], stakes[i-1])
	}
	assert.Greater(pog.Gini(ZipfStakes(50, 2.0)), pog.Gini(ZipfStakes(50, 0.8)))
}

func TestNodesFromStakes(t *testing.T) {
	assert := assert.New(t)

	nodes := NodesFromStakes([]float64{2, 1})
	assert.Equal([]pog.Node{
		{ID: "node-0", Stake: 2, HashPower: 2},
		{ID: "node-1", Stake: 1, HashPower: 1},
	}, nodes)
}
