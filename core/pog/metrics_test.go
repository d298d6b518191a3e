package pog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGini(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(0.0, Gini([]float64{5, 5, 5, 5}), 1e-12)
	assert.InDelta(0.75, Gini([]float64{0, 0, 0, 10}), 1e-12)
	assert.Equal(0.0, Gini(nil))
	assert.Equal(0.0, Gini([]float64{0, 0}))

	// Input order does not matter.
	assert.InDelta(Gini([]float64{1, 2, 3, 10}), Gini([]float64{10, 3, 1, 2}), 1e-12)
	assert.Greater(Gini([]float64{1, 2, 3, 10}), Gini([]float64{2, 3, 4, 5}))
}

func TestHerfindahl(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(0.25, Herfindahl([]float64{1, 1, 1, 1}), 1e-12)
	assert.InDelta(1.0, Herfindahl([]float64{0, 7, 0}), 1e-12)
	assert.InDelta(0.5*0.5+0.3*0.3+0.2*0.2, Herfindahl([]float64{50, 30, 20}), 1e-12)
}

func TestNakamotoCoefficient(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(2, NakamotoCoefficient([]float64{20, 50, 30}, DefaultNakamotoThreshold))
	assert.Equal(1, NakamotoCoefficient([]float64{60, 20, 20}, DefaultNakamotoThreshold))

	equal := make([]float64, 10)
	for i := range equal {
		equal[i] = 1
	}
	assert.Equal(6, NakamotoCoefficient(equal, DefaultNakamotoThreshold))
	assert.Equal(0, NakamotoCoefficient([]float64{0, 0}, DefaultNakamotoThreshold))
}

func TestLorenzCurve(t *testing.T) {
	assert := assert.New(t)

	xs, ys := LorenzCurve([]float64{3, 1})
	assert.Equal([]float64{0, 0.5, 1}, xs)
	assert.Equal([]float64{0, 0.25, 1}, ys)

	// Perfect equality is the diagonal.
	xs, ys = LorenzCurve([]float64{2, 2, 2, 2})
	for i := range xs {
		assert.InDelta(xs[i], ys[i], 1e-12)
	}
}

func TestPathStatistics(t *testing.T) {
	assert := assert.New(t)

	stats := PathStatistics([]int{4, 1, 3, 2})
	assert.Equal(PathStats{Count: 4, Mean: 2.5, Min: 1, Max: 4, Median: 2.5}, stats)

	stats = PathStatistics([]int{5, 1, 9})
	assert.Equal(5.0, stats.Median)

	assert.Equal(PathStats{}, PathStatistics(nil))
}

func TestShareValues(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]float64{0.2, 0.5, 0.3}, ShareValues(map[NodeID]float64{"b": 0.5, "a": 0.2, "c": 0.3}))
}
