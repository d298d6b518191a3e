package pog

import (
	"math"
)

// The network traversal diameter (NTD) controller.
//
// The NTD is the adaptive threshold on average relay path length. It is
// retargeted once per epoch, moving toward the ceiling of the observed mean
// path length by at most Step, similar to a difficulty readjustment.
type NTDController struct {
	// The current threshold. Starts at 0, meaning no threshold yet.
	Current float64

	// The maximum movement per epoch.
	Step float64

	// The target computed at the last update.
	Target float64

	// The number of updates applied.
	Epochs int64
}

func NewNTDController(step float64) (*NTDController, error) {
	if badFloat(step) || step <= 0 {
		return nil, invalid("ntd step must be positive, got %v", step)
	}
	return &NTDController{Step: step}, nil
}

// Update retargets the NTD from the path lengths observed in one epoch.
//
//	target = ceil(mean(lengths))
//	current += clamp(target - current, -step, +step)
//
// An epoch with no paths leaves the NTD where it is.
func (n *NTDController) Update(lengths []int) float64 {
	// Special case: empty epoch.
	if len(lengths) == 0 {
		n.Epochs++
		n.Target = n.Current
		return n.Current
	}
	return n.Retarget(MeanLength(lengths))
}

// Retarget moves the NTD toward ceil(mean), where mean is the average path
// length observed over one epoch.
func (n *NTDController) Retarget(mean float64) float64 {
	n.Epochs++
	if badFloat(mean) || mean < 0 {
		n.Target = n.Current
		return n.Current
	}

	// Compute the target.
	target := math.Ceil(mean)
	n.Target = target

	// Move toward the target, never past it.
	delta := target - n.Current
	if delta > n.Step {
		delta = n.Step
	} else if delta < -n.Step {
		delta = -n.Step
	}
	n.Current += delta
	if n.Current < 0 {
		n.Current = 0
	}
	return n.Current
}

// Detect reports whether the average path length exceeds the current NTD,
// the signal of a long-range relay attack.
func (n *NTDController) Detect(avgPathLength float64) bool {
	return avgPathLength > n.Current
}

// Penalty returns the penalty factor for the given average path length at the
// current NTD.
func (n *NTDController) Penalty(avgPathLength float64) float64 {
	return PenaltyFactor(avgPathLength, n.Current)
}

// PenaltyFactor returns the share of proposer fees kept when the average path
// length is avgPathLength and the threshold is ntd.
//
//	P = 1                   if avg <= ntd
//	P = (ntd / avg)^2       otherwise
//
// A threshold of 0 or less means none has been established and the penalty
// is disabled. The result is always in (0, 1].
func PenaltyFactor(avgPathLength float64, ntd float64) float64 {
	if ntd <= 0 || badFloat(ntd) || badFloat(avgPathLength) {
		return 1.0
	}
	if avgPathLength <= ntd {
		return 1.0
	}
	r := ntd / avgPathLength
	return r * r
}

// MeanLength returns the arithmetic mean of the path lengths, or 0 when there
// are none.
func MeanLength(lengths []int) float64 {
	if len(lengths) == 0 {
		return 0.0
	}
	sum := 0
	for _, l := range lengths {
		sum += l
	}
	return float64(sum) / float64(len(lengths))
}
