package pog

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// How the rest of the network pools its resources against a fixed node.
type Strategy int

const (
	// The rest splits evenly into the number of participants that maximizes
	// its total virtual stake. This is the upper reference bound of the
	// uncoordinated population.
	EqualSharing Strategy = iota

	// The rest splits into the number of participants that minimizes its
	// total virtual stake, which maximizes the fixed node's relative share.
	CollusiveMaximization
)

func (s Strategy) String() string {
	switch s {
	case EqualSharing:
		return "equal-sharing"
	case CollusiveMaximization:
		return "collusive-maximization"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "equal-sharing", "equal":
		return EqualSharing, nil
	case "collusive-maximization", "collusive":
		return CollusiveMaximization, nil
	}
	return 0, invalid("unknown strategy %q", name)
}

type AllocationResult struct {
	Strategy Strategy `json:"strategy"`

	// The fixed node's stake and contribution share, after clamping.
	Stake        float64 `json:"stake"`
	Contribution float64 `json:"contribution"`

	// The extremal number of participants the rest was split into.
	Participants int `json:"participants"`

	FixedVirtualStake float64 `json:"fixed_virtual_stake"`
	RestVirtualStake  float64 `json:"rest_virtual_stake"`

	// FixedVirtualStake / (FixedVirtualStake + RestVirtualStake).
	Share float64 `json:"share"`
}

type allocationKey struct {
	stake        float64
	contribution float64
	strategy     Strategy
	k            float64
	min          int
	max          int
}

const allocationCacheSize = 16384

// AllocationSearch bounds the selection share of one node holding stake
// share S and contribution share C against the rest of the network, which
// splits the remaining (1-S, 1-C) evenly across i virtual participants.
type AllocationSearch struct {
	K               float64
	MinParticipants int
	MaxParticipants int

	// Number of workers used by Surface. 0 means one per CPU.
	Workers int

	// Called once for every grid point Surface completes.
	OnPoint func()

	cache *lru.Cache
}

func NewAllocationSearch(K float64, minParticipants int, maxParticipants int) (*AllocationSearch, error) {
	if badFloat(K) || K < 0 {
		return nil, invalid("k must be non-negative, got %v", K)
	}
	if minParticipants < 1 || maxParticipants < minParticipants {
		return nil, invalid("participants must satisfy 1 <= min <= max, got %d..%d", minParticipants, maxParticipants)
	}

	cache, err := lru.New(allocationCacheSize)
	if err != nil {
		return nil, err
	}

	return &AllocationSearch{
		K:               K,
		MinParticipants: minParticipants,
		MaxParticipants: maxParticipants,
		cache:           cache,
	}, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// restVirtualStake is the total virtual stake of i equal participants
// sharing the rest of the network, i * BoostedStake((1-S)/i, (1-C)/i, K)
// factored so that it is exactly 1-S whenever the boost vanishes.
func restVirtualStake(S float64, C float64, K float64, i int) float64 {
	n := float64(i)
	return (1 - S) * (1 + K*((1-C)/n)*phi((1-S)/n))
}

// Relative tolerance under which two rest totals count as tied.
const allocationTieTolerance = 1e-12

func improves(rest float64, best float64, strategy Strategy) bool {
	margin := allocationTieTolerance * math.Max(math.Abs(rest), math.Abs(best))
	if strategy == EqualSharing {
		return rest > best+margin
	}
	return rest < best-margin
}

// Search finds the extremal split of the rest of the network for the given
// strategy and returns the fixed node's resulting share. Ties keep the
// smallest participant count.
func (a *AllocationSearch) Search(S float64, C float64, strategy Strategy) (AllocationResult, error) {
	if badFloat(S) || badFloat(C) {
		return AllocationResult{}, invalid("stake and contribution must be finite, got %v, %v", S, C)
	}
	if strategy != EqualSharing && strategy != CollusiveMaximization {
		return AllocationResult{}, invalid("unknown strategy %d", int(strategy))
	}
	if badFloat(a.K) || a.K < 0 {
		return AllocationResult{}, invalid("k must be non-negative, got %v", a.K)
	}
	if a.MinParticipants < 1 || a.MaxParticipants < a.MinParticipants {
		return AllocationResult{}, invalid("participants must satisfy 1 <= min <= max, got %d..%d", a.MinParticipants, a.MaxParticipants)
	}
	S = clamp01(S)
	C = clamp01(C)

	key := allocationKey{S, C, strategy, a.K, a.MinParticipants, a.MaxParticipants}
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			return v.(AllocationResult), nil
		}
	}

	// Search the participant range.
	best := a.MinParticipants
	bestRest := restVirtualStake(S, C, a.K, best)
	for i := a.MinParticipants + 1; i <= a.MaxParticipants; i++ {
		rest := restVirtualStake(S, C, a.K, i)
		if improves(rest, bestRest, strategy) {
			best, bestRest = i, rest
		}
	}

	fixed := BoostedStake(S, C, a.K)
	share := 0.0
	if total := fixed + bestRest; total > 0 {
		share = fixed / total
	}

	res := AllocationResult{
		Strategy:          strategy,
		Stake:             S,
		Contribution:      C,
		Participants:      best,
		FixedVirtualStake: fixed,
		RestVirtualStake:  bestRest,
		Share:             share,
	}
	if a.cache != nil {
		a.cache.Add(key, res)
	}
	return res, nil
}

type surfaceItem struct {
	row int
	col int
}

// Surface evaluates Search over the grid stakes x contributions. The result
// is indexed [contribution][stake], the layout of a mesh grid.
func (a *AllocationSearch) Surface(stakes []float64, contributions []float64, strategy Strategy) ([][]AllocationResult, error) {
	grid := make([][]AllocationResult, len(contributions))
	for row := range grid {
		grid[row] = make([]AllocationResult, len(stakes))
	}

	total := len(stakes) * len(contributions)
	if total == 0 {
		return grid, nil
	}

	workers := a.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > total {
		workers = total
	}

	items := make(chan surfaceItem, total)
	for row := range contributions {
		for col := range stakes {
			items <- surfaceItem{row, col}
		}
	}
	close(items)

	var wg sync.WaitGroup
	var errMutex sync.Mutex
	var firstErr error

	// Each worker writes only the cells it takes from the channel.
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				res, err := a.Search(stakes[item.col], contributions[item.row], strategy)
				if err != nil {
					errMutex.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMutex.Unlock()
					continue
				}
				grid[item.row][item.col] = res
				if a.OnPoint != nil {
					a.OnPoint()
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return grid, nil
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start float64, stop float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[n-1] = stop
	return out
}
