package pog

import (
	"fmt"
	"math"
)

// Consensus mode used by the driver to pick proposers.
type Mode string

const (
	ModePoG Mode = "pog"
	ModePoS Mode = "pos"
	ModePoW Mode = "pow"
)

// Virtual stake model used in proof-of-graph mode.
type Model string

const (
	// S_v = omega * hat_C + (1 - omega) * hat_S
	ModelMix Model = "mix"
	// S_v = s * (1 + K * c * phi(s))
	ModelBoost Model = "boost"
)

// Discount applied to a path's base score when it is longer than the NTD.
type Discount string

const (
	DiscountNone       Discount = "none"
	DiscountQuadratic  Discount = "quadratic"
	DiscountHyperbolic Discount = "hyperbolic"
)

type Config struct {
	// Consensus mode: pog, pos or pow.
	Mode Mode `yaml:"mode" json:"mode"`

	// Virtual stake model: mix or boost.
	Model Model `yaml:"model" json:"model"`

	// Saturation: sat(raw) = KSat * ln(1 + raw / KBase).
	KSat  float64 `yaml:"k_sat" json:"k_sat"`
	KBase float64 `yaml:"k_base" json:"k_base"`

	// Mixing weight in [0, 1]. 0 is pure stake, 1 is pure contribution.
	Omega float64 `yaml:"omega" json:"omega"`

	// Aggression multiplier of the boost model and the allocation search.
	K float64 `yaml:"k" json:"k"`

	// NTD adaptation rate per epoch.
	NTDStep float64 `yaml:"ntd_step" json:"ntd_step"`

	// Long-path discount applied while scoring.
	PathDiscount Discount `yaml:"path_discount" json:"path_discount"`

	// Share of the fees paid to the proposer before the penalty.
	FeeShareRatio float64 `yaml:"fee_share_ratio" json:"fee_share_ratio"`

	// Bounds of the allocation search over the number of participants.
	SearchMin int `yaml:"search_min" json:"search_min"`
	SearchMax int `yaml:"search_max" json:"search_max"`

	// Block reward in base units, and the halving interval in epochs (0 = never).
	BlockReward     Amount `yaml:"block_reward" json:"block_reward"`
	HalvingInterval int64  `yaml:"halving_interval" json:"halving_interval"`

	// Fee paid by each included transaction, in base units.
	TxFee Amount `yaml:"tx_fee" json:"tx_fee"`

	// Seed for proposer sampling.
	Seed int64 `yaml:"seed" json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Mode:            ModePoG,
		Model:           ModelMix,
		KSat:            1.0,
		KBase:           1.0,
		Omega:           0.8,
		K:               4,
		NTDStep:         1.0,
		PathDiscount:    DiscountNone,
		FeeShareRatio:   0.5,
		SearchMin:       1,
		SearchMax:       99,
		BlockReward:     1 * OneCoin,
		HalvingInterval: 0,
		TxFee:           50_000, // 0.0005 coins
		Seed:            1,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func badFloat(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// Validate checks every parameter, returning the first problem found.
func (c Config) Validate() error {
	switch c.Mode {
	case ModePoG, ModePoS, ModePoW:
	default:
		return invalid("unknown mode %q", c.Mode)
	}
	switch c.Model {
	case ModelMix, ModelBoost:
	default:
		return invalid("unknown model %q", c.Model)
	}
	switch c.PathDiscount {
	case DiscountNone, DiscountQuadratic, DiscountHyperbolic:
	default:
		return invalid("unknown path discount %q", c.PathDiscount)
	}
	if _, err := NewSaturationParams(c.KSat, c.KBase); err != nil {
		return err
	}
	if badFloat(c.Omega) || c.Omega < 0 || 1 < c.Omega {
		return invalid("omega must be in [0, 1], got %v", c.Omega)
	}
	if badFloat(c.K) || c.K < 0 {
		return invalid("k must be non-negative, got %v", c.K)
	}
	if badFloat(c.NTDStep) || c.NTDStep <= 0 {
		return invalid("ntd_step must be positive, got %v", c.NTDStep)
	}
	if badFloat(c.FeeShareRatio) || c.FeeShareRatio < 0 || 1 < c.FeeShareRatio {
		return invalid("fee_share_ratio must be in [0, 1], got %v", c.FeeShareRatio)
	}
	if c.SearchMin < 1 || c.SearchMax < c.SearchMin {
		return invalid("search range must satisfy 1 <= min <= max, got %d..%d", c.SearchMin, c.SearchMax)
	}
	if c.HalvingInterval < 0 {
		return invalid("halving_interval must be non-negative, got %d", c.HalvingInterval)
	}
	return nil
}

// A named parameter set.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      Config `json:"config"`
}

func NewPreset(name string, description string, mutate func(c *Config)) Preset {
	conf := DefaultConfig()
	if mutate != nil {
		mutate(&conf)
	}
	return Preset{Name: name, Description: description, Config: conf}
}

// GetPresets returns the parameter sets used by the reference analyses.
func GetPresets() map[string]Preset {
	preset_default := NewPreset("default", "contribution-weighted selection, omega=0.8", nil)

	presets := map[string]Preset{
		"default": preset_default,
		"pure-contribution": NewPreset("pure-contribution", "selection by saturated contribution only", func(c *Config) {
			c.Omega = 1.0
		}),
		"pure-stake": NewPreset("pure-stake", "pog pipeline with omega=0, equivalent to stake weighting", func(c *Config) {
			c.Omega = 0.0
		}),
		"boost": NewPreset("boost", "stake boosted by contribution, s*(1+K*c*phi(s))", func(c *Config) {
			c.Model = ModelBoost
			c.K = 4
		}),
		"ntd-penalized": NewPreset("ntd-penalized", "paths longer than the NTD are discounted quadratically", func(c *Config) {
			c.PathDiscount = DiscountQuadratic
		}),
		"pos": NewPreset("pos", "proof-of-stake baseline", func(c *Config) {
			c.Mode = ModePoS
		}),
		"pow": NewPreset("pow", "proof-of-work baseline", func(c *Config) {
			c.Mode = ModePoW
		}),
	}

	return presets
}
