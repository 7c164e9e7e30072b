package strategy

import (
	"fmt"
	"sort"
)

// CapacityModel names the function that fixes a round's issuance cap when it opens.
type CapacityModel string

const (
	// NavGrowth sizes the round so that selling it out at the quoted premium
	// grows NAV by NavGrowthRate: g*supply / (premium/NAV - 1 - g).
	NavGrowth CapacityModel = "nav-growth"
	// FixedCapacity gives every round the same cap.
	FixedCapacity CapacityModel = "fixed"
)

// CapacityConfig is the governance-configured capacity function and its parameters.
type CapacityConfig struct {
	Model         CapacityModel `json:"model" toml:"model"`
	NavGrowthRate uint64        `json:"nav_growth_rate,omitempty" toml:"nav_growth_rate"`
	Fixed         uint64        `json:"fixed,omitempty" toml:"fixed"`
}

// CapacityInput is what a capacity function sees at round open.
type CapacityInput struct {
	Premium  uint64
	NAV      uint64
	Supply   uint64
	Treasury uint64
}

// CapacityFunc computes a round's SolxrAvailable.
type CapacityFunc func(cfg CapacityConfig, in CapacityInput) (uint64, error)

var capacityModels = map[CapacityModel]CapacityFunc{
	NavGrowth:     navGrowthCapacity,
	FixedCapacity: fixedCapacity,
}

// CapacityModels lists the registered model names.
func CapacityModels() []string {
	names := make([]string, 0, len(capacityModels))
	for name := range capacityModels {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// Validate checks that the model exists and its parameters are usable.
func (c CapacityConfig) Validate() error {
	switch c.Model {
	case NavGrowth:
		if c.NavGrowthRate == 0 {
			return fail(ErrInvalidArgument, "nav growth rate must be positive")
		}
	case FixedCapacity:
		if c.Fixed == 0 {
			return fail(ErrInvalidArgument, "fixed capacity must be positive")
		}
		return checkAmount("fixed capacity", c.Fixed)
	default:
		return fail(ErrInvalidArgument, "unknown capacity model %q (known: %v)", c.Model, CapacityModels())
	}
	return nil
}

// RoundCapacity evaluates the configured model.
func RoundCapacity(cfg CapacityConfig, in CapacityInput) (uint64, error) {
	fn, ok := capacityModels[cfg.Model]
	if !ok {
		return 0, fail(ErrInvalidArgument, "unknown capacity model %q", cfg.Model)
	}
	return fn(cfg, in)
}

func navGrowthCapacity(cfg CapacityConfig, in CapacityInput) (uint64, error) {
	if in.NAV == 0 {
		return 0, fail(ErrArithmetic, "nav is zero")
	}
	ratio, err := MulDiv(in.Premium, Scale, in.NAV)
	if err != nil {
		return 0, err
	}
	target, err := add(Scale, cfg.NavGrowthRate)
	if err != nil {
		return 0, err
	}
	if ratio <= target {
		return 0, fail(ErrBelowFloor, "premium %s of nav leaves no room for %s growth",
			FormatRatio(ratio), FormatRatio(cfg.NavGrowthRate))
	}
	return MulDiv(cfg.NavGrowthRate, in.Supply, ratio-target)
}

func fixedCapacity(cfg CapacityConfig, _ CapacityInput) (uint64, error) {
	return cfg.Fixed, nil
}

// FormatRatio renders a scaled ratio as a decimal, e.g. 1.75x.
func FormatRatio(v uint64) string {
	return fmt.Sprintf("%d.%02dx", v/Scale, (v%Scale)/(Scale/100))
}
