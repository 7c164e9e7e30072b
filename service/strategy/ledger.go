package strategy

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// DefaultMinPremium is the opening floor as a multiple of NAV.
const DefaultMinPremium uint64 = 1_500_000_000

// DefaultNavGrowthRate is used when no capacity model is configured.
const DefaultNavGrowthRate uint64 = 100_000_000

// TokenParams configures the synthetic token side of the strategy.
type TokenParams struct {
	Governance           solana.PublicKey `json:"governance" toml:"governance"`
	Platform             solana.PublicKey `json:"platform" toml:"platform"`
	Treasury             solana.PublicKey `json:"treasury" toml:"treasury"`
	InitialPoolCap       uint64           `json:"initial_pool_cap" toml:"initial_pool_cap"`
	IndividualAddressCap uint64           `json:"individual_address_cap" toml:"individual_address_cap"`
	MaxMintPerWallet     uint64           `json:"max_mint_per_wallet" toml:"max_mint_per_wallet"`
	MintDuration         time.Duration    `json:"mint_duration" toml:"mint_duration"`
	PlatformMintFee      uint64           `json:"platform_mint_fee" toml:"platform_mint_fee"`
	MaxPlatformMintFee   uint64           `json:"max_platform_mint_fee" toml:"max_platform_mint_fee"`
	MinPremium           uint64           `json:"min_premium" toml:"min_premium"`
	MaxRounds            uint64           `json:"max_rounds" toml:"max_rounds"`
	Capacity             CapacityConfig   `json:"capacity" toml:"capacity"`
}

// EditionParams configures the offering side of the strategy.
type EditionParams struct {
	Program    solana.PublicKey `json:"program" toml:"program"`
	Governance solana.PublicKey `json:"governance" toml:"governance"`
	BondPrice  uint64           `json:"bond_price" toml:"bond_price"`
}

func (p *TokenParams) applyDefaults() {
	if p.MinPremium == 0 {
		p.MinPremium = DefaultMinPremium
	}
	if p.Capacity.Model == "" {
		p.Capacity = CapacityConfig{Model: NavGrowth, NavGrowthRate: DefaultNavGrowthRate}
	}
}

// Validate checks the token parameters after defaults are applied.
func (p TokenParams) Validate() error {
	switch {
	case p.Governance.IsZero():
		return fail(ErrInvalidArgument, "governance is required")
	case p.Platform.IsZero():
		return fail(ErrInvalidArgument, "platform is required")
	case p.Treasury.IsZero():
		return fail(ErrInvalidArgument, "treasury is required")
	case p.InitialPoolCap == 0:
		return fail(ErrInvalidArgument, "initial pool cap must be positive")
	case p.IndividualAddressCap == 0:
		return fail(ErrInvalidArgument, "individual address cap must be positive")
	case p.MaxMintPerWallet == 0:
		return fail(ErrInvalidArgument, "max mint per wallet must be positive")
	case p.MintDuration <= 0:
		return fail(ErrInvalidArgument, "mint duration must be positive")
	case p.PlatformMintFee >= Scale:
		return fail(ErrInvalidArgument, "platform mint fee must be below 100%%")
	case p.MinPremium < Scale:
		return fail(ErrInvalidArgument, "min premium must be at least 1x nav")
	}
	for _, f := range []struct {
		name string
		v    uint64
	}{
		{"initial pool cap", p.InitialPoolCap},
		{"individual address cap", p.IndividualAddressCap},
		{"max mint per wallet", p.MaxMintPerWallet},
		{"min premium", p.MinPremium},
		{"max rounds", p.MaxRounds},
	} {
		if err := checkAmount(f.name, f.v); err != nil {
			return err
		}
	}
	return p.Capacity.Validate()
}

// InitializeToken records the token configuration. It succeeds once, and only
// for the initializer authority configured by the host.
func InitializeToken(s State, caller, authority solana.PublicKey, p TokenParams) (*Outcome, error) {
	if !caller.Equals(authority) {
		return nil, fail(ErrUnauthorized, "%s is not the initializer", caller)
	}
	if s.TokenInitialized {
		return nil, fail(ErrAlreadyInitialized, "token already initialized")
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !s.Governance.IsZero() && !s.Governance.Equals(p.Governance) {
		return nil, fail(ErrInvalidArgument, "governance %s conflicts with %s", p.Governance, s.Governance)
	}

	s.TokenInitialized = true
	s.Governance = p.Governance
	s.Platform = p.Platform
	s.Treasury = p.Treasury
	s.InitialPoolCap = p.InitialPoolCap
	s.IndividualAddressCap = p.IndividualAddressCap
	s.MaxMintPerWallet = p.MaxMintPerWallet
	s.MintDuration = p.MintDuration
	s.PlatformMintFee = p.PlatformMintFee
	s.MaxPlatformMintFee = p.MaxPlatformMintFee
	s.MinPremium = p.MinPremium
	s.MaxRounds = p.MaxRounds
	s.Capacity = p.Capacity
	s.NextRoundID = 1
	s.AllowNewMint = false

	return &Outcome{State: s}, nil
}

// InitializeEditions sets up the offering counters and the collection master.
// It is independent of InitializeToken and checks only its own flag.
func InitializeEditions(s State, caller, authority solana.PublicKey, p EditionParams) (*Outcome, error) {
	if !caller.Equals(authority) {
		return nil, fail(ErrUnauthorized, "%s is not the initializer", caller)
	}
	if s.EditionsInitialized {
		return nil, fail(ErrAlreadyInitialized, "editions already initialized")
	}
	if p.Program.IsZero() {
		return nil, fail(ErrInvalidArgument, "program is required")
	}
	if p.Governance.IsZero() {
		return nil, fail(ErrInvalidArgument, "governance is required")
	}
	if err := checkAmount("bond price", p.BondPrice); err != nil {
		return nil, err
	}
	if !s.Governance.IsZero() && !s.Governance.Equals(p.Governance) {
		return nil, fail(ErrInvalidArgument, "governance %s conflicts with %s", p.Governance, s.Governance)
	}
	collection, err := CollectionAddress(p.Program)
	if err != nil {
		return nil, fail(ErrInvalidArgument, "%v", err)
	}

	s.EditionsInitialized = true
	s.Program = p.Program
	s.Governance = p.Governance
	s.Collection = collection
	s.NextBondID = 1
	s.NextWhitelistID = 1
	s.BondPrice = p.BondPrice

	return &Outcome{
		State:   s,
		Effects: []Effect{createMasterEffect(collection, nil)},
	}, nil
}

func requireGovernance(s State, caller solana.PublicKey) error {
	if !caller.Equals(s.Governance) {
		return fail(ErrUnauthorized, "%s is not governance", caller)
	}
	return nil
}
