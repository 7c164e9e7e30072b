// Package strategy implements the issuance and redemption rules for SOLXR,
// a synthetic token backed by SOL collateral held in a capped treasury.
//
// Every operation is a pure transition: it receives the singleton State and
// the records it touches, plus what the caller observed from the token and
// edition ledgers (balances, amounts held, current time), and returns an
// Outcome with the updated records and the ledger effects to apply. Nothing
// is mutated in place and no effect is produced when an error is returned.
package strategy

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// OfferingKind distinguishes the two edition offerings.
type OfferingKind string

const (
	Bond      OfferingKind = "bond"
	Whitelist OfferingKind = "whitelist"
)

// Valid reports whether k is a known offering kind.
func (k OfferingKind) Valid() bool {
	return k == Bond || k == Whitelist
}

// State is the singleton strategy aggregate.
type State struct {
	Program    solana.PublicKey `json:"program"`
	Governance solana.PublicKey `json:"governance"`
	Platform   solana.PublicKey `json:"platform"`
	Treasury   solana.PublicKey `json:"treasury"`
	Collection solana.PublicKey `json:"collection"`

	TokenInitialized    bool `json:"token_initialized"`
	EditionsInitialized bool `json:"editions_initialized"`

	InitialPoolCap       uint64 `json:"initial_pool_cap"`
	IndividualAddressCap uint64 `json:"individual_address_cap"`
	SolInTreasury        uint64 `json:"sol_in_treasury"`
	SolFromBond          uint64 `json:"sol_from_bond"`
	SolFromWhitelist     uint64 `json:"sol_from_whitelist"`

	AllowNewMint       bool           `json:"allow_new_mint"`
	NextRoundID        uint64         `json:"next_round_id"`
	MaxRounds          uint64         `json:"max_rounds"`
	MaxMintPerWallet   uint64         `json:"max_mint_per_wallet"`
	MintDuration       time.Duration  `json:"mint_duration"`
	PlatformMintFee    uint64         `json:"platform_mint_fee"`
	MaxPlatformMintFee uint64         `json:"max_platform_mint_fee"`
	MinPremium         uint64         `json:"min_premium"`
	Capacity           CapacityConfig `json:"capacity"`

	NextBondID      uint64 `json:"next_bond_id"`
	NextWhitelistID uint64 `json:"next_whitelist_id"`
	BondPrice       uint64 `json:"bond_price"`
}

// MintRound is a premium-priced issuance window.
type MintRound struct {
	ID               uint64    `json:"id"`
	Premium          uint64    `json:"premium"`
	Start            time.Time `json:"start"`
	SolxrMinted      uint64    `json:"solxr_minted"`
	SolxrAvailable   uint64    `json:"solxr_available"`
	MaxMintPerWallet uint64    `json:"max_mint_per_wallet"`
	Closed           bool      `json:"closed"`
}

// ClosesAt is the last instant purchases are accepted.
func (r *MintRound) ClosesAt(d time.Duration) time.Time {
	return r.Start.Add(d)
}

// RoundParticipant tracks what one wallet minted in one round.
type RoundParticipant struct {
	RoundID uint64           `json:"round_id"`
	Wallet  solana.PublicKey `json:"wallet"`
	Minted  uint64           `json:"minted"`
}

// Offering is a bond or whitelist collection sold as numbered editions.
type Offering struct {
	Kind              OfferingKind     `json:"kind"`
	ID                uint64           `json:"id"`
	Name              string           `json:"name"`
	Symbol            string           `json:"symbol"`
	URI               string           `json:"uri"`
	Price             uint64           `json:"price"`
	Maturity          time.Time        `json:"maturity"`
	StrikePrice       uint64           `json:"strike_price,omitempty"`
	Supply            uint64           `json:"supply,omitempty"`
	Expiration        time.Time        `json:"expiration"`
	MaxMintPerWallet  uint64           `json:"max_mint_per_wallet"`
	StartTime         time.Time        `json:"start_time"`
	EndTime           time.Time        `json:"end_time"`
	NextEditionNumber uint64           `json:"next_edition_number"`
	Master            solana.PublicKey `json:"master"`
}

// Sold is the number of editions printed so far.
func (o *Offering) Sold() uint64 {
	return o.NextEditionNumber - 1
}

// Participant tracks how many editions one wallet bought from one offering.
type Participant struct {
	Kind       OfferingKind     `json:"kind"`
	OfferingID uint64           `json:"offering_id"`
	Collection solana.PublicKey `json:"collection"`
	Wallet     solana.PublicKey `json:"wallet"`
	Minted     uint64           `json:"minted"`
}

// RedemptionMode is how a redeemed edition was settled.
type RedemptionMode string

const (
	// Principal pays the offering price back in collateral.
	Principal RedemptionMode = "principal"
	// Conversion mints synthetic tokens at the offering's strike price.
	Conversion RedemptionMode = "conversion"
	// Claim mints synthetic tokens 1:1 with a whitelist price.
	Claim RedemptionMode = "claim"
)

// Redemption is the once-per-edition claim record.
type Redemption struct {
	Kind       OfferingKind     `json:"kind"`
	OfferingID uint64           `json:"offering_id"`
	Edition    uint64           `json:"edition"`
	EditionID  solana.PublicKey `json:"edition_id"`
	Holder     solana.PublicKey `json:"holder"`
	Mode       RedemptionMode   `json:"mode"`
	Paid       uint64           `json:"paid"`
	Minted     uint64           `json:"minted"`
	RedeemedAt time.Time        `json:"redeemed_at"`
}

// Outcome is the result of a successful transition. Nil record pointers mean
// the record was not touched.
type Outcome struct {
	State            State             `json:"state"`
	Round            *MintRound        `json:"round,omitempty"`
	RoundParticipant *RoundParticipant `json:"round_participant,omitempty"`
	Offering         *Offering         `json:"offering,omitempty"`
	Participant      *Participant      `json:"participant,omitempty"`
	Redemption       *Redemption       `json:"redemption,omitempty"`
	Effects          []Effect          `json:"effects"`

	// Minted is the synthetic amount issued by this transition.
	Minted uint64 `json:"minted"`
	// Fee is the platform fee routed away from the treasury.
	Fee uint64 `json:"fee,omitempty"`
	// Edition is the edition printed or burned, when there is one.
	Edition   uint64           `json:"edition,omitempty"`
	EditionID solana.PublicKey `json:"edition_id"`
}
