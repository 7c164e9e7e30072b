package strategy

import (
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// OfferingParams describes a new offering. StrikePrice and Supply apply to
// bonds, Expiration to whitelists.
type OfferingParams struct {
	Kind             OfferingKind `json:"kind" toml:"kind"`
	Name             string       `json:"name" toml:"name"`
	Symbol           string       `json:"symbol" toml:"symbol"`
	URI              string       `json:"uri" toml:"uri"`
	Price            uint64       `json:"price" toml:"price"`
	Maturity         time.Time    `json:"maturity" toml:"maturity"`
	StrikePrice      uint64       `json:"strike_price,omitempty" toml:"strike_price"`
	Supply           uint64       `json:"supply,omitempty" toml:"supply"`
	Expiration       time.Time    `json:"expiration" toml:"expiration"`
	MaxMintPerWallet uint64       `json:"max_mint_per_wallet" toml:"max_mint_per_wallet"`
	StartTime        time.Time    `json:"start_time" toml:"start_time"`
	EndTime          time.Time    `json:"end_time" toml:"end_time"`
}

// Validate checks the offering parameters.
func (p OfferingParams) Validate() error {
	switch {
	case !p.Kind.Valid():
		return fail(ErrInvalidArgument, "unknown offering kind %q", p.Kind)
	case strings.TrimSpace(p.Name) == "":
		return fail(ErrInvalidArgument, "name is required")
	case p.Price == 0:
		return fail(ErrInvalidArgument, "price must be positive")
	case p.MaxMintPerWallet == 0:
		return fail(ErrInvalidArgument, "max mint per wallet must be positive")
	case p.EndTime.Before(p.StartTime):
		return fail(ErrInvalidArgument, "sale ends before it starts")
	}
	switch p.Kind {
	case Bond:
		if p.StrikePrice == 0 {
			return fail(ErrInvalidArgument, "bond strike price must be positive")
		}
		if p.Supply == 0 {
			return fail(ErrInvalidArgument, "bond supply must be positive")
		}
	case Whitelist:
		if p.Expiration.Before(p.Maturity) {
			return fail(ErrInvalidArgument, "whitelist expires before it matures")
		}
	}
	for _, f := range []struct {
		name string
		v    uint64
	}{
		{"price", p.Price},
		{"strike price", p.StrikePrice},
		{"supply", p.Supply},
		{"max mint per wallet", p.MaxMintPerWallet},
	} {
		if err := checkAmount(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

// CreateBond opens a bond offering with a hard supply.
func CreateBond(s State, caller solana.PublicKey, p OfferingParams) (*Outcome, error) {
	p.Kind = Bond
	return CreateOffering(s, caller, p)
}

// CreateWhitelist opens a whitelist offering with unbounded supply.
func CreateWhitelist(s State, caller solana.PublicKey, p OfferingParams) (*Outcome, error) {
	p.Kind = Whitelist
	return CreateOffering(s, caller, p)
}

// CreateOffering assigns the next id of p.Kind and registers its master.
func CreateOffering(s State, caller solana.PublicKey, p OfferingParams) (*Outcome, error) {
	if !s.EditionsInitialized {
		return nil, fail(ErrNotInitialized, "editions not initialized")
	}
	if err := requireGovernance(s, caller); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var id uint64
	var supplyCap *uint64
	switch p.Kind {
	case Bond:
		id = s.NextBondID
		next, err := add(id, 1)
		if err != nil {
			return nil, err
		}
		s.NextBondID = next
		supply := p.Supply
		supplyCap = &supply
	case Whitelist:
		id = s.NextWhitelistID
		next, err := add(id, 1)
		if err != nil {
			return nil, err
		}
		s.NextWhitelistID = next
		p.StrikePrice = 0
		p.Supply = 0
	}
	master, err := OfferingAddress(s.Program, p.Kind, id)
	if err != nil {
		return nil, fail(ErrInvalidArgument, "%v", err)
	}
	if p.Kind == Bond {
		p.Expiration = time.Time{}
	}

	o := &Offering{
		Kind:              p.Kind,
		ID:                id,
		Name:              p.Name,
		Symbol:            p.Symbol,
		URI:               p.URI,
		Price:             p.Price,
		Maturity:          p.Maturity,
		StrikePrice:       p.StrikePrice,
		Supply:            p.Supply,
		Expiration:        p.Expiration,
		MaxMintPerWallet:  p.MaxMintPerWallet,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		NextEditionNumber: 1,
		Master:            master,
	}
	return &Outcome{
		State:    s,
		Offering: o,
		Effects:  []Effect{createMasterEffect(master, supplyCap)},
	}, nil
}

// BuyEditionInput buys the next edition of an offering.
type BuyEditionInput struct {
	Wallet solana.PublicKey
	Now    time.Time
}

// BuyEdition sells one edition. o is the stored offering (nil when absent)
// and p the wallet's participant record for it.
func BuyEdition(s State, o *Offering, p Participant, in BuyEditionInput) (*Outcome, error) {
	if !s.EditionsInitialized {
		return nil, fail(ErrNotInitialized, "editions not initialized")
	}
	if o == nil {
		return nil, fail(ErrNotFound, "offering not found")
	}
	if o.Kind == Bond && o.Sold() >= o.Supply {
		return nil, fail(ErrSupplyExhausted, "bond %d sold all %d editions", o.ID, o.Supply)
	}
	if in.Now.Before(o.StartTime) {
		return nil, fail(ErrNotStarted, "%s %d sale starts %s", o.Kind, o.ID, o.StartTime.UTC().Format(time.RFC3339))
	}
	if in.Now.After(o.EndTime) {
		return nil, fail(ErrEnded, "%s %d sale ended %s", o.Kind, o.ID, o.EndTime.UTC().Format(time.RFC3339))
	}
	if p.Minted >= o.MaxMintPerWallet {
		return nil, fail(ErrWalletCap, "wallet bought %d of %d allowed", p.Minted, o.MaxMintPerWallet)
	}

	number := o.NextEditionNumber
	edition, err := EditionAddress(s.Program, o.Master, number)
	if err != nil {
		return nil, fail(ErrInvalidArgument, "%v", err)
	}
	next, err := add(number, 1)
	if err != nil {
		return nil, err
	}
	switch o.Kind {
	case Bond:
		if s.SolFromBond, err = add(s.SolFromBond, o.Price); err != nil {
			return nil, err
		}
	case Whitelist:
		if s.SolFromWhitelist, err = add(s.SolFromWhitelist, o.Price); err != nil {
			return nil, err
		}
	}

	updated := *o
	updated.NextEditionNumber = next
	p.Kind = o.Kind
	p.OfferingID = o.ID
	p.Collection = o.Master
	p.Wallet = in.Wallet
	p.Minted++

	return &Outcome{
		State:       s,
		Offering:    &updated,
		Participant: &p,
		Effects: []Effect{
			transferEffect(in.Wallet, s.Treasury, o.Price),
			printEditionEffect(o.Master, edition, number, in.Wallet),
		},
		Edition:   number,
		EditionID: edition,
	}, nil
}
