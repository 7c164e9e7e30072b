package strategy

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// RedeemInput redeems edition number Edition. Held is the amount of that
// edition the wallet holds according to the edition ledger.
type RedeemInput struct {
	Wallet  solana.PublicKey
	Edition uint64
	Convert bool
	Held    uint64
	Now     time.Time
}

// checkRedeemable runs the checks shared by both offering kinds.
func checkRedeemable(s State, o *Offering, kind OfferingKind, claimed *Redemption, in RedeemInput) (solana.PublicKey, error) {
	if !s.EditionsInitialized {
		return solana.PublicKey{}, fail(ErrNotInitialized, "editions not initialized")
	}
	if o == nil || o.Kind != kind {
		return solana.PublicKey{}, fail(ErrNotFound, "%s not found", kind)
	}
	switch {
	case in.Held == 0:
		return solana.PublicKey{}, fail(ErrNotHeld, "wallet does not hold %s %d edition %d", kind, o.ID, in.Edition)
	case in.Held != 1:
		return solana.PublicKey{}, fail(ErrWrongAmount, "wallet holds %d units of edition %d", in.Held, in.Edition)
	}
	if claimed != nil {
		return solana.PublicKey{}, fail(ErrAlreadyClaimed, "%s %d edition %d redeemed at %s",
			kind, o.ID, in.Edition, claimed.RedeemedAt.UTC().Format(time.RFC3339))
	}
	if in.Now.Before(o.Maturity) {
		return solana.PublicKey{}, fail(ErrNotMatured, "%s %d matures %s", kind, o.ID, o.Maturity.UTC().Format(time.RFC3339))
	}
	edition, err := EditionAddress(s.Program, o.Master, in.Edition)
	if err != nil {
		return solana.PublicKey{}, fail(ErrInvalidArgument, "%v", err)
	}
	return edition, nil
}

// RedeemBond settles a matured bond edition, either returning the price in
// collateral or converting it to synthetic tokens at the strike price. The
// edition is burned and a Redemption record written either way.
func RedeemBond(s State, o *Offering, claimed *Redemption, in RedeemInput) (*Outcome, error) {
	edition, err := checkRedeemable(s, o, Bond, claimed, in)
	if err != nil {
		return nil, err
	}

	fromBond, err := sub(s.SolFromBond, o.Price)
	if err != nil {
		return nil, err
	}
	rec := &Redemption{
		Kind:       Bond,
		OfferingID: o.ID,
		Edition:    in.Edition,
		EditionID:  edition,
		Holder:     in.Wallet,
		RedeemedAt: in.Now,
	}
	var settle Effect
	if in.Convert {
		minted, err := MulDiv(o.Price, Scale, o.StrikePrice)
		if err != nil {
			return nil, err
		}
		treasury, err := add(s.SolInTreasury, o.Price)
		if err != nil {
			return nil, err
		}
		s.SolInTreasury = treasury
		rec.Mode = Conversion
		rec.Minted = minted
		settle = mintEffect(in.Wallet, minted)
	} else {
		rec.Mode = Principal
		rec.Paid = o.Price
		settle = transferEffect(s.Treasury, in.Wallet, o.Price)
	}
	s.SolFromBond = fromBond

	return &Outcome{
		State:      s,
		Redemption: rec,
		Effects:    []Effect{settle, burnEditionEffect(edition, in.Wallet)},
		Minted:     rec.Minted,
		Edition:    in.Edition,
		EditionID:  edition,
	}, nil
}

// RedeemWhitelist mints the whitelist price 1:1 in synthetic tokens once
// the pass has matured and before it expires.
func RedeemWhitelist(s State, o *Offering, claimed *Redemption, in RedeemInput) (*Outcome, error) {
	edition, err := checkRedeemable(s, o, Whitelist, claimed, in)
	if err != nil {
		return nil, err
	}
	if in.Now.After(o.Expiration) {
		return nil, fail(ErrExpired, "whitelist %d expired %s", o.ID, o.Expiration.UTC().Format(time.RFC3339))
	}

	rec := &Redemption{
		Kind:       Whitelist,
		OfferingID: o.ID,
		Edition:    in.Edition,
		EditionID:  edition,
		Holder:     in.Wallet,
		Mode:       Claim,
		Minted:     o.Price,
		RedeemedAt: in.Now,
	}
	return &Outcome{
		State:      s,
		Redemption: rec,
		Effects: []Effect{
			mintEffect(in.Wallet, o.Price),
			burnEditionEffect(edition, in.Wallet),
		},
		Minted:    o.Price,
		Edition:   in.Edition,
		EditionID: edition,
	}, nil
}
