package strategy

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// OpenRoundInput opens round RoundID at Premium. Supply is the current
// synthetic supply read from the token ledger.
type OpenRoundInput struct {
	Caller  solana.PublicKey
	RoundID uint64
	Premium uint64
	Supply  uint64
	Now     time.Time
}

// PremiumFloor is the lowest premium a round may open at.
func PremiumFloor(s State, supply uint64) (uint64, error) {
	nav, err := NAV(s.SolInTreasury, supply)
	if err != nil {
		return 0, err
	}
	return MulDiv(s.MinPremium, nav, Scale)
}

// OpenRound starts the next mint round.
func OpenRound(s State, in OpenRoundInput) (*Outcome, error) {
	if !s.TokenInitialized {
		return nil, fail(ErrNotInitialized, "token not initialized")
	}
	if err := requireGovernance(s, in.Caller); err != nil {
		return nil, err
	}
	if in.RoundID != s.NextRoundID {
		return nil, fail(ErrWrongID, "round %d requested, next is %d", in.RoundID, s.NextRoundID)
	}
	if s.AllowNewMint {
		return nil, fail(ErrAlreadyOpen, "round %d is open", s.NextRoundID)
	}
	if s.MaxRounds > 0 && in.RoundID > s.MaxRounds {
		return nil, fail(ErrRoundsCompleted, "all %d rounds completed", s.MaxRounds)
	}
	if in.Supply == 0 {
		return nil, fail(ErrEmptySupply, "no synthetic supply to price against")
	}

	nav, err := NAV(s.SolInTreasury, in.Supply)
	if err != nil {
		return nil, err
	}
	floor, err := MulDiv(s.MinPremium, nav, Scale)
	if err != nil {
		return nil, err
	}
	if in.Premium < floor {
		return nil, fail(ErrBelowFloor, "premium %s is below floor %s",
			FormatRatio(in.Premium), FormatRatio(floor))
	}
	available, err := RoundCapacity(s.Capacity, CapacityInput{
		Premium:  in.Premium,
		NAV:      nav,
		Supply:   in.Supply,
		Treasury: s.SolInTreasury,
	})
	if err != nil {
		return nil, err
	}

	s.AllowNewMint = true
	return &Outcome{
		State: s,
		Round: &MintRound{
			ID:               in.RoundID,
			Premium:          in.Premium,
			Start:            in.Now,
			SolxrAvailable:   available,
			MaxMintPerWallet: s.MaxMintPerWallet,
		},
	}, nil
}

// BuyRoundInput spends Amount collateral in round RoundID.
type BuyRoundInput struct {
	Wallet       solana.PublicKey
	RoundID      uint64
	Amount       uint64
	FeeRecipient solana.PublicKey
	Now          time.Time
}

// BuyRound mints (Amount - fee) / premium synthetic tokens. round is the
// stored round for RoundID (nil when absent) and p the wallet's record in it.
func BuyRound(s State, round *MintRound, p RoundParticipant, in BuyRoundInput) (*Outcome, error) {
	if in.Amount == 0 {
		return nil, fail(ErrInvalidArgument, "amount must be positive")
	}
	if err := checkAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if !s.AllowNewMint {
		return nil, fail(ErrWrongState, "no round is open")
	}
	if round == nil || in.RoundID != s.NextRoundID || round.ID != in.RoundID {
		return nil, fail(ErrWrongID, "round %d is not the open round %d", in.RoundID, s.NextRoundID)
	}
	if !in.FeeRecipient.Equals(s.Platform) {
		return nil, fail(ErrUnauthorized, "invalid platform account %s", in.FeeRecipient)
	}
	if in.Now.Before(round.Start) || in.Now.After(round.ClosesAt(s.MintDuration)) {
		return nil, fail(ErrDurationEnded, "round %d accepted purchases until %s",
			round.ID, round.ClosesAt(s.MintDuration).UTC().Format(time.RFC3339))
	}

	fee, err := PlatformFee(in.Amount, s.PlatformMintFee, s.MaxPlatformMintFee)
	if err != nil {
		return nil, err
	}
	net := in.Amount - fee
	delta, err := MulDiv(net, Scale, round.Premium)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, fail(ErrInvalidArgument, "amount %d mints nothing at premium %s", in.Amount, FormatRatio(round.Premium))
	}

	minted, err := add(round.SolxrMinted, delta)
	if err != nil {
		return nil, err
	}
	if minted > round.SolxrAvailable {
		return nil, fail(ErrRoundCap, "round %d has %d of %d left", round.ID,
			round.SolxrAvailable-round.SolxrMinted, round.SolxrAvailable)
	}
	walletMinted, err := add(p.Minted, delta)
	if err != nil {
		return nil, err
	}
	if walletMinted > round.MaxMintPerWallet {
		return nil, fail(ErrWalletInRoundCap, "wallet would mint %d in round %d, cap is %d",
			walletMinted, round.ID, round.MaxMintPerWallet)
	}

	r := *round
	r.SolxrMinted = minted
	p.RoundID = round.ID
	p.Wallet = in.Wallet
	p.Minted = walletMinted

	effects := make([]Effect, 0, 3)
	if fee > 0 {
		effects = append(effects, transferEffect(in.Wallet, in.FeeRecipient, fee))
	}
	effects = append(effects,
		transferEffect(in.Wallet, s.Treasury, net),
		mintEffect(in.Wallet, delta),
	)

	return &Outcome{
		State:            s,
		Round:            &r,
		RoundParticipant: &p,
		Effects:          effects,
		Minted:           delta,
		Fee:              fee,
	}, nil
}

// CloseRound ends the open round on governance's request.
func CloseRound(s State, round *MintRound, caller solana.PublicKey) (*Outcome, error) {
	if err := requireGovernance(s, caller); err != nil {
		return nil, err
	}
	if !s.AllowNewMint || round == nil {
		return nil, fail(ErrAlreadyClosed, "no round is open")
	}
	return closeRound(s, round)
}

// ExpireRound closes round roundID once its mint duration has elapsed. It
// needs no caller so a scheduler can run it.
func ExpireRound(s State, round *MintRound, roundID uint64, now time.Time) (*Outcome, error) {
	if !s.AllowNewMint || round == nil {
		return nil, fail(ErrAlreadyClosed, "no round is open")
	}
	if roundID != s.NextRoundID || round.ID != roundID {
		return nil, fail(ErrWrongID, "round %d is not the open round %d", roundID, s.NextRoundID)
	}
	if !now.After(round.ClosesAt(s.MintDuration)) {
		return nil, fail(ErrNotEnded, "round %d runs until %s",
			round.ID, round.ClosesAt(s.MintDuration).UTC().Format(time.RFC3339))
	}
	return closeRound(s, round)
}

func closeRound(s State, round *MintRound) (*Outcome, error) {
	next, err := add(s.NextRoundID, 1)
	if err != nil {
		return nil, err
	}
	r := *round
	r.Closed = true
	s.AllowNewMint = false
	s.NextRoundID = next
	return &Outcome{State: s, Round: &r}, nil
}
