package strategy

import (
	"github.com/gagliardetto/solana-go"
)

// InvestInput is a direct deposit at par. Balance is the wallet's current
// synthetic balance as reported by the token ledger.
type InvestInput struct {
	Wallet  solana.PublicKey
	Amount  uint64
	Balance uint64
}

// Invest swaps collateral for synthetic tokens 1:1, subject to the
// per-wallet and pool caps.
func Invest(s State, in InvestInput) (*Outcome, error) {
	if !s.TokenInitialized {
		return nil, fail(ErrNotInitialized, "token not initialized")
	}
	if in.Amount == 0 {
		return nil, fail(ErrInvalidArgument, "amount must be positive")
	}

	held, err := add(in.Balance, in.Amount)
	if err != nil {
		return nil, err
	}
	if held > s.IndividualAddressCap {
		return nil, fail(ErrWalletCap, "wallet would hold %d, cap is %d", held, s.IndividualAddressCap)
	}
	pooled, err := add(s.SolInTreasury, in.Amount)
	if err != nil {
		return nil, err
	}
	if pooled > s.InitialPoolCap {
		return nil, fail(ErrPoolCap, "treasury would hold %d, cap is %d", pooled, s.InitialPoolCap)
	}

	s.SolInTreasury = pooled
	return &Outcome{
		State: s,
		Effects: []Effect{
			transferEffect(in.Wallet, s.Treasury, in.Amount),
			mintEffect(in.Wallet, in.Amount),
		},
		Minted: in.Amount,
	}, nil
}
