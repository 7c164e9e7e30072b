package engine

import (
	"context"
	"time"

	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
)

// InitializeToken records the token configuration.
func (e *Engine) InitializeToken(ctx context.Context, caller solana.PublicKey, p strategy.TokenParams) (*Receipt, error) {
	return e.execute(ctx, OpInitializeToken, caller, func(ctx context.Context, tx Tx, _ time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		return strategy.InitializeToken(s, caller, e.initializer, p)
	})
}

// InitializeEditions sets up offerings under the engine's program id.
func (e *Engine) InitializeEditions(ctx context.Context, caller solana.PublicKey, p strategy.EditionParams) (*Receipt, error) {
	p.Program = e.program
	return e.execute(ctx, OpInitializeEditions, caller, func(ctx context.Context, tx Tx, _ time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		return strategy.InitializeEditions(s, caller, e.initializer, p)
	})
}

// Invest deposits amount collateral at par.
func (e *Engine) Invest(ctx context.Context, wallet solana.PublicKey, amount uint64) (*Receipt, error) {
	return e.execute(ctx, OpInvest, wallet, func(ctx context.Context, tx Tx, _ time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		balance, err := tx.Tokens().BalanceOf(ctx, wallet)
		if err != nil {
			return nil, err
		}
		return strategy.Invest(s, strategy.InvestInput{Wallet: wallet, Amount: amount, Balance: balance})
	})
}

// OpenRound opens round roundID at premium.
func (e *Engine) OpenRound(ctx context.Context, caller solana.PublicKey, roundID, premium uint64) (*Receipt, error) {
	return e.execute(ctx, OpOpenRound, caller, func(ctx context.Context, tx Tx, now time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		supply, err := tx.Tokens().Supply(ctx)
		if err != nil {
			return nil, err
		}
		return strategy.OpenRound(s, strategy.OpenRoundInput{
			Caller:  caller,
			RoundID: roundID,
			Premium: premium,
			Supply:  supply,
			Now:     now,
		})
	})
}

// BuyRound spends amount collateral in the open round.
func (e *Engine) BuyRound(ctx context.Context, wallet solana.PublicKey, roundID, amount uint64, feeRecipient solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpBuyRound, wallet, func(ctx context.Context, tx Tx, now time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		round, err := optional(tx.Round(ctx, roundID))
		if err != nil {
			return nil, err
		}
		p, err := tx.RoundParticipant(ctx, roundID, wallet)
		if err != nil {
			return nil, err
		}
		return strategy.BuyRound(s, round, p, strategy.BuyRoundInput{
			Wallet:       wallet,
			RoundID:      roundID,
			Amount:       amount,
			FeeRecipient: feeRecipient,
			Now:          now,
		})
	})
}

// CloseRound closes the open round.
func (e *Engine) CloseRound(ctx context.Context, caller solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpCloseRound, caller, func(ctx context.Context, tx Tx, _ time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		round, err := optional(tx.Round(ctx, s.NextRoundID))
		if err != nil {
			return nil, err
		}
		return strategy.CloseRound(s, round, caller)
	})
}

// ExpireRound closes round roundID once its mint duration has passed.
func (e *Engine) ExpireRound(ctx context.Context, roundID uint64) (*Receipt, error) {
	return e.execute(ctx, OpExpireRound, solana.PublicKey{}, func(ctx context.Context, tx Tx, now time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		round, err := optional(tx.Round(ctx, s.NextRoundID))
		if err != nil {
			return nil, err
		}
		return strategy.ExpireRound(s, round, roundID, now)
	})
}

// CreateBond opens a bond offering.
func (e *Engine) CreateBond(ctx context.Context, caller solana.PublicKey, p strategy.OfferingParams) (*Receipt, error) {
	p.Kind = strategy.Bond
	return e.createOffering(ctx, OpCreateBond, caller, p)
}

// CreateWhitelist opens a whitelist offering.
func (e *Engine) CreateWhitelist(ctx context.Context, caller solana.PublicKey, p strategy.OfferingParams) (*Receipt, error) {
	p.Kind = strategy.Whitelist
	return e.createOffering(ctx, OpCreateWhitelist, caller, p)
}

func (e *Engine) createOffering(ctx context.Context, op Operation, caller solana.PublicKey, p strategy.OfferingParams) (*Receipt, error) {
	return e.execute(ctx, op, caller, func(ctx context.Context, tx Tx, _ time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		return strategy.CreateOffering(s, caller, p)
	})
}

// BuyEdition buys the next edition of an offering.
func (e *Engine) BuyEdition(ctx context.Context, wallet solana.PublicKey, kind strategy.OfferingKind, offeringID uint64) (*Receipt, error) {
	return e.execute(ctx, OpBuyEdition, wallet, func(ctx context.Context, tx Tx, now time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		o, err := optional(tx.Offering(ctx, kind, offeringID))
		if err != nil {
			return nil, err
		}
		p, err := tx.Participant(ctx, kind, offeringID, wallet)
		if err != nil {
			return nil, err
		}
		return strategy.BuyEdition(s, o, p, strategy.BuyEditionInput{Wallet: wallet, Now: now})
	})
}

// RedeemBond settles a matured bond edition held by wallet.
func (e *Engine) RedeemBond(ctx context.Context, wallet solana.PublicKey, offeringID, edition uint64, convert bool) (*Receipt, error) {
	return e.execute(ctx, OpRedeemBond, wallet, func(ctx context.Context, tx Tx, now time.Time) (*strategy.Outcome, error) {
		s, o, claimed, held, err := e.loadRedemption(ctx, tx, strategy.Bond, offeringID, edition, wallet)
		if err != nil {
			return nil, err
		}
		return strategy.RedeemBond(s, o, claimed, strategy.RedeemInput{
			Wallet:  wallet,
			Edition: edition,
			Convert: convert,
			Held:    held,
			Now:     now,
		})
	})
}

// RedeemWhitelist claims a matured whitelist edition held by wallet.
func (e *Engine) RedeemWhitelist(ctx context.Context, wallet solana.PublicKey, offeringID, edition uint64) (*Receipt, error) {
	return e.execute(ctx, OpRedeemWhitelist, wallet, func(ctx context.Context, tx Tx, now time.Time) (*strategy.Outcome, error) {
		s, o, claimed, held, err := e.loadRedemption(ctx, tx, strategy.Whitelist, offeringID, edition, wallet)
		if err != nil {
			return nil, err
		}
		return strategy.RedeemWhitelist(s, o, claimed, strategy.RedeemInput{
			Wallet:  wallet,
			Edition: edition,
			Held:    held,
			Now:     now,
		})
	})
}

// loadRedemption reads everything a redemption is evaluated against. held is
// zero when the offering does not exist.
func (e *Engine) loadRedemption(ctx context.Context, tx Tx, kind strategy.OfferingKind, offeringID, edition uint64, wallet solana.PublicKey) (strategy.State, *strategy.Offering, *strategy.Redemption, uint64, error) {
	s, err := tx.Strategy(ctx)
	if err != nil {
		return s, nil, nil, 0, err
	}
	o, err := optional(tx.Offering(ctx, kind, offeringID))
	if err != nil || o == nil {
		return s, nil, nil, 0, err
	}
	claimed, err := optional(tx.Redemption(ctx, kind, offeringID, edition))
	if err != nil {
		return s, nil, nil, 0, err
	}
	editionID, err := strategy.EditionAddress(s.Program, o.Master, edition)
	if err != nil {
		return s, nil, nil, 0, err
	}
	held, err := tx.Editions().AmountHeld(ctx, editionID, wallet)
	if err != nil {
		return s, nil, nil, 0, err
	}
	return s, o, claimed, held, nil
}

// TransferEdition moves edition number edition of an offering from one wallet to another.
func (e *Engine) TransferEdition(ctx context.Context, from solana.PublicKey, kind strategy.OfferingKind, offeringID, edition uint64, to solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpTransferEdition, from, func(ctx context.Context, tx Tx, _ time.Time) (*strategy.Outcome, error) {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		o, err := optional(tx.Offering(ctx, kind, offeringID))
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, strategy.Errorf(strategy.ErrNotFound, "%s %d not found", kind, offeringID)
		}
		if to.IsZero() || to.Equals(from) {
			return nil, strategy.Errorf(strategy.ErrInvalidArgument, "invalid recipient %s", to)
		}
		editionID, err := strategy.EditionAddress(s.Program, o.Master, edition)
		if err != nil {
			return nil, err
		}
		if err := tx.Editions().Transfer(ctx, editionID, from, to); err != nil {
			return nil, err
		}
		return &strategy.Outcome{State: s, Edition: edition, EditionID: editionID}, nil
	})
}

// Airdrop credits collateral to a wallet. Only the initializer may call it.
func (e *Engine) Airdrop(ctx context.Context, caller, to solana.PublicKey, amount uint64) (*Receipt, error) {
	return e.execute(ctx, OpAirdrop, caller, func(ctx context.Context, tx Tx, _ time.Time) (*strategy.Outcome, error) {
		if !caller.Equals(e.initializer) {
			return nil, strategy.Errorf(strategy.ErrUnauthorized, "%s is not the initializer", caller)
		}
		if amount == 0 || amount > strategy.MaxAmount {
			return nil, strategy.Errorf(strategy.ErrInvalidArgument, "amount must be between 1 and %d", strategy.MaxAmount)
		}
		s, err := tx.Strategy(ctx)
		if err != nil {
			return nil, err
		}
		if err := tx.Collateral().Deposit(ctx, to, amount); err != nil {
			return nil, err
		}
		return &strategy.Outcome{State: s}, nil
	})
}
