package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
)

// Balance is what a wallet holds on both ledgers.
type Balance struct {
	Wallet     solana.PublicKey `json:"wallet"`
	Synthetic  uint64           `json:"synthetic"`
	Collateral uint64           `json:"collateral"`
}

// Snapshot is the strategy state together with the derived figures clients
// usually want next to it.
type Snapshot struct {
	State        strategy.State `json:"state"`
	Supply       uint64         `json:"supply"`
	NAV          uint64         `json:"nav,omitempty"`
	PremiumFloor uint64         `json:"premium_floor,omitempty"`
	At           time.Time      `json:"at"`
}

// Strategy returns the current strategy snapshot.
func (e *Engine) Strategy(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		s, err := tx.Strategy(ctx)
		if err != nil {
			return err
		}
		supply, err := tx.Tokens().Supply(ctx)
		if err != nil {
			return err
		}
		snap.State = s
		snap.Supply = supply
		if supply > 0 {
			if snap.NAV, err = strategy.NAV(s.SolInTreasury, supply); err != nil {
				return err
			}
			if snap.PremiumFloor, err = strategy.PremiumFloor(s, supply); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if snap.At, err = e.clock.Now(ctx); err != nil {
		return nil, fmt.Errorf("failed to read clock: %w", err)
	}
	return &snap, nil
}

// Round returns round id.
func (e *Engine) Round(ctx context.Context, id uint64) (*strategy.MintRound, error) {
	var r *strategy.MintRound
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.Round(ctx, id)
		return err
	})
	return r, notFound(err, "round %d not found", id)
}

// RoundParticipant returns what wallet minted in round id.
func (e *Engine) RoundParticipant(ctx context.Context, id uint64, wallet solana.PublicKey) (strategy.RoundParticipant, error) {
	var p strategy.RoundParticipant
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = tx.RoundParticipant(ctx, id, wallet)
		return err
	})
	return p, err
}

// Offering returns an offering.
func (e *Engine) Offering(ctx context.Context, kind strategy.OfferingKind, id uint64) (*strategy.Offering, error) {
	var o *strategy.Offering
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.Offering(ctx, kind, id)
		return err
	})
	return o, notFound(err, "%s %d not found", kind, id)
}

// Participant returns how many editions wallet bought from an offering.
func (e *Engine) Participant(ctx context.Context, kind strategy.OfferingKind, id uint64, wallet solana.PublicKey) (strategy.Participant, error) {
	var p strategy.Participant
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = tx.Participant(ctx, kind, id, wallet)
		return err
	})
	return p, err
}

// Redemption returns the claim record of an edition.
func (e *Engine) Redemption(ctx context.Context, kind strategy.OfferingKind, id, edition uint64) (*strategy.Redemption, error) {
	var r *strategy.Redemption
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.Redemption(ctx, kind, id, edition)
		return err
	})
	return r, notFound(err, "%s %d edition %d has not been redeemed", kind, id, edition)
}

// EditionAddress derives the address of an offering's edition.
func (e *Engine) EditionAddress(ctx context.Context, kind strategy.OfferingKind, id, edition uint64) (solana.PublicKey, error) {
	o, err := e.Offering(ctx, kind, id)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return strategy.EditionAddress(e.program, o.Master, edition)
}

// Balance reports the synthetic and collateral balances of wallet.
func (e *Engine) Balance(ctx context.Context, wallet solana.PublicKey) (*Balance, error) {
	b := &Balance{Wallet: wallet}
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if b.Synthetic, err = tx.Tokens().BalanceOf(ctx, wallet); err != nil {
			return err
		}
		b.Collateral, err = tx.Collateral().BalanceOf(ctx, wallet)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, ErrRecordNotFound) {
		return strategy.Errorf(strategy.ErrNotFound, format, args...)
	}
	return err
}
