package engine

import (
	"context"
	"errors"
	"time"

	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrRecordNotFound is returned by Tx lookups for absent rounds,
	// offerings and redemptions.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInsufficientFunds is returned by a ledger asked to move more than
	// an account holds.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store runs operations atomically. WithTx commits only when fn returns nil;
// View never commits.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the strategy records and the ledgers inside one transaction.
// Participant lookups return a zero record when none exists yet.
type Tx interface {
	Strategy(ctx context.Context) (strategy.State, error)
	PutStrategy(ctx context.Context, s strategy.State) error

	Round(ctx context.Context, id uint64) (*strategy.MintRound, error)
	PutRound(ctx context.Context, r *strategy.MintRound) error
	RoundParticipant(ctx context.Context, roundID uint64, wallet solana.PublicKey) (strategy.RoundParticipant, error)
	PutRoundParticipant(ctx context.Context, p strategy.RoundParticipant) error

	Offering(ctx context.Context, kind strategy.OfferingKind, id uint64) (*strategy.Offering, error)
	PutOffering(ctx context.Context, o *strategy.Offering) error
	Participant(ctx context.Context, kind strategy.OfferingKind, id uint64, wallet solana.PublicKey) (strategy.Participant, error)
	PutParticipant(ctx context.Context, p strategy.Participant) error

	Redemption(ctx context.Context, kind strategy.OfferingKind, id, edition uint64) (*strategy.Redemption, error)
	PutRedemption(ctx context.Context, r *strategy.Redemption) error

	Tokens() TokenLedger
	Editions() EditionLedger
	Collateral() CollateralLedger
}

// TokenLedger holds synthetic token balances.
type TokenLedger interface {
	Mint(ctx context.Context, to solana.PublicKey, amount uint64) error
	BalanceOf(ctx context.Context, owner solana.PublicKey) (uint64, error)
	Supply(ctx context.Context) (uint64, error)
}

// EditionLedger holds edition masters and the ownership of printed editions.
type EditionLedger interface {
	CreateMaster(ctx context.Context, master solana.PublicKey, supplyCap *uint64) error
	PrintEdition(ctx context.Context, master, edition solana.PublicKey, number uint64, to solana.PublicKey) error
	AmountHeld(ctx context.Context, edition, owner solana.PublicKey) (uint64, error)
	Burn(ctx context.Context, edition, owner solana.PublicKey) error
	Transfer(ctx context.Context, edition, from, to solana.PublicKey) error
}

// CollateralLedger holds SOL balances.
type CollateralLedger interface {
	Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error
	BalanceOf(ctx context.Context, owner solana.PublicKey) (uint64, error)
	Deposit(ctx context.Context, to solana.PublicKey, amount uint64) error
}

// Clock supplies the time an operation is evaluated at.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}

// Publisher receives receipts after their transaction commits.
type Publisher interface {
	PublishReceipt(ctx context.Context, r *Receipt) error
}

// Invalidator retires cached query results. It is called after every commit,
// whichever process ran the operation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
