package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRollback = errors.New("rollback")

func TestKeyTextRoundTrip(t *testing.T) {
	assert.Equal(t, "", keyText(solana.PublicKey{}))

	k, err := parseKey("")
	require.NoError(t, err)
	assert.True(t, k.IsZero())

	wallet := solana.NewWallet().PublicKey()
	k, err = parseKey(keyText(wallet))
	require.NoError(t, err)
	assert.Equal(t, wallet, k)

	_, err = parseKey("not-base58-0OIl")
	assert.Error(t, err)
}

func TestFitBigint(t *testing.T) {
	require.NoError(t, fitBigint(0, 1, strategy.MaxAmount))
	for _, v := range []uint64{0, 1, strategy.MaxAmount} {
		assert.Equal(t, v, u64(i64(v)))
	}

	for _, v := range []uint64{strategy.MaxAmount + 1, ^uint64(0)} {
		assert.ErrorIs(t, fitBigint(1, v), strategy.ErrArithmetic)
	}
}

func TestMigrations(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}

func TestStore_StrategyRoundTrip(t *testing.T) {
	SkipIfNoTestDB(t)
	store := NewTestStore(t)
	ctx := context.Background()

	want := strategy.State{
		Program:              strategy.DefaultProgramID,
		Governance:           solana.NewWallet().PublicKey(),
		Platform:             solana.NewWallet().PublicKey(),
		Treasury:             solana.NewWallet().PublicKey(),
		TokenInitialized:     true,
		InitialPoolCap:       strategy.MaxAmount,
		IndividualAddressCap: 100 * strategy.Scale,
		SolInTreasury:        5 * strategy.Scale,
		AllowNewMint:         true,
		NextRoundID:          3,
		MaxMintPerWallet:     50 * strategy.Scale,
		MintDuration:         time.Hour,
		PlatformMintFee:      30_000_000,
		MinPremium:           strategy.DefaultMinPremium,
		Capacity:             strategy.CapacityConfig{Model: strategy.NavGrowth, NavGrowthRate: strategy.DefaultNavGrowthRate},
		NextBondID:           1,
		NextWhitelistID:      1,
	}

	err := store.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.PutStrategy(ctx, want)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(ctx context.Context, tx engine.Tx) error {
		got, err := tx.Strategy(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		return nil
	})
	require.NoError(t, err)

	oversized := want
	oversized.SolInTreasury = strategy.MaxAmount + 1
	err = store.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.PutStrategy(ctx, oversized)
	})
	assert.ErrorIs(t, err, strategy.ErrArithmetic)

	err = store.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.Collateral().Deposit(ctx, want.Treasury, strategy.MaxAmount+1)
	})
	assert.ErrorIs(t, err, strategy.ErrArithmetic)
}

func TestStore_RecordsAndLedgers(t *testing.T) {
	SkipIfNoTestDB(t)
	store := NewTestStore(t)
	ctx := context.Background()

	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	master, err := strategy.OfferingAddress(strategy.DefaultProgramID, strategy.Bond, 1)
	require.NoError(t, err)
	edition, err := strategy.EditionAddress(strategy.DefaultProgramID, master, 1)
	require.NoError(t, err)
	supplyCap := uint64(1)

	err = store.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		require.NoError(t, tx.PutRound(ctx, &strategy.MintRound{ID: 1, Premium: 2 * strategy.Scale, Start: start, SolxrAvailable: 10}))
		require.NoError(t, tx.PutRoundParticipant(ctx, strategy.RoundParticipant{RoundID: 1, Wallet: alice, Minted: 4}))
		require.NoError(t, tx.PutOffering(ctx, &strategy.Offering{
			Kind: strategy.Bond, ID: 1, Name: "B1", Price: strategy.Scale, Maturity: start,
			StrikePrice: strategy.Scale, Supply: 1, MaxMintPerWallet: 1,
			StartTime: start, EndTime: start.Add(time.Hour), NextEditionNumber: 2, Master: master,
		}))

		require.NoError(t, tx.Tokens().Mint(ctx, alice, 5))
		require.NoError(t, tx.Tokens().Mint(ctx, bob, 6))
		require.NoError(t, tx.Collateral().Deposit(ctx, alice, 10))
		require.NoError(t, tx.Collateral().Transfer(ctx, alice, bob, 3))
		assert.ErrorIs(t, tx.Collateral().Transfer(ctx, alice, bob, 100), engine.ErrInsufficientFunds)

		require.NoError(t, tx.Editions().CreateMaster(ctx, master, &supplyCap))
		require.NoError(t, tx.Editions().PrintEdition(ctx, master, edition, 1, alice))
		other := solana.NewWallet().PublicKey()
		assert.ErrorIs(t, tx.Editions().PrintEdition(ctx, master, other, 2, alice), strategy.ErrSupplyExhausted)
		require.NoError(t, tx.Editions().Transfer(ctx, edition, alice, bob))

		held, err := tx.Editions().AmountHeld(ctx, edition, bob)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), held)
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	err = store.View(ctx, func(ctx context.Context, tx engine.Tx) error {
		_, err := tx.Round(ctx, 1)
		assert.ErrorIs(t, err, engine.ErrRecordNotFound)
		supply, err := tx.Tokens().Supply(ctx)
		require.NoError(t, err)
		assert.Zero(t, supply)
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if err := tx.PutRound(ctx, &strategy.MintRound{ID: 1, Premium: 2 * strategy.Scale, Start: start, SolxrAvailable: 10}); err != nil {
			return err
		}
		if err := tx.Tokens().Mint(ctx, alice, 5); err != nil {
			return err
		}
		if err := tx.Tokens().Mint(ctx, bob, 6); err != nil {
			return err
		}
		if err := tx.Editions().CreateMaster(ctx, master, &supplyCap); err != nil {
			return err
		}
		return tx.Editions().PrintEdition(ctx, master, edition, 1, alice)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(ctx context.Context, tx engine.Tx) error {
		r, err := tx.Round(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, start, r.Start)
		assert.Equal(t, uint64(10), r.SolxrAvailable)

		supply, err := tx.Tokens().Supply(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(11), supply)

		held, err := tx.Editions().AmountHeld(ctx, edition, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), held)
		return nil
	})
	require.NoError(t, err)
}
