package strategy

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var (
	initializer = solana.NewWallet().PublicKey()
	governance  = solana.NewWallet().PublicKey()
	platform    = solana.NewWallet().PublicKey()
	treasury    = solana.NewWallet().PublicKey()
	alice       = solana.NewWallet().PublicKey()
	bob         = solana.NewWallet().PublicKey()

	t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func testTokenParams() TokenParams {
	return TokenParams{
		Governance:           governance,
		Platform:             platform,
		Treasury:             treasury,
		InitialPoolCap:       10_000 * Scale,
		IndividualAddressCap: 100 * Scale,
		MaxMintPerWallet:     50 * Scale,
		MintDuration:         time.Hour,
		PlatformMintFee:      30_000_000,
		Capacity:             CapacityConfig{Model: NavGrowth, NavGrowthRate: 100_000_000},
	}
}

// newState returns a fully initialized strategy with an empty treasury.
func newState(t *testing.T) State {
	t.Helper()
	out, err := InitializeToken(State{}, initializer, initializer, testTokenParams())
	require.NoError(t, err)
	out, err = InitializeEditions(out.State, initializer, initializer, EditionParams{
		Program:    DefaultProgramID,
		Governance: governance,
		BondPrice:  Scale,
	})
	require.NoError(t, err)
	return out.State
}

// fundedState returns a strategy holding treasury collateral against an
// equal synthetic supply, so NAV is par.
func fundedState(t *testing.T, amount uint64) State {
	t.Helper()
	s := newState(t)
	s.SolInTreasury = amount
	return s
}

// openRound opens round 1 at premium against a par-NAV treasury of 100.
func openRound(t *testing.T, premium uint64) (State, *MintRound) {
	t.Helper()
	s := fundedState(t, 100*Scale)
	out, err := OpenRound(s, OpenRoundInput{
		Caller:  governance,
		RoundID: 1,
		Premium: premium,
		Supply:  100 * Scale,
		Now:     t0,
	})
	require.NoError(t, err)
	return out.State, out.Round
}

func bondParams() OfferingParams {
	return OfferingParams{
		Name:             "SOLXR Bond",
		Symbol:           "XRB",
		URI:              "https://example.com/bond.json",
		Price:            2 * Scale,
		Maturity:         t0.Add(30 * 24 * time.Hour),
		StrikePrice:      1_250_000_000,
		Supply:           2,
		MaxMintPerWallet: 2,
		StartTime:        t0,
		EndTime:          t0.Add(7 * 24 * time.Hour),
	}
}

func whitelistParams() OfferingParams {
	return OfferingParams{
		Name:             "SOLXR Whitelist",
		Symbol:           "XRW",
		URI:              "https://example.com/whitelist.json",
		Price:            Scale / 2,
		Maturity:         t0.Add(10 * 24 * time.Hour),
		Expiration:       t0.Add(20 * 24 * time.Hour),
		MaxMintPerWallet: 3,
		StartTime:        t0,
		EndTime:          t0.Add(7 * 24 * time.Hour),
	}
}

func findEffect(t *testing.T, effects []Effect, kind EffectKind) Effect {
	t.Helper()
	for _, e := range effects {
		if e.Kind == kind {
			return e
		}
	}
	t.Fatalf("no %s effect in %+v", kind, effects)
	return Effect{}
}
