package strategy

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBond(t *testing.T, s State, p OfferingParams) (State, *Offering) {
	t.Helper()
	out, err := CreateBond(s, governance, p)
	require.NoError(t, err)
	return out.State, out.Offering
}

func TestCreateOffering(t *testing.T) {
	s := newState(t)

	out, err := CreateBond(s, governance, bondParams())
	require.NoError(t, err)
	bond := out.Offering
	assert.Equal(t, Bond, bond.Kind)
	assert.Equal(t, uint64(1), bond.ID)
	assert.Equal(t, uint64(1), bond.NextEditionNumber)
	assert.Equal(t, uint64(2), out.State.NextBondID)
	assert.Equal(t, uint64(1), out.State.NextWhitelistID)

	wantMaster, err := OfferingAddress(DefaultProgramID, Bond, 1)
	require.NoError(t, err)
	assert.Equal(t, wantMaster, bond.Master)

	create := findEffect(t, out.Effects, EffectCreateMaster)
	require.NotNil(t, create.SupplyCap)
	assert.Equal(t, uint64(2), *create.SupplyCap)

	wl, err := CreateWhitelist(out.State, governance, whitelistParams())
	require.NoError(t, err)
	assert.Equal(t, Whitelist, wl.Offering.Kind)
	assert.Equal(t, uint64(1), wl.Offering.ID, "kinds have separate counters")
	assert.Equal(t, uint64(2), wl.State.NextWhitelistID)
	assert.Nil(t, findEffect(t, wl.Effects, EffectCreateMaster).SupplyCap)
	assert.NotEqual(t, bond.Master, wl.Offering.Master)

	second, err := CreateBond(wl.State, governance, bondParams())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Offering.ID)
}

func TestCreateOffering_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		kind   OfferingKind
		caller solana.PublicKey
		mutate func(*OfferingParams)
		want   error
	}{
		{name: "not governance", kind: Bond, caller: alice, mutate: func(*OfferingParams) {}, want: ErrUnauthorized},
		{name: "zero price", kind: Bond, caller: governance, mutate: func(p *OfferingParams) { p.Price = 0 }, want: ErrInvalidArgument},
		{name: "zero strike", kind: Bond, caller: governance, mutate: func(p *OfferingParams) { p.StrikePrice = 0 }, want: ErrInvalidArgument},
		{name: "zero supply", kind: Bond, caller: governance, mutate: func(p *OfferingParams) { p.Supply = 0 }, want: ErrInvalidArgument},
		{name: "window reversed", kind: Whitelist, caller: governance, mutate: func(p *OfferingParams) { p.EndTime = p.StartTime.Add(-time.Second) }, want: ErrInvalidArgument},
		{name: "expires before maturity", kind: Whitelist, caller: governance, mutate: func(p *OfferingParams) { p.Expiration = p.Maturity.Add(-time.Second) }, want: ErrInvalidArgument},
		{name: "no wallet cap", kind: Whitelist, caller: governance, mutate: func(p *OfferingParams) { p.MaxMintPerWallet = 0 }, want: ErrInvalidArgument},
		{name: "price beyond range", kind: Whitelist, caller: governance, mutate: func(p *OfferingParams) { p.Price = MaxAmount + 1 }, want: ErrInvalidArgument},
		{name: "supply beyond range", kind: Bond, caller: governance, mutate: func(p *OfferingParams) { p.Supply = MaxAmount + 1 }, want: ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := bondParams()
			if tt.kind == Whitelist {
				p = whitelistParams()
			}
			p.Kind = tt.kind
			tt.mutate(&p)
			_, err := CreateOffering(newState(t), tt.caller, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("editions not initialized", func(t *testing.T) {
		s := newState(t)
		s.EditionsInitialized = false
		_, err := CreateBond(s, governance, bondParams())
		assert.ErrorIs(t, err, ErrNotInitialized)
	})
}

func TestBuyEdition_StopsAtSupply(t *testing.T) {
	s, bond := createBond(t, newState(t), bondParams())
	now := t0.Add(time.Hour)

	for i, wallet := range []solana.PublicKey{alice, bob} {
		out, err := BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: wallet, Now: now})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), out.Edition)
		s, bond = out.State, out.Offering
	}
	assert.Equal(t, uint64(2), bond.Sold())
	assert.Equal(t, 4*Scale, s.SolFromBond)

	carol := solana.NewWallet().PublicKey()
	_, err := BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: carol, Now: now})
	assert.ErrorIs(t, err, ErrSupplyExhausted)

	// sold out wins over window and cap failures
	_, err = BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: carol, Now: bond.EndTime.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrSupplyExhausted)
	_, err = BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: carol, Now: t0.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrSupplyExhausted)
	_, err = BuyEdition(s, bond, Participant{Minted: bond.MaxMintPerWallet}, BuyEditionInput{Wallet: carol, Now: now})
	assert.ErrorIs(t, err, ErrSupplyExhausted)
}

func TestBuyEdition_Effects(t *testing.T) {
	s, bond := createBond(t, newState(t), bondParams())

	out, err := BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: alice, Now: t0})
	require.NoError(t, err)

	wantEdition, err := EditionAddress(DefaultProgramID, bond.Master, 1)
	require.NoError(t, err)
	assert.Equal(t, wantEdition, out.EditionID)
	assert.Equal(t, []Effect{
		transferEffect(alice, treasury, 2*Scale),
		printEditionEffect(bond.Master, wantEdition, 1, alice),
	}, out.Effects)

	require.NotNil(t, out.Participant)
	assert.Equal(t, uint64(1), out.Participant.Minted)
	assert.Equal(t, bond.Master, out.Participant.Collection)
	assert.Equal(t, uint64(1), bond.NextEditionNumber, "input offering is not mutated")
}

func TestBuyEdition_ContiguousNumbers(t *testing.T) {
	s := newState(t)
	out, err := CreateWhitelist(s, governance, whitelistParams())
	require.NoError(t, err)
	s, wl := out.State, out.Offering

	seen := map[solana.PublicKey]bool{}
	for i := 1; i <= 25; i++ {
		buyer := solana.NewWallet().PublicKey()
		res, err := BuyEdition(s, wl, Participant{}, BuyEditionInput{Wallet: buyer, Now: t0})
		require.NoError(t, err)
		require.Equal(t, uint64(i), res.Edition)
		require.False(t, seen[res.EditionID], "edition address repeated")
		seen[res.EditionID] = true
		s, wl = res.State, res.Offering
	}
	assert.Equal(t, uint64(26), wl.NextEditionNumber)
	assert.Equal(t, 25*(Scale/2), s.SolFromWhitelist)
	assert.Zero(t, s.SolFromBond)
}

func TestBuyEdition_Rejections(t *testing.T) {
	s, bond := createBond(t, newState(t), bondParams())

	_, err := BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: alice, Now: t0.Add(-time.Second)})
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: alice, Now: bond.EndTime.Add(time.Second)})
	assert.ErrorIs(t, err, ErrEnded)

	_, err = BuyEdition(s, nil, Participant{}, BuyEditionInput{Wallet: alice, Now: t0})
	assert.ErrorIs(t, err, ErrNotFound)

	out, err := BuyEdition(s, bond, Participant{}, BuyEditionInput{Wallet: alice, Now: t0})
	require.NoError(t, err)
	out, err = BuyEdition(out.State, out.Offering, *out.Participant, BuyEditionInput{Wallet: alice, Now: t0})
	require.NoError(t, err)

	wide := *out.Offering
	wide.Supply = 10
	_, err = BuyEdition(out.State, &wide, *out.Participant, BuyEditionInput{Wallet: alice, Now: t0})
	assert.ErrorIs(t, err, ErrWalletCap)
}
