package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvest_WalletCapAtBoundary(t *testing.T) {
	s := newState(t)
	var balance uint64

	for _, amount := range []uint64{80 * Scale, 20 * Scale} {
		out, err := Invest(s, InvestInput{Wallet: alice, Amount: amount, Balance: balance})
		require.NoError(t, err)
		s = out.State
		balance += out.Minted
	}
	assert.Equal(t, 100*Scale, balance)
	assert.Equal(t, 100*Scale, s.SolInTreasury)

	_, err := Invest(s, InvestInput{Wallet: alice, Amount: 1 * Scale, Balance: balance})
	assert.ErrorIs(t, err, ErrWalletCap)
}

func TestInvest_Effects(t *testing.T) {
	s := newState(t)
	out, err := Invest(s, InvestInput{Wallet: alice, Amount: 5 * Scale})
	require.NoError(t, err)

	require.Len(t, out.Effects, 2)
	assert.Equal(t, transferEffect(alice, treasury, 5*Scale), out.Effects[0])
	assert.Equal(t, mintEffect(alice, 5*Scale), out.Effects[1])
	assert.Equal(t, uint64(0), s.SolInTreasury, "input state is not mutated")
}

func TestInvest_PoolCap(t *testing.T) {
	s := newState(t)
	s.SolInTreasury = s.InitialPoolCap - Scale

	_, err := Invest(s, InvestInput{Wallet: bob, Amount: 2 * Scale})
	assert.ErrorIs(t, err, ErrPoolCap)

	out, err := Invest(s, InvestInput{Wallet: bob, Amount: Scale})
	require.NoError(t, err)
	assert.Equal(t, s.InitialPoolCap, out.State.SolInTreasury)
}

func TestInvest_WalletCapCheckedFirst(t *testing.T) {
	s := newState(t)
	s.SolInTreasury = s.InitialPoolCap

	_, err := Invest(s, InvestInput{Wallet: bob, Amount: Scale, Balance: s.IndividualAddressCap})
	assert.ErrorIs(t, err, ErrWalletCap)
}

func TestInvest_Preconditions(t *testing.T) {
	_, err := Invest(State{}, InvestInput{Wallet: alice, Amount: 1})
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = Invest(newState(t), InvestInput{Wallet: alice})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInvest_TreasuryNeverExceedsPoolCap(t *testing.T) {
	s := newState(t)
	s.IndividualAddressCap = s.InitialPoolCap
	balances := map[int]uint64{}

	for i := 0; i < 400; i++ {
		wallet := i % 7
		amount := uint64(i%50+1) * Scale
		out, err := Invest(s, InvestInput{Wallet: alice, Amount: amount, Balance: balances[wallet]})
		if err != nil {
			continue
		}
		s = out.State
		balances[wallet] += amount
		require.LessOrEqual(t, s.SolInTreasury, s.InitialPoolCap)
		require.LessOrEqual(t, balances[wallet], s.IndividualAddressCap)
	}
	assert.Greater(t, s.SolInTreasury, s.InitialPoolCap-50*Scale)
}
