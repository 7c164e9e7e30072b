package strategy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := fail(ErrWalletCap, "wallet would hold %d", 101)

	assert.True(t, errors.Is(err, ErrWalletCap))
	assert.True(t, errors.Is(err, ErrCapExceeded), "kind-only sentinel matches any reason")
	assert.False(t, errors.Is(err, ErrPoolCap))
	assert.False(t, errors.Is(err, ErrWindow))

	wrapped := fmt.Errorf("invest: %w", err)
	assert.True(t, errors.Is(wrapped, ErrWalletCap))

	var se *Error
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, KindCapExceeded, se.Kind)
	assert.Equal(t, "wallet", se.Reason)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "cap-exceeded (pool): full", fail(ErrPoolCap, "full").Error())
	assert.Equal(t, "supply-exhausted", ErrSupplyExhausted.Error())
	assert.Equal(t, "not-found: bond 3", fail(ErrNotFound, "bond %d", 3).Error())
}
