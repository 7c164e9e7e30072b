package strategy

import (
	"math"
	"math/bits"

	"github.com/holiman/uint256"
)

// Scale is the fixed-point denominator shared by amounts (9 decimals) and
// ratios: 1.5x is 1_500_000_000, 3% is 30_000_000.
const Scale uint64 = 1_000_000_000

// MaxAmount bounds every amount, cap and count accepted from a caller, so
// persisted values fit a signed 64-bit column.
const MaxAmount uint64 = math.MaxInt64

// checkAmount rejects a caller-supplied value above MaxAmount.
func checkAmount(name string, v uint64) error {
	if v > MaxAmount {
		return fail(ErrInvalidArgument, "%s %d exceeds the maximum %d", name, v, MaxAmount)
	}
	return nil
}

// MulDiv returns floor(x*y/d) computed in 256 bits.
func MulDiv(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fail(ErrArithmetic, "division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(
		uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if overflow || !z.IsUint64() {
		return 0, fail(ErrArithmetic, "overflow computing %d*%d/%d", x, y, d)
	}
	return z.Uint64(), nil
}

func add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fail(ErrArithmetic, "overflow adding %d and %d", a, b)
	}
	return sum, nil
}

func sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fail(ErrArithmetic, "underflow subtracting %d from %d", b, a)
	}
	return diff, nil
}

// NAV is the collateral backing one whole synthetic unit, scaled.
func NAV(treasury, supply uint64) (uint64, error) {
	if supply == 0 {
		return 0, fail(ErrEmptySupply, "synthetic supply is zero")
	}
	return MulDiv(treasury, Scale, supply)
}

// PlatformFee applies the fee rate to amount, capped at max when max is set.
func PlatformFee(amount, rate, max uint64) (uint64, error) {
	fee, err := MulDiv(amount, rate, Scale)
	if err != nil {
		return 0, err
	}
	if max > 0 && fee > max {
		fee = max
	}
	return fee, nil
}
