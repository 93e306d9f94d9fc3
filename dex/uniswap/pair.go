package uniswap

import (
	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

// DefaultFeePerMille is the 0.3% pool fee
const DefaultFeePerMille uint64 = 3

const feeDenominator uint64 = 1000

// ValidateFee rejects fees that would leave nothing of the input
func ValidateFee(feePerMille uint64) error {
	if feePerMille >= feeDenominator {
		return types.ErrInvalidFee.Wrapf("%d per mille", feePerMille)
	}
	return nil
}

// GetAmountOut returns the output for amountIn against the given reserves,
// rounded down:
//
//	amountOut = amountIn*(1000-fee)*reserveOut / (reserveIn*1000 + amountIn*(1000-fee))
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feePerMille uint64) (*uint256.Int, error) {
	if err := ValidateFee(feePerMille); err != nil {
		return nil, err
	}
	if math.IsZero(amountIn) {
		return nil, types.ErrInsufficientInputAmount
	}
	if math.IsZero(reserveIn) || math.IsZero(reserveOut) {
		return nil, types.ErrInsufficientLiquidity
	}

	amountInWithFee, err := math.MulUint64(amountIn, feeDenominator-feePerMille)
	if err != nil {
		return nil, err
	}
	numerator, err := math.Mul(amountInWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	denominator, err := math.MulUint64(reserveIn, feeDenominator)
	if err != nil {
		return nil, err
	}
	if denominator, err = math.Add(denominator, amountInWithFee); err != nil {
		return nil, err
	}
	return math.Div(numerator, denominator)
}

// GetAmountIn returns the smallest input that buys amountOut, rounded up
// exactly. Asking for the whole reserve or more is ErrInsufficientLiquidity.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int, feePerMille uint64) (*uint256.Int, error) {
	if err := ValidateFee(feePerMille); err != nil {
		return nil, err
	}
	if math.IsZero(amountOut) {
		return nil, types.ErrInsufficientOutputAmount
	}
	if math.IsZero(reserveIn) || math.IsZero(reserveOut) {
		return nil, types.ErrInsufficientLiquidity
	}
	if !amountOut.Lt(reserveOut) {
		return nil, types.ErrInsufficientLiquidity.Wrapf("requested %s of reserve %s", amountOut.Dec(), reserveOut.Dec())
	}

	numerator, err := math.Mul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = math.MulUint64(numerator, feeDenominator); err != nil {
		return nil, err
	}
	denominator, err := math.MulUint64(new(uint256.Int).Sub(reserveOut, amountOut), feeDenominator-feePerMille)
	if err != nil {
		return nil, err
	}
	return math.DivRoundingUp(numerator, denominator)
}

// Quote returns the amount of B worth amountA at the pool's current ratio,
// without fee or price impact.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if math.IsZero(amountA) {
		return nil, types.ErrInsufficientInputAmount
	}
	if math.IsZero(reserveA) || math.IsZero(reserveB) {
		return nil, types.ErrInsufficientLiquidity
	}
	return math.MulDiv(amountA, reserveB, reserveA)
}

// CheckInvariant fails when the reserve product decreased
func CheckInvariant(before0, before1, after0, after1 *uint256.Int) error {
	k, err := math.Mul(before0, before1)
	if err != nil {
		return err
	}
	kNext, err := math.Mul(after0, after1)
	if err != nil {
		return err
	}
	if kNext.Lt(k) {
		return types.ErrInvariantViolation.Wrapf("k %s -> %s", k.Dec(), kNext.Dec())
	}
	return nil
}
