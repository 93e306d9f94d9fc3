package math

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/types"
)

// Zero returns a fresh zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// IsZero treats a nil amount as zero.
func IsZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}

// Clone copies x, mapping nil to zero.
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return Zero()
	}
	return x.Clone()
}

// Add returns x + y or ErrOverflow.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, types.ErrOverflow.Wrapf("%s + %s", x.Dec(), y.Dec())
	}
	return z, nil
}

// Sub returns x - y or ErrUnderflow.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, types.ErrUnderflow.Wrapf("%s - %s", x.Dec(), y.Dec())
	}
	return z, nil
}

// Mul returns x * y or ErrOverflow.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, types.ErrOverflow.Wrapf("%s * %s", x.Dec(), y.Dec())
	}
	return z, nil
}

// MulUint64 multiplies by a small constant.
func MulUint64(x *uint256.Int, y uint64) (*uint256.Int, error) {
	return Mul(x, uint256.NewInt(y))
}

// Div returns floor(x / y).
func Div(x, y *uint256.Int) (*uint256.Int, error) {
	if IsZero(y) {
		return nil, types.ErrDivisionByZero
	}
	return new(uint256.Int).Div(x, y), nil
}

// DivRoundingUp returns ceil(x / y). The remainder is tested directly instead
// of adding one unconditionally.
func DivRoundingUp(x, y *uint256.Int) (*uint256.Int, error) {
	if IsZero(y) {
		return nil, types.ErrDivisionByZero
	}
	q, r := new(uint256.Int).DivMod(x, y, new(uint256.Int))
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// MulDiv returns floor(x * y / d). The product must itself fit in 256 bits.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	p, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return Div(p, d)
}

// MulDivFull returns floor(x * y / d) using a 512-bit intermediate product.
// Only a quotient wider than 256 bits overflows.
func MulDivFull(x, y, d *uint256.Int) (*uint256.Int, error) {
	if IsZero(d) {
		return nil, types.ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, types.ErrOverflow.Wrapf("%s * %s / %s", x.Dec(), y.Dec(), d.Dec())
	}
	return z, nil
}

// Sqrt is the Babylonian integer square root. It always returns the exact
// floor of the real root.
func Sqrt(y *uint256.Int) *uint256.Int {
	z := new(uint256.Int)
	if y == nil || y.IsZero() {
		return z
	}
	if y.LtUint64(4) {
		return z.SetOne()
	}

	z.Set(y)
	x := new(uint256.Int).Rsh(y, 1)
	x.AddUint64(x, 1)
	q := new(uint256.Int)
	for x.Lt(z) {
		z.Set(x)
		q.Div(y, x)
		x.Add(q, x)
		x.Rsh(x, 1)
	}
	return z
}

// ParseAmount reads a base-10 amount in the smallest unit.
func ParseAmount(s string) (*uint256.Int, error) {
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return x, nil
}

// Units scales n by 10^decimals, e.g. Units(3, 18) is 3 ether in wei.
func Units(n uint64, decimals uint8) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return new(uint256.Int).Mul(uint256.NewInt(n), scale)
}

// ToFloat64 is a lossy conversion for metrics and logs only.
func ToFloat64(x *uint256.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}
