package arbitrage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/dex/uniswap"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

// ComputeProfitMaximizingTrade returns the trade that moves the pool's
// reserve ratio A:B to truePriceTokenA:truePriceTokenB net of the 0.3% fee.
// A pool already at that ratio yields a zero amount, not an error.
func ComputeProfitMaximizingTrade(truePriceTokenA, truePriceTokenB, reserveA, reserveB *uint256.Int) (types.TradeQuote, error) {
	if math.IsZero(truePriceTokenA) || math.IsZero(truePriceTokenB) {
		return types.TradeQuote{}, types.ErrInvalidPrice.Wrap("true prices must be positive")
	}
	if math.IsZero(reserveA) || math.IsZero(reserveB) {
		return types.TradeQuote{}, types.ErrInsufficientLiquidity
	}

	spot, err := math.MulDivFull(reserveA, truePriceTokenB, reserveB)
	if err != nil {
		return types.TradeQuote{}, err
	}
	aToB := spot.Lt(truePriceTokenA)

	direction := types.DirectionBToA
	priceIn, priceOut := truePriceTokenB, truePriceTokenA
	reserveIn, reserveOut := reserveB, reserveA
	if aToB {
		direction = types.DirectionAToB
		priceIn, priceOut = truePriceTokenA, truePriceTokenB
		reserveIn, reserveOut = reserveA, reserveB
	}

	invariant, err := math.Mul(reserveA, reserveB)
	if err != nil {
		return types.TradeQuote{}, err
	}
	scaled, err := math.MulUint64(invariant, 1000)
	if err != nil {
		return types.TradeQuote{}, err
	}
	denominator, err := math.MulUint64(priceOut, 997)
	if err != nil {
		return types.TradeQuote{}, err
	}
	target, err := math.MulDivFull(scaled, priceIn, denominator)
	if err != nil {
		return types.TradeQuote{}, err
	}
	leftSide := math.Sqrt(target)

	rightSide, err := math.MulDiv(reserveIn, uint256.NewInt(1000), uint256.NewInt(997))
	if err != nil {
		return types.TradeQuote{}, err
	}
	if leftSide.Lt(rightSide) {
		return types.NewTradeQuote(direction, nil, nil), nil
	}

	amountIn := new(uint256.Int).Sub(leftSide, rightSide)
	if amountIn.IsZero() {
		return types.NewTradeQuote(direction, nil, nil), nil
	}
	amountOut, err := uniswap.GetAmountOut(amountIn, reserveIn, reserveOut, uniswap.DefaultFeePerMille)
	if err != nil {
		return types.TradeQuote{}, err
	}
	return types.NewTradeQuote(direction, amountIn, amountOut), nil
}

// Solution is a solver result bound to concrete tokens
type Solution struct {
	Pool     types.PoolID
	TokenIn  common.Address
	TokenOut common.Address
	Quote    types.TradeQuote
}

// Profitable reports whether any trade is suggested
func (s *Solution) Profitable() bool {
	return !s.Quote.AmountIn.IsZero()
}

// SolveForPool runs the solver on the live reserves of the tokenA/tokenB
// pool and names the token to sell.
func SolveForPool(ctx context.Context, ledger dex.PoolLedger, tokenA, tokenB common.Address, truePriceTokenA, truePriceTokenB *uint256.Int) (*Solution, error) {
	id, err := ledger.PoolFor(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	if err := ledger.Lock(ctx, id); err != nil {
		return nil, err
	}
	pool, err := ledger.Pool(id)
	ledger.Release(id)
	if err != nil {
		return nil, err
	}

	reserveA, reserveB, err := pool.ReservesFor(tokenA)
	if err != nil {
		return nil, err
	}
	quote, err := ComputeProfitMaximizingTrade(truePriceTokenA, truePriceTokenB, reserveA, reserveB)
	if err != nil {
		return nil, err
	}

	solution := &Solution{Pool: id, Quote: quote, TokenIn: tokenB, TokenOut: tokenA}
	if quote.AToB() {
		solution.TokenIn, solution.TokenOut = tokenA, tokenB
	}
	return solution, nil
}
