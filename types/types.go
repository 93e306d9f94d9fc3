package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolID identifies a pair the same way the v2 factory does: by the address
// derived from its sorted tokens.
type PoolID = common.Address

// Pool is a point-in-time copy of a pair's reserves.
type Pool struct {
	ID       PoolID         `json:"id"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 *uint256.Int   `json:"-"`
	Reserve1 *uint256.Int   `json:"-"`
}

// ReservesFor returns the pool reserves ordered as (tokenIn, tokenOut).
func (p Pool) ReservesFor(tokenIn common.Address) (reserveIn, reserveOut *uint256.Int, err error) {
	switch tokenIn {
	case p.Token0:
		return p.Reserve0, p.Reserve1, nil
	case p.Token1:
		return p.Reserve1, p.Reserve0, nil
	default:
		return nil, nil, ErrInvalidPath.Wrapf("token %s is not traded by pool %s", tokenIn.Hex(), p.ID.Hex())
	}
}

// Direction of a trade against a pool, relative to the (A, B) order the
// caller supplied.
type Direction int

const (
	DirectionAToB Direction = iota
	DirectionBToA
)

func (d Direction) String() string {
	if d == DirectionAToB {
		return "a_to_b"
	}
	return "b_to_a"
}

// TradeQuote is an immutable trade suggestion.
type TradeQuote struct {
	Direction Direction
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

// NewTradeQuote copies the amounts so later mutation by the caller cannot leak
// into the quote.
func NewTradeQuote(direction Direction, amountIn, amountOut *uint256.Int) TradeQuote {
	return TradeQuote{
		Direction: direction,
		AmountIn:  cloneOrZero(amountIn),
		AmountOut: cloneOrZero(amountOut),
	}
}

// AToB reports the boolean form of the direction.
func (q TradeQuote) AToB() bool {
	return q.Direction == DirectionAToB
}

// ArbitrageOpportunity represents a detected flash-swap cycle
type ArbitrageOpportunity struct {
	Path           []common.Address
	Pools          []PoolID
	BorrowAmount   *uint256.Int
	RepaymentDue   *uint256.Int
	ExpectedProfit *uint256.Int
	HopAmounts     []*uint256.Int
}

// SortTokens returns the pair in canonical order, as the v2 factory stores it.
func SortTokens(tokenA, tokenB common.Address) (token0, token1 common.Address, err error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, ErrIdenticalAddresses.Wrapf("%s", tokenA.Hex())
	}
	token0, token1 = tokenA, tokenB
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		token0, token1 = tokenB, tokenA
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, ErrZeroAddress
	}
	return token0, token1, nil
}

func cloneOrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x.Clone()
}
