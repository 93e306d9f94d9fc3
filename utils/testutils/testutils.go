package testutils

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/flashswap/ledger"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

// Market is the seeded WETH/USDC/USDT ledger most tests run against
type Market struct {
	Ledger *ledger.Memory
	WETH   common.Address
	USDC   common.Address
	USDT   common.Address
}

// NewMarket seeds the default three-pool market
func NewMarket(t *testing.T) *Market {
	t.Helper()
	m, err := ledger.NewSeeded(zaptest.NewLogger(t), ledger.Options{}, "")
	require.NoError(t, err)

	mk := &Market{Ledger: m}
	for symbol, dst := range map[string]*common.Address{"WETH": &mk.WETH, "USDC": &mk.USDC, "USDT": &mk.USDT} {
		token, err := m.ResolveToken(symbol)
		require.NoError(t, err)
		*dst = token
	}
	return mk
}

// Digest hashes the ledger reserves, failing the test on error
func Digest(t *testing.T, l *ledger.Memory) uint64 {
	t.Helper()
	d, err := l.Digest(context.Background())
	require.NoError(t, err)
	return d
}

// Digest hashes the market's reserves
func (mk *Market) Digest(t *testing.T) uint64 {
	t.Helper()
	return Digest(t, mk.Ledger)
}

// Pool returns the pool for a pair, failing the test when missing
func (mk *Market) Pool(t *testing.T, tokenA, tokenB common.Address) types.Pool {
	t.Helper()
	id, err := mk.Ledger.PoolFor(tokenA, tokenB)
	require.NoError(t, err)
	pool, err := mk.Ledger.Pool(id)
	require.NoError(t, err)
	return pool
}

// Reserves returns the pair's reserves in (tokenA, tokenB) order
func (mk *Market) Reserves(t *testing.T, tokenA, tokenB common.Address) (*uint256.Int, *uint256.Int) {
	t.Helper()
	reserveA, reserveB, err := mk.Pool(t, tokenA, tokenB).ReservesFor(tokenA)
	require.NoError(t, err)
	return reserveA, reserveB
}

// Ether is n whole units of an 18-decimals token
func Ether(n uint64) *uint256.Int {
	return math.Units(n, 18)
}

// Path is a convenience for building token paths
func Path(tokens ...common.Address) []common.Address {
	return tokens
}
