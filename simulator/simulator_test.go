package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/flashswap/dex/uniswap"
	"github.com/michaelpento.lv/flashswap/flashloan"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/testutils"
)

func TestSimulateAttack(t *testing.T) {
	mk := testutils.NewMarket(t)
	router, err := uniswap.NewRouter(mk.Ledger, uniswap.RouterConfig{FeePerMille: uniswap.DefaultFeePerMille}, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = router.SwapExactTokensForTokens(context.Background(), testutils.Ether(1), nil,
		testutils.Path(mk.USDC, mk.USDT), common.Address{}, time.Time{})
	require.NoError(t, err)

	sim := NewSimulator(mk.Ledger, uniswap.DefaultFeePerMille, zaptest.NewLogger(t))
	cycle := testutils.Path(mk.WETH, mk.USDT, mk.USDC, mk.WETH)
	borrow := uint256.MustFromDecimal("499997456682235632")

	t.Run("ProfitableLeavesLedgerUntouched", func(t *testing.T) {
		digest := mk.Digest(t)
		result, err := sim.SimulateAttack(context.Background(), cycle, borrow)
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, "4809315094360074", result.Profit().Dec())
		assert.Equal(t, digest, mk.Digest(t))
	})

	t.Run("MatchesLiveExecution", func(t *testing.T) {
		simulated, err := sim.SimulateAttack(context.Background(), cycle, borrow)
		require.NoError(t, err)

		executor, err := flashloan.NewExecutor(mk.Ledger, flashloan.ExecutorConfig{FeePerMille: uniswap.DefaultFeePerMille}, zaptest.NewLogger(t))
		require.NoError(t, err)
		live, err := executor.Attack(context.Background(), cycle, borrow)
		require.NoError(t, err)
		assert.Equal(t, simulated.Attack.Profit, live.Profit)
		assert.Equal(t, simulated.Attack.HopAmounts, live.HopAmounts)
	})

	t.Run("FailureIsReported", func(t *testing.T) {
		result, err := sim.SimulateAttack(context.Background(), testutils.Path(mk.WETH, mk.USDT, mk.WETH), borrow)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "reentrancy", result.Reason)
		assert.ErrorIs(t, result.Error, types.ErrReentrancy)
		assert.True(t, result.Profit().IsZero())
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := sim.SimulateAttack(ctx, cycle, borrow)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOverlayIsolation(t *testing.T) {
	mk := testutils.NewMarket(t)
	o := newOverlay(mk.Ledger)
	pool := mk.Pool(t, mk.USDC, mk.USDT)
	digest := mk.Digest(t)

	zero := new(uint256.Int)
	require.NoError(t, o.ApplySwap(pool.ID, uint256.NewInt(100), zero, zero, uint256.NewInt(50)))

	r0, r1, err := o.GetReserves(pool.ID)
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).AddUint64(pool.Reserve0, 100), r0)
	assert.Equal(t, new(uint256.Int).SubUint64(pool.Reserve1, 50), r1)
	assert.Equal(t, digest, mk.Digest(t))

	id, err := o.PoolFor(mk.USDT, mk.USDC)
	require.NoError(t, err)
	assert.Equal(t, pool.ID, id)
}
