package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

func newTestLedger(t *testing.T) *Memory {
	t.Helper()
	m, err := NewSeeded(zaptest.NewLogger(t), Options{}, "")
	require.NoError(t, err)
	return m
}

func digestOf(t *testing.T, m *Memory) uint64 {
	t.Helper()
	d, err := m.Digest(context.Background())
	require.NoError(t, err)
	return d
}

func TestMemoryLedger(t *testing.T) {
	m := newTestLedger(t)
	weth, err := m.ResolveToken("weth")
	require.NoError(t, err)
	usdc, err := m.ResolveToken("USDC")
	require.NoError(t, err)
	usdt, err := m.ResolveToken("USDT")
	require.NoError(t, err)

	t.Run("PoolForIsOrderIndependent", func(t *testing.T) {
		ab, err := m.PoolFor(weth, usdc)
		require.NoError(t, err)
		ba, err := m.PoolFor(usdc, weth)
		require.NoError(t, err)
		assert.Equal(t, ab, ba)

		again, err := m.PairAddress(weth, usdc)
		require.NoError(t, err)
		assert.Equal(t, ab, again)
	})

	t.Run("SeededReserves", func(t *testing.T) {
		id, err := m.PoolFor(weth, usdt)
		require.NoError(t, err)
		pool, err := m.Pool(id)
		require.NoError(t, err)

		wethReserve, usdtReserve, err := pool.ReservesFor(weth)
		require.NoError(t, err)
		assert.True(t, wethReserve.Eq(math.Units(1, 18)))
		assert.True(t, usdtReserve.Eq(math.Units(100, 18)))
	})

	t.Run("UnknownPool", func(t *testing.T) {
		_, err := m.PoolFor(weth, TokenAddress("DAI"))
		assert.ErrorIs(t, err, types.ErrPoolNotFound)
	})

	t.Run("CreateTwice", func(t *testing.T) {
		_, err := m.CreatePool(usdc, weth)
		assert.ErrorIs(t, err, types.ErrPoolExists)
	})

	t.Run("IdenticalTokens", func(t *testing.T) {
		_, err := m.PoolFor(weth, weth)
		assert.ErrorIs(t, err, types.ErrIdenticalAddresses)
	})

	t.Run("ApplySwapMovesReserves", func(t *testing.T) {
		id, err := m.PoolFor(usdc, usdt)
		require.NoError(t, err)
		before0, before1, err := m.GetReserves(id)
		require.NoError(t, err)

		err = m.ApplySwap(id, uint256.NewInt(10), math.Zero(), math.Zero(), uint256.NewInt(9))
		require.NoError(t, err)

		after0, after1, err := m.GetReserves(id)
		require.NoError(t, err)
		assert.Equal(t, new(uint256.Int).AddUint64(before0, 10), after0)
		assert.Equal(t, new(uint256.Int).SubUint64(before1, 9), after1)

		require.NoError(t, m.ApplySwap(id, math.Zero(), uint256.NewInt(9), uint256.NewInt(10), math.Zero()))
		restored0, restored1, err := m.GetReserves(id)
		require.NoError(t, err)
		assert.Equal(t, before0, restored0)
		assert.Equal(t, before1, restored1)
	})

	t.Run("ApplySwapCannotDrainReserve", func(t *testing.T) {
		id, err := m.PoolFor(usdc, usdt)
		require.NoError(t, err)
		r0, _, err := m.GetReserves(id)
		require.NoError(t, err)

		digest := digestOf(t, m)
		err = m.ApplySwap(id, math.Zero(), math.Zero(), r0, math.Zero())
		assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)
		assert.Equal(t, digest, digestOf(t, m))
	})

	t.Run("AddLiquidityRejectsZero", func(t *testing.T) {
		id, err := m.PoolFor(usdc, usdt)
		require.NoError(t, err)
		err = m.AddLiquidity(id, math.Zero(), uint256.NewInt(1))
		assert.ErrorIs(t, err, types.ErrInsufficientInputAmount)
	})

	t.Run("ResolvePath", func(t *testing.T) {
		path, err := m.ResolvePath([]string{"WETH", "usdt", usdc.Hex()})
		require.NoError(t, err)
		assert.Equal(t, weth, path[0])
		assert.Equal(t, usdt, path[1])
		assert.Equal(t, usdc, path[2])

		_, err = m.ResolvePath([]string{"WETH", "NOPE"})
		assert.ErrorIs(t, err, types.ErrInvalidPath)
		assert.Equal(t, "WETH", m.Symbol(weth))
	})

	t.Run("PoolsSnapshot", func(t *testing.T) {
		pools, err := m.Pools(context.Background())
		require.NoError(t, err)
		assert.Len(t, pools, 3)
	})
}

func TestDigestTracksReserves(t *testing.T) {
	a := newTestLedger(t)
	b := newTestLedger(t)
	assert.Equal(t, digestOf(t, a), digestOf(t, b))

	weth, _ := a.ResolveToken("WETH")
	usdc, _ := a.ResolveToken("USDC")
	id, err := a.PoolFor(weth, usdc)
	require.NoError(t, err)
	require.NoError(t, a.AddLiquidity(id, uint256.NewInt(1), uint256.NewInt(1)))
	assert.NotEqual(t, digestOf(t, a), digestOf(t, b))
}

func TestDigestWaitsForLockedPools(t *testing.T) {
	m := newTestLedger(t)
	weth, _ := m.ResolveToken("WETH")
	usdc, _ := m.ResolveToken("USDC")
	id, err := m.PoolFor(weth, usdc)
	require.NoError(t, err)

	before := digestOf(t, m)
	require.NoError(t, m.Lock(context.Background(), id))

	// an operation holding the pool may be between hops
	require.NoError(t, m.ApplySwap(id, uint256.NewInt(10), math.Zero(), math.Zero(), uint256.NewInt(1)))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Digest(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, m.ApplySwap(id, math.Zero(), uint256.NewInt(1), uint256.NewInt(10), math.Zero()))
	m.Release(id)
	assert.Equal(t, before, digestOf(t, m))
}

func TestPoolLocks(t *testing.T) {
	m := newTestLedger(t)
	weth, _ := m.ResolveToken("WETH")
	usdc, _ := m.ResolveToken("USDC")
	id, err := m.PoolFor(weth, usdc)
	require.NoError(t, err)

	require.NoError(t, m.Lock(context.Background(), id))

	t.Run("SecondLockWaitsForContext", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := m.Lock(ctx, id)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ReleaseHandsOver", func(t *testing.T) {
		acquired := make(chan error, 1)
		go func() {
			acquired <- m.Lock(context.Background(), id)
		}()

		select {
		case <-acquired:
			t.Fatal("lock acquired while held")
		case <-time.After(20 * time.Millisecond):
		}

		m.Release(id)
		select {
		case err := <-acquired:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("lock not handed over after release")
		}
		m.Release(id)
	})

	t.Run("UnknownPool", func(t *testing.T) {
		err := m.Lock(context.Background(), TokenAddress("missing"))
		assert.ErrorIs(t, err, types.ErrPoolNotFound)
	})
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed("testdata/seed.yaml")
	require.NoError(t, err)
	require.Len(t, seed.Tokens, 2)
	require.Len(t, seed.Pools, 1)

	m, err := NewMemory(zaptest.NewLogger(t), Options{PairCacheSize: 4})
	require.NoError(t, err)
	require.NoError(t, seed.Apply(m))

	weth, err := m.ResolveToken("WETH")
	require.NoError(t, err)
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", weth.Hex())

	dai, err := m.ResolveToken("DAI")
	require.NoError(t, err)
	assert.Equal(t, TokenAddress("dai"), dai)

	id, err := m.PoolFor(dai, weth)
	require.NoError(t, err)
	pool, err := m.Pool(id)
	require.NoError(t, err)
	daiReserve, _, err := pool.ReservesFor(dai)
	require.NoError(t, err)
	assert.Equal(t, "6000000000000000000000", daiReserve.Dec())

	_, err = ParseSeed([]byte("pools: [oops"))
	assert.Error(t, err)

	bad := &Seed{Pools: []PoolSeed{{TokenA: "X", TokenB: "Y", ReserveA: "1", ReserveB: "1"}}}
	assert.ErrorIs(t, bad.Apply(m), types.ErrInvalidPath)
}
