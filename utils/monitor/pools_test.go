package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
	"github.com/michaelpento.lv/flashswap/utils/testutils"
)

type failingSource struct{}

func (failingSource) Pools(context.Context) ([]types.Pool, error) {
	return nil, errors.New("unavailable")
}

func TestPoolMonitorCollect(t *testing.T) {
	mk := testutils.NewMarket(t)
	reg := prometheus.NewRegistry()
	mon := NewPoolMonitor(mk.Ledger, reg, "test", time.Hour, zaptest.NewLogger(t))

	require.NoError(t, mon.Collect(context.Background()))
	assert.Equal(t, float64(3), testutil.ToFloat64(mon.metrics.pools))

	pool := mk.Pool(t, mk.WETH, mk.USDC)
	gauge := mon.metrics.reserves.WithLabelValues(pool.ID.Hex(), pool.Token0.Hex())
	assert.Equal(t, math.ToFloat64(pool.Reserve0), testutil.ToFloat64(gauge))

	count, err := testutil.GatherAndCount(reg, "test_pool_reserve")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestPoolMonitorCollectError(t *testing.T) {
	mon := NewPoolMonitor(failingSource{}, prometheus.NewRegistry(), "test", time.Hour, zaptest.NewLogger(t))
	assert.Error(t, mon.Collect(context.Background()))
	assert.Equal(t, float64(0), testutil.ToFloat64(mon.metrics.pools))
}

func TestPoolMonitorStartStop(t *testing.T) {
	mk := testutils.NewMarket(t)
	mon := NewPoolMonitor(mk.Ledger, prometheus.NewRegistry(), "test", 10*time.Millisecond, zaptest.NewLogger(t))

	mon.Start(context.Background())
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(mon.metrics.pools) == 3
	}, time.Second, 5*time.Millisecond)
	mon.Stop()
}
