package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	first, second := NewRegistry(), NewRegistry()
	assert.NotSame(t, first, second)

	// the same collectors on two registries must not collide
	require.NotPanics(t, func() {
		NewSwapMetrics(first, DefaultNamespace)
		NewSwapMetrics(second, DefaultNamespace)
	})

	count, err := testutil.GatherAndCount(first, "go_goroutines")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSwapMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSwapMetrics(reg, "test_swap")
	require.NotNil(t, metrics)

	metrics.ObserveSwap("ok", 2, false, time.Millisecond)
	metrics.ObserveSwap("insufficient_output_amount", 1, true, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Swaps.WithLabelValues("ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Hops))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Rollbacks))

	count, err := testutil.GatherAndCount(reg, "test_swap_swaps_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var nilMetrics *SwapMetrics
	assert.NotPanics(t, func() { nilMetrics.ObserveSwap("ok", 1, false, 0) })
}

func TestFlashLoanMetrics(t *testing.T) {
	metrics := NewFlashLoanMetrics(prometheus.NewRegistry(), "test_flashloan")
	require.NotNil(t, metrics)

	metrics.UpdateSuccessRate()
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SuccessRate))

	metrics.Attempts.Add(4)
	metrics.Settled.Inc()
	metrics.UpdateSuccessRate()
	assert.Equal(t, 0.25, testutil.ToFloat64(metrics.SuccessRate))
	assert.Equal(t, float64(4), CounterValue(metrics.Attempts))
}

func TestUnregisteredMetrics(t *testing.T) {
	// constructing twice without a registry must not panic on duplicate names
	assert.NotPanics(t, func() {
		NewSwapMetrics(nil, "dup")
		NewSwapMetrics(nil, "dup")
	})
}
