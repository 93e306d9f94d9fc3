package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

// Snapshotter yields a consistent view of every pool
type Snapshotter interface {
	Pools(ctx context.Context) ([]types.Pool, error)
}

// PoolMonitor periodically exports pool reserves and process stats
type PoolMonitor struct {
	source   Snapshotter
	interval time.Duration
	logger   *zap.Logger
	metrics  struct {
		reserves   *prometheus.GaugeVec
		pools      prometheus.Gauge
		goroutines prometheus.Gauge
		heapAlloc  prometheus.Gauge
	}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoolMonitor registers the monitor's gauges on reg
func NewPoolMonitor(source Snapshotter, reg prometheus.Registerer, namespace string, interval time.Duration, logger *zap.Logger) *PoolMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	m := &PoolMonitor{
		source:   source,
		interval: interval,
		logger:   logger,
	}

	factory := promauto.With(reg)
	m.metrics.reserves = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_reserve",
		Help:      "Pool reserve per token, lossy float of the smallest unit",
	}, []string{"pool", "token"})
	m.metrics.pools = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pools",
		Help:      "Number of pools in the ledger",
	})
	m.metrics.goroutines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})
	m.metrics.heapAlloc = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heap_alloc_bytes",
		Help:      "Current heap allocation in bytes",
	})
	return m
}

// Start collects once and then on every tick until ctx ends or Stop is called
func (m *PoolMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.monitor(ctx)
	}()
}

func (m *PoolMonitor) monitor(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.Collect(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("Failed to collect pool metrics", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect takes one snapshot and updates every gauge
func (m *PoolMonitor) Collect(ctx context.Context) error {
	pools, err := m.source.Pools(ctx)
	if err != nil {
		return err
	}

	for _, p := range pools {
		id := p.ID.Hex()
		m.metrics.reserves.WithLabelValues(id, p.Token0.Hex()).Set(math.ToFloat64(p.Reserve0))
		m.metrics.reserves.WithLabelValues(id, p.Token1.Hex()).Set(math.ToFloat64(p.Reserve1))
	}
	m.metrics.pools.Set(float64(len(pools)))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.metrics.goroutines.Set(float64(runtime.NumGoroutine()))
	m.metrics.heapAlloc.Set(float64(memStats.HeapAlloc))
	return nil
}

// Stop ends the collection loop and waits for it
func (m *PoolMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
