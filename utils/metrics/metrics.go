package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// DefaultNamespace prefixes every flashswap metric
const DefaultNamespace = "flashswap"

// NewRegistry returns a registry carrying the Go runtime and process
// collectors. Every service instance registers on its own registry so two of
// them can live in one process.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// SwapMetrics instruments the router
type SwapMetrics struct {
	Swaps     *prometheus.CounterVec
	Hops      prometheus.Counter
	Rollbacks prometheus.Counter
	Latency   prometheus.Histogram
}

// NewSwapMetrics registers router metrics on reg. A nil reg leaves them
// unregistered.
func NewSwapMetrics(reg prometheus.Registerer, namespace string) *SwapMetrics {
	factory := promauto.With(reg)
	return &SwapMetrics{
		Swaps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_total",
			Help:      "Total number of path swaps by outcome",
		}, []string{"status"}),
		Hops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_hops_total",
			Help:      "Total number of pool hops applied by swaps",
		}),
		Rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_rollbacks_total",
			Help:      "Total number of swaps rolled back after mutating reserves",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "swap_latency_seconds",
			Help:      "Swap latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12),
		}),
	}
}

// ObserveSwap records one finished swap. Safe on a nil receiver.
func (m *SwapMetrics) ObserveSwap(status string, hops int, rolledBack bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Swaps.WithLabelValues(status).Inc()
	m.Hops.Add(float64(hops))
	if rolledBack {
		m.Rollbacks.Inc()
	}
	m.Latency.Observe(elapsed.Seconds())
}

// FlashLoanMetrics instruments the flash-loan executor
type FlashLoanMetrics struct {
	Attempts       prometheus.Counter
	Settled        prometheus.Counter
	Reverted       *prometheus.CounterVec
	Profit         prometheus.Counter
	Borrowed       prometheus.Counter
	ExecutionTime  prometheus.Histogram
	ActiveSessions prometheus.Gauge
	SuccessRate    prometheus.Gauge
}

// NewFlashLoanMetrics registers executor metrics on reg
func NewFlashLoanMetrics(reg prometheus.Registerer, namespace string) *FlashLoanMetrics {
	factory := promauto.With(reg)
	return &FlashLoanMetrics{
		Attempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashloan_attempts_total",
			Help:      "Total number of flash-loan attacks started",
		}),
		Settled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashloan_settled_total",
			Help:      "Total number of flash-loan attacks settled with profit",
		}),
		Reverted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashloan_reverted_total",
			Help:      "Number of reverted flash-loan attacks by reason",
		}, []string{"reason"}),
		Profit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashloan_profit_total",
			Help:      "Sum of realized profit in the smallest unit of each cycle's anchor token",
		}),
		Borrowed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashloan_borrowed_total",
			Help:      "Sum of borrowed amounts of settled attacks",
		}),
		ExecutionTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flashloan_execution_seconds",
			Help:      "Latency of flash-loan execution",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flashloan_active_sessions",
			Help:      "Number of flash-loan sessions in progress",
		}),
		SuccessRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flashloan_success_rate",
			Help:      "Ratio of settled to attempted flash-loan attacks",
		}),
	}
}

// UpdateSuccessRate recomputes the success gauge from the counters
func (m *FlashLoanMetrics) UpdateSuccessRate() {
	if m == nil {
		return
	}
	total := CounterValue(m.Attempts)
	if total > 0 {
		m.SuccessRate.Set(CounterValue(m.Settled) / total)
	}
}

// CounterValue reads the current value of a counter
func CounterValue(c prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil || metric.Counter == nil {
		return 0
	}
	return metric.Counter.GetValue()
}
